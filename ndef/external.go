package ndef

// ExternalPayload is a TNF External record: an application-defined type in
// domain:name form (for example "android.com:pkg") carrying opaque data.
type ExternalPayload struct {
	domain []byte
	data   []byte
}

// NewExternalPayload builds an external payload with the given domain type
// and raw data.
func NewExternalPayload(domain, data []byte) *ExternalPayload {
	return &ExternalPayload{domain: domain, data: data}
}

// ExternalPayloadFromRecord reinterprets a decoded record as an external
// payload, failing with a payload mismatch when the record's TNF is not
// External.
func ExternalPayloadFromRecord(r *Record) (*ExternalPayload, error) {
	if r.tnf != TNFExternal {
		return nil, payloadMismatchf("record TNF is %s, want %s", r.tnf, TNFExternal)
	}
	return &ExternalPayload{domain: r.typ, data: r.payload}, nil
}

// Domain returns the record's domain:name type bytes.
func (p *ExternalPayload) Domain() []byte { return p.domain }

// Data returns the payload's raw data.
func (p *ExternalPayload) Data() []byte { return p.data }

// TypeNameFormat returns TNFExternal.
func (p *ExternalPayload) TypeNameFormat() TNF { return TNFExternal }

// RecordType returns the domain:name type bytes.
func (p *ExternalPayload) RecordType() []byte { return p.domain }

// Bytes returns the raw data.
func (p *ExternalPayload) Bytes() []byte { return p.data }
