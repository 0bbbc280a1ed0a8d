package ndef

// SmartPosterPayload is the well-known "Sp" record payload. The payload
// bytes are themselves an embedded NDEF message (title, URI, action and so
// on); this type carries them opaquely and callers that need the inner
// structure can run Decode over Data.
type SmartPosterPayload struct {
	data []byte
}

// NewSmartPosterPayload builds a smart poster payload over raw bytes.
func NewSmartPosterPayload(data []byte) *SmartPosterPayload {
	return &SmartPosterPayload{data: data}
}

// SmartPosterPayloadFromRecord reinterprets a decoded record as a smart
// poster payload, failing with a payload mismatch when the record is not a
// well-known "Sp" record.
func SmartPosterPayloadFromRecord(r *Record) (*SmartPosterPayload, error) {
	if err := matchRecord(r, TNFWellKnown, RTDSmartPoster); err != nil {
		return nil, err
	}
	return &SmartPosterPayload{data: r.payload}, nil
}

// Data returns the embedded NDEF message bytes.
func (p *SmartPosterPayload) Data() []byte { return p.data }

// TypeNameFormat returns TNFWellKnown.
func (p *SmartPosterPayload) TypeNameFormat() TNF { return TNFWellKnown }

// RecordType returns the "Sp" record type.
func (p *SmartPosterPayload) RecordType() []byte { return []byte(RTDSmartPoster) }

// Bytes returns the embedded NDEF message bytes.
func (p *SmartPosterPayload) Bytes() []byte { return p.data }
