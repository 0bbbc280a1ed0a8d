package ndef

// Payload is the minimal contract a concrete payload type satisfies so the
// record builder can embed it. The record and message codecs depend only on
// this interface, never on concrete payload types; payload semantics stay
// entirely on the implementation side of the boundary.
type Payload interface {
	// TypeNameFormat returns the TNF the record must carry.
	TypeNameFormat() TNF
	// RecordType returns the bytes for the record's type field.
	RecordType() []byte
	// Bytes returns the raw payload bytes to embed in the record.
	Bytes() []byte
}

// matchRecord verifies a decoded record carries the TNF and type a
// structured payload accessor expects. The returned error is always a
// payload mismatch: recoverable, and never fatal to the surrounding
// message decode.
func matchRecord(r *Record, tnf TNF, recordType string) error {
	if r.tnf != tnf {
		return payloadMismatchf("record TNF is %s, want %s", r.tnf, tnf)
	}
	if string(r.typ) != recordType {
		return payloadMismatchf("record type is %q, want %q", r.typ, recordType)
	}
	return nil
}
