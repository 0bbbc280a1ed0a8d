package ndef

import (
	"encoding/binary"
	"math"
)

// shortRecordMax is the largest payload a short record (SR=1) can carry;
// anything bigger switches the payload length field from 1 to 4 bytes.
const shortRecordMax = 255

// Record is the atomic unit of an NDEF message: a TNF, type bytes, an
// optional id and an opaque payload. A Record owns its byte buffers
// exclusively; the builder and the decoder both copy, so no aliasing with
// caller memory survives construction.
//
// The framing flags (MB/ME/CF/SR/IL) are not part of a record's identity.
// Encode derives SR and IL from the data and takes MB/ME from the message
// position; Flags only reports what was observed on the wire for decoded
// records.
type Record struct {
	typ     []byte
	id      []byte
	payload []byte
	tnf     TNF
	flags   RecordFlags
}

// TNF returns the record's Type Name Format.
func (r *Record) TNF() TNF { return r.tnf }

// Type returns the record's type bytes. Callers must not modify the slice.
func (r *Record) Type() []byte { return r.typ }

// ID returns the record's id bytes, or nil when no id field was present.
func (r *Record) ID() []byte { return r.id }

// Payload returns the record's raw payload bytes.
func (r *Record) Payload() []byte { return r.payload }

// Flags returns the header flags observed when this record was decoded.
// Records produced by the builder report zero flags.
func (r *Record) Flags() RecordFlags { return r.flags }

// RecordBuilder accumulates the configuration for a Record. All validation
// happens in the single Build step; no partially constructed record is
// observable outside the builder.
type RecordBuilder struct {
	tnf     TNF
	hasTNF  bool
	typ     []byte
	id      []byte
	payload []byte
	hasData bool
}

// NewRecordBuilder returns an empty record builder. At minimum a payload
// (via Payload or PayloadBytes) and a TNF (explicit or supplied by the
// payload) are required.
func NewRecordBuilder() *RecordBuilder {
	return &RecordBuilder{}
}

// TNF sets the record's Type Name Format, overriding whatever a Payload
// would supply.
func (b *RecordBuilder) TNF(t TNF) *RecordBuilder {
	b.tnf = t
	b.hasTNF = true
	return b
}

// Type sets the record's type bytes, overriding whatever a Payload would
// supply.
func (b *RecordBuilder) Type(typ []byte) *RecordBuilder {
	b.typ = typ
	return b
}

// ID sets the record's optional id bytes.
func (b *RecordBuilder) ID(id []byte) *RecordBuilder {
	b.id = id
	return b
}

// Payload seeds the record's type bytes and payload bytes from p. The TNF
// is taken from p as well unless one was set explicitly.
func (b *RecordBuilder) Payload(p Payload) *RecordBuilder {
	if !b.hasTNF {
		b.tnf = p.TypeNameFormat()
		b.hasTNF = true
	}
	if b.typ == nil {
		b.typ = p.RecordType()
	}
	b.payload = p.Bytes()
	b.hasData = true
	return b
}

// PayloadBytes sets the record's raw payload bytes directly, bypassing the
// Payload interface.
func (b *RecordBuilder) PayloadBytes(payload []byte) *RecordBuilder {
	b.payload = payload
	b.hasData = true
	return b
}

// Build validates the configuration and returns the finished record. All
// byte slices are copied so the record owns its buffers exclusively.
func (b *RecordBuilder) Build() (*Record, error) {
	if !b.hasData {
		return nil, encodingErrorf("record requires a payload")
	}
	if !b.hasTNF {
		return nil, encodingErrorf("record requires a type name format")
	}
	if !b.tnf.Valid() {
		return nil, encodingErrorf("type name format %d does not fit in 3 bits", b.tnf)
	}
	if len(b.typ) > math.MaxUint8 {
		return nil, encodingErrorf("record type length %d exceeds 255", len(b.typ))
	}
	if len(b.id) > math.MaxUint8 {
		return nil, encodingErrorf("record id length %d exceeds 255", len(b.id))
	}
	if uint64(len(b.payload)) > math.MaxUint32 {
		return nil, encodingErrorf("payload length %d exceeds 4-byte length field", len(b.payload))
	}

	r := &Record{tnf: b.tnf}
	if b.typ != nil {
		r.typ = append([]byte(nil), b.typ...)
	}
	if b.id != nil {
		r.id = append([]byte(nil), b.id...)
	}
	if b.payload != nil {
		r.payload = append([]byte(nil), b.payload...)
	}
	return r, nil
}

// Encode serializes the record into its wire form. Only the MB, ME and CF
// bits of flags are honored: SR is derived from the payload length and IL
// from id presence, so a caller can never desynchronize those flags from
// the data they describe.
func (r *Record) Encode(flags RecordFlags) ([]byte, error) {
	typeLen := len(r.typ)
	payloadLen := len(r.payload)

	if typeLen > math.MaxUint8 {
		return nil, encodingErrorf("record type length %d exceeds 255", typeLen)
	}
	if len(r.id) > math.MaxUint8 {
		return nil, encodingErrorf("record id length %d exceeds 255", len(r.id))
	}
	if uint64(payloadLen) > math.MaxUint32 {
		return nil, encodingErrorf("payload length %d exceeds 4-byte length field", payloadLen)
	}

	short := payloadLen <= shortRecordMax
	hasID := r.id != nil

	header := byte(flags&(FlagMB|FlagME|FlagCF)) | byte(r.tnf)&tnfMask
	if short {
		header |= byte(FlagSR)
	}
	if hasID {
		header |= byte(FlagIL)
	}

	size := 1 + 1 // header + type length
	if short {
		size++
	} else {
		size += 4
	}
	if hasID {
		size++
	}
	size += typeLen + len(r.id) + payloadLen

	buf := make([]byte, size)
	pos := 0

	buf[pos] = header
	pos++
	buf[pos] = byte(typeLen)
	pos++

	if short {
		buf[pos] = byte(payloadLen)
		pos++
	} else {
		binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(payloadLen))
		pos += 4
	}

	if hasID {
		buf[pos] = byte(len(r.id))
		pos++
	}

	copy(buf[pos:], r.typ)
	pos += typeLen
	if hasID {
		copy(buf[pos:], r.id)
		pos += len(r.id)
	}
	copy(buf[pos:], r.payload)

	return buf, nil
}

// decodeRecord consumes exactly one record starting at offset and returns
// the record together with the offset just past it. It performs pure
// framing: any 3-bit TNF value is accepted and payload bytes are never
// interpreted.
func decodeRecord(data []byte, offset int) (*Record, int, error) {
	if offset >= len(data) {
		return nil, 0, decodingErrorf(offset, "truncated record header")
	}

	header := data[offset]
	flags := RecordFlags(header) & (FlagMB | FlagME | FlagCF | FlagSR | FlagIL)
	tnf := TNF(header & tnfMask)
	pos := offset + 1

	if pos >= len(data) {
		return nil, 0, decodingErrorf(pos, "truncated type length")
	}
	typeLen := int(data[pos])
	pos++

	var payloadLen int
	if flags.Has(FlagSR) {
		if pos >= len(data) {
			return nil, 0, decodingErrorf(pos, "truncated short record payload length")
		}
		payloadLen = int(data[pos])
		pos++
	} else {
		if pos+4 > len(data) {
			return nil, 0, decodingErrorf(pos, "truncated payload length")
		}
		length := binary.BigEndian.Uint32(data[pos : pos+4])
		// int is 32 bits on some platforms; a length above MaxInt32 would
		// wrap negative and defeat the truncation checks below.
		if length > math.MaxInt32 {
			return nil, 0, decodingErrorf(pos, "payload length %d exceeds decodable range", length)
		}
		payloadLen = int(length)
		pos += 4
	}

	idLen := 0
	if flags.Has(FlagIL) {
		if pos >= len(data) {
			return nil, 0, decodingErrorf(pos, "truncated id length")
		}
		idLen = int(data[pos])
		pos++
	}

	if pos+typeLen > len(data) {
		return nil, 0, decodingErrorf(pos, "truncated type field")
	}
	typ := append([]byte(nil), data[pos:pos+typeLen]...)
	pos += typeLen

	var id []byte
	if flags.Has(FlagIL) {
		if pos+idLen > len(data) {
			return nil, 0, decodingErrorf(pos, "truncated id field")
		}
		id = append([]byte(nil), data[pos:pos+idLen]...)
		pos += idLen
	}

	if pos+payloadLen > len(data) {
		return nil, 0, decodingErrorf(pos, "truncated payload")
	}
	payload := append([]byte(nil), data[pos:pos+payloadLen]...)
	pos += payloadLen

	return &Record{
		typ:     typ,
		id:      id,
		payload: payload,
		tnf:     tnf,
		flags:   flags,
	}, pos, nil
}
