package ndef

// Message is an ordered sequence of records. Insertion order is wire order:
// the first record is encoded with the MB flag, the last with ME, and a
// single-record message carries both on its only record.
type Message struct {
	records []*Record
}

// NewMessage creates a message from the given records, preserving order.
func NewMessage(records ...*Record) *Message {
	return &Message{records: append([]*Record(nil), records...)}
}

// AddRecord appends a record to the end of the message.
func (m *Message) AddRecord(r *Record) *Message {
	m.records = append(m.records, r)
	return m
}

// Records returns the message's records in wire order.
func (m *Message) Records() []*Record {
	return m.records
}

// Encode serializes the message: each record is encoded with the framing
// flags its position dictates and the results are concatenated with no
// separators or count prefix. Fails only by propagation from a record's own
// encoding failure; no partial buffer is returned.
func (m *Message) Encode() ([]byte, error) {
	var buf []byte
	for i, record := range m.records {
		var flags RecordFlags
		switch {
		case len(m.records) == 1:
			flags = FlagMB | FlagME
		case i == 0:
			flags = FlagMB
		case i == len(m.records)-1:
			flags = FlagME
		}
		b, err := record.Encode(flags)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

// Decode parses data as one complete NDEF message. Records are decoded one
// after another until the cumulative bytes consumed reach the end of the
// input; the wire form carries no record count.
//
// Two framing invariants are enforced while decoding: no record after the
// first may carry MB, and the record that exhausts the buffer must carry ME.
// The first record is not required to carry MB; a buffer whose first record
// omits it decodes without error. Anything structurally truncated or
// malformed aborts the whole decode at the first faulty record.
func Decode(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, decodingErrorf(0, "empty message")
	}

	var records []*Record
	offset := 0
	for {
		record, next, err := decodeRecord(data, offset)
		if err != nil {
			return nil, err
		}
		if record.flags.Has(FlagMB) && len(records) > 0 {
			return nil, framingErrorf("MB flag set on non-first record %d", len(records))
		}
		records = append(records, record)
		offset = next
		if offset >= len(data) {
			if !record.flags.Has(FlagME) {
				return nil, framingErrorf("message does not terminate with ME flag")
			}
			break
		}
	}
	return &Message{records: records}, nil
}
