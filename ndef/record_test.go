package ndef

import (
	"bytes"
	"encoding/hex"
	"math"
	"strings"
	"testing"
)

func mustBuild(t *testing.T, b *RecordBuilder) *Record {
	t.Helper()
	r, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build record: %v", err)
	}
	return r
}

func TestRecordBuilderRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		builder *RecordBuilder
	}{
		{"no payload", NewRecordBuilder().TNF(TNFWellKnown)},
		{"no tnf", NewRecordBuilder().PayloadBytes([]byte("data"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.builder.Build(); err == nil {
				t.Errorf("Build should fail for %s", tt.name)
			}
		})
	}
}

func TestRecordBuilderSizeLimits(t *testing.T) {
	tests := []struct {
		name    string
		builder *RecordBuilder
	}{
		{"type over 255", NewRecordBuilder().
			TNF(TNFExternal).
			Type(bytes.Repeat([]byte{'x'}, 256)).
			PayloadBytes([]byte("data"))},
		{"id over 255", NewRecordBuilder().
			TNF(TNFExternal).
			Type([]byte("example.com:t")).
			ID(bytes.Repeat([]byte{'i'}, 256)).
			PayloadBytes([]byte("data"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatalf("Build should fail for %s", tt.name)
			}
			if !IsEncodingError(err) {
				t.Errorf("expected an encoding error, got %v", err)
			}
		})
	}
}

func TestRecordBuilderCopiesBuffers(t *testing.T) {
	typ := []byte("example.com:t")
	payload := []byte("payload")

	record := mustBuild(t, NewRecordBuilder().
		TNF(TNFExternal).
		Type(typ).
		PayloadBytes(payload))

	typ[0] = 'X'
	payload[0] = 'X'

	if record.Type()[0] == 'X' {
		t.Error("record type aliases caller memory")
	}
	if record.Payload()[0] == 'X' {
		t.Error("record payload aliases caller memory")
	}
}

func TestRecordEncodeHeaderDerivation(t *testing.T) {
	tests := []struct {
		name       string
		payloadLen int
		id         []byte
		flags      RecordFlags
		wantHeader byte
	}{
		{"short record", 10, nil, FlagMB | FlagME, 0xD4},
		{"boundary 255 is short", 255, nil, FlagMB | FlagME, 0xD4},
		{"256 is long", 256, nil, FlagMB | FlagME, 0xC4},
		{"id sets IL", 10, []byte("id"), FlagMB | FlagME, 0xDC},
		{"no framing flags", 10, nil, 0, 0x14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := NewRecordBuilder().
				TNF(TNFExternal).
				Type([]byte("example.com:t")).
				PayloadBytes(bytes.Repeat([]byte{0xAB}, tt.payloadLen))
			if tt.id != nil {
				builder.ID(tt.id)
			}
			record := mustBuild(t, builder)

			buf, err := record.Encode(tt.flags)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if buf[0] != tt.wantHeader {
				t.Errorf("header = 0x%02X, want 0x%02X", buf[0], tt.wantHeader)
			}
		})
	}
}

func TestRecordEncodeShortBoundary(t *testing.T) {
	// 255 bytes: SR set, one length byte.
	record := mustBuild(t, NewRecordBuilder().
		TNF(TNFUnknown).
		PayloadBytes(bytes.Repeat([]byte{0xAB}, 255)))
	buf, err := record.Encode(0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf[0]&byte(FlagSR) == 0 {
		t.Error("255-byte payload should encode as a short record")
	}
	if buf[2] != 0xFF {
		t.Errorf("short payload length byte = 0x%02X, want 0xFF", buf[2])
	}
	if len(buf) != 1+1+1+255 {
		t.Errorf("encoded length = %d, want %d", len(buf), 1+1+1+255)
	}

	// 256 bytes: SR clear, four length bytes big-endian.
	record = mustBuild(t, NewRecordBuilder().
		TNF(TNFUnknown).
		PayloadBytes(bytes.Repeat([]byte{0xAB}, 256)))
	buf, err = record.Encode(0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf[0]&byte(FlagSR) != 0 {
		t.Error("256-byte payload should not encode as a short record")
	}
	if !bytes.Equal(buf[2:6], []byte{0x00, 0x00, 0x01, 0x00}) {
		t.Errorf("payload length field = %x, want 00000100", buf[2:6])
	}
	if len(buf) != 1+1+4+256 {
		t.Errorf("encoded length = %d, want %d", len(buf), 1+1+4+256)
	}
}

func TestRecordEncodeSROverrideIgnored(t *testing.T) {
	// Caller-supplied SR and IL bits must not leak into the header; both are
	// derived from the record's data.
	record := mustBuild(t, NewRecordBuilder().
		TNF(TNFUnknown).
		PayloadBytes(bytes.Repeat([]byte{0xAB}, 300)))
	buf, err := record.Encode(FlagSR | FlagIL)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf[0]&byte(FlagSR) != 0 {
		t.Error("caller-supplied SR flag leaked into the header")
	}
	if buf[0]&byte(FlagIL) != 0 {
		t.Error("caller-supplied IL flag leaked into the header")
	}
}

func TestDecodeRecordWithID(t *testing.T) {
	record := mustBuild(t, NewRecordBuilder().
		TNF(TNFWellKnown).
		Payload(NewTextPayload("Hello", "en")).
		ID([]byte("test-id")))

	buf, err := record.Encode(FlagMB | FlagME)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf[0]&byte(FlagIL) == 0 {
		t.Fatal("record with id should have IL flag set")
	}

	decoded, next, err := decodeRecord(buf, 0)
	if err != nil {
		t.Fatalf("decodeRecord failed: %v", err)
	}
	if next != len(buf) {
		t.Errorf("decodeRecord consumed %d bytes, want %d", next, len(buf))
	}
	if !bytes.Equal(decoded.ID(), []byte("test-id")) {
		t.Errorf("id = %q, want %q", decoded.ID(), "test-id")
	}
	if !decoded.Flags().Has(FlagMB | FlagME | FlagIL) {
		t.Errorf("decoded flags = 0x%02X, missing MB/ME/IL", byte(decoded.Flags()))
	}
}

func TestDecodeRecordTruncated(t *testing.T) {
	tests := []struct {
		name string
		data string // hex
	}{
		{"truncated type length", "d1"},
		{"truncated payload length", "d101"},
		{"truncated long payload length", "c1010000"},
		{"truncated id length", "d9010e"},
		{"truncated type field", "d105105454"},
		{"truncated id field", "d9010e0255"},
		{"truncated payload", "d101ff54"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := hex.DecodeString(tt.data)
			if err != nil {
				t.Fatalf("bad hex in test: %v", err)
			}
			_, _, err = decodeRecord(data, 0)
			if err == nil {
				t.Fatal("decodeRecord should fail on truncated input")
			}
			if !IsDecodingError(err) {
				t.Errorf("expected a decoding error, got %v", err)
			}
			if !strings.Contains(err.Error(), "offset") {
				t.Errorf("decoding error should carry an offset: %v", err)
			}
		})
	}
}

func TestDecodeRecordRejectsOversizedPayloadLength(t *testing.T) {
	// SR clear, 4-byte payload length at the 32-bit maximum. On platforms
	// where int is 32 bits such a length would wrap negative if converted
	// unchecked and slip past the truncation checks.
	data := []byte{0xC1, 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 'T'}
	_, _, err := decodeRecord(data, 0)
	if err == nil {
		t.Fatal("decodeRecord should reject a payload length above MaxInt32")
	}
	if !IsDecodingError(err) {
		t.Errorf("expected a decoding error, got %v", err)
	}
}

func TestDecodeRecordAcceptsAnyTNF(t *testing.T) {
	// The record codec is pure framing: all eight TNF values decode, even
	// Reserved.
	for tnf := TNF(0); tnf <= TNFReserved; tnf++ {
		data := []byte{0x10 | byte(tnf), 0x00, 0x00} // SR, no type, no payload
		record, _, err := decodeRecord(data, 0)
		if err != nil {
			t.Fatalf("decodeRecord failed for TNF %s: %v", tnf, err)
		}
		if record.TNF() != tnf {
			t.Errorf("decoded TNF = %s, want %s", record.TNF(), tnf)
		}
	}
}

func TestTNFValid(t *testing.T) {
	if !TNFReserved.Valid() {
		t.Error("TNFReserved should be a valid 3-bit value")
	}
	if TNF(8).Valid() {
		t.Error("TNF 8 should not be valid")
	}
	if TNF(math.MaxUint8).String() != "Invalid" {
		t.Error("out-of-range TNF should print as Invalid")
	}
}

func BenchmarkRecordEncode(b *testing.B) {
	record, err := NewRecordBuilder().
		TNF(TNFWellKnown).
		Payload(NewURIPayload("https://example.com/a/fairly/long/path")).
		Build()
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = record.Encode(FlagMB | FlagME)
	}
}
