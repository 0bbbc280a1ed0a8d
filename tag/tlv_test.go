package tag

import (
	"bytes"
	"testing"

	"github.com/dotside-studios/davi-ndef/ndef"
)

func textMessage(t *testing.T, text string) *ndef.Message {
	t.Helper()
	record, err := ndef.NewRecordBuilder().
		Payload(ndef.NewTextPayload(text, "en")).
		Build()
	if err != nil {
		t.Fatalf("failed to build record: %v", err)
	}
	return ndef.NewMessage(record)
}

func TestWrapRawShortFormat(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	result, err := WrapRaw(data)
	if err != nil {
		t.Fatalf("WrapRaw failed: %v", err)
	}

	expected := []byte{0x03, 0x04, 0x01, 0x02, 0x03, 0x04, 0xFE}
	if !bytes.Equal(result, expected) {
		t.Errorf("wrapped = %v, want %v", result, expected)
	}
}

func TestWrapRawLongFormat(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i % 256)
	}

	result, err := WrapRaw(data)
	if err != nil {
		t.Fatalf("WrapRaw failed: %v", err)
	}

	if result[0] != TLVNDEF {
		t.Errorf("type byte = 0x%02X, want 0x03", result[0])
	}
	if result[1] != 0xFF {
		t.Errorf("long format marker = 0x%02X, want 0xFF", result[1])
	}
	// 300 = 0x012C big-endian
	if result[2] != 0x01 || result[3] != 0x2C {
		t.Errorf("length bytes = 0x%02X 0x%02X, want 0x01 0x2C", result[2], result[3])
	}
	if !bytes.Equal(result[4:4+len(data)], data) {
		t.Error("value bytes do not match input")
	}
	if result[len(result)-1] != TLVTerminator {
		t.Errorf("last byte = 0x%02X, want terminator", result[len(result)-1])
	}
}

func TestWrapRawTooLarge(t *testing.T) {
	if _, err := WrapRaw(make([]byte, maxTLVLength+1)); err == nil {
		t.Error("payload over the TLV length limit should be rejected")
	}
}

func TestWrapMessageRoundTrip(t *testing.T) {
	msg := textMessage(t, "Hello")

	wrapped, err := WrapMessage(msg)
	if err != nil {
		t.Fatalf("WrapMessage failed: %v", err)
	}

	decoded, err := ExtractMessage(wrapped)
	if err != nil {
		t.Fatalf("ExtractMessage failed: %v", err)
	}
	if len(decoded.Records()) != 1 {
		t.Fatalf("record count = %d, want 1", len(decoded.Records()))
	}
	text, err := ndef.TextPayloadFromRecord(decoded.Records()[0])
	if err != nil {
		t.Fatalf("TextPayloadFromRecord failed: %v", err)
	}
	if text.Text() != "Hello" {
		t.Errorf("text = %q, want Hello", text.Text())
	}
}

func TestFindNDEFSkipsNullTLVs(t *testing.T) {
	data := []byte{
		0x00,       // Null TLV
		0x00,       // Null TLV
		0x03, 0x04, // NDEF TLV, length 4
		0x01, 0x02, 0x03, 0x04,
		0xFE, // Terminator
	}

	result, found := FindNDEF(data)
	if !found {
		t.Fatal("expected to find NDEF TLV")
	}
	if !bytes.Equal(result, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("value = %v", result)
	}
}

func TestFindNDEFSkipsOtherTLVs(t *testing.T) {
	data := []byte{
		0x01, 0x03, 0xAA, 0xBB, 0xCC, // Lock Control TLV
		0x03, 0x02, 0x11, 0x22, // NDEF TLV
		0xFE,
	}

	result, found := FindNDEF(data)
	if !found {
		t.Fatal("expected to find NDEF TLV")
	}
	if !bytes.Equal(result, []byte{0x11, 0x22}) {
		t.Errorf("value = %v", result)
	}
}

func TestFindNDEFStopsAtTerminator(t *testing.T) {
	data := []byte{0x00, 0xFE, 0x03, 0x01, 0xAA}
	if _, found := FindNDEF(data); found {
		t.Error("NDEF TLV after the terminator should not be found")
	}
}

func TestFindNDEFTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"type only", []byte{0x03}},
		{"truncated long length", []byte{0x03, 0xFF, 0x01}},
		{"value runs past block", []byte{0x03, 0x10, 0x01, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, found := FindNDEF(tt.data); found {
				t.Error("malformed TLV block should not yield an NDEF message")
			}
		})
	}
}

func TestExtractMessageNoNDEF(t *testing.T) {
	if _, err := ExtractMessage([]byte{0x00, 0x00, 0xFE}); err == nil {
		t.Error("block without an NDEF TLV should fail")
	}
}
