package ndef

import (
	"encoding/binary"
	"unicode/utf16"
)

// maxLanguageLen caps the language code length to what the 6-bit status
// field can express.
const maxLanguageLen = 0x3F

// TextPayload is the well-known "T" record payload: a status byte carrying
// the encoding bit and language code length, the language code, then the
// text itself. Encoding always emits UTF-8; decoding accepts UTF-16LE too.
type TextPayload struct {
	text     string
	language string
	utf16    bool
}

// NewTextPayload builds a text payload. An empty language defaults to "en";
// longer-than-representable language codes are truncated.
func NewTextPayload(text, language string) *TextPayload {
	if language == "" {
		language = "en"
	}
	if len(language) > maxLanguageLen {
		language = language[:maxLanguageLen]
	}
	return &TextPayload{text: text, language: language}
}

// TextPayloadFromRecord reinterprets a decoded record as a text payload,
// failing with a payload mismatch when the record is not a well-known "T"
// record or its payload is malformed.
func TextPayloadFromRecord(r *Record) (*TextPayload, error) {
	if err := matchRecord(r, TNFWellKnown, RTDText); err != nil {
		return nil, err
	}
	if len(r.payload) < 1 {
		return nil, payloadMismatchf("text payload missing status byte")
	}

	status := r.payload[0]
	langLen := int(status & maxLanguageLen)
	isUTF16 := status&0x80 != 0

	if 1+langLen > len(r.payload) {
		return nil, payloadMismatchf("text payload shorter than its language code")
	}
	language := string(r.payload[1 : 1+langLen])
	textBytes := r.payload[1+langLen:]

	if !isUTF16 {
		return &TextPayload{text: string(textBytes), language: language}, nil
	}
	if len(textBytes)%2 != 0 {
		return nil, payloadMismatchf("UTF-16 text has odd length %d", len(textBytes))
	}
	u16s := make([]uint16, len(textBytes)/2)
	for i := range u16s {
		u16s[i] = binary.LittleEndian.Uint16(textBytes[i*2 : i*2+2])
	}
	return &TextPayload{text: string(utf16.Decode(u16s)), language: language, utf16: true}, nil
}

// Text returns the decoded text.
func (p *TextPayload) Text() string { return p.text }

// Language returns the record's language code.
func (p *TextPayload) Language() string { return p.language }

// TypeNameFormat returns TNFWellKnown.
func (p *TextPayload) TypeNameFormat() TNF { return TNFWellKnown }

// RecordType returns the "T" record type.
func (p *TextPayload) RecordType() []byte { return []byte(RTDText) }

// Bytes returns the status byte, language code and UTF-8 text.
func (p *TextPayload) Bytes() []byte {
	buf := make([]byte, 1+len(p.language)+len(p.text))
	buf[0] = byte(len(p.language)) // UTF-8, encoding bit clear
	copy(buf[1:], p.language)
	copy(buf[1+len(p.language):], p.text)
	return buf
}
