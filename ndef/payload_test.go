package ndef

import (
	"bytes"
	"testing"
)

func TestURIPayloadAbbreviationPick(t *testing.T) {
	tests := []struct {
		uri        string
		wantAbbrev byte
		wantSuffix string
	}{
		{"https://www.example.com", URIPrefixHTTPSWWW, "example.com"},
		{"http://www.example.com", URIPrefixHTTPWWW, "example.com"},
		{"https://example.com", URIPrefixHTTPS, "example.com"},
		{"http://example.com", URIPrefixHTTP, "example.com"},
		{"tel:+1234567890", 0x05, "+1234567890"},
		{"mailto:user@example.com", 0x06, "user@example.com"},
		{"urn:epc:id:sgtin:0614141", 0x1E, "sgtin:0614141"},
		{"urn:nfc:sn:12345", 0x23, "sn:12345"},
		{"weixin://dl/business", URIPrefixNone, "weixin://dl/business"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			p := NewURIPayload(tt.uri)
			if p.Abbreviation() != tt.wantAbbrev {
				t.Errorf("abbreviation = 0x%02X, want 0x%02X", p.Abbreviation(), tt.wantAbbrev)
			}
			if p.URI() != tt.wantSuffix {
				t.Errorf("suffix = %q, want %q", p.URI(), tt.wantSuffix)
			}
			if p.FullURI() != tt.uri {
				t.Errorf("full uri = %q, want %q", p.FullURI(), tt.uri)
			}
		})
	}
}

func TestURIPayloadLongestPrefixWins(t *testing.T) {
	// "https://www." must beat the shorter "https://".
	p := NewURIPayload("https://www.example.com")
	if p.Abbreviation() != URIPrefixHTTPSWWW {
		t.Errorf("abbreviation = 0x%02X, want 0x%02X", p.Abbreviation(), URIPrefixHTTPSWWW)
	}
}

func TestURIPayloadUnknownAbbreviation(t *testing.T) {
	if _, err := NewURIPayloadWithAbbreviation(0x7F, "example.com"); err == nil {
		t.Error("identifier code outside the table should be rejected")
	}
}

func TestURIPayloadRoundTripThroughRecord(t *testing.T) {
	p := NewURIPayload("https://example.com/path?q=1")
	record := mustBuild(t, NewRecordBuilder().Payload(p))

	got, err := URIPayloadFromRecord(record)
	if err != nil {
		t.Fatalf("URIPayloadFromRecord failed: %v", err)
	}
	if got.FullURI() != "https://example.com/path?q=1" {
		t.Errorf("full uri = %q", got.FullURI())
	}
}

func TestURIPayloadFromRecordMismatches(t *testing.T) {
	text := mustBuild(t, NewRecordBuilder().Payload(NewTextPayload("hi", "en")))
	if _, err := URIPayloadFromRecord(text); !IsPayloadMismatch(err) {
		t.Errorf("text record should mismatch as URI, got %v", err)
	}

	empty := mustBuild(t, NewRecordBuilder().TNF(TNFWellKnown).Type([]byte(RTDURI)).PayloadBytes(nil))
	if _, err := URIPayloadFromRecord(empty); !IsPayloadMismatch(err) {
		t.Errorf("empty URI payload should mismatch, got %v", err)
	}

	badCode := mustBuild(t, NewRecordBuilder().TNF(TNFWellKnown).Type([]byte(RTDURI)).PayloadBytes([]byte{0x7F, 'x'}))
	if _, err := URIPayloadFromRecord(badCode); !IsPayloadMismatch(err) {
		t.Errorf("undefined identifier code should mismatch, got %v", err)
	}
}

func TestTextPayloadRoundTrip(t *testing.T) {
	tests := []struct {
		text     string
		language string
		wantLang string
	}{
		{"Hello", "en", "en"},
		{"Bonjour", "fr", "fr"},
		{"こんにちは", "ja", "ja"},
		{"default language", "", "en"},
		{"", "en", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.wantLang+"/"+tt.text, func(t *testing.T) {
			record := mustBuild(t, NewRecordBuilder().Payload(NewTextPayload(tt.text, tt.language)))
			got, err := TextPayloadFromRecord(record)
			if err != nil {
				t.Fatalf("TextPayloadFromRecord failed: %v", err)
			}
			if got.Text() != tt.text {
				t.Errorf("text = %q, want %q", got.Text(), tt.text)
			}
			if got.Language() != tt.wantLang {
				t.Errorf("language = %q, want %q", got.Language(), tt.wantLang)
			}
		})
	}
}

func TestTextPayloadUTF16(t *testing.T) {
	// UTF-16LE "Hi" with the encoding bit set in the status byte.
	record := mustBuild(t, NewRecordBuilder().
		TNF(TNFWellKnown).
		Type([]byte(RTDText)).
		PayloadBytes([]byte{0x82, 'e', 'n', 0x48, 0x00, 0x69, 0x00}))

	got, err := TextPayloadFromRecord(record)
	if err != nil {
		t.Fatalf("TextPayloadFromRecord failed: %v", err)
	}
	if got.Text() != "Hi" {
		t.Errorf("text = %q, want Hi", got.Text())
	}
	if got.Language() != "en" {
		t.Errorf("language = %q, want en", got.Language())
	}
}

func TestTextPayloadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"missing status byte", nil},
		{"language runs past payload", []byte{0x05, 'e'}},
		{"odd utf16 length", []byte{0x82, 'e', 'n', 0x48}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := mustBuild(t, NewRecordBuilder().
				TNF(TNFWellKnown).
				Type([]byte(RTDText)).
				PayloadBytes(tt.payload))
			if _, err := TextPayloadFromRecord(record); !IsPayloadMismatch(err) {
				t.Errorf("expected payload mismatch, got %v", err)
			}
		})
	}
}

func TestTextPayloadLanguageTruncation(t *testing.T) {
	long := string(bytes.Repeat([]byte{'x'}, 100))
	p := NewTextPayload("t", long)
	if len(p.Language()) != maxLanguageLen {
		t.Errorf("language length = %d, want %d", len(p.Language()), maxLanguageLen)
	}
}

func TestExternalPayloadRoundTrip(t *testing.T) {
	p := NewExternalPayload([]byte("android.com:pkg"), []byte("com.tencent.mm"))
	record := mustBuild(t, NewRecordBuilder().Payload(p))

	if record.TNF() != TNFExternal {
		t.Errorf("record TNF = %s, want External", record.TNF())
	}
	got, err := ExternalPayloadFromRecord(record)
	if err != nil {
		t.Fatalf("ExternalPayloadFromRecord failed: %v", err)
	}
	if !bytes.Equal(got.Domain(), []byte("android.com:pkg")) {
		t.Errorf("domain = %q", got.Domain())
	}
	if !bytes.Equal(got.Data(), []byte("com.tencent.mm")) {
		t.Errorf("data = %q", got.Data())
	}

	text := mustBuild(t, NewRecordBuilder().Payload(NewTextPayload("hi", "en")))
	if _, err := ExternalPayloadFromRecord(text); !IsPayloadMismatch(err) {
		t.Errorf("text record should mismatch as external, got %v", err)
	}
}

func TestSmartPosterPayloadRoundTrip(t *testing.T) {
	// A smart poster payload embeds a complete NDEF message.
	title := mustBuild(t, NewRecordBuilder().Payload(NewTextPayload("Example", "en")))
	link := mustBuild(t, NewRecordBuilder().Payload(NewURIPayload("https://example.com")))
	inner, err := NewMessage(title, link).Encode()
	if err != nil {
		t.Fatal(err)
	}

	record := mustBuild(t, NewRecordBuilder().Payload(NewSmartPosterPayload(inner)))
	if string(record.Type()) != RTDSmartPoster {
		t.Errorf("record type = %q, want %q", record.Type(), RTDSmartPoster)
	}

	got, err := SmartPosterPayloadFromRecord(record)
	if err != nil {
		t.Fatalf("SmartPosterPayloadFromRecord failed: %v", err)
	}
	embedded, err := Decode(got.Data())
	if err != nil {
		t.Fatalf("embedded message should decode: %v", err)
	}
	if len(embedded.Records()) != 2 {
		t.Errorf("embedded record count = %d, want 2", len(embedded.Records()))
	}
}
