package ndef

import "strings"

// URI identifier codes with dedicated names. The full abbreviation table
// below covers every code the NFC Forum URI RTD defines.
const (
	URIPrefixNone     byte = 0x00
	URIPrefixHTTPWWW  byte = 0x01
	URIPrefixHTTPSWWW byte = 0x02
	URIPrefixHTTP     byte = 0x03
	URIPrefixHTTPS    byte = 0x04
)

// uriPrefixes maps URI identifier codes to the prefix they abbreviate, as
// defined in the NFC Forum URI RTD. Code 0x00 means no abbreviation.
var uriPrefixes = []string{
	"",
	"http://www.",
	"https://www.",
	"http://",
	"https://",
	"tel:",
	"mailto:",
	"ftp://anonymous:anonymous@",
	"ftp://ftp.",
	"ftps://",
	"sftp://",
	"smb://",
	"nfs://",
	"ftp://",
	"dav://",
	"news:",
	"telnet://",
	"imap:",
	"rtsp://",
	"urn:",
	"pop:",
	"sip:",
	"sips:",
	"tftp:",
	"btspp://",
	"btl2cap://",
	"btgoep://",
	"tcpobex://",
	"irdaobex://",
	"file://",
	"urn:epc:id:",
	"urn:epc:tag:",
	"urn:epc:pat:",
	"urn:epc:raw:",
	"urn:epc:",
	"urn:nfc:",
}

// URIPayload is the well-known "U" record payload: a one-byte identifier
// code abbreviating a common prefix, followed by the rest of the URI.
type URIPayload struct {
	uri    string
	abbrev byte
}

// NewURIPayload builds a URI payload from a full URI, abbreviating with the
// longest matching prefix from the identifier table.
func NewURIPayload(uri string) *URIPayload {
	abbrev := URIPrefixNone
	best := 0
	for code, prefix := range uriPrefixes {
		if code == 0 || len(prefix) <= best {
			continue
		}
		if strings.HasPrefix(uri, prefix) {
			abbrev = byte(code)
			best = len(prefix)
		}
	}
	return &URIPayload{abbrev: abbrev, uri: uri[best:]}
}

// NewURIPayloadWithAbbreviation builds a URI payload from an explicit
// identifier code and the URI text that follows the abbreviated prefix.
func NewURIPayloadWithAbbreviation(abbrev byte, uri string) (*URIPayload, error) {
	if int(abbrev) >= len(uriPrefixes) {
		return nil, encodingErrorf("URI identifier code 0x%02x is not defined", abbrev)
	}
	return &URIPayload{abbrev: abbrev, uri: uri}, nil
}

// URIPayloadFromRecord reinterprets a decoded record as a URI payload. It
// fails with a payload mismatch when the record is not a well-known "U"
// record or its payload does not parse as one.
func URIPayloadFromRecord(r *Record) (*URIPayload, error) {
	if err := matchRecord(r, TNFWellKnown, RTDURI); err != nil {
		return nil, err
	}
	if len(r.payload) < 1 {
		return nil, payloadMismatchf("URI payload missing identifier code")
	}
	abbrev := r.payload[0]
	if int(abbrev) >= len(uriPrefixes) {
		return nil, payloadMismatchf("URI identifier code 0x%02x is not defined", abbrev)
	}
	return &URIPayload{abbrev: abbrev, uri: string(r.payload[1:])}, nil
}

// Abbreviation returns the payload's URI identifier code.
func (p *URIPayload) Abbreviation() byte { return p.abbrev }

// URI returns the URI text without the abbreviated prefix.
func (p *URIPayload) URI() string { return p.uri }

// FullURI returns the complete URI with the abbreviated prefix expanded.
func (p *URIPayload) FullURI() string { return uriPrefixes[p.abbrev] + p.uri }

// TypeNameFormat returns TNFWellKnown.
func (p *URIPayload) TypeNameFormat() TNF { return TNFWellKnown }

// RecordType returns the "U" record type.
func (p *URIPayload) RecordType() []byte { return []byte(RTDURI) }

// Bytes returns the identifier code followed by the URI text.
func (p *URIPayload) Bytes() []byte {
	buf := make([]byte, 1+len(p.uri))
	buf[0] = p.abbrev
	copy(buf[1:], p.uri)
	return buf
}
