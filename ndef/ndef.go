// Package ndef implements the NFC Data Exchange Format (NDEF): a binary
// container format that packs one or more typed records into a single
// contiguous buffer suitable for writing to an NFC tag or exchanging
// peer-to-peer.
//
// The package is split along the NDEF specification's own seams: Record is
// the atomic framing unit (header byte, variable-width length fields, type,
// id and payload bytes), Message owns an ordered sequence of records and the
// begin/end framing flags that link them, and the Payload interface is the
// only contract concrete payload types (URI, Text, External, Smart Poster)
// have to satisfy. The record and message codecs never interpret payload
// bytes; that is entirely the payload implementations' job.
package ndef

// TNF is the 3-bit Type Name Format field of a record header. It classifies
// how the record's type bytes must be interpreted.
type TNF byte

// TNF values as defined by the NFC Forum.
const (
	TNFEmpty       TNF = 0x00 // Empty record, no type or payload
	TNFWellKnown   TNF = 0x01 // NFC Forum well-known type ("T", "U", "Sp", ...)
	TNFMediaType   TNF = 0x02 // Media type (RFC 2046)
	TNFAbsoluteURI TNF = 0x03 // Absolute URI (RFC 3986)
	TNFExternal    TNF = 0x04 // NFC Forum external type
	TNFUnknown     TNF = 0x05 // Unknown type
	TNFUnchanged   TNF = 0x06 // Unchanged (middle/final chunk of a chunked record)
	TNFReserved    TNF = 0x07 // Reserved by the NFC Forum
)

// Valid reports whether t fits in the 3-bit TNF field. All eight values are
// accepted by the record codec; whether a value has meaningful semantics is
// up to the payload implementations.
func (t TNF) Valid() bool {
	return t <= TNFReserved
}

func (t TNF) String() string {
	switch t {
	case TNFEmpty:
		return "Empty"
	case TNFWellKnown:
		return "WellKnown"
	case TNFMediaType:
		return "MediaType"
	case TNFAbsoluteURI:
		return "AbsoluteURI"
	case TNFExternal:
		return "External"
	case TNFUnknown:
		return "Unknown"
	case TNFUnchanged:
		return "Unchanged"
	case TNFReserved:
		return "Reserved"
	}
	return "Invalid"
}

// RecordFlags holds the five flag bits of a record header byte. The flags
// describe a record's position and encoding within a message, not the
// record's content: they are assigned during encoding and captured during
// decoding, never stored as part of a record's durable identity.
type RecordFlags byte

// Record header flag bits (bit 7 down to bit 3; bits 2-0 carry the TNF).
const (
	FlagMB RecordFlags = 0x80 // Message Begin: first record of a message
	FlagME RecordFlags = 0x40 // Message End: last record of a message
	FlagCF RecordFlags = 0x20 // Chunk Flag: record is a chunk fragment
	FlagSR RecordFlags = 0x10 // Short Record: 1-byte payload length field
	FlagIL RecordFlags = 0x08 // ID Length field present
)

// tnfMask extracts the TNF bits from a header byte.
const tnfMask byte = 0x07

// Has reports whether all bits in mask are set.
func (f RecordFlags) Has(mask RecordFlags) bool {
	return f&mask == mask
}

// Well-known record type names (RTD) used by the bundled payloads.
const (
	RTDText        = "T"
	RTDURI         = "U"
	RTDSmartPoster = "Sp"
)
