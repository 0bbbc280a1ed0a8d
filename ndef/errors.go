package ndef

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an NDEF error for programmatic handling.
type ErrorKind int

const (
	// KindEncoding means a length field cannot represent the actual size of
	// a record's type, id or payload. Encoding is abandoned immediately; no
	// partial buffer is ever returned.
	KindEncoding ErrorKind = iota + 1
	// KindDecoding means a malformed or truncated header or length field.
	// Message decoding aborts at the first such error.
	KindDecoding
	// KindFraming means structurally valid records whose MB/ME flags violate
	// the message-level invariants. Raised only after at least one full
	// record has decoded.
	KindFraming
	// KindPayloadMismatch means a decoded record's TNF/type/payload triple
	// does not match the payload type a structured accessor expected. Always
	// recoverable: the caller may try a different payload interpretation.
	KindPayloadMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindEncoding:
		return "encoding"
	case KindDecoding:
		return "decoding"
	case KindFraming:
		return "framing"
	case KindPayloadMismatch:
		return "payload mismatch"
	}
	return "unknown"
}

// Error provides structured NDEF error information. Every failure detected
// by this package is surfaced to the immediate caller as an *Error; nothing
// is logged or swallowed internally.
type Error struct {
	Kind    ErrorKind
	Offset  int    // byte offset into the input where decoding failed, -1 if not applicable
	Message string // human-readable message
	Cause   error  // underlying error, if any
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("ndef: ")
	sb.WriteString(e.Message)
	if e.Offset >= 0 {
		fmt.Fprintf(&sb, " at offset %d", e.Offset)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches two *Error values by kind, so sentinel-style checks like
// errors.Is(err, &Error{Kind: KindFraming}) work across instances.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func encodingErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindEncoding, Offset: -1, Message: fmt.Sprintf(format, args...)}
}

func decodingErrorf(offset int, format string, args ...any) *Error {
	return &Error{Kind: KindDecoding, Offset: offset, Message: fmt.Sprintf(format, args...)}
}

func framingErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindFraming, Offset: -1, Message: fmt.Sprintf(format, args...)}
}

func payloadMismatchf(format string, args ...any) *Error {
	return &Error{Kind: KindPayloadMismatch, Offset: -1, Message: fmt.Sprintf(format, args...)}
}

// kindOf extracts the ErrorKind from an error chain, or 0 if it holds no *Error.
func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsEncodingError reports whether err is an NDEF encoding error.
func IsEncodingError(err error) bool { return kindOf(err) == KindEncoding }

// IsDecodingError reports whether err is an NDEF decoding error.
func IsDecodingError(err error) bool { return kindOf(err) == KindDecoding }

// IsFramingError reports whether err is an NDEF message framing error.
func IsFramingError(err error) bool { return kindOf(err) == KindFraming }

// IsPayloadMismatch reports whether err marks a record that does not carry
// the payload type a structured accessor expected.
func IsPayloadMismatch(err error) bool { return kindOf(err) == KindPayloadMismatch }
