package tag

import (
	"fmt"

	"github.com/dotside-studios/davi-ndef/ndef"
)

// TLV types found on NFC Forum tag media.
const (
	TLVNull        = 0x00 // Null TLV, single padding byte
	TLVLockCtrl    = 0x01 // Lock Control TLV
	TLVMemCtrl     = 0x02 // Memory Control TLV
	TLVNDEF        = 0x03 // NDEF Message TLV
	TLVProprietary = 0xFD // Proprietary TLV
	TLVTerminator  = 0xFE // Terminator TLV
)

// maxTLVLength is the largest value the three-byte length format can carry.
const maxTLVLength = 0xFFFF

// WrapMessage encodes an NDEF message and wraps it in an NDEF Message TLV
// followed by a Terminator TLV, ready to be written to tag memory.
func WrapMessage(msg *ndef.Message) ([]byte, error) {
	payload, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	return WrapRaw(payload)
}

// WrapRaw wraps already-encoded NDEF message bytes in TLV framing.
func WrapRaw(payload []byte) ([]byte, error) {
	if len(payload) > maxTLVLength {
		return nil, fmt.Errorf("NDEF message too large for TLV container: %d bytes (max %d)", len(payload), maxTLVLength)
	}

	out := make([]byte, 0, len(payload)+5)
	out = append(out, TLVNDEF)
	if len(payload) < 0xFF {
		out = append(out, byte(len(payload)))
	} else {
		// Long format: 0xFF followed by a 2-byte big-endian length.
		out = append(out, 0xFF, byte(len(payload)>>8), byte(len(payload)))
	}
	out = append(out, payload...)
	out = append(out, TLVTerminator)
	return out, nil
}

// ExtractMessage locates the NDEF Message TLV in a block of tag memory and
// decodes its value. It returns an error when no NDEF TLV is present or the
// contained message does not decode.
func ExtractMessage(data []byte) (*ndef.Message, error) {
	raw, found := FindNDEF(data)
	if !found {
		return nil, fmt.Errorf("no NDEF message TLV found in %d bytes of tag data", len(data))
	}
	return ndef.Decode(raw)
}

// FindNDEF walks the TLV block and returns the value of the first NDEF
// Message TLV. Null TLVs are skipped, a Terminator TLV ends the walk.
func FindNDEF(data []byte) ([]byte, bool) {
	offset := 0
	for offset < len(data) {
		switch data[offset] {
		case TLVNull:
			offset++
			continue
		case TLVTerminator:
			return nil, false
		}

		valueStart, length, ok := tlvFields(data[offset:])
		if !ok {
			return nil, false
		}
		start := offset + valueStart
		if start+length > len(data) {
			return nil, false
		}

		if data[offset] == TLVNDEF {
			return data[start : start+length], true
		}
		offset = start + length
	}
	return nil, false
}

// tlvFields inspects a TLV starting at data[0] and reports where its value
// begins and how long it is. Returns ok=false on a truncated length field.
func tlvFields(data []byte) (valueStart, length int, ok bool) {
	if len(data) < 2 {
		return 0, 0, false
	}
	if data[1] == 0xFF {
		// Long format: type + 0xFF + 2-byte big-endian length.
		if len(data) < 4 {
			return 0, 0, false
		}
		return 4, int(data[2])<<8 | int(data[3]), true
	}
	return 2, int(data[1]), true
}
