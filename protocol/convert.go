package protocol

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dotside-studios/davi-ndef/ndef"
)

// MessageToPayload converts a decoded NDEF message into its JSON-friendly
// representation. Well-known text and URI records get their content
// extracted; anything else is carried as raw payload bytes.
func MessageToPayload(msg *ndef.Message) *MessagePayload {
	if msg == nil {
		return nil
	}

	out := &MessagePayload{Records: make([]RecordPayload, 0, len(msg.Records()))}
	for _, record := range msg.Records() {
		out.Records = append(out.Records, recordToPayload(record))
	}
	return out
}

func recordToPayload(record *ndef.Record) RecordPayload {
	payload := RecordPayload{
		Kind:    KindRaw,
		TNF:     uint8(record.TNF()),
		Type:    string(record.Type()),
		ID:      string(record.ID()),
		Payload: record.Payload(),
	}

	switch record.TNF() {
	case ndef.TNFWellKnown:
		if text, err := ndef.TextPayloadFromRecord(record); err == nil {
			payload.Kind = KindText
			payload.Content = text.Text()
			payload.Language = text.Language()
			return payload
		}
		if uri, err := ndef.URIPayloadFromRecord(record); err == nil {
			payload.Kind = KindURI
			payload.Content = uri.FullURI()
			return payload
		}
		if _, err := ndef.SmartPosterPayloadFromRecord(record); err == nil {
			payload.Kind = KindSmartPoster
			return payload
		}
	case ndef.TNFExternal:
		payload.Kind = KindExternal
	}
	return payload
}

// BuildMessage converts client-supplied record inputs into an NDEF message.
func BuildMessage(input *MessageInput) (*ndef.Message, error) {
	if input == nil || len(input.Records) == 0 {
		return nil, fmt.Errorf("message has no records")
	}

	records := make([]*ndef.Record, 0, len(input.Records))
	for i, in := range input.Records {
		record, err := buildRecord(in)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, record)
	}
	return ndef.NewMessage(records...), nil
}

func buildRecord(in RecordInput) (*ndef.Record, error) {
	switch in.Kind {
	case KindText:
		if in.Content == "" {
			return nil, fmt.Errorf("text record has no content")
		}
		return ndef.NewRecordBuilder().
			Payload(ndef.NewTextPayload(in.Content, in.Language)).
			Build()

	case KindURI:
		if in.Content == "" {
			return nil, fmt.Errorf("uri record has no content")
		}
		return ndef.NewRecordBuilder().
			Payload(ndef.NewURIPayload(in.Content)).
			Build()

	case KindSmartPoster:
		return ndef.NewRecordBuilder().
			Payload(ndef.NewSmartPosterPayload(in.Payload)).
			Build()

	case KindExternal:
		if len(in.Type) == 0 {
			return nil, fmt.Errorf("external record has no type")
		}
		return ndef.NewRecordBuilder().
			Payload(ndef.NewExternalPayload(in.Type, in.Payload)).
			Build()

	case "", KindRaw:
		if in.TNF == nil {
			return nil, fmt.Errorf("raw record needs a tnf")
		}
		builder := ndef.NewRecordBuilder().
			TNF(ndef.TNF(*in.TNF)).
			Type(in.Type).
			PayloadBytes(in.Payload)
		if in.ID != nil {
			builder.ID(in.ID)
		}
		return builder.Build()

	default:
		return nil, fmt.Errorf("unknown record kind %q", in.Kind)
	}
}

var validHexUID = regexp.MustCompile(`^[0-9A-F]+$`)

// ParseUID normalizes a UID from various formats to colon-separated
// uppercase hex. Supports "04:AB:CD:EF", "04ABCDEF", "04 AB CD EF", and
// "04-AB-CD-EF".
func ParseUID(uid string) (string, error) {
	if uid == "" {
		return "", fmt.Errorf("empty UID")
	}

	cleaned := strings.NewReplacer(":", "", " ", "", "-", "").Replace(uid)
	cleaned = strings.ToUpper(cleaned)

	if !validHexUID.MatchString(cleaned) {
		return "", fmt.Errorf("UID contains invalid characters: %s", uid)
	}
	if len(cleaned)%2 != 0 {
		return "", fmt.Errorf("UID has odd number of hex characters: %s", uid)
	}
	if len(cleaned) < 2 {
		return "", fmt.Errorf("UID too short: %s", uid)
	}

	var result strings.Builder
	for i := 0; i < len(cleaned); i += 2 {
		if i > 0 {
			result.WriteByte(':')
		}
		result.WriteString(cleaned[i : i+2])
	}
	return result.String(), nil
}
