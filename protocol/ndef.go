package protocol

// Record kinds used in RecordPayload and RecordInput.
const (
	KindText        = "text"
	KindURI         = "uri"
	KindSmartPoster = "smartposter"
	KindExternal    = "external"
	KindRaw         = "raw"
)

// MessageInput represents an NDEF message supplied by a client.
type MessageInput struct {
	Records []RecordInput `json:"records"`
}

// RecordInput represents a single NDEF record supplied by a client.
// Supports both a high-level (kind+content) and a low-level (TNF+payload)
// format.
type RecordInput struct {
	// High-level format, preferred for simple records.
	Kind     string `json:"kind,omitempty"`     // "text", "uri", "smartposter", "external"
	Content  string `json:"content,omitempty"`  // text content or URI
	Language string `json:"language,omitempty"` // language code for text (default "en")

	// Low-level format, for advanced use cases.
	TNF     *uint8 `json:"tnf,omitempty"`     // Type Name Format (0x00-0x07)
	Type    []byte `json:"type,omitempty"`    // record type bytes
	ID      []byte `json:"id,omitempty"`      // optional record id
	Payload []byte `json:"payload,omitempty"` // raw payload bytes, base64 in JSON
}

// RecordPayload is the JSON-friendly representation of a decoded NDEF
// record, used in WebSocket broadcasts and API responses.
type RecordPayload struct {
	Kind     string `json:"kind"`
	Content  string `json:"content,omitempty"`
	Language string `json:"language,omitempty"`
	TNF      uint8  `json:"tnf"`
	Type     string `json:"type,omitempty"`
	ID       string `json:"id,omitempty"`
	Payload  []byte `json:"payload"`
}

// MessagePayload is the JSON-friendly representation of a decoded NDEF
// message.
type MessagePayload struct {
	Records []RecordPayload `json:"records"`
}
