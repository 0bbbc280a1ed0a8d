// Package protocol defines the JSON types the agent exchanges with clients
// over WebSocket and HTTP. It is importable without pulling in server or
// hardware dependencies.
package protocol

// WebSocket message type constants
const (
	WSTypeTagData       = "tagData"
	WSTypeDeviceStatus  = "deviceStatus"
	WSTypeWriteRequest  = "writeRequest"
	WSTypeWriteResponse = "writeResponse"
	WSTypeError         = "error"
)

// WebSocketMessage is the generic message envelope for WebSocket
// communication.
type WebSocketMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// WebSocketRequest is for incoming requests from WebSocket clients.
type WebSocketRequest struct {
	ID      string         `json:"id,omitempty"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// WebSocketResponse is for responses to WebSocket requests.
type WebSocketResponse struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TagDataPayload is broadcast when a tag is scanned. Message is nil for
// cards that carry no NDEF data.
type TagDataPayload struct {
	UID       string          `json:"uid"`
	ScannedAt string          `json:"scannedAt"` // RFC3339
	Message   *MessagePayload `json:"message,omitempty"`
	Raw       []byte          `json:"raw,omitempty"` // encoded NDEF bytes, base64 in JSON
	Error     *string         `json:"err"`
}

// DeviceStatusPayload is the payload for device status updates.
type DeviceStatusPayload struct {
	Connected   bool   `json:"connected"`
	Message     string `json:"message"`
	CardPresent bool   `json:"cardPresent"`
}

// WriteRequestPayload is the payload for write requests: the NDEF message
// to put on the card.
type WriteRequestPayload struct {
	Records []RecordInput `json:"records"`
}

// TagInputRequest is the request structure for the POST /api/v1/tag
// endpoint. External tools can use it to inject tag data into the agent as
// if a physical reader had scanned it.
type TagInputRequest struct {
	// UID in hex. Accepted formats: "04:AB:CD:EF", "04ABCDEF",
	// "04 AB CD EF", "04-AB-CD-EF".
	UID string `json:"uid"`

	// Message is the optional NDEF content of the injected tag.
	Message *MessageInput `json:"message,omitempty"`

	// Source identifies where this tag data came from. Defaults to
	// "http-api".
	Source string `json:"source,omitempty"`
}

// TagInputResponse is the response structure for the POST /api/v1/tag
// endpoint.
type TagInputResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	UID       string `json:"uid,omitempty"` // normalized UID
}

// Error codes for TagInputResponse
const (
	ErrCodeInvalidUID     = "INVALID_UID"
	ErrCodeInvalidNDEF    = "INVALID_NDEF"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)
