package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/dotside-studios/davi-ndef/buildinfo"
	"github.com/dotside-studios/davi-ndef/protocol"
	"github.com/dotside-studios/davi-ndef/tag"
)

// handleHealthCheck provides a health check endpoint (GET /api/v1/health).
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	connected := false
	cardPresent := false
	if s.config.Reader != nil {
		status := s.config.Reader.Status()
		connected = status.Connected
		cardPresent = status.CardPresent
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"version":     buildinfo.FullVersion(),
		"connected":   connected,
		"cardPresent": cardPresent,
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

// handleTagInput lets external tools inject tag data into the agent
// (POST /api/v1/tag). The injected tag is broadcast to WebSocket clients as
// if a physical reader had scanned it.
func (s *Server) handleTagInput(w http.ResponseWriter, r *http.Request) {
	var request protocol.TagInputRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeTagInputError(w, http.StatusBadRequest, protocol.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	uid, err := protocol.ParseUID(request.UID)
	if err != nil {
		writeTagInputError(w, http.StatusBadRequest, protocol.ErrCodeInvalidUID, err.Error())
		return
	}

	data := tag.Data{UID: uid}
	if request.Message != nil {
		msg, err := protocol.BuildMessage(request.Message)
		if err != nil {
			writeTagInputError(w, http.StatusBadRequest, protocol.ErrCodeInvalidNDEF, err.Error())
			return
		}
		raw, err := msg.Encode()
		if err != nil {
			writeTagInputError(w, http.StatusBadRequest, protocol.ErrCodeInvalidNDEF, err.Error())
			return
		}
		data.Message = msg
		data.Raw = raw
	}

	source := request.Source
	if source == "" {
		source = "http-api"
	}

	select {
	case s.injected <- data:
	default:
		writeTagInputError(w, http.StatusServiceUnavailable, protocol.ErrCodeInternalError, "agent busy, try again")
		return
	}
	log.Printf("Tag input accepted: UID %s (source: %s)", uid, source)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.TagInputResponse{
		Success: true,
		Message: "tag accepted",
		UID:     uid,
	})
}

func writeTagInputError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(protocol.TagInputResponse{
		Success:   false,
		Error:     message,
		ErrorCode: code,
	})
}
