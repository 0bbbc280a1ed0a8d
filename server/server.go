// Package server provides the HTTP and WebSocket surface of the NDEF agent:
// tag broadcasts, write requests, health checks, and mDNS auto-discovery.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"

	"github.com/dotside-studios/davi-ndef/ndef"
	"github.com/dotside-studios/davi-ndef/protocol"
	"github.com/dotside-studios/davi-ndef/tag"
)

// TagReader is the slice of tag.Reader the server needs. Tests substitute a
// fake.
type TagReader interface {
	Start()
	Stop()
	Data() <-chan tag.Data
	StatusUpdates() <-chan tag.Status
	Status() tag.Status
	LastScannedUID() string
	WriteMessage(msg *ndef.Message) error
}

// Config holds the server configuration.
type Config struct {
	Reader         TagReader
	Port           int
	APISecret      string // optional shared secret for WebSocket connections
	SessionTimeout time.Duration
}

// Server manages the HTTP and WebSocket server.
type Server struct {
	config     Config
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc

	clients    map[*websocket.Conn]string // conn -> client id
	clientsMux sync.RWMutex
	sessions   *SessionManager
	upgrader   websocket.Upgrader

	lastTag    *protocol.TagDataPayload
	lastTagMux sync.RWMutex

	// injected carries tag data submitted through POST /api/v1/tag.
	injected chan tag.Data

	mdnsServer *zeroconf.Server
}

// New creates a new server instance.
func New(config Config) *Server {
	return &Server{
		config:   config,
		clients:  make(map[*websocket.Conn]string),
		sessions: NewSessionManager(config.APISecret, config.SessionTimeout),
		injected: make(chan tag.Data, 4),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local agent, any origin may connect
			},
		},
	}
}

// Handler builds the HTTP routing for the agent. Exposed so tests can mount
// it on an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleHealthCheck(w, r)
	}))

	mux.HandleFunc("/api/v1/tag", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleTagInput(w, r)
	}))

	mux.HandleFunc("/ws", enableCORS(s.handleWebSocket))

	mux.HandleFunc("/", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("NDEF Agent Server Running"))
	}))

	return mux
}

// Start starts the HTTP server, registers the mDNS service, starts the tag
// reader, and blocks until Stop is called.
func (s *Server) Start() error {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.Handler(),
	}

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	if err := s.startMDNS(); err != nil {
		log.Printf("Warning: failed to start mDNS service: %v", err)
		log.Printf("Auto-discovery will not be available, but server will continue normally")
	}

	if s.config.Reader != nil {
		s.config.Reader.Start()
	}
	go s.pump(s.ctx)

	<-s.ctx.Done()
	log.Println("Server context cancelled, initiating shutdown...")
	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop() {
	if s.mdnsServer != nil {
		s.mdnsServer.Shutdown()
		s.mdnsServer = nil
		log.Printf("mDNS service stopped")
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		s.httpServer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// startMDNS registers the agent as an mDNS service so clients on the local
// network can discover it.
func (s *Server) startMDNS() error {
	txtRecords := []string{
		"version=1.0",
		"protocol=websocket",
		"path=/ws",
	}

	server, err := zeroconf.Register(MDNSServiceName, MDNSServiceType, MDNSDomain, s.config.Port, txtRecords, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	s.mdnsServer = server
	log.Printf("mDNS service registered: %s on port %d", MDNSServiceName, s.config.Port)
	return nil
}

// pump forwards reader data and status updates, plus injected tag data, to
// connected WebSocket clients.
func (s *Server) pump(ctx context.Context) {
	reader := s.config.Reader
	var dataCh <-chan tag.Data
	var statusCh <-chan tag.Status
	if reader != nil {
		dataCh = reader.Data()
		statusCh = reader.StatusUpdates()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-dataCh:
			s.broadcastTagData(data)
		case status := <-statusCh:
			s.BroadcastDeviceStatus(status)
		case data := <-s.injected:
			s.broadcastTagData(data)
		}
	}
}

// broadcast sends a message to all connected clients.
func (s *Server) broadcast(message *protocol.WebSocketMessage) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	for client, id := range s.clients {
		if err := client.WriteJSON(message); err != nil {
			log.Printf("WebSocket write error for client %s: %v", id, err)
			client.Close()
			delete(s.clients, client)
		}
	}
}

// BroadcastDeviceStatus sends the device status to all connected clients.
func (s *Server) BroadcastDeviceStatus(status tag.Status) {
	s.broadcast(&protocol.WebSocketMessage{
		Type: protocol.WSTypeDeviceStatus,
		Payload: protocol.DeviceStatusPayload{
			Connected:   status.Connected,
			Message:     status.Message,
			CardPresent: status.CardPresent,
		},
	})
}

// broadcastTagData converts a read result to its wire payload and sends it
// to all connected clients.
func (s *Server) broadcastTagData(data tag.Data) {
	payload := tagDataPayload(data)
	if data.Err == nil && data.UID != "" {
		s.lastTagMux.Lock()
		s.lastTag = payload
		s.lastTagMux.Unlock()
	}

	s.broadcast(&protocol.WebSocketMessage{
		Type:    protocol.WSTypeTagData,
		Payload: payload,
	})
}

func tagDataPayload(data tag.Data) *protocol.TagDataPayload {
	var errStr *string
	if data.Err != nil {
		e := data.Err.Error()
		errStr = &e
	}
	return &protocol.TagDataPayload{
		UID:       data.UID,
		ScannedAt: time.Now().Format(time.RFC3339),
		Message:   protocol.MessageToPayload(data.Message),
		Raw:       data.Raw,
		Error:     errStr,
	}
}

func (s *Server) getLastTag() *protocol.TagDataPayload {
	s.lastTagMux.RLock()
	defer s.lastTagMux.RUnlock()
	return s.lastTag
}

// enableCORS is a middleware that adds CORS headers to responses.
func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", CORSAllowMethods)
		w.Header().Set("Access-Control-Allow-Headers", CORSAllowHeaders)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket and manages the
// client connection lifecycle. One session at a time: the first client
// claims the agent, later clients get a conflict.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.config.APISecret != "" && r.URL.Query().Get("secret") != s.config.APISecret {
		log.Printf("WebSocket connection rejected: invalid API secret")
		http.Error(w, "Unauthorized: invalid API secret", http.StatusUnauthorized)
		return
	}

	token := s.sessions.Acquire(r.URL.Query().Get("secret"), r.Header.Get("Origin"), r.RemoteAddr)
	if token == "" {
		log.Printf("WebSocket connection rejected: session already claimed")
		http.Error(w, "Session already claimed by another client", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.sessions.Release()
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	clientID := uuid.NewString()
	log.Printf("WebSocket client %s connected from %s", clientID, r.RemoteAddr)

	defer func() {
		conn.Close()
		s.clientsMux.Lock()
		delete(s.clients, conn)
		s.clientsMux.Unlock()
		s.sessions.Release()
		log.Printf("WebSocket client %s disconnected, session released", clientID)
	}()

	s.clientsMux.Lock()
	s.clients[conn] = clientID
	s.clientsMux.Unlock()

	// Bring the new client up to date: current device status and the last
	// scanned tag, if any.
	if s.config.Reader != nil {
		status := s.config.Reader.Status()
		conn.WriteJSON(protocol.WebSocketMessage{
			Type: protocol.WSTypeDeviceStatus,
			Payload: protocol.DeviceStatusPayload{
				Connected:   status.Connected,
				Message:     status.Message,
				CardPresent: status.CardPresent,
			},
		})
	}
	if last := s.getLastTag(); last != nil {
		conn.WriteJSON(protocol.WebSocketMessage{
			Type:    protocol.WSTypeTagData,
			Payload: last,
		})
	} else if s.config.Reader != nil {
		// No payload cached yet, but the cache may still know the UID.
		if uid := s.config.Reader.LastScannedUID(); uid != "" {
			conn.WriteJSON(protocol.WebSocketMessage{
				Type:    protocol.WSTypeTagData,
				Payload: &protocol.TagDataPayload{UID: uid, ScannedAt: time.Now().Format(time.RFC3339)},
			})
		}
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var request protocol.WebSocketRequest
		if err := json.Unmarshal(message, &request); err != nil {
			log.Printf("Failed to parse WebSocket message from %s: %v", clientID, err)
			s.sendErrorResponse(conn, "", "PARSE_ERROR", "Invalid message format")
			continue
		}
		s.sessions.RefreshTimeout()

		switch request.Type {
		case protocol.WSTypeWriteRequest:
			s.handleWriteRequest(conn, request)
		default:
			log.Printf("Unknown message type from %s: %s", clientID, request.Type)
			s.sendErrorResponse(conn, request.ID, "UNKNOWN_TYPE", fmt.Sprintf("Unknown message type: %s", request.Type))
		}
	}
}

// handleWriteRequest builds an NDEF message from a write request and writes
// it to the card currently on the reader.
func (s *Server) handleWriteRequest(conn *websocket.Conn, request protocol.WebSocketRequest) {
	raw, err := json.Marshal(request.Payload)
	if err != nil {
		s.sendWriteResponse(conn, request.ID, false, "invalid write request payload")
		return
	}
	var payload protocol.WriteRequestPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.sendWriteResponse(conn, request.ID, false, "invalid write request payload")
		return
	}

	msg, err := protocol.BuildMessage(&protocol.MessageInput{Records: payload.Records})
	if err != nil {
		s.sendWriteResponse(conn, request.ID, false, err.Error())
		return
	}

	if s.config.Reader == nil {
		s.sendWriteResponse(conn, request.ID, false, "no tag reader configured")
		return
	}
	if err := s.config.Reader.WriteMessage(msg); err != nil {
		log.Printf("Write request %s failed: %v", request.ID, err)
		s.sendWriteResponse(conn, request.ID, false, err.Error())
		return
	}
	s.sendWriteResponse(conn, request.ID, true, "")
}

func (s *Server) sendWriteResponse(conn *websocket.Conn, requestID string, success bool, errMsg string) {
	response := protocol.WebSocketResponse{
		ID:      requestID,
		Type:    protocol.WSTypeWriteResponse,
		Success: success,
		Error:   errMsg,
	}
	if err := conn.WriteJSON(response); err != nil {
		log.Printf("Failed to send write response: %v", err)
	}
}

// sendErrorResponse sends a structured error response to a WebSocket client.
func (s *Server) sendErrorResponse(conn *websocket.Conn, requestID, errorCode, message string) {
	response := protocol.WebSocketResponse{
		ID:      requestID,
		Type:    protocol.WSTypeError,
		Success: false,
		Error:   message,
		Payload: map[string]any{"code": errorCode},
	}
	if err := conn.WriteJSON(response); err != nil {
		log.Printf("Failed to send error response: %v", err)
	}
}
