package server

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"
	"time"
)

// SessionManager hands out a single session token at a time. The first
// client to acquire it owns the agent until it disconnects or the session
// times out; later claimants are turned away.
type SessionManager struct {
	token     string
	origin    string // origin bound at acquisition
	ip        string // remote address bound at acquisition
	apiSecret string // optional shared secret required to acquire
	timeout   time.Duration
	timer     *time.Timer
	mu        sync.RWMutex
}

// NewSessionManager creates a session manager. An empty apiSecret disables
// the secret check.
func NewSessionManager(apiSecret string, timeout time.Duration) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionManager{
		apiSecret: apiSecret,
		timeout:   timeout,
	}
}

func generateSessionToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("Failed to generate session token: %v", err)
	}
	return hex.EncodeToString(b)
}

// Acquire attempts to claim the session. It returns the token on success,
// or an empty string when the session is already claimed or the secret is
// wrong. The origin and remote address are bound to the session and checked
// on later validation.
func (m *SessionManager) Acquire(secret, origin, remoteAddr string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.apiSecret != "" && secret != m.apiSecret {
		return ""
	}
	if m.token != "" {
		return ""
	}

	m.token = generateSessionToken()
	m.origin = origin
	m.ip = remoteAddr

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.timeout, func() {
		m.Release()
		log.Println("Session timeout - token released")
	})

	log.Printf("Session acquired: %s... (origin: %s, ip: %s)", m.token[:8], origin, remoteAddr)
	return m.token
}

// Validate checks that the token matches the active session and that the
// caller's origin and address match the ones bound at acquisition.
func (m *SessionManager) Validate(token, origin, remoteAddr string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" || m.token != token {
		return false
	}
	if m.origin != "" && origin != m.origin {
		log.Printf("Session validation failed: origin mismatch (expected %s, got %s)", m.origin, origin)
		return false
	}
	if m.ip != "" && remoteAddr != m.ip {
		log.Printf("Session validation failed: IP mismatch (expected %s, got %s)", m.ip, remoteAddr)
		return false
	}
	return true
}

// Release frees the session token so another client can claim it.
func (m *SessionManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == "" {
		return
	}
	log.Printf("Session released: %s...", m.token[:8])
	m.token = ""
	m.origin = ""
	m.ip = ""
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// RefreshTimeout resets the session timeout timer.
func (m *SessionManager) RefreshTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Reset(m.timeout)
	}
}
