package server

import (
	"testing"
	"time"
)

func TestSessionAcquireRelease(t *testing.T) {
	m := NewSessionManager("", time.Minute)

	token := m.Acquire("", "http://localhost", "127.0.0.1:1234")
	if token == "" {
		t.Fatal("first acquire should succeed")
	}

	if second := m.Acquire("", "http://localhost", "127.0.0.1:5678"); second != "" {
		t.Error("second acquire should fail while session is claimed")
	}

	m.Release()
	if token = m.Acquire("", "http://localhost", "127.0.0.1:5678"); token == "" {
		t.Error("acquire after release should succeed")
	}
}

func TestSessionSecretCheck(t *testing.T) {
	m := NewSessionManager("s3cret", time.Minute)

	if token := m.Acquire("wrong", "", ""); token != "" {
		t.Error("acquire with wrong secret should fail")
	}
	if token := m.Acquire("s3cret", "", ""); token == "" {
		t.Error("acquire with correct secret should succeed")
	}
}

func TestSessionValidateBinding(t *testing.T) {
	m := NewSessionManager("", time.Minute)
	token := m.Acquire("", "http://app.example", "10.0.0.1:40000")

	if !m.Validate(token, "http://app.example", "10.0.0.1:40000") {
		t.Error("matching token, origin, and address should validate")
	}
	if m.Validate(token, "http://evil.example", "10.0.0.1:40000") {
		t.Error("origin mismatch should fail validation")
	}
	if m.Validate(token, "http://app.example", "10.0.0.2:40000") {
		t.Error("address mismatch should fail validation")
	}
	if m.Validate("bogus", "http://app.example", "10.0.0.1:40000") {
		t.Error("wrong token should fail validation")
	}
}

func TestSessionTimeout(t *testing.T) {
	m := NewSessionManager("", 20*time.Millisecond)
	if token := m.Acquire("", "", ""); token == "" {
		t.Fatal("acquire should succeed")
	}

	time.Sleep(60 * time.Millisecond)

	if token := m.Acquire("", "", ""); token == "" {
		t.Error("session should be reclaimable after timeout")
	}
}
