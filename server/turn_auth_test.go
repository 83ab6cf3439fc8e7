package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTurnTokenStoreIssueValidateDelete(t *testing.T) {
	store := NewTurnTokenStore(time.Minute)

	token, expires := store.Issue("203.0.113.5")
	if token == "" {
		t.Fatalf("expected a non-empty token")
	}
	if !expires.After(time.Now()) {
		t.Fatalf("expected expiry in the future")
	}

	if !store.Validate(token, "203.0.113.5") {
		t.Fatalf("expected token to validate for the issuing IP")
	}
	if store.Validate(token, "198.51.100.9") {
		t.Fatalf("expected token to be rejected for a different IP")
	}

	store.Delete(token)
	if store.Validate(token, "203.0.113.5") {
		t.Fatalf("expected token to be invalid after deletion")
	}
}

func TestTurnTokenStoreExpires(t *testing.T) {
	store := NewTurnTokenStore(-time.Second) // already-expired TTL
	token, _ := store.Issue("203.0.113.5")

	if store.Validate(token, "203.0.113.5") {
		t.Fatalf("expected an already-expired token to fail validation")
	}
}

func TestHandleTurnCredentialsRequiresToken(t *testing.T) {
	t.Setenv("TURN_SECRET", "turn-secret")
	t.Setenv("STUN_HOST", "stun.example.com")

	store := NewTurnTokenStore(time.Minute)
	handler := handleTurnCredentials(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/turn-credentials", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestHandleTurnCredentialsIssuesConfig(t *testing.T) {
	t.Setenv("TURN_SECRET", "turn-secret")
	t.Setenv("STUN_HOST", "stun.example.com")
	t.Setenv("TURN_HOST", "turn.example.com")

	store := NewTurnTokenStore(time.Minute)
	token, _ := store.Issue("203.0.113.5")
	handler := handleTurnCredentials(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/turn-credentials", nil)
	req.Header.Set("X-Turn-Token", token)
	req.RemoteAddr = "203.0.113.5:4000"
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}
