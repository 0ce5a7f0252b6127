package perfectcorp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestAuthenticateEmptyKeyFailsBeforeNetwork(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "test-api-key", APISecret: ""}, &memTokenStore{})
	c.endpoint = &Endpoint{BaseURL: server.URL, Version: "v1.0"}

	_, err := c.Authenticate(context.Background(), false)

	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialError, got %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 0 {
		t.Errorf("expected no network calls, got %d", n)
	}
}

func TestAuthenticateUsesCachedToken(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer server.Close()

	store := validStore()
	c := newTestClient(t, server.URL, store)

	token, err := c.Authenticate(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "cached-token" {
		t.Errorf("expected cached token, got %q", token)
	}
	if n := atomic.LoadInt32(&requests); n != 0 {
		t.Errorf("expected no network calls for a valid cached token, got %d", n)
	}
}

func TestAuthenticateExpiredTokenTriggersFreshLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["client_id"] != "test-api-key" || body["id_token"] == "" {
			t.Errorf("unexpected auth payload: %v", body)
		}
		fmt.Fprint(w, `{"result":{"access_token":"fresh-token","expires_in":3600}}`)
	}))
	defer server.Close()

	store := &memTokenStore{token: "stale", expiresAt: time.Now().Add(-time.Minute)}
	c := newTestClient(t, server.URL, store)

	token, err := c.Authenticate(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "fresh-token" {
		t.Errorf("expected fresh token, got %q", token)
	}
	if store.saves != 1 {
		t.Errorf("expected the fresh token to be cached, saves=%d", store.saves)
	}
	if !store.expiresAt.Before(time.Now().Add(3600 * time.Second)) {
		t.Error("expected cached expiry to include the safety margin")
	}
}

func TestAuthenticateResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"nested result", `{"result":{"access_token":"tok-a","expires_in":7200}}`, "tok-a"},
		{"flat access_token", `{"access_token":"tok-b"}`, "tok-b"},
		{"bare token", `{"token":"tok-c"}`, "tok-c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, &memTokenStore{})
			token, err := c.Authenticate(context.Background(), false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if token != tt.want {
				t.Errorf("expected %q, got %q", tt.want, token)
			}
		})
	}
}

func TestAuthenticateRejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"Invalid client_id or invalid id_token"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &memTokenStore{})
	_, err := c.Authenticate(context.Background(), false)

	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialError with troubleshooting guidance, got %v", err)
	}
}

func TestAuthenticateMissingTokenInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{}}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &memTokenStore{})
	if _, err := c.Authenticate(context.Background(), false); err == nil {
		t.Fatal("expected an unexpected-response-format error")
	}
}

func TestForceRefreshSkipsCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"access_token":"forced-token","expires_in":7200}}`)
	}))
	defer server.Close()

	store := validStore()
	c := newTestClient(t, server.URL, store)

	token, err := c.ForceRefresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "forced-token" {
		t.Errorf("expected forced re-authentication, got %q", token)
	}
}

func TestParseRSAPublicKeyBareBase64(t *testing.T) {
	pem := testPublicKeyPEM(t)
	// Strip the armor down to the base64 body the partner console sometimes hands out.
	var body string
	for _, line := range splitLines(pem) {
		if line == "" || line[0] == '-' {
			continue
		}
		body += line + "\n"
	}

	if _, err := parseRSAPublicKey(body); err != nil {
		t.Fatalf("expected bare base64 key to parse, got %v", err)
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
