package perfectcorp

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
	"time"
)

// memTokenStore is an in-memory TokenStore double.
type memTokenStore struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	saves     int
}

func (s *memTokenStore) GetValid(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || !time.Now().Before(s.expiresAt) {
		return "", false, nil
	}
	return s.token, true, nil
}

func (s *memTokenStore) Save(ctx context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
	s.saves++
	return nil
}

func (s *memTokenStore) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// testPublicKeyPEM generates a fresh RSA public key in PEM form.
func testPublicKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// newTestClient builds a client pinned to a test server, skipping discovery.
func newTestClient(t *testing.T, serverURL string, store TokenStore) *Client {
	t.Helper()
	c := NewClient(Config{
		APIKey:    "test-api-key",
		APISecret: testPublicKeyPEM(t),
	}, store)
	c.endpoint = &Endpoint{BaseURL: serverURL, Version: "v1.0"}
	c.pollInterval = time.Millisecond
	return c
}

// validStore returns a store holding a token that will not expire during a test.
func validStore() *memTokenStore {
	return &memTokenStore{token: "cached-token", expiresAt: time.Now().Add(time.Hour)}
}
