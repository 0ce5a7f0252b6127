package perfectcorp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDiscoverEndpointPicksRoutedCombination(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer dead.Close()

	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1.0/client/auth" {
			t.Errorf("unexpected probe path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer alive.Close()

	c := NewClient(Config{
		APIKey:    "test-api-key",
		APISecret: testPublicKeyPEM(t),
		BaseURLs:  []string{dead.URL, alive.URL},
		Versions:  []string{"v1.0"},
	}, &memTokenStore{})

	ep, err := c.DiscoverEndpoint(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.BaseURL != alive.URL {
		t.Errorf("expected the reachable host to win, got %q", ep.BaseURL)
	}
}

func TestDiscoverEndpointMethodNotAllowedStillCounts(t *testing.T) {
	// A 4xx proves the combination is routed; only 5xx means a dead surface.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer server.Close()

	c := NewClient(Config{
		APIKey:    "test-api-key",
		APISecret: testPublicKeyPEM(t),
		BaseURLs:  []string{server.URL},
		Versions:  []string{"v1.0"},
	}, &memTokenStore{})

	if _, err := c.DiscoverEndpoint(context.Background()); err != nil {
		t.Fatalf("a 405 probe response should count as reachable, got %v", err)
	}
}

func TestDiscoverEndpointAllCandidatesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(Config{
		APIKey:    "test-api-key",
		APISecret: testPublicKeyPEM(t),
		BaseURLs:  []string{server.URL},
		Versions:  []string{"v1.0", "v1.1"},
	}, &memTokenStore{})

	_, err := c.DiscoverEndpoint(context.Background())
	if !errors.Is(err, ErrNoWorkingEndpoint) {
		t.Fatalf("expected ErrNoWorkingEndpoint, got %v", err)
	}
}

func TestEnsureEndpointCachesDiscovery(t *testing.T) {
	var probes int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&probes, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(Config{
		APIKey:    "test-api-key",
		APISecret: testPublicKeyPEM(t),
		BaseURLs:  []string{server.URL},
		Versions:  []string{"v1.0"},
	}, &memTokenStore{})

	first, err := c.ensureEndpoint(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.ensureEndpoint(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected the cached endpoint, got %v then %v", first, second)
	}
	if n := atomic.LoadInt32(&probes); n != 1 {
		t.Errorf("expected exactly one probe, got %d", n)
	}
}

func TestEnsureEndpointConcurrentCallersShareDiscovery(t *testing.T) {
	var probes int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&probes, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(Config{
		APIKey:    "test-api-key",
		APISecret: testPublicKeyPEM(t),
		BaseURLs:  []string{server.URL},
		Versions:  []string{"v1.0"},
	}, &memTokenStore{})

	// Mirrors the photo/garment upload fan-out hitting an unresolved endpoint.
	endpoints := make([]Endpoint, 4)
	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range endpoints {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			endpoints[i], errs[i] = c.ensureEndpoint(context.Background())
		}()
	}
	wg.Wait()

	for i := range endpoints {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, errs[i])
		}
		if endpoints[i] != endpoints[0] {
			t.Errorf("caller %d resolved %v, caller 0 resolved %v", i, endpoints[i], endpoints[0])
		}
	}
	if n := atomic.LoadInt32(&probes); n != 1 {
		t.Errorf("expected one discovery probe shared by all callers, got %d", n)
	}
}

func TestAlternateEndpointWalksVersionList(t *testing.T) {
	c := NewClient(Config{
		APIKey:    "test-api-key",
		APISecret: "unused",
		Versions:  []string{"s2s/v1.1", "v1.0"},
	}, nil)

	alt, ok := c.alternateEndpoint(Endpoint{BaseURL: "https://h", Version: "s2s/v1.1"})
	if !ok || alt.Version != "v1.0" {
		t.Errorf("expected fallback to v1.0, got %v ok=%v", alt, ok)
	}

	if _, ok := c.alternateEndpoint(Endpoint{BaseURL: "https://h", Version: "v1.0"}); ok {
		t.Error("the last version must have no fallback")
	}
}
