package perfectcorp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testImageBytes(n int) []byte {
	return bytes.Repeat([]byte{0xAB}, n)
}

func TestParseUploadResponseShapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantID   string
		wantURL  string
		wantFail bool
	}{
		{"nested files array", `{"result":{"files":[{"url":"https://u1","file_id":"f1"}]}}`, "f1", "https://u1", false},
		{"nested url/file_id", `{"result":{"url":"https://u2","file_id":"f2"}}`, "f2", "https://u2", false},
		{"top-level files array", `{"files":[{"url":"https://u3","file_id":"f3"}]}`, "f3", "https://u3", false},
		{"top-level url/file_id", `{"url":"https://u4","file_id":"f4"}`, "f4", "https://u4", false},
		{"unknown shape", `{"ok":true}`, "", "", true},
		{"not json", `<html>`, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := parseUploadResponse([]byte(tt.body))
			if tt.wantFail {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cred.FileID != tt.wantID || cred.UploadURL != tt.wantURL {
				t.Errorf("got %+v, want id=%q url=%q", cred, tt.wantID, tt.wantURL)
			}
		})
	}
}

func TestUploadFileSizeGates(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, validStore())

	if _, err := c.UploadFile(context.Background(), testImageBytes(512), "small.jpg", "image/jpeg"); err == nil {
		t.Error("expected undersized payload to fail fast")
	}
	if _, err := c.UploadFile(context.Background(), testImageBytes(11<<20), "big.jpg", "image/jpeg"); err == nil {
		t.Error("expected oversized payload to fail fast")
	}
	if n := atomic.LoadInt32(&requests); n != 0 {
		t.Errorf("size gate failures must not touch the network, got %d calls", n)
	}
}

func TestUploadClientErrorNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			var putCalls int32
			mux := http.NewServeMux()
			server := httptest.NewServer(mux)
			defer server.Close()

			mux.HandleFunc("/v1.0/file", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"result":{"files":[{"url":"%s/put","file_id":"f1"}]}}`, server.URL)
			})
			mux.HandleFunc("/put", func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&putCalls, 1)
				w.WriteHeader(status)
			})

			c := newTestClient(t, server.URL, validStore())
			strat := c.uploadStrategies()[0]

			_, err := c.uploadWithStrategy(context.Background(), "cached-token", strat, testImageBytes(2048), "a.jpg", "image/jpeg")
			if err == nil {
				t.Fatal("expected upload to fail")
			}
			if n := atomic.LoadInt32(&putCalls); n != 1 {
				t.Errorf("expected exactly one PUT for a client error, got %d", n)
			}
		})
	}
}

func TestUploadTransientErrorRetriedWithBackoff(t *testing.T) {
	var putCalls int32
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/v1.0/file", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"result":{"files":[{"url":"%s/put","file_id":"f1"}]}}`, server.URL)
	})
	mux.HandleFunc("/put", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&putCalls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := newTestClient(t, server.URL, validStore())

	var delays []time.Duration
	strat := uploadStrategy{
		name:       "reference",
		putHeaders: c.uploadStrategies()[0].putHeaders,
		policy: retryPolicy{
			maxAttempts: 3,
			baseDelay:   2 * time.Second,
			retryable:   isTransient,
			sleep: func(ctx context.Context, d time.Duration) error {
				delays = append(delays, d)
				return nil
			},
		},
	}

	_, err := c.uploadWithStrategy(context.Background(), "cached-token", strat, testImageBytes(2048), "a.jpg", "image/jpeg")
	if err == nil {
		t.Fatal("expected upload to fail")
	}
	if n := atomic.LoadInt32(&putCalls); n != 3 {
		t.Errorf("expected 3 PUT attempts for a transient error, got %d", n)
	}
	if len(delays) != 2 || delays[1] <= delays[0] {
		t.Errorf("expected strictly increasing backoff delays, got %v", delays)
	}
}

func TestUploadAllStrategiesFailCombinesReasons(t *testing.T) {
	var fileCalls int32
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	reasons := []string{"strategy failure A", "strategy failure B", "strategy failure C"}
	mux.HandleFunc("/v1.0/file", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&fileCalls, 1)
		reason := reasons[(int(n)-1)%len(reasons)]
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, reason)
	})

	c := newTestClient(t, server.URL, validStore())

	_, err := c.UploadFile(context.Background(), testImageBytes(2048), "a.jpg", "image/jpeg")
	if err == nil {
		t.Fatal("expected combined failure")
	}
	for _, reason := range reasons {
		if !strings.Contains(err.Error(), reason) {
			t.Errorf("combined error %q is missing %q", err.Error(), reason)
		}
	}
}

func TestUploadFallsBackToAlternateVersion(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	// Primary version path is dead; the next known version works.
	mux.HandleFunc("/s2s/v1.1/file", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/s2s/v1.0/file", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"result":{"files":[{"url":"%s/put","file_id":"f-alt"}]}}`, server.URL)
	})
	mux.HandleFunc("/put", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c := newTestClient(t, server.URL, validStore())
	c.endpoint = &Endpoint{BaseURL: server.URL, Version: "s2s/v1.1"}

	fileID, err := c.uploadWithStrategy(context.Background(), "cached-token", c.uploadStrategies()[0], testImageBytes(2048), "a.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fileID != "f-alt" {
		t.Errorf("expected file id from the alternate version path, got %q", fileID)
	}
}
