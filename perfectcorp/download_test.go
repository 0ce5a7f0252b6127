package perfectcorp

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestDownloadResultDataURLRoundTrip(t *testing.T) {
	original := testImageBytes(2048)
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(original)

	c := newTestClient(t, "http://unused", validStore())
	got, err := c.DownloadResult(context.Background(), dataURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Error("decoded bytes differ from the original payload")
	}
}

func TestDownloadResultShortDataURLFailsIntegrity(t *testing.T) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(testImageBytes(64))

	c := newTestClient(t, "http://unused", validStore())
	_, err := c.DownloadResult(context.Background(), dataURL)

	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected IntegrityError for a short data URL, got %v", err)
	}
}

func TestDownloadResultSmallBodyNotRetried(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte("tiny"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, validStore())
	_, err := c.DownloadResult(context.Background(), server.URL+"/result.jpg")

	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected IntegrityError for a truncated download, got %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("integrity failures are definitive and must not be retried, got %d requests", n)
	}
}

func TestDownloadResultHTTPSuccess(t *testing.T) {
	payload := testImageBytes(minHTTPResultBytes + 100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, validStore())
	got, err := c.DownloadResult(context.Background(), server.URL+"/result.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("downloaded bytes differ from the served payload")
	}
}

func TestFetchInputImageLooserGate(t *testing.T) {
	// 512 bytes is a valid input image but far below the result threshold.
	payload := testImageBytes(512)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, validStore())
	got, err := c.FetchInputImage(context.Background(), server.URL+"/photo.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(payload) {
		t.Errorf("expected %d bytes, got %d", len(payload), len(got))
	}

	if _, err := c.DownloadResult(context.Background(), server.URL+"/photo.jpg"); err == nil {
		t.Error("the same payload must fail the stricter result gate")
	}
}

func TestDecodeDataURLRejectsNonBase64Encoding(t *testing.T) {
	c := newTestClient(t, "http://unused", validStore())
	if _, err := c.FetchInputImage(context.Background(), "data:image/jpeg,rawbytes"); err == nil {
		t.Fatal("expected non-base64 data URL to be rejected")
	}
}

func TestEncodeImageBase64MatchesStdlib(t *testing.T) {
	for _, n := range []int{0, 1, 2, encodeChunkSize - 1, encodeChunkSize, encodeChunkSize + 1, 100_001} {
		t.Run(fmt.Sprintf("%d bytes", n), func(t *testing.T) {
			data := testImageBytes(n)
			if got, want := EncodeImageBase64(data), base64.StdEncoding.EncodeToString(data); got != want {
				t.Errorf("chunked encoding diverged from stdlib at %d bytes", n)
			}
		})
	}
}
