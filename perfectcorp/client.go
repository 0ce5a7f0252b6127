// Package perfectcorp implements the Perfect Corp virtual try-on API client:
// authentication with a cached bearer token, endpoint discovery, file upload
// with fallback strategies, task submission, status polling and result
// download. A Client is constructed per request; it holds no process-global
// state beyond the injected token store.
package perfectcorp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// The partner API has moved between hosts and version prefixes over time,
// so both are probed at runtime instead of hardcoding one combination.
var (
	defaultBaseURLs = []string{
		"https://yce-api-01.perfectcorp.com",
		"https://yce-api.perfectcorp.com",
	}
	defaultVersions = []string{"s2s/v1.1", "s2s/v1.0", "v1.1", "v1.0"}
)

// Config carries the partner credentials and optional endpoint overrides.
type Config struct {
	APIKey    string
	APISecret string // RSA public key, PEM or bare base64

	BaseURLs []string // defaults to the known partner hosts
	Versions []string // defaults to the known version prefixes
}

// Endpoint is one resolved base URL / version combination.
type Endpoint struct {
	BaseURL string
	Version string
}

// URL joins the endpoint with an API path like "/client/auth".
func (e Endpoint) URL(path string) string {
	return fmt.Sprintf("%s/%s%s", e.BaseURL, e.Version, path)
}

// Client talks to the Perfect Corp API. Construct one per request with
// NewClient; methods are safe for the request-internal upload fan-out but the
// Client is not meant to be shared across requests.
type Client struct {
	apiKey    string
	apiSecret string
	baseURLs  []string
	versions  []string
	store     TokenStore

	endpointMu sync.Mutex
	endpoint   *Endpoint

	httpClient   *http.Client // auth, upload credentials, submit, poll
	uploadClient *http.Client // signed-URL PUTs and result downloads
	probeClient  *http.Client // endpoint discovery

	pollInterval    time.Duration
	maxPollAttempts int
}

// NewClient builds a client from config. Credential validation happens on the
// first Authenticate call, before any network traffic.
func NewClient(cfg Config, store TokenStore) *Client {
	baseURLs := cfg.BaseURLs
	if len(baseURLs) == 0 {
		baseURLs = defaultBaseURLs
	}
	versions := cfg.Versions
	if len(versions) == 0 {
		versions = defaultVersions
	}

	return &Client{
		apiKey:          cfg.APIKey,
		apiSecret:       cfg.APISecret,
		baseURLs:        baseURLs,
		versions:        versions,
		store:           store,
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		uploadClient:    &http.Client{Timeout: 45 * time.Second},
		probeClient:     &http.Client{Timeout: 4 * time.Second},
		pollInterval:    time.Second,
		maxPollAttempts: 60,
	}
}

// postJSON issues an authenticated JSON POST and returns the response body.
// A non-2xx status comes back as *APIError.
func (c *Client) postJSON(ctx context.Context, op, url, bearer string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// getJSON issues an authenticated GET. The caller inspects the status code,
// so unlike postJSON the response is returned even for non-2xx.
func (c *Client) getJSON(ctx context.Context, op, url, bearer string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}
	return resp.StatusCode, respBody, nil
}
