package perfectcorp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Image size gate applied before any network call.
const (
	minUploadBytes = 1024
	maxUploadBytes = 10 << 20
)

type uploadCredential struct {
	FileID    string
	UploadURL string // time-limited signed URL, consumed once by the PUT
}

type fileEntry struct {
	URL    string `json:"url"`
	FileID string `json:"file_id"`
}

// The File API has answered in four different shapes across versions.
type uploadResponse struct {
	Result *struct {
		Files  []fileEntry `json:"files"`
		URL    string      `json:"url"`
		FileID string      `json:"file_id"`
	} `json:"result"`
	Files  []fileEntry `json:"files"`
	URL    string      `json:"url"`
	FileID string      `json:"file_id"`
}

// parseUploadResponse is the single defensive parser shared by all upload
// strategies.
func parseUploadResponse(body []byte) (uploadCredential, error) {
	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return uploadCredential{}, fmt.Errorf("file upload: unexpected response format: %w", err)
	}

	if parsed.Result != nil {
		if len(parsed.Result.Files) > 0 && parsed.Result.Files[0].URL != "" {
			f := parsed.Result.Files[0]
			return uploadCredential{FileID: f.FileID, UploadURL: f.URL}, nil
		}
		if parsed.Result.URL != "" {
			return uploadCredential{FileID: parsed.Result.FileID, UploadURL: parsed.Result.URL}, nil
		}
	}
	if len(parsed.Files) > 0 && parsed.Files[0].URL != "" {
		f := parsed.Files[0]
		return uploadCredential{FileID: f.FileID, UploadURL: f.URL}, nil
	}
	if parsed.URL != "" {
		return uploadCredential{FileID: parsed.FileID, UploadURL: parsed.URL}, nil
	}
	return uploadCredential{}, fmt.Errorf("file upload: unexpected response format: no upload url in response")
}

// uploadStrategy is one header/retry profile over the shared two-step
// protocol (request signed URL, then PUT the bytes).
type uploadStrategy struct {
	name       string
	putHeaders func(contentType string) map[string]string
	policy     retryPolicy
}

func (c *Client) uploadStrategies() []uploadStrategy {
	return []uploadStrategy{
		{
			name: "reference",
			putHeaders: func(contentType string) map[string]string {
				return map[string]string{"Content-Type": contentType}
			},
			policy: retryPolicy{maxAttempts: 3, baseDelay: 2 * time.Second, retryable: isTransient},
		},
		{
			name: "multipart",
			putHeaders: func(contentType string) map[string]string {
				return map[string]string{
					"Content-Type":  contentType,
					"Accept":        "*/*",
					"Cache-Control": "no-cache",
				}
			},
			policy: retryPolicy{maxAttempts: 2, baseDelay: time.Second, retryable: isTransient},
		},
		{
			// Some storage frontends reject PUTs with headers they don't
			// expect; the last resort sends none at all.
			name: "minimal",
			putHeaders: func(string) map[string]string {
				return nil
			},
			policy: retryPolicy{maxAttempts: 1, retryable: isTransient},
		},
	}
}

// isTransient reports whether an upload/download failure is worth retrying.
// Client errors (4xx) are definitive; 5xx, 408, 429 and network errors are not.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 ||
			apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode == http.StatusTooManyRequests
	}
	var integrityErr *IntegrityError
	if errors.As(err, &integrityErr) {
		return false
	}
	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return false
	}
	return true
}

// UploadFile pushes image bytes to the partner's file storage and returns the
// assigned file id. Strategies run in fixed order until one succeeds; when
// all fail, the combined error lists every strategy's reason.
func (c *Client) UploadFile(ctx context.Context, data []byte, fileName, contentType string) (string, error) {
	if len(data) < minUploadBytes {
		return "", fmt.Errorf("image too small to upload (%d bytes, minimum %d)", len(data), minUploadBytes)
	}
	if len(data) > maxUploadBytes {
		return "", fmt.Errorf("image too large to upload (%d bytes, maximum %d)", len(data), maxUploadBytes)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	var failures []string
	for _, strat := range c.uploadStrategies() {
		// Each strategy validates the token on its own; a strategy may run
		// long enough for the previous token to expire.
		token, err := c.Authenticate(ctx, false)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", strat.name, err))
			continue
		}

		fileID, err := c.uploadWithStrategy(ctx, token, strat, data, fileName, contentType)
		if err == nil {
			return fileID, nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", strat.name, err))

		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("all upload strategies failed: %s", strings.Join(failures, "; "))
}

func (c *Client) uploadWithStrategy(ctx context.Context, token string, strat uploadStrategy, data []byte, fileName, contentType string) (string, error) {
	ep, err := c.ensureEndpoint(ctx)
	if err != nil {
		return "", err
	}

	cred, err := c.requestUploadCredential(ctx, token, ep, fileName, contentType, len(data))
	if err != nil {
		// The File API moved between version prefixes more than once; retry
		// the credential request once against the next known version.
		if alt, ok := c.alternateEndpoint(ep); ok {
			cred, err = c.requestUploadCredential(ctx, token, alt, fileName, contentType, len(data))
		}
		if err != nil {
			return "", err
		}
	}

	err = strat.policy.do(ctx, func() error {
		return c.putBytes(ctx, cred.UploadURL, data, strat.putHeaders(contentType))
	})
	if err != nil {
		return "", err
	}
	return cred.FileID, nil
}

func (c *Client) requestUploadCredential(ctx context.Context, token string, ep Endpoint, fileName, contentType string, size int) (uploadCredential, error) {
	payload := map[string]interface{}{
		"files": []map[string]interface{}{
			{
				"content_type": contentType,
				"file_name":    fileName,
				"file_size":    size,
			},
		},
	}
	body, err := c.postJSON(ctx, "file upload", ep.URL("/file"), token, payload)
	if err != nil {
		return uploadCredential{}, err
	}
	return parseUploadResponse(body)
}

func (c *Client) putBytes(ctx context.Context, signedURL string, data []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(data))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Op: "file upload PUT", StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
