package perfectcorp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// Minimum plausible sizes for a real composite image; anything smaller
	// is a truncated or corrupt transfer.
	minHTTPResultBytes  = 10 * 1024
	minDataURLChars     = 1000
	minInputImageBytes  = 256
	encodeChunkSize     = 32 * 1024
)

// DownloadResult fetches or decodes the final composite image and returns it
// as raw bytes. Accepts data: URLs and http(s) URLs.
func (c *Client) DownloadResult(ctx context.Context, resultURL string) ([]byte, error) {
	if strings.HasPrefix(resultURL, "data:") {
		return decodeDataURL(resultURL, minDataURLChars)
	}
	return c.fetchImage(ctx, resultURL, minHTTPResultBytes)
}

// FetchInputImage resolves a user-supplied photo or garment source (data URL
// or http URL) to raw bytes with a looser size gate than result downloads.
func (c *Client) FetchInputImage(ctx context.Context, src string) ([]byte, error) {
	if strings.HasPrefix(src, "data:") {
		return decodeDataURL(src, 0)
	}
	return c.fetchImage(ctx, src, minInputImageBytes)
}

func decodeDataURL(dataURL string, minChars int) ([]byte, error) {
	idx := strings.Index(dataURL, "base64,")
	if idx < 0 {
		return nil, fmt.Errorf("unsupported data URL (expected base64 encoding)")
	}
	payload := dataURL[idx+len("base64,"):]
	if minChars > 0 && len(payload) < minChars {
		return nil, &IntegrityError{Reason: fmt.Sprintf("data URL payload is only %d chars", len(payload))}
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return decoded, nil
}

// fetchImage downloads an image over HTTP with retries for transient network
// failures, reading the body in chunks. A body below minBytes fails the
// integrity check and is not retried.
func (c *Client) fetchImage(ctx context.Context, url string, minBytes int) ([]byte, error) {
	var result []byte
	policy := retryPolicy{maxAttempts: 3, baseDelay: 2 * time.Second, retryable: isTransient}

	err := policy.do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.uploadClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &APIError{Op: "result download", StatusCode: resp.StatusCode, Body: string(body)}
		}

		var buf bytes.Buffer
		chunk := make([]byte, encodeChunkSize)
		for {
			n, readErr := resp.Body.Read(chunk)
			if n > 0 {
				buf.Write(chunk[:n])
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				return fmt.Errorf("result download interrupted: %w", readErr)
			}
		}

		if buf.Len() < minBytes {
			return &IntegrityError{Reason: fmt.Sprintf("downloaded image is only %d bytes", buf.Len())}
		}
		result = buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EncodeImageBase64 converts image bytes to a base64 string, streaming
// through a fixed-size buffer so arbitrarily large results encode flat.
func EncodeImageBase64(data []byte) string {
	var sb strings.Builder
	sb.Grow(base64.StdEncoding.EncodedLen(len(data)))
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	for off := 0; off < len(data); off += encodeChunkSize {
		end := off + encodeChunkSize
		if end > len(data) {
			end = len(data)
		}
		enc.Write(data[off:end])
	}
	enc.Close()
	return sb.String()
}
