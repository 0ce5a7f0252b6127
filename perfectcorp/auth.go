package perfectcorp

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

const defaultTokenLifetimeSeconds = 7200

// The partner's documented response shape is {result:{access_token}}, but
// deployments have answered with flat access_token and bare token fields too.
type authResponse struct {
	Result *struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	} `json:"result"`
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Authenticate returns a bearer token, from the cache when a non-expired one
// exists, otherwise via a fresh RSA-encrypted credential exchange. force
// skips the cache.
func (c *Client) Authenticate(ctx context.Context, force bool) (string, error) {
	if !force && c.store != nil {
		token, ok, err := c.store.GetValid(ctx)
		if err != nil {
			// A broken cache must not take down the request; fall through to a fresh login.
			log.Printf("token cache read failed: %v", err)
		} else if ok {
			return token, nil
		}
	}

	// Credentials are validated before any network call.
	if strings.TrimSpace(c.apiKey) == "" {
		return "", &CredentialError{Reason: "PERFECTCORP_API_KEY is empty"}
	}
	publicKey, err := parseRSAPublicKey(c.apiSecret)
	if err != nil {
		return "", err
	}

	payload := fmt.Sprintf("client_id=%s&timestamp=%d", c.apiKey, time.Now().UnixMilli())
	idToken, err := encryptOAEP(publicKey, []byte(payload))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt auth payload: %w", err)
	}

	ep, err := c.ensureEndpoint(ctx)
	if err != nil {
		return "", err
	}

	body, err := c.postJSON(ctx, "authentication", ep.URL("/client/auth"), "", map[string]string{
		"client_id": c.apiKey,
		"id_token":  idToken,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && ClassifyPartnerError(apiErr.Body) == CodeBadAuth {
			return "", &CredentialError{
				Reason: "the partner rejected the client_id/id_token pair; check that the API key and RSA public key belong to the same Perfect Corp app and that the key has not been rotated",
			}
		}
		return "", err
	}

	var parsed authResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("authentication: unexpected response format: %w", err)
	}

	token, expiresIn := extractToken(parsed)
	if token == "" {
		return "", fmt.Errorf("authentication: unexpected response format: no access token in response")
	}
	if expiresIn <= 0 {
		expiresIn = defaultTokenLifetimeSeconds
	}

	if c.store != nil {
		expiresAt := time.Now().Add(time.Duration(expiresIn)*time.Second - tokenSafetyMargin)
		if err := c.store.Save(ctx, token, expiresAt); err != nil {
			log.Printf("failed to cache access token: %v", err)
		}
	}
	return token, nil
}

// ForceRefresh drops the cached token and authenticates from scratch.
func (c *Client) ForceRefresh(ctx context.Context) (string, error) {
	if c.store != nil {
		if err := c.store.Invalidate(ctx); err != nil {
			log.Printf("failed to invalidate token cache: %v", err)
		}
	}
	return c.Authenticate(ctx, true)
}

func extractToken(r authResponse) (string, int64) {
	if r.Result != nil && r.Result.AccessToken != "" {
		return r.Result.AccessToken, r.Result.ExpiresIn
	}
	if r.AccessToken != "" {
		return r.AccessToken, r.ExpiresIn
	}
	if r.Token != "" {
		return r.Token, r.ExpiresIn
	}
	return "", 0
}

// parseRSAPublicKey accepts the key as delivered on the partner console:
// either a full PEM block or just the base64 body.
func parseRSAPublicKey(raw string) (*rsa.PublicKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &CredentialError{Reason: "PERFECTCORP_API_SECRET (RSA public key) is empty"}
	}

	var der []byte
	if strings.Contains(raw, "BEGIN") {
		block, _ := pem.Decode([]byte(raw))
		if block == nil {
			return nil, &CredentialError{Reason: "RSA public key is not valid PEM"}
		}
		der = block.Bytes
	} else {
		cleaned := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == ' ' {
				return -1
			}
			return r
		}, raw)
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, &CredentialError{Reason: "RSA public key is not valid base64: " + err.Error()}
		}
		der = decoded
	}

	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, &CredentialError{Reason: "public key is not an RSA key"}
		}
		return rsaKey, nil
	}
	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return key, nil
	}
	return nil, &CredentialError{Reason: "RSA public key could not be parsed (expected PKIX or PKCS1 DER)"}
}

// encryptOAEP prefers SHA-256 and falls back to SHA-1, since partner keys
// generated before the console update only accept the older digest.
func encryptOAEP(key *rsa.PublicKey, payload []byte) (string, error) {
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, key, payload, nil)
	if err != nil {
		ciphertext, err = rsa.EncryptOAEP(sha1.New(), rand.Reader, key, payload, nil)
		if err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
