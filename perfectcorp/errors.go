package perfectcorp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoWorkingEndpoint is returned when every candidate base URL / version
	// combination failed the reachability probe.
	ErrNoWorkingEndpoint = errors.New("no working Perfect Corp endpoint found")

	// ErrTaskNotFound is returned when the task endpoint answers 404 during polling.
	ErrTaskNotFound = errors.New("try-on task not found")

	// ErrPollTimeout is returned when a task does not reach a terminal state
	// within the polling budget.
	ErrPollTimeout = errors.New("try-on task timed out")

	// ErrPollingFailed is returned when status polling keeps hitting non-2xx responses.
	ErrPollingFailed = errors.New("polling for task status failed")
)

// CredentialError indicates missing or malformed partner credentials.
// It is raised before any network call and is never retried.
type CredentialError struct {
	Reason string
}

func (e *CredentialError) Error() string {
	return "invalid Perfect Corp credentials: " + e.Reason
}

// APIError carries the HTTP status and raw body of a failed partner API call.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, body)
}

// IntegrityError indicates a downloaded or decoded result image failed
// validation (truncated or suspiciously small payload).
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return "result image failed integrity check: " + e.Reason
}

// ErrorCode classifies a partner-reported failure.
type ErrorCode string

const (
	CodeNoFace      ErrorCode = "error_no_face"
	CodeNoShoulder  ErrorCode = "error_no_shoulder"
	CodeBadPose     ErrorCode = "error_pose"
	CodeBadAuth     ErrorCode = "error_invalid_credentials"
	CodeQuota       ErrorCode = "error_quota"
	CodeUnknown     ErrorCode = ""
)

// classifyPatterns maps code words in partner error text to error codes.
// Ordered: the first match wins. The partner API reports errors as free text
// with embedded code words, so extraction happens here and nowhere else.
var classifyPatterns = []struct {
	substr string
	code   ErrorCode
}{
	{"error_no_face", CodeNoFace},
	{"no_face", CodeNoFace},
	{"error_no_shoulder", CodeNoShoulder},
	{"no_shoulder", CodeNoShoulder},
	{"error_pose", CodeBadPose},
	{"pose", CodeBadPose},
	{"invalid client_id or invalid id_token", CodeBadAuth},
	{"invalid id_token", CodeBadAuth},
	{"exceed", CodeQuota},
	{"quota", CodeQuota},
}

// ClassifyPartnerError extracts an ErrorCode from raw partner error text.
// Patterns only match at the start of a word, so "compose" is not a pose
// failure and "exceeded" still counts as quota.
func ClassifyPartnerError(raw string) ErrorCode {
	lowered := strings.ToLower(raw)
	for _, p := range classifyPatterns {
		if containsWordStart(lowered, p.substr) {
			return p.code
		}
	}
	return CodeUnknown
}

func containsWordStart(s, substr string) bool {
	for start := 0; ; {
		i := strings.Index(s[start:], substr)
		if i < 0 {
			return false
		}
		at := start + i
		if at == 0 || !isWordChar(s[at-1]) {
			return true
		}
		start = at + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// PartnerError is a semantic failure reported by the partner API
// (as opposed to a transport or protocol failure).
type PartnerError struct {
	Code ErrorCode
	Raw  string
}

func (e *PartnerError) Error() string {
	if e.Raw != "" {
		return "try-on failed: " + e.Raw
	}
	return "try-on failed: " + string(e.Code)
}

// userMessages holds curated, user-actionable copy per error code.
var userMessages = map[ErrorCode]string{
	CodeNoFace:     "We couldn't detect a face in your photo. Please use a clear, front-facing photo with your face fully visible.",
	CodeNoShoulder: "Your shoulders aren't visible in the photo. Please use a photo showing your upper body from the shoulders up.",
	CodeBadPose:    "We couldn't process your pose. Please use a photo where you're standing upright and facing the camera.",
	CodeBadAuth:    "The try-on service rejected our credentials. Verify that PERFECTCORP_API_KEY matches the RSA key in PERFECTCORP_API_SECRET and that the key pair is active on the Perfect Corp console.",
	CodeQuota:      "The try-on service is over its usage quota. Please try again later.",
}

// UserMessage translates an orchestration error into user-facing copy.
// Known partner codes get curated guidance; everything else passes through.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var partnerErr *PartnerError
	if errors.As(err, &partnerErr) {
		if msg, ok := userMessages[partnerErr.Code]; ok {
			return msg
		}
		return partnerErr.Error()
	}

	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return userMessages[CodeBadAuth]
	}

	switch {
	case errors.Is(err, ErrPollTimeout):
		return "The try-on is taking longer than expected. Please try again in a few minutes."
	case errors.Is(err, ErrTaskNotFound):
		return "The try-on job was lost by the processing service. Please submit your request again."
	case errors.Is(err, ErrNoWorkingEndpoint):
		return "The try-on service is currently unreachable. Please try again later."
	}

	// Auth failures surfaced as APIError bodies still deserve the credential guidance.
	if code := ClassifyPartnerError(err.Error()); code == CodeBadAuth {
		return userMessages[CodeBadAuth]
	}

	return err.Error()
}
