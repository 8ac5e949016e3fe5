package tavus

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ErrKind buckets vendor rejections into user-facing categories.
type ErrKind string

const (
	ErrKindMissingCredential ErrKind = "missing_credential"
	ErrKindInvalidCredential ErrKind = "invalid_credential"
	ErrKindPermissionDenied  ErrKind = "permission_denied"
	ErrKindInvalidPersona    ErrKind = "invalid_persona"
	ErrKindConcurrencyLimit  ErrKind = "concurrency_limit"
	ErrKindGeneric           ErrKind = "generic"
)

// APIError is a classified vendor API failure.
type APIError struct {
	Kind    ErrKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("tavus: %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("tavus: %s: %s", e.Kind, e.Message)
}

// UserMessage renders the failure for the error screen.
func (e *APIError) UserMessage() string {
	switch e.Kind {
	case ErrKindMissingCredential:
		return "API key not configured. Please check settings."
	case ErrKindInvalidCredential:
		return "Invalid API key. Please check your Tavus API key."
	case ErrKindPermissionDenied:
		return "Access denied. Please verify your API key permissions."
	case ErrKindInvalidPersona:
		return "Invalid persona ID. Please check the persona ID in your settings."
	case ErrKindConcurrencyLimit:
		return "You have reached the maximum number of concurrent conversations. Please wait for your current conversations to end."
	default:
		if e.Message != "" {
			return fmt.Sprintf("Request failed: %s", e.Message)
		}
		return "Failed to create conversation"
	}
}

type vendorErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func vendorMessage(raw []byte) string {
	var body vendorErrorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if body.Message != "" {
		return body.Message
	}
	if body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

// classifyCreateError maps a non-2xx vendor response onto the taxonomy the
// client surfaces: 400 splits on message shape, 401 is a credential problem,
// 403 a permission problem, everything else stays generic.
func classifyCreateError(status int, raw []byte) *APIError {
	msg := vendorMessage(raw)
	lower := strings.ToLower(msg)

	switch status {
	case http.StatusBadRequest:
		if strings.Contains(lower, "maximum concurrent conversations") {
			return &APIError{Kind: ErrKindConcurrencyLimit, Status: status, Message: msg}
		}
		if strings.Contains(lower, "invalid persona_id") || strings.Contains(lower, "invalid replica_id") {
			return &APIError{Kind: ErrKindInvalidPersona, Status: status, Message: msg}
		}
		return &APIError{Kind: ErrKindGeneric, Status: status, Message: msg}
	case http.StatusUnauthorized:
		return &APIError{Kind: ErrKindInvalidCredential, Status: status, Message: msg}
	case http.StatusForbidden:
		return &APIError{Kind: ErrKindPermissionDenied, Status: status, Message: msg}
	default:
		return &APIError{Kind: ErrKindGeneric, Status: status, Message: msg}
	}
}
