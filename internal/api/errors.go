package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/trackr/internal/domain"
)

// Error is a non-2xx response from the API
type Error struct {
	StatusCode int
	Code       string // Server error code, if the body carried one
	Message    string // Best-effort human message; never empty
	Path       string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap maps well-known statuses onto domain sentinels so callers can use errors.Is
func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrAuthFailed
	default:
		return nil
	}
}

// errorBody covers the error shapes the API has used over time:
//
//	{"error": {"code": "...", "message": "..."}}
//	{"error": "..."}
//	{"message": "..."}
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
}

type nestedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func parseError(status int, path string, body []byte) *Error {
	apiErr := &Error{StatusCode: status, Path: path}
	apiErr.Code, apiErr.Message = extractMessage(body)
	if apiErr.Message == "" {
		apiErr.Message = domain.GenericErrorKey
	}
	return apiErr
}

// extractMessage pulls (code, message) out of an error body, defensively
func extractMessage(body []byte) (string, string) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", ""
	}

	var parsed errorBody
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return "", ""
	}

	if len(parsed.Error) > 0 {
		var nested nestedError
		if err := json.Unmarshal(parsed.Error, &nested); err == nil && strings.TrimSpace(nested.Message) != "" {
			return nested.Code, strings.TrimSpace(nested.Message)
		}
		var flat string
		if err := json.Unmarshal(parsed.Error, &flat); err == nil && strings.TrimSpace(flat) != "" {
			return "", strings.TrimSpace(flat)
		}
		if nested.Code != "" && parsed.Message == "" {
			return nested.Code, fmt.Sprintf("request failed (%s)", nested.Code)
		}
	}

	if msg := strings.TrimSpace(parsed.Message); msg != "" {
		return "", msg
	}
	if msg := strings.TrimSpace(parsed.Detail); msg != "" {
		return "", msg
	}
	return "", ""
}
