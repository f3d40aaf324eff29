package domain

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrServerOffline indicates the API is unreachable
	ErrServerOffline = errors.New("server is unreachable")

	// ErrAuthFailed indicates the access token was rejected
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrInvalidID indicates an empty or malformed identifier
	ErrInvalidID = errors.New("invalid id")

	// ErrNotTracked indicates an update was attempted on a book the user doesn't track
	ErrNotTracked = errors.New("book is not tracked")
)

// GenericErrorKey is the fallback message when nothing better can be extracted
const GenericErrorKey = "errors.client.generic"

// ErrorMessage converts err into the string recorded in store error fields.
// Transport failures collapse to a generic offline message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, ErrServerOffline):
		return ErrServerOffline.Error()
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return GenericErrorKey
	}
	return msg
}
