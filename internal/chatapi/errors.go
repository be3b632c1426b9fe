package chatapi

import "fmt"

// ErrorType enumerates the HTTP-surfacing error taxonomy from spec §7.
// tool_error is not a member — tool errors are folded into the
// conversation as tool-result turns; session_busy is rendered as a 409.
type ErrorType string

const (
	ErrConfig              ErrorType = "config"
	ErrProviderNotFound    ErrorType = "provider_not_found"
	ErrProviderUnavailable ErrorType = "provider_unavailable"
	ErrBadRequest          ErrorType = "bad_request"
	ErrSessionBusy         ErrorType = "session_busy"
	ErrUpstreamTimeout     ErrorType = "upstream_timeout"
)

// APIError is the shape written to the HTTP body for any error taxonomy
// entry that is surfaced to the client: {"error":{"type","message"}}.
type APIError struct {
	Type    ErrorType
	Message string
	Status  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewAPIError builds an APIError with the given HTTP status.
func NewAPIError(status int, t ErrorType, format string, args ...any) *APIError {
	return &APIError{Type: t, Message: fmt.Sprintf(format, args...), Status: status}
}

// JSON renders the {"error":{...}} envelope used for every HTTP error body.
func (e *APIError) JSON() map[string]any {
	return map[string]any{
		"error": map[string]any{
			"type":    string(e.Type),
			"message": e.Message,
		},
	}
}
