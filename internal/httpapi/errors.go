package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
)

// writeAPIError renders the spec §7 error taxonomy envelope.
func writeAPIError(w http.ResponseWriter, err *chatapi.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(err.JSON())
}

// writeErr normalizes any error into an APIError, defaulting to a 500
// "config"-less internal error for anything the handlers didn't
// classify explicitly.
func writeErr(w http.ResponseWriter, err error) {
	var apiErr *chatapi.APIError
	if errors.As(err, &apiErr) {
		writeAPIError(w, apiErr)
		return
	}
	writeAPIError(w, chatapi.NewAPIError(http.StatusInternalServerError, chatapi.ErrBadRequest, "%s", err.Error()))
}

func badRequest(format string, args ...any) *chatapi.APIError {
	return chatapi.NewAPIError(http.StatusBadRequest, chatapi.ErrBadRequest, format, args...)
}
