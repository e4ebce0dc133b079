package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/krshsl/mockprep/backend/repository"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	// ErrTranscriptionUnavailable never leaves the service layer; callers fall back to a canned transcript
	ErrTranscriptionUnavailable = errors.New("transcription unavailable")
	ErrPersistence              = errors.New("persistence failure")
)

// storeError classifies a repository error, keeping the original in the chain
func storeError(err error, what, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrPersistence, what, id, err)
}

// APIResponse is the envelope of every JSON response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(APIResponse{Success: status < 400, Message: message, Data: data}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps the error kinds to status codes. Persistence details are logged, not returned.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, err.Error(), nil)
	default:
		slog.Error("Request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}
