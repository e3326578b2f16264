package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/idro/idro/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.NewValidationError("", "bad json: %v", err)
	}
	return nil
}

// writeError maps the error taxonomy onto status codes. The body is the
// error text, except for unexpected errors which are only logged.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ce *models.ConflictError
	switch {
	case errors.As(err, &ce):
		http.Error(w, ce.Reason, http.StatusConflict)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case models.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
