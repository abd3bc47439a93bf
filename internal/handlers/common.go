package handlers

import (
	"errors"
	"io"
	"net/http"

	"chat-backend/internal/services"
	"chat-backend/internal/validation"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 8 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a plain acknowledgement body
type MessageResponse struct {
	Message string `json:"message"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends v as a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// decodeBody reads a JSON body into v and validates it. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return validation.Struct(v)
}

var errInvalidBody = errors.New("invalid request body")

// respondServiceError maps a service error to a status code. Internal failures are logged with
// the given context and reported with a generic message.
func respondServiceError(w http.ResponseWriter, err error, logCtx func(*zerolog.Event) *zerolog.Event) {
	var verr *validation.Error
	switch {
	case errors.Is(err, errInvalidBody):
		respondError(w, "Invalid request body", http.StatusBadRequest)
	case errors.As(err, &verr):
		respondError(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrValidation):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrUnauthorized):
		respondError(w, "Invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, services.ErrForbidden):
		respondError(w, "Not authorized", http.StatusForbidden)
	case errors.Is(err, services.ErrNotFound):
		respondError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, services.ErrConflict):
		respondError(w, "Email already exists", http.StatusConflict)
	default:
		event := log.Error().Err(err)
		if logCtx != nil {
			event = logCtx(event)
		}
		event.Msg("Request failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
	}
}
