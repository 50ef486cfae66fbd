package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/lectern-ai/lectern/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps domain errors onto HTTP statuses. Anything unrecognized is
// a 500; the body never carries more than the error text.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		log.Warn().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeTooLarge points oversized direct uploads at the chunked endpoints,
// mirroring the 413 payload clients already parse.
func writeTooLarge(w http.ResponseWriter, limit int64) {
	writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
		"error":      fmt.Sprintf("%s: maximum is %d bytes", core.ErrFileTooLarge.Error(), limit),
		"suggestion": "use the chunked upload endpoints for larger files",
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidChunkCount),
		errors.Is(err, core.ErrInvalidChunkIndex),
		errors.Is(err, core.ErrAlreadyFinalized),
		errors.Is(err, core.ErrUploadIncomplete),
		errors.Is(err, core.ErrUnknownMode),
		errors.Is(err, core.ErrInvalidConfig):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
