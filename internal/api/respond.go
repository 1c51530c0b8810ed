package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"classbook/internal/database"
	"classbook/internal/models"
)

const (
	codeAuthRequired       = "authentication_required"
	codeInvalidToken       = "invalid_token"
	codeInvalidCredentials = "invalid_credentials"
	codeValidation         = "validation_failed"
	codeForbidden          = "forbidden"
	codeNotFound           = "not_found"
	codeConflict           = "conflict"
	codeRateLimited        = "rate_limited"
	codeServerError        = "server_error"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

func writeValidation(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: codeValidation, Message: err.Error()})
}

var validationErrors = []error{
	models.ErrClassroomName,
	models.ErrClassroomCapacity,
	models.ErrReservationRange,
	models.ErrReservationTimes,
	models.ErrReservationRoom,
}

// writeStoreError maps storage and model errors onto status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound)
		return
	case errors.Is(err, database.ErrDuplicate):
		writeError(w, http.StatusConflict, codeConflict)
		return
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			writeValidation(w, err)
			return
		}
	}
	s.logger.Error().Err(err).Str("op", op).Msg("request failed")
	writeError(w, http.StatusInternalServerError, codeServerError)
}
