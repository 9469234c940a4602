package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/auth"
	"github.com/BearBump/CrewTrack/internal/models"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: ve.Error(), Code: "validation_error", Field: ve.Field})
	case errors.Is(err, models.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "validation_error"})
	case errors.Is(err, auth.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required", Code: "unauthenticated"})
	case errors.Is(err, models.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Code: "forbidden"})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Code: "not_found"})
	case errors.Is(err, models.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "invalid_transition"})
	case errors.Is(err, models.ErrSessionClosed):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "session_closed"})
	case errors.Is(err, models.ErrAlreadySigned):
		writeJSON(w, http.StatusConflict, errorBody{Error: "sign-off already recorded", Code: "already_signed"})
	case errors.Is(err, models.ErrSessionActive):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "session_active"})
	case errors.Is(err, models.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "conflict"})
	default:
		slog.Error("http request failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.Invalid("body", "is not valid JSON: "+err.Error())
	}
	return nil
}
