package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/larder/internal/apperr"
)

// PersistWarningHeader is set on mutation responses whose change was applied
// in memory but could not be written to storage.
const PersistWarningHeader = "X-Persist-Warning"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps a domain error to a status code and error body.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrUpstream), errors.Is(err, context.DeadlineExceeded):
		slog.Warn(op+" failed upstream", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("recipe service unavailable"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// persistOutcome handles the error of a favorites mutation. A storage write
// failure does not fail the request: it is reported through the warning
// header and returned for the body. ok is false if err was written as a
// failure response.
func persistOutcome(w http.ResponseWriter, op string, err error) (warning string, ok bool) {
	if err == nil {
		return "", true
	}
	if errors.Is(err, apperr.ErrPersist) {
		w.Header().Set(PersistWarningHeader, err.Error())
		return err.Error(), true
	}
	writeError(w, op, err)
	return "", false
}
