package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/and161185/servicecenter/internal/errs"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// decodeJSON rejects unknown fields so typos in partial updates are not
// silently dropped.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func writeError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	var verr *errs.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errs.ErrValidation.Error(), Fields: verr.Fields})
	case errors.Is(err, errs.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errs.ErrOrderNotFound.Error()})
	case errors.Is(err, errs.ErrServiceNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errs.ErrServiceNotFound.Error()})
	case errors.Is(err, errs.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errs.ErrUserNotFound.Error()})
	case errors.Is(err, errs.ErrEmailAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: errs.ErrEmailAlreadyExists.Error()})
	case errors.Is(err, errs.ErrInvalidCredentials), errors.Is(err, errs.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	default:
		logger.Errorf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
