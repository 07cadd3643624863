package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"chargebook/internal/apperrors"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps typed errors to HTTP responses with safe messages.
// Unexpected internals become a generic 500, never leaking details.
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var codeErr *apperrors.CodeError
	if errors.As(err, &codeErr) {
		// one message for every code failure, no guessing oracle
		writeError(w, http.StatusBadRequest, apperrors.SafeCodeMessage)
		return
	}

	var stateErr *apperrors.StateError
	if errors.As(err, &stateErr) {
		writeError(w, http.StatusConflict, stateErr.Error())
		return
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperrors.KindValidation:
			writeError(w, http.StatusBadRequest, appErr.Message)
		case apperrors.KindNotFound:
			writeError(w, http.StatusNotFound, appErr.Message)
		case apperrors.KindConflict:
			writeError(w, http.StatusConflict, appErr.Message)
		case apperrors.KindAnomaly:
			writeError(w, http.StatusUnprocessableEntity, appErr.Message)
		case apperrors.KindPayment:
			writeError(w, http.StatusBadGateway, "settlement failed")
		default:
			logger.Error("internal error", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(r *http.Request, target interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return apperrors.Validation("malformed request body")
	}
	return nil
}
