package handlers

import (
	"encoding/json"
	"net/http"

	"trip-assignment-service/internal/platform/apperr"
	"trip-assignment-service/internal/platform/logger"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithContext(r.Context()).Error().Err(err).
			Str("method", r.Method).Str("path", r.URL.Path).Msg("encode failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeAppError answers with the status mapped from err's code. Internal
// failures are logged and reported without their cause.
func writeAppError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := apperr.HTTPStatus(err)
	code := apperr.CodeOf(err)

	if status >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error().Err(err).Str("op", op).Str("code", string(code)).Msg("request failed")
	}
	if status == http.StatusInternalServerError {
		writeJSON(w, r, status, map[string]string{"error": "internal server error", "code": string(apperr.CodeInternal)})
		return
	}
	writeJSON(w, r, status, map[string]string{"error": err.Error(), "code": string(code)})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
