package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"reftracker.org/internal/apperr"
)

var errBodyTooLarge = errors.New("request body too large")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// handleError renders classified errors with their code, message and details.
// Anything else is logged and hidden behind a generic 500.
func (a *API) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large")
		return
	}
	appErr, ok := apperr.As(err)
	if !ok {
		a.logger.ErrorContext(r.Context(), "unhandled error",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeError(w, r, http.StatusInternalServerError, "internal_server_error")
		return
	}
	var details any
	if len(appErr.Details) > 0 {
		details = appErr.Details
	}
	payload := map[string]any{
		"error":   appErr.Code(),
		"message": appErr.Message,
		"details": details,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, apperr.HTTPStatus(err), payload)
}

// decodeJSON strictly decodes a single JSON object into dst.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.Validation("Invalid request body", issueDetails("request body is required"))
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return apperr.Validation("Invalid request body", issueDetails("unexpected data after JSON body"))
		}
		return decodeError(err)
	}
	return nil
}

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return errBodyTooLarge
	case errors.Is(err, io.EOF):
		return apperr.Validation("Invalid request body", issueDetails("request body is required"))
	default:
		return apperr.Validation("Invalid request body", issueDetails(err.Error()))
	}
}

func issueDetails(msg string) map[string]any {
	return map[string]any{
		"issues": []map[string]any{{"message": msg}},
	}
}
