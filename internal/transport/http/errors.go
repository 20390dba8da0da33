package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"neonote/internal/application/auth"
	"neonote/internal/application/chat"
	"neonote/internal/application/jobs"
	"neonote/internal/domain/job"
	"neonote/internal/infrastructure/backend"
	"neonote/internal/infrastructure/gateway"
)

var errBadRequest = errors.New("malformed request body")

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// classify maps an application error to a status code and payload.
func classify(err error) (int, ErrorResponse) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"

	var verr *job.ValidationError
	var netErr *gateway.NetworkError
	var httpErr *gateway.HTTPError
	var rejected *backend.RejectedError

	switch {
	case errors.As(err, &verr):
		if verr.Reason == job.ReasonTooLarge {
			status, code = http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
		} else {
			status, code = http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE"
		}
	case errors.Is(err, jobs.ErrNotFound):
		status, code = http.StatusNotFound, "JOB_NOT_FOUND"
	case errors.Is(err, jobs.ErrNotResumed):
		status, code = http.StatusConflict, "POLLING_NOT_RESUMED"
	case errors.Is(err, job.ErrNotReady):
		status, code = http.StatusConflict, "JOB_NOT_READY"
	case errors.Is(err, job.ErrArtifactUnavailable):
		status, code = http.StatusNotFound, "ARTIFACT_UNAVAILABLE"
	case errors.Is(err, job.ErrUnknownFeature):
		status, code = http.StatusBadRequest, "UNKNOWN_FEATURE"
	case errors.Is(err, auth.ErrNotAuthenticated):
		status, code = http.StatusUnauthorized, "NOT_AUTHENTICATED"
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrInvalidFeedback),
		errors.Is(err, chat.ErrMissingIDs),
		errors.Is(err, errBadRequest):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case errors.As(err, &netErr):
		status, code = http.StatusBadGateway, "BACKEND_UNREACHABLE"
	case errors.As(err, &httpErr):
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			status, code = httpErr.StatusCode, "BACKEND_REJECTED"
		} else {
			status, code = http.StatusBadGateway, "BACKEND_ERROR"
		}
		return status, ErrorResponse{Error: http.StatusText(status), Code: code, Message: httpErr.Message}
	case errors.As(err, &rejected):
		status, code = http.StatusUnprocessableEntity, "BACKEND_REJECTED"
	case errors.Is(err, backend.ErrMalformedResponse), errors.Is(err, jobs.ErrMissingJobID):
		status, code = http.StatusBadGateway, "BAD_BACKEND_RESPONSE"
	}

	return status, ErrorResponse{Error: http.StatusText(status), Code: code, Message: err.Error()}
}

func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	status, payload := classify(err)

	event := logger.Warn()
	if status >= 500 {
		event = logger.Error()
	}
	event.Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Str("error_code", payload.Code).
		Err(err).
		Msg("request failed")

	writeJSON(w, logger, status, payload)
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}
