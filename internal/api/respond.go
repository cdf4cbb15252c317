package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/razvandimescu/docreader/internal/docerr"
	"github.com/razvandimescu/docreader/internal/logging"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.L().Warn("failed to write response", zap.Error(err))
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, docerr.ErrNotConfigured), errors.Is(err, docerr.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, docerr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, docerr.ErrInvalidPath),
		errors.Is(err, docerr.ErrNotADirectory),
		errors.Is(err, docerr.ErrNotAFile),
		errors.Is(err, docerr.ErrUnsupportedType),
		errors.Is(err, docerr.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage drops causes, which may carry absolute host paths.
func publicMessage(err error, status int) errorBody {
	var verr *docerr.ValidationError
	if errors.As(err, &verr) {
		return errorBody{Error: docerr.ErrValidation.Error(), Problems: verr.Problems}
	}
	var perr *docerr.PathError
	if errors.As(err, &perr) && status < http.StatusInternalServerError {
		return errorBody{Error: perr.Path + ": " + perr.Kind.Error()}
	}
	switch status {
	case http.StatusServiceUnavailable:
		if errors.Is(err, docerr.ErrNotConfigured) {
			return errorBody{Error: docerr.ErrNotConfigured.Error()}
		}
		return errorBody{Error: docerr.ErrUnavailable.Error()}
	case http.StatusInternalServerError:
		return errorBody{Error: "internal server error"}
	}
	return errorBody{Error: err.Error()}
}

func sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := logging.WithContext(r.Context())
	if docerr.IsClientFault(err) {
		logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	} else {
		logger.Error("request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	sendJSON(w, status, publicMessage(err, status))
}

// decodeBody reads a JSON request body into v. Malformed bodies are
// reported as validation errors.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return docerr.Validation("request body: " + err.Error())
	}
	return nil
}
