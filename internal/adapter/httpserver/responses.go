// Package httpserver exposes the analysis core over HTTP for the chat
// transport: analyze, conversation context, provider health and readiness.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"

	var (
		rl *domain.RateLimitExceededError
		ve *domain.ValidationError
	)
	switch {
	case errors.As(err, &rl):
		code = http.StatusTooManyRequests
		codeStr = "RATE_LIMITED"
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfterSeconds))
		details = map[string]int{"retry_after_seconds": rl.RetryAfterSeconds}
	case errors.As(err, &ve):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
		if details == nil {
			details = map[string]string{ve.Field: ve.Reason}
		}
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrRateLimited):
		code = http.StatusTooManyRequests
		codeStr = "RATE_LIMITED"
	}
	if code >= http.StatusInternalServerError {
		LoggerFrom(r).Error("request failed", "error", err)
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}
