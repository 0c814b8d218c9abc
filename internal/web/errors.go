package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and request ID, then
// mapped through apperr.MapError to a user message and support code. The
// HTTP status follows the error kind:
//
//	decode, encode   422
//	staging          502
//	not_found        404
//	auth             401
//	network          504 on timeout, otherwise 502
//	invalid          400
//	busy             503
//	rate limited     429

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
	"github.com/JonMunkholm/sasbridge/internal/convert"
	"github.com/JonMunkholm/sasbridge/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code, Kind) and human-readable (Message,
// Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

// respondError logs err server-side and writes the mapped JSON response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := apperr.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", logging.Mask(err.Error()),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	resp := ErrorResponse{
		Error:   detail(err, userMsg.Message),
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
		Stage:   string(convert.StageOf(err)),
	}
	if k := apperr.KindOf(err); k != apperr.Unknown {
		resp.Kind = string(k)
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	writeJSON(w, status, resp)
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, convert.ErrTooManyConversions):
		return http.StatusServiceUnavailable
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	}

	switch apperr.KindOf(err) {
	case apperr.Decode, apperr.Encode:
		return http.StatusUnprocessableEntity
	case apperr.Staging:
		return http.StatusBadGateway
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Auth:
		return http.StatusUnauthorized
	case apperr.Network:
		if isTimeout(err) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case apperr.Invalid:
		return http.StatusBadRequest
	}
	if isTimeout(err) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// detail returns the outermost apperr message, which is written for
// callers, or fallback when there is none.
func detail(err error, fallback string) string {
	var e *apperr.E
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	switch {
	case errors.Is(err, convert.ErrTooManyConversions), errors.Is(err, errRateLimited):
		return err.Error()
	}
	return fallback
}
