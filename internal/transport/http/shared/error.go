package shared

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"gatehouse/internal/transport/http/json"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

// ErrorResponse is the standardized error body. Error carries the stable
// machine code, ErrorDescription the human message; Code and Timestamp are
// conveniences for clients that log failures.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Code             int    `json:"code"`
	Timestamp        string `json:"timestamp"`
}

// WriteError centralizes domain error translation to HTTP responses.
// Lockout and rate-limit errors additionally get a Retry-After header from
// the error's retry hint. Non-domain errors collapse to a generic 500 so
// internals never leak into a response body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	response := ErrorResponse{
		Error:     string(dErrors.CodeInternal),
		Timestamp: requestcontext.Now(r.Context()).UTC().Format(time.RFC3339),
	}

	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status = DomainCodeToHTTPStatus(domainErr.Code)
		response.Error = string(domainErr.Code)
		response.ErrorDescription = domainErr.Message
		if retryAfter := domainErr.RetryAfter; retryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		}
	}

	response.Code = status
	json.WriteJSON(w, status, response)
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized, dErrors.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeAccountDisabled:
		return http.StatusForbidden
	case dErrors.CodeAccountLocked, dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
