package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeConflict           = "CONFLICT"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidCode        = "INVALID_CODE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeForbidden          = "FORBIDDEN"
	CodeInternal           = "INTERNAL_ERROR"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func InvalidInput(message string, details string) *APIError {
	return New(CodeInvalidInput, message, details, http.StatusBadRequest)
}

func Conflict(message string, details string) *APIError {
	return New(CodeConflict, message, details, http.StatusConflict)
}

// AuthConflict is the conflict variant used by the self-service auth flows,
// which report every client-side failure as 400.
func AuthConflict(message string, details string) *APIError {
	return New(CodeConflict, message, details, http.StatusBadRequest)
}

func NotFound(message string, details string) *APIError {
	return New(CodeNotFound, message, details, http.StatusNotFound)
}

// AuthNotFound reports a missing principal or refresh token inside an auth
// flow. Those flows answer 400 rather than 404.
func AuthNotFound(message string) *APIError {
	return New(CodeNotFound, message, "", http.StatusBadRequest)
}

func InvalidCredentials() *APIError {
	return New(CodeInvalidCredentials, "invalid credentials", "", http.StatusBadRequest)
}

func InvalidCode(message string) *APIError {
	return New(CodeInvalidCode, message, "", http.StatusBadRequest)
}

func Unauthorized(message string) *APIError {
	return New(CodeUnauthorized, message, "", http.StatusUnauthorized)
}

func TokenExpired() *APIError {
	return New(CodeTokenExpired, "token expired", "", http.StatusUnauthorized)
}

func Forbidden(message string, details string) *APIError {
	return New(CodeForbidden, message, details, http.StatusForbidden)
}

func Internal() *APIError {
	return New(CodeInternal, "Unexpected server error", "", http.StatusInternalServerError)
}

// Is reports whether err carries an APIError with the given code.
func Is(err error, code string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.Code == code
}
