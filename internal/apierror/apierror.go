// Package apierror writes the JSON error body shared by every endpoint.
package apierror

import (
	"errors"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

// Error codes.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeInvalidCredentials = "invalid_credentials"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeTooLarge           = "request_too_large"
	CodeInternalError      = "internal_error"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

// APIError is the error response body.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New returns an APIError.
func New(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// NotFound returns a 404 error.
func NotFound(message string) *APIError {
	return New(http.StatusNotFound, CodeNotFound, message)
}

// BadRequest returns a 400 error.
func BadRequest(message string) *APIError {
	return New(http.StatusBadRequest, CodeInvalidRequest, message)
}

// Forbidden returns a 403 error.
func Forbidden(message string) *APIError {
	return New(http.StatusForbidden, CodeForbidden, message)
}

// Write writes a JSON error response.
func Write(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing to do on failure.
	_ = json.NewEncoder(w).Encode(APIError{Code: code, Message: message})
}

// WriteErr writes err. An *APIError anywhere in the chain is written as is;
// any other error becomes a 500 with a generic message.
func WriteErr(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		Write(w, apiErr.Status, apiErr.Code, apiErr.Message)
		return
	}
	Write(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
