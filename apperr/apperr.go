// Package apperr holds the HTTP-facing error taxonomy shared by the workflows.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// NotFound returns a 404 HTTP error with a descriptive message.
func NotFound(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...))
}

// BadRequest returns a 400 HTTP error.
func BadRequest(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// Conflict returns a 409 HTTP error.
func Conflict(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf(format, args...))
}

// Forbidden returns a 403 HTTP error.
func Forbidden(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusForbidden, fmt.Sprintf(format, args...))
}

// Unauthorized returns a 401 HTTP error.
func Unauthorized(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusUnauthorized, fmt.Sprintf(format, args...))
}

// ExpectationFailed returns a 417 HTTP error.
func ExpectationFailed(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusExpectationFailed, fmt.Sprintf(format, args...))
}

// BadGateway returns a 502 HTTP error.
func BadGateway(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusBadGateway, fmt.Sprintf(format, args...))
}

// Status reports the HTTP status carried by err, or 500 when err is not an HTTP error.
func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var herr *httperror.HTTPError
	if errors.As(err, &herr) {
		return httperror.GetStatusCode(herr)
	}
	return http.StatusInternalServerError
}

// Is reports whether err carries the given HTTP status.
func Is(err error, status int) bool {
	return err != nil && Status(err) == status
}
