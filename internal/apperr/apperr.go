// Package apperr defines the service's classified errors and maps them to
// response kinds and HTTP status codes.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

// kindError is a sentinel that carries its own classification kind.
type kindError struct {
	kind string
	msg  string
}

func (e kindError) Error() string { return e.msg }
func (e kindError) Kind() string  { return e.kind }

var (
	ErrNotFound       error = kindError{kind: "not_found", msg: "operation not found"}
	ErrJobFailed      error = kindError{kind: "job_failed", msg: "job failed"}
	ErrInvalidRequest error = kindError{kind: "bad_request", msg: "invalid request"}
)

// kinder is satisfied by errors that carry a classification kind.
type kinder interface {
	Kind() string
}

// kindToStatus maps classification kinds to HTTP status codes.
var kindToStatus = map[string]int{
	"not_found":   http.StatusNotFound,
	"job_failed":  http.StatusUnprocessableEntity,
	"bad_request": http.StatusBadRequest,
	"timeout":     http.StatusGatewayTimeout,
	"canceled":    http.StatusRequestTimeout,
}

// Kind returns the classification kind of err, or "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// HTTPStatus returns the status code for err.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if s, ok := kindToStatus[Kind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}
