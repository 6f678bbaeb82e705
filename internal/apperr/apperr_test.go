package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type customKindErr struct{}

func (customKindErr) Error() string { return "custom" }
func (customKindErr) Kind() string  { return "custom" }

func TestKind(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("job j-1: %w", ErrJobFailed)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "not_found", err: ErrNotFound, want: "not_found"},
		{name: "job_failed", err: ErrJobFailed, want: "job_failed"},
		{name: "job_failed_wrapped", err: wrapped, want: "job_failed"},
		{name: "bad_request", err: ErrInvalidRequest, want: "bad_request"},
		{name: "custom_kinder", err: customKindErr{}, want: "custom"},
		{name: "deadline", err: context.DeadlineExceeded, want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "unknown", err: errors.New("unknown"), want: "internal"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("cancel j-2: %w", ErrNotFound)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "not_found", err: ErrNotFound, want: http.StatusNotFound},
		{name: "not_found_wrapped", err: wrapped, want: http.StatusNotFound},
		{name: "job_failed", err: ErrJobFailed, want: http.StatusUnprocessableEntity},
		{name: "bad_request", err: ErrInvalidRequest, want: http.StatusBadRequest},
		{name: "custom_kinder", err: customKindErr{}, want: http.StatusInternalServerError},
		{name: "deadline", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "canceled", err: context.Canceled, want: http.StatusRequestTimeout},
		{name: "unknown", err: errors.New("unknown"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
