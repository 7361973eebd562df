package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/mcoot/tablebank/internal/api/apierr"
	"github.com/mcoot/tablebank/internal/dispatch"
)

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	if errors.Is(err, dispatch.ErrStopped) || errors.Is(err, context.Canceled) {
		err = apierr.NewUnavailableError()
	}
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}
