package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/leapstack-labs/pasture/internal/category"
	"github.com/leapstack-labs/pasture/internal/dataset"
	"github.com/leapstack-labs/pasture/internal/growth"
)

// ErrBadParam is returned for missing or malformed query parameters.
var ErrBadParam = errors.New("invalid query parameter")

// StatusFor maps a retrieval error to an HTTP status code.
func StatusFor(err error) int {
	var resolution *category.ResolutionError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrBadParam),
		errors.Is(err, dataset.ErrInvalidRequest),
		errors.As(err, &resolution),
		errors.Is(err, category.ErrNoCategories),
		errors.Is(err, category.ErrInvalidRate):
		return http.StatusBadRequest
	case errors.Is(err, growth.ErrIncomplete),
		errors.Is(err, growth.ErrCorruptRow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dataset.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, growth.ErrRetrievalTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
