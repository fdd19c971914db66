// Package errmap translates engine errors into transport status values.
package errmap

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"pastorcare/backend/internal/auth"
	"pastorcare/backend/internal/domain"
)

// Class is the transport view of an error. Message is safe to show callers.
type Class struct {
	HTTPStatus int
	GRPCCode   codes.Code
	Code       int
	Message    string
}

// Internal reports whether the error is unexpected and should be logged at
// error level.
func (c Class) Internal() bool {
	return c.HTTPStatus >= http.StatusInternalServerError && c.HTTPStatus != http.StatusServiceUnavailable
}

var internalError = Class{http.StatusInternalServerError, codes.Internal, 50000, "internal error"}

func Classify(err error) Class {
	var vErr *domain.ValidationError
	switch {
	case err == nil:
		return Class{HTTPStatus: http.StatusOK, GRPCCode: codes.OK}
	case errors.As(err, &vErr):
		return Class{http.StatusBadRequest, codes.InvalidArgument, 40001, vErr.Error()}
	case errors.Is(err, domain.ErrOutsideAvailability):
		return Class{http.StatusUnprocessableEntity, codes.FailedPrecondition, 42201, domain.ErrOutsideAvailability.Error()}
	case errors.Is(err, domain.ErrSlotTaken):
		return Class{http.StatusConflict, codes.AlreadyExists, 40901, domain.ErrSlotTaken.Error()}
	case errors.Is(err, domain.ErrInvalidTransition):
		return Class{http.StatusConflict, codes.FailedPrecondition, 40902, err.Error()}
	case errors.Is(err, domain.ErrConcurrentModification):
		return Class{http.StatusConflict, codes.Aborted, 40903, domain.ErrConcurrentModification.Error()}
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return Class{http.StatusConflict, codes.FailedPrecondition, 40904, domain.ErrIdempotencyConflict.Error()}
	case errors.Is(err, domain.ErrForbidden):
		return Class{http.StatusForbidden, codes.PermissionDenied, 40301, "forbidden"}
	case errors.Is(err, domain.ErrNotFound):
		return Class{http.StatusNotFound, codes.NotFound, 40401, "not found"}
	case errors.Is(err, auth.ErrTokenMissing), errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenInvalid):
		return Class{http.StatusUnauthorized, codes.Unauthenticated, 40101, err.Error()}
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return Class{http.StatusServiceUnavailable, codes.Unavailable, 50301, "service temporarily unavailable, retry later"}
	default:
		return internalError
	}
}
