package api

import (
	"errors"
	"net/http"

	"courtbook/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorMapping struct {
	target error
	http   int
	grpc   codes.Code
}

// Order matters: the first matching sentinel wins.
var errorMappings = []errorMapping{
	{domain.ErrValidation, http.StatusBadRequest, codes.InvalidArgument},
	{domain.ErrSlotConflict, http.StatusConflict, codes.AlreadyExists},
	{domain.ErrEmailTaken, http.StatusConflict, codes.AlreadyExists},
	{domain.ErrInvalidTransition, http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrConcurrentModification, http.StatusConflict, codes.Aborted},
	{domain.ErrNotFound, http.StatusNotFound, codes.NotFound},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, codes.Unauthenticated},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, codes.Unauthenticated},
	{domain.ErrForbidden, http.StatusForbidden, codes.PermissionDenied},
	{domain.ErrUserDisabled, http.StatusForbidden, codes.PermissionDenied},
	{domain.ErrRateLimited, http.StatusTooManyRequests, codes.ResourceExhausted},
	{domain.ErrStorage, http.StatusInternalServerError, codes.Internal},
}

func lookupError(err error) (errorMapping, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m, true
		}
	}
	return errorMapping{}, false
}

func httpStatus(err error) int {
	if m, ok := lookupError(err); ok {
		return m.http
	}
	return http.StatusInternalServerError
}

// publicMessage hides storage and unknown failures from clients.
func publicMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	m, ok := lookupError(err)
	if !ok || m.target == domain.ErrStorage {
		return "internal error"
	}
	return m.target.Error()
}

func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	m, ok := lookupError(err)
	if !ok {
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(m.grpc, publicMessage(err))
}
