package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"courtbook/internal/domain"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		httpCode int
		grpcCode codes.Code
	}{
		{domain.NewValidationError("court", "out of range"), http.StatusBadRequest, codes.InvalidArgument},
		{fmt.Errorf("create: %w", domain.ErrSlotConflict), http.StatusConflict, codes.AlreadyExists},
		{domain.ErrEmailTaken, http.StatusConflict, codes.AlreadyExists},
		{domain.ErrInvalidTransition, http.StatusConflict, codes.FailedPrecondition},
		{domain.ErrConcurrentModification, http.StatusConflict, codes.Aborted},
		{fmt.Errorf("get: %w", domain.ErrNotFound), http.StatusNotFound, codes.NotFound},
		{domain.ErrUnauthenticated, http.StatusUnauthorized, codes.Unauthenticated},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, codes.Unauthenticated},
		{domain.ErrForbidden, http.StatusForbidden, codes.PermissionDenied},
		{domain.ErrUserDisabled, http.StatusForbidden, codes.PermissionDenied},
		{domain.ErrRateLimited, http.StatusTooManyRequests, codes.ResourceExhausted},
		{domain.StorageError("insert", errors.New("disk I/O error")), http.StatusInternalServerError, codes.Internal},
		{errors.New("boom"), http.StatusInternalServerError, codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.httpCode, httpStatus(tt.err))
			assert.Equal(t, tt.grpcCode, status.Code(grpcError(tt.err)))
		})
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	err := domain.StorageError("insert", errors.New("disk I/O error at /var/lib/courtbook.db"))
	assert.Equal(t, "internal error", publicMessage(err))
	assert.Equal(t, "internal error", publicMessage(errors.New("boom")))
	assert.Equal(t, "court: out of range", publicMessage(domain.NewValidationError("court", "out of range")))
	assert.Equal(t, domain.ErrSlotConflict.Error(), publicMessage(fmt.Errorf("x: %w", domain.ErrSlotConflict)))
}

func TestGRPCErrorKeepsStatus(t *testing.T) {
	original := status.Error(codes.Unavailable, "down")
	assert.Equal(t, original, grpcError(original))
	assert.NoError(t, grpcError(nil))
}
