package tracking_api

import (
	"log/slog"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/BearBump/CrewTrack/internal/auth"
	"github.com/BearBump/CrewTrack/internal/models"
)

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, models.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "authentication required")
	case errors.Is(err, models.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, models.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrSessionClosed),
		errors.Is(err, models.ErrSessionActive):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, models.ErrAlreadySigned):
		return status.Error(codes.AlreadyExists, "sign-off already recorded")
	case errors.Is(err, models.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	}
	slog.Error("grpc request failed", "error", err.Error())
	return status.Error(codes.Internal, "internal error")
}
