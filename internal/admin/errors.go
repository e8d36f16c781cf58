package admin

import (
	"errors"
	"io/fs"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/universe-simulator/core"
	"github.com/signalsfoundry/universe-simulator/internal/journal"
	"github.com/signalsfoundry/universe-simulator/internal/sim/registry"
	"github.com/signalsfoundry/universe-simulator/internal/sim/universe"
)

// ToStatusError maps the errors of snapshot, save and restore calls onto
// gRPC status codes. Errors that already carry a status are returned
// unchanged.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, universe.ErrNoState):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, journal.ErrMalformed),
		errors.Is(err, core.ErrUnknownStrategy),
		errors.Is(err, registry.ErrInvalidEntity),
		errors.Is(err, registry.ErrUnsupportedKind):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, registry.ErrDuplicateID),
		errors.Is(err, registry.ErrDuplicateReference):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, fs.ErrPermission):
		return status.Error(codes.PermissionDenied, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
