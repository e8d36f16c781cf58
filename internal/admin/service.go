package admin

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/internal/sim/universe"
)

// AdminServiceName is the fully qualified name of the universe admin
// service. Its messages are protobuf well-known types, so no generated
// code is needed on either side.
const AdminServiceName = "universe.v1.Admin"

// Full method names of the admin service.
const (
	SnapshotMethod     = "/" + AdminServiceName + "/Snapshot"
	SaveStateMethod    = "/" + AdminServiceName + "/SaveState"
	RestoreStateMethod = "/" + AdminServiceName + "/RestoreState"
)

// Controller is the universe operations exposed over gRPC.
// *universe.Universe satisfies it.
type Controller interface {
	StatusSource
	Snapshot() universe.Snapshot
	SaveState(ctx context.Context, dir string) error
	RestoreState(ctx context.Context, dir string) error
}

// AdminServer is the server side of universe.v1.Admin.
type AdminServer interface {
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SaveState(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	RestoreState(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// WithController registers the admin service backed by c.
func WithController(c Controller) Option {
	return func(s *Server) { s.controller = c }
}

type adminService struct {
	ctrl Controller
	log  logging.Logger
}

// Snapshot returns the universe counts as a struct keyed by snake_case names.
func (a *adminService) Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	snap := a.ctrl.Snapshot()
	return structpb.NewStruct(map[string]any{
		"running":       snap.Running,
		"locations":     snap.Locations,
		"ships":         snap.Ships,
		"stations":      snap.Stations,
		"fleets":        snap.Fleets,
		"graveyard":     snap.Graveyard,
		"loot":          snap.Loot,
		"attacks":       snap.Attacks,
		"minings":       snap.Minings,
		"constructions": snap.Constructions,
	})
}

// SaveState writes the universe state into the requested directory.
func (a *adminService) SaveState(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	dir := req.GetValue()
	if dir == "" {
		return nil, status.Error(codes.InvalidArgument, "state directory is required")
	}
	if err := a.ctrl.SaveState(ctx, dir); err != nil {
		return nil, err
	}
	logging.FromContext(ctx, a.log).Info(ctx, "state saved over admin", logging.String("dir", dir))
	return &emptypb.Empty{}, nil
}

// RestoreState loads saved state from the requested directory into the
// universe.
func (a *adminService) RestoreState(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	dir := req.GetValue()
	if dir == "" {
		return nil, status.Error(codes.InvalidArgument, "state directory is required")
	}
	if err := a.ctrl.RestoreState(ctx, dir); err != nil {
		return nil, err
	}
	logging.FromContext(ctx, a.log).Info(ctx, "state restored over admin", logging.String("dir", dir))
	return &emptypb.Empty{}, nil
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SnapshotMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Snapshot(ctx, req.(*emptypb.Empty))
	})
}

func saveStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).SaveState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SaveStateMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).SaveState(ctx, req.(*wrapperspb.StringValue))
	})
}

func restoreStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).RestoreState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RestoreStateMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).RestoreState(ctx, req.(*wrapperspb.StringValue))
	})
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Snapshot", Handler: snapshotHandler},
		{MethodName: "SaveState", Handler: saveStateHandler},
		{MethodName: "RestoreState", Handler: restoreStateHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// Client calls universe.v1.Admin on an established connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Snapshot fetches the universe counts.
func (c *Client) Snapshot(ctx context.Context) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SnapshotMethod, &emptypb.Empty{}, out); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return out.AsMap(), nil
}

// SaveState asks the server to save its state into dir.
func (c *Client) SaveState(ctx context.Context, dir string) error {
	return c.cc.Invoke(ctx, SaveStateMethod, wrapperspb.String(dir), &emptypb.Empty{})
}

// RestoreState asks the server to restore state from dir.
func (c *Client) RestoreState(ctx context.Context, dir string) error {
	return c.cc.Invoke(ctx, RestoreStateMethod, wrapperspb.String(dir), &emptypb.Empty{})
}
