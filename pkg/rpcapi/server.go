// Package rpcapi implements the streaming RPC surface (spec.md §4.9,
// §6 "RPC services"): DeviceRegistry, HeartbeatService, ModelService.
// Messages ride gRPC over a JSON wire codec (pkg/rpcapi/pb) since no
// .proto ships with this module; the service/stream shape otherwise
// follows the teacher's own grpc.Dial/grpc.NewServer usage in
// pkg/collaborator and pkg/security.
package rpcapi

import (
	"context"
	"log"

	"google.golang.org/grpc"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
	"github.com/edgeorchestra/orchestra/pkg/auth"
	"github.com/edgeorchestra/orchestra/pkg/bus"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
	"github.com/edgeorchestra/orchestra/pkg/heartbeat"
	"github.com/edgeorchestra/orchestra/pkg/rpcapi/pb"
)

const downloadChunkSize = 32 * 1024

// Service implements all three streaming services against the shared
// device repository and bus.
type Service struct {
	devices devicestore.Store
	bus     bus.Interface
	monitor *heartbeat.Monitor
	authMgr *auth.Manager
}

func NewService(devices devicestore.Store, b bus.Interface, monitor *heartbeat.Monitor, authMgr *auth.Manager) *Service {
	return &Service{devices: devices, bus: b, monitor: monitor, authMgr: authMgr}
}

var (
	_ pb.DeviceRegistryServer = (*Service)(nil)
	_ pb.HeartbeatServer      = (*Service)(nil)
	_ pb.ModelServer          = (*Service)(nil)
)

// NewServer builds a *grpc.Server with all three services registered and
// the unary/stream interceptors wired in, forcing the JSON wire codec.
func NewServer(svc *Service, opts ...grpc.ServerOption) *grpc.Server {
	allOpts := append([]grpc.ServerOption{
		grpc.ForceServerCodec(pb.Codec{}),
		grpc.UnaryInterceptor(UnaryInterceptor),
		grpc.StreamInterceptor(StreamInterceptor),
	}, opts...)
	s := grpc.NewServer(allOpts...)
	pb.RegisterDeviceRegistryServer(s, svc)
	pb.RegisterHeartbeatServiceServer(s, svc)
	pb.RegisterModelServiceServer(s, svc)
	return s
}

// UnaryInterceptor maps every returned error through apperrors.GRPCStatus
// and logs a short request id per call, per spec.md §7's interceptor
// policy: unexpected errors report Internal without leaking details.
func UnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	reqID := requestID()
	resp, err := handler(ctx, req)
	if err != nil {
		log.Printf("rpcapi[%s]: %s failed: %v", reqID, info.FullMethod, err)
		return nil, apperrors.GRPCStatus(err)
	}
	return resp, nil
}

// StreamInterceptor applies the same error-mapping and logging policy to
// streaming calls.
func StreamInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	reqID := requestID()
	err := handler(srv, ss)
	if err != nil {
		log.Printf("rpcapi[%s]: %s failed: %v", reqID, info.FullMethod, err)
		return apperrors.GRPCStatus(err)
	}
	return nil
}
