package pb

import (
	"context"

	"google.golang.org/grpc"
)

const heartbeatServiceName = "edgeorchestra.rpcapi.HeartbeatService"

// HeartbeatServer is the bidi-streaming service interface (spec.md §4.9
// "Bidi heartbeat"): one HeartbeatResponse per HeartbeatRequest, in order.
type HeartbeatServer interface {
	Heartbeat(HeartbeatService_HeartbeatServer) error
}

type HeartbeatService_HeartbeatServer interface {
	Send(*HeartbeatResponse) error
	Recv() (*HeartbeatRequest, error)
	grpc.ServerStream
}

type heartbeatServiceHeartbeatServer struct {
	grpc.ServerStream
}

func (x *heartbeatServiceHeartbeatServer) Send(m *HeartbeatResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *heartbeatServiceHeartbeatServer) Recv() (*HeartbeatRequest, error) {
	m := new(HeartbeatRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _HeartbeatService_Heartbeat_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(HeartbeatServer).Heartbeat(&heartbeatServiceHeartbeatServer{stream})
}

// HeartbeatServiceClient is the client-side stub interface.
type HeartbeatServiceClient interface {
	Heartbeat(ctx context.Context, opts ...grpc.CallOption) (HeartbeatService_HeartbeatClient, error)
}

type heartbeatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewHeartbeatServiceClient(cc grpc.ClientConnInterface) HeartbeatServiceClient {
	return &heartbeatServiceClient{cc}
}

type HeartbeatService_HeartbeatClient interface {
	Send(*HeartbeatRequest) error
	Recv() (*HeartbeatResponse, error)
	grpc.ClientStream
}

func (c *heartbeatServiceClient) Heartbeat(ctx context.Context, opts ...grpc.CallOption) (HeartbeatService_HeartbeatClient, error) {
	stream, err := c.cc.NewStream(ctx, &HeartbeatServiceDesc.Streams[0], "/"+heartbeatServiceName+"/Heartbeat", opts...)
	if err != nil {
		return nil, err
	}
	return &heartbeatServiceHeartbeatClient{stream}, nil
}

type heartbeatServiceHeartbeatClient struct {
	grpc.ClientStream
}

func (x *heartbeatServiceHeartbeatClient) Send(m *HeartbeatRequest) error {
	return x.ClientStream.SendMsg(m)
}

func (x *heartbeatServiceHeartbeatClient) Recv() (*HeartbeatResponse, error) {
	m := new(HeartbeatResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

var HeartbeatServiceDesc = grpc.ServiceDesc{
	ServiceName: heartbeatServiceName,
	HandlerType: (*HeartbeatServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{StreamName: "Heartbeat", Handler: _HeartbeatService_Heartbeat_Handler, ServerStreams: true, ClientStreams: true},
	},
	Metadata: "rpcapi/heartbeat_service.proto",
}

func RegisterHeartbeatServiceServer(s grpc.ServiceRegistrar, srv HeartbeatServer) {
	s.RegisterService(&HeartbeatServiceDesc, srv)
}
