package pb

import (
	"context"

	"google.golang.org/grpc"
)

const deviceRegistryServiceName = "edgeorchestra.rpcapi.DeviceRegistry"

// DeviceRegistryServer is the interface service implementations satisfy.
type DeviceRegistryServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Unregister(context.Context, *UnregisterRequest) (*UnregisterResponse, error)
	ListDevices(context.Context, *ListDevicesRequest) (*ListDevicesResponse, error)
	GetDevice(context.Context, *GetDeviceRequest) (*GetDeviceResponse, error)
}

// DeviceRegistryClient is the client-side stub interface.
type DeviceRegistryClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Unregister(ctx context.Context, in *UnregisterRequest, opts ...grpc.CallOption) (*UnregisterResponse, error)
	ListDevices(ctx context.Context, in *ListDevicesRequest, opts ...grpc.CallOption) (*ListDevicesResponse, error)
	GetDevice(ctx context.Context, in *GetDeviceRequest, opts ...grpc.CallOption) (*GetDeviceResponse, error)
}

type deviceRegistryClient struct {
	cc grpc.ClientConnInterface
}

func NewDeviceRegistryClient(cc grpc.ClientConnInterface) DeviceRegistryClient {
	return &deviceRegistryClient{cc}
}

func (c *deviceRegistryClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	if err := c.cc.Invoke(ctx, "/"+deviceRegistryServiceName+"/Register", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *deviceRegistryClient) Unregister(ctx context.Context, in *UnregisterRequest, opts ...grpc.CallOption) (*UnregisterResponse, error) {
	out := new(UnregisterResponse)
	if err := c.cc.Invoke(ctx, "/"+deviceRegistryServiceName+"/Unregister", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *deviceRegistryClient) ListDevices(ctx context.Context, in *ListDevicesRequest, opts ...grpc.CallOption) (*ListDevicesResponse, error) {
	out := new(ListDevicesResponse)
	if err := c.cc.Invoke(ctx, "/"+deviceRegistryServiceName+"/ListDevices", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *deviceRegistryClient) GetDevice(ctx context.Context, in *GetDeviceRequest, opts ...grpc.CallOption) (*GetDeviceResponse, error) {
	out := new(GetDeviceResponse)
	if err := c.cc.Invoke(ctx, "/"+deviceRegistryServiceName+"/GetDevice", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _DeviceRegistry_Register_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DeviceRegistryServer).Register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + deviceRegistryServiceName + "/Register"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DeviceRegistryServer).Register(ctx, req.(*RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _DeviceRegistry_Unregister_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UnregisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DeviceRegistryServer).Unregister(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + deviceRegistryServiceName + "/Unregister"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DeviceRegistryServer).Unregister(ctx, req.(*UnregisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _DeviceRegistry_ListDevices_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListDevicesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DeviceRegistryServer).ListDevices(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + deviceRegistryServiceName + "/ListDevices"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DeviceRegistryServer).ListDevices(ctx, req.(*ListDevicesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _DeviceRegistry_GetDevice_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetDeviceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DeviceRegistryServer).GetDevice(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + deviceRegistryServiceName + "/GetDevice"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DeviceRegistryServer).GetDevice(ctx, req.(*GetDeviceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// DeviceRegistryServiceDesc is this service's grpc.ServiceDesc, the table
// RegisterDeviceRegistryServer wires onto a *grpc.Server.
var DeviceRegistryServiceDesc = grpc.ServiceDesc{
	ServiceName: deviceRegistryServiceName,
	HandlerType: (*DeviceRegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: _DeviceRegistry_Register_Handler},
		{MethodName: "Unregister", Handler: _DeviceRegistry_Unregister_Handler},
		{MethodName: "ListDevices", Handler: _DeviceRegistry_ListDevices_Handler},
		{MethodName: "GetDevice", Handler: _DeviceRegistry_GetDevice_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rpcapi/device_registry.proto",
}

func RegisterDeviceRegistryServer(s grpc.ServiceRegistrar, srv DeviceRegistryServer) {
	s.RegisterService(&DeviceRegistryServiceDesc, srv)
}
