package pb

import (
	"context"

	"google.golang.org/grpc"
)

const modelServiceName = "edgeorchestra.rpcapi.ModelService"

// ModelServer is the service interface: server-stream DownloadModel,
// client-stream UploadModel, unary SubmitGradients (spec.md §4.9).
type ModelServer interface {
	DownloadModel(*DownloadModelRequest, ModelService_DownloadModelServer) error
	UploadModel(ModelService_UploadModelServer) error
	SubmitGradients(context.Context, *SubmitGradientsRequest) (*SubmitGradientsResponse, error)
}

type ModelService_DownloadModelServer interface {
	Send(*ModelChunk) error
	grpc.ServerStream
}

type modelServiceDownloadModelServer struct {
	grpc.ServerStream
}

func (x *modelServiceDownloadModelServer) Send(m *ModelChunk) error {
	return x.ServerStream.SendMsg(m)
}

func _ModelService_DownloadModel_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(DownloadModelRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ModelServer).DownloadModel(m, &modelServiceDownloadModelServer{stream})
}

type ModelService_UploadModelServer interface {
	Recv() (*ModelChunk, error)
	SendAndClose(*UploadModelResponse) error
	grpc.ServerStream
}

type modelServiceUploadModelServer struct {
	grpc.ServerStream
}

func (x *modelServiceUploadModelServer) Recv() (*ModelChunk, error) {
	m := new(ModelChunk)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *modelServiceUploadModelServer) SendAndClose(m *UploadModelResponse) error {
	return x.ServerStream.SendMsg(m)
}

func _ModelService_UploadModel_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ModelServer).UploadModel(&modelServiceUploadModelServer{stream})
}

func _ModelService_SubmitGradients_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SubmitGradientsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ModelServer).SubmitGradients(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + modelServiceName + "/SubmitGradients"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ModelServer).SubmitGradients(ctx, req.(*SubmitGradientsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var ModelServiceDesc = grpc.ServiceDesc{
	ServiceName: modelServiceName,
	HandlerType: (*ModelServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitGradients", Handler: _ModelService_SubmitGradients_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "DownloadModel", Handler: _ModelService_DownloadModel_Handler, ServerStreams: true},
		{StreamName: "UploadModel", Handler: _ModelService_UploadModel_Handler, ClientStreams: true},
	},
	Metadata: "rpcapi/model_service.proto",
}

func RegisterModelServiceServer(s grpc.ServiceRegistrar, srv ModelServer) {
	s.RegisterService(&ModelServiceDesc, srv)
}

// --- client stubs ---

type ModelServiceClient interface {
	DownloadModel(ctx context.Context, in *DownloadModelRequest, opts ...grpc.CallOption) (ModelService_DownloadModelClient, error)
	UploadModel(ctx context.Context, opts ...grpc.CallOption) (ModelService_UploadModelClient, error)
	SubmitGradients(ctx context.Context, in *SubmitGradientsRequest, opts ...grpc.CallOption) (*SubmitGradientsResponse, error)
}

type modelServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewModelServiceClient(cc grpc.ClientConnInterface) ModelServiceClient {
	return &modelServiceClient{cc}
}

type ModelService_DownloadModelClient interface {
	Recv() (*ModelChunk, error)
	grpc.ClientStream
}

func (c *modelServiceClient) DownloadModel(ctx context.Context, in *DownloadModelRequest, opts ...grpc.CallOption) (ModelService_DownloadModelClient, error) {
	stream, err := c.cc.NewStream(ctx, &ModelServiceDesc.Streams[0], "/"+modelServiceName+"/DownloadModel", opts...)
	if err != nil {
		return nil, err
	}
	x := &modelServiceDownloadModelClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type modelServiceDownloadModelClient struct {
	grpc.ClientStream
}

func (x *modelServiceDownloadModelClient) Recv() (*ModelChunk, error) {
	m := new(ModelChunk)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type ModelService_UploadModelClient interface {
	Send(*ModelChunk) error
	CloseAndRecv() (*UploadModelResponse, error)
	grpc.ClientStream
}

func (c *modelServiceClient) UploadModel(ctx context.Context, opts ...grpc.CallOption) (ModelService_UploadModelClient, error) {
	stream, err := c.cc.NewStream(ctx, &ModelServiceDesc.Streams[1], "/"+modelServiceName+"/UploadModel", opts...)
	if err != nil {
		return nil, err
	}
	return &modelServiceUploadModelClient{stream}, nil
}

type modelServiceUploadModelClient struct {
	grpc.ClientStream
}

func (x *modelServiceUploadModelClient) Send(m *ModelChunk) error {
	return x.ClientStream.SendMsg(m)
}

func (x *modelServiceUploadModelClient) CloseAndRecv() (*UploadModelResponse, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(UploadModelResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *modelServiceClient) SubmitGradients(ctx context.Context, in *SubmitGradientsRequest, opts ...grpc.CallOption) (*SubmitGradientsResponse, error) {
	out := new(SubmitGradientsResponse)
	if err := c.cc.Invoke(ctx, "/"+modelServiceName+"/SubmitGradients", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
