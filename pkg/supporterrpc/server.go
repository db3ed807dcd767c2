package supporterrpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceHandler is implemented by a supporter process to receive liveness
// probes and roster pushes from the coordinator. This package does not ship
// a production supporter; RegisterSupporterServiceServer exists so one can
// be built against the same wire protocol the dispatcher speaks.
type ServiceHandler interface {
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
	PushPeerList(ctx context.Context, req *PushPeerListRequest) (*PushPeerListResponse, error)
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(PingRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ServiceHandler).Ping(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPing}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ServiceHandler).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func pushPeerListHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(PushPeerListRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ServiceHandler).PushPeerList(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPushPeerList}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ServiceHandler).PushPeerList(ctx, req.(*PushPeerListRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// serviceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would otherwise generate from a .proto file.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ServiceHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: pingHandler},
		{MethodName: "PushPeerList", Handler: pushPeerListHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "supporterrpc.proto",
}

// RegisterSupporterServiceServer registers impl against s. Requests use the
// JSON content-subtype codec that internal/rpcjson registers in its init(),
// which this package imports for that side effect (codec.go).
func RegisterSupporterServiceServer(s *grpc.Server, impl ServiceHandler) {
	s.RegisterService(&serviceDesc, impl)
}
