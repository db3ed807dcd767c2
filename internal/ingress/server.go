package ingress

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/overlaycast/supporter-monitor/internal/monitor"
	_ "github.com/overlaycast/supporter-monitor/internal/rpcjson"
)

// coordinatorAPI is the subset of *monitor.Coordinator the ingress server
// depends on, narrowed for testability.
type coordinatorAPI interface {
	RegisterPeer(id, ip string, port int, role monitor.Role) (*monitor.PeerRecord, error)
	UnregisterPeer(peer *monitor.PeerRecord)
	ReceivePeerMessage(kind monitor.MsgKind, peerID string)
	GetMonitoredPeers() []*monitor.PeerRecord
}

// ServiceHandler is the interface the hand-written ServiceDesc below
// dispatches onto; *Server is its only implementation.
type ServiceHandler interface {
	RegisterPeer(context.Context, *RegisterPeerRequest) (*RegisterPeerResponse, error)
	UnregisterPeer(context.Context, *UnregisterPeerRequest) (*UnregisterPeerResponse, error)
	PeerMessage(context.Context, *PeerMessageRequest) (*PeerMessageResponse, error)
}

// Server adapts gRPC requests from the overlay/tracker into calls against a
// Coordinator. It holds no state of its own: UnregisterPeer finds the
// *monitor.PeerRecord for an ID by scanning GetMonitoredPeers.
type Server struct {
	log         *slog.Logger
	coordinator coordinatorAPI
}

func NewServer(log *slog.Logger, coordinator coordinatorAPI) *Server {
	return &Server{log: log, coordinator: coordinator}
}

func (s *Server) RegisterPeer(_ context.Context, req *RegisterPeerRequest) (*RegisterPeerResponse, error) {
	role := monitor.Role(req.Role)
	_, err := s.coordinator.RegisterPeer(req.PeerID, req.IP, req.Port, role)
	switch {
	case err == nil, errors.Is(err, monitor.ErrAlreadyExists):
		return &RegisterPeerResponse{Accepted: true}, nil
	case errors.Is(err, monitor.ErrInvalidPort), errors.Is(err, monitor.ErrInvalidRole):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	default:
		return nil, status.Error(codes.Internal, err.Error())
	}
}

func (s *Server) UnregisterPeer(_ context.Context, req *UnregisterPeerRequest) (*UnregisterPeerResponse, error) {
	for _, p := range s.coordinator.GetMonitoredPeers() {
		if p.ID() == req.PeerID {
			s.coordinator.UnregisterPeer(p)
			break
		}
	}
	return &UnregisterPeerResponse{}, nil
}

func (s *Server) PeerMessage(_ context.Context, req *PeerMessageRequest) (*PeerMessageResponse, error) {
	kind := monitor.MsgKind(req.Kind)
	s.coordinator.ReceivePeerMessage(kind, req.PeerID)
	return &PeerMessageResponse{}, nil
}

func registerPeerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(RegisterPeerRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ServiceHandler).RegisterPeer(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRegisterPeer}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ServiceHandler).RegisterPeer(ctx, req.(*RegisterPeerRequest))
	})
}

func unregisterPeerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(UnregisterPeerRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ServiceHandler).UnregisterPeer(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodUnregisterPeer}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ServiceHandler).UnregisterPeer(ctx, req.(*UnregisterPeerRequest))
	})
}

func peerMessageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(PeerMessageRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ServiceHandler).PeerMessage(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPeerMessage}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ServiceHandler).PeerMessage(ctx, req.(*PeerMessageRequest))
	})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ServiceHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterPeer", Handler: registerPeerHandler},
		{MethodName: "UnregisterPeer", Handler: unregisterPeerHandler},
		{MethodName: "PeerMessage", Handler: peerMessageHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ingress.proto",
}

// Register wires s into grpcServer.
func Register(grpcServer *grpc.Server, s *Server) {
	grpcServer.RegisterService(&serviceDesc, s)
}
