package ingress

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/overlaycast/supporter-monitor/internal/monitor"
	"github.com/overlaycast/supporter-monitor/internal/rpcjson"
)

type fakeCoordinator struct {
	registered   []string
	unregistered []string
	messages     []PeerMessageRequest
	peers        []*monitor.PeerRecord

	registerErr error
}

func (f *fakeCoordinator) RegisterPeer(id, ip string, port int, role monitor.Role) (*monitor.PeerRecord, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = append(f.registered, id)
	cfg := monitor.NewConfig(nil)
	p, err := monitor.NewPeerRecord(id, ip, port, role, cfg)
	if err != nil {
		return nil, err
	}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *fakeCoordinator) UnregisterPeer(peer *monitor.PeerRecord) {
	f.unregistered = append(f.unregistered, peer.ID())
}

func (f *fakeCoordinator) ReceivePeerMessage(kind monitor.MsgKind, peerID string) {
	f.messages = append(f.messages, PeerMessageRequest{PeerID: peerID, Kind: string(kind)})
}

func (f *fakeCoordinator) GetMonitoredPeers() []*monitor.PeerRecord {
	return f.peers
}

func startIngressServer(t *testing.T, coord *fakeCoordinator) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	Register(srv, NewServer(nil, coord))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpcjson.Name)),
	)
	require.NoError(t, err)
	return conn
}

func TestIngress_RegisterPeer_ForwardsToCoordinator(t *testing.T) {
	t.Parallel()
	coord := &fakeCoordinator{}
	conn := startIngressServer(t, coord)

	var resp RegisterPeerResponse
	err := conn.Invoke(context.Background(), methodRegisterPeer, &RegisterPeerRequest{
		PeerID: "p1", IP: "10.0.0.1", Port: 6001, Role: int(monitor.RoleLeecher),
	}, &resp)
	require.NoError(t, err)
	require.True(t, resp.Accepted)
	require.Equal(t, []string{"p1"}, coord.registered)
}

func TestIngress_RegisterPeer_InvalidPortReturnsInvalidArgument(t *testing.T) {
	t.Parallel()
	coord := &fakeCoordinator{registerErr: monitor.ErrInvalidPort}
	conn := startIngressServer(t, coord)

	var resp RegisterPeerResponse
	err := conn.Invoke(context.Background(), methodRegisterPeer, &RegisterPeerRequest{
		PeerID: "p1", IP: "10.0.0.1", Port: 80, Role: int(monitor.RoleLeecher),
	}, &resp)
	require.Error(t, err)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestIngress_PeerMessage_ForwardsKindAndID(t *testing.T) {
	t.Parallel()
	coord := &fakeCoordinator{}
	conn := startIngressServer(t, coord)

	var resp PeerMessageResponse
	err := conn.Invoke(context.Background(), methodPeerMessage, &PeerMessageRequest{
		PeerID: "p1", Kind: string(monitor.MsgSupportRequired),
	}, &resp)
	require.NoError(t, err)
	require.Equal(t, []PeerMessageRequest{{PeerID: "p1", Kind: "support_required"}}, coord.messages)
}

func TestIngress_UnregisterPeer_RemovesMatchingPeer(t *testing.T) {
	t.Parallel()
	coord := &fakeCoordinator{}
	conn := startIngressServer(t, coord)

	var regResp RegisterPeerResponse
	require.NoError(t, conn.Invoke(context.Background(), methodRegisterPeer, &RegisterPeerRequest{
		PeerID: "p1", IP: "10.0.0.1", Port: 6001, Role: int(monitor.RoleLeecher),
	}, &regResp))

	var resp UnregisterPeerResponse
	err := conn.Invoke(context.Background(), methodUnregisterPeer, &UnregisterPeerRequest{PeerID: "p1"}, &resp)
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, coord.unregistered)
}
