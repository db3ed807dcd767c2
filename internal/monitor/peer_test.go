package monitor

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func newTestConfig(clk clockwork.Clock) *Config {
	return NewConfig(clk)
}

func TestMonitor_PeerRecord_LifecycleWalk(t *testing.T) {
	t.Parallel()

	clk := clockwork.NewFakeClock()
	cfg := newTestConfig(clk)
	peer, err := NewPeerRecord("p1", "10.0.0.1", 6001, RoleLeecher, cfg)
	require.NoError(t, err)
	require.Equal(t, StateDefault, peer.State())

	peer.Receive(MsgSupportRequired, clk.Now())
	require.Equal(t, StateWatched, peer.State())

	peer.Receive(MsgSupportNotNeeded, clk.Now())
	require.Equal(t, StateDefault, peer.State())
	require.Equal(t, 0, peer.SupportRequestCount())
	require.Equal(t, 0, peer.RequestWindowLen())

	peer.Receive(MsgSupportRequired, clk.Now())
	require.Equal(t, StateWatched, peer.State())
	require.Equal(t, 1, peer.SupportRequestCount())

	for i := 0; i < 5; i++ {
		clk.Advance(100 * time.Millisecond)
		peer.Receive(MsgSupportRequired, clk.Now())
	}
	require.Equal(t, StateStarving, peer.State())

	peer.Receive(MsgPeerSupported, clk.Now())
	require.Equal(t, StateSupported, peer.State())

	peer.Receive(MsgSupportNotNeeded, clk.Now())
	require.Equal(t, StateSupported, peer.State())

	clk.Advance(cfg.PeerTimeoutBound)
	peer.TickTransition(clk.Now())
	require.Equal(t, StateDefault, peer.State())
}

func TestMonitor_PeerRecord_ApprovalWindowEnforcement(t *testing.T) {
	t.Parallel()

	clk := clockwork.NewFakeClock()
	cfg := newTestConfig(clk)
	peer, err := NewPeerRecord("p1", "10.0.0.1", 6001, RoleLeecher, cfg)
	require.NoError(t, err)

	for i := 0; i < cfg.PeerRequiredMsgs-1; i++ {
		peer.Receive(MsgSupportRequired, clk.Now())
	}
	require.Equal(t, StateWatched, peer.State())

	clk.Advance(cfg.ApprovalWindow() + time.Second)
	peer.Receive(MsgSupportRequired, clk.Now())
	require.Equal(t, StateWatched, peer.State(), "window span exceeds approval bound, must not admit")

	for i := 0; i < cfg.PeerRequiredMsgs; i++ {
		clk.Advance(10 * time.Millisecond)
		peer.Receive(MsgSupportRequired, clk.Now())
	}
	require.Equal(t, StateStarving, peer.State(), "window has slid within the approval bound")
}

func TestMonitor_PeerRecord_InvalidPort(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(clockwork.NewFakeClock())
	_, err := NewPeerRecord("p1", "10.0.0.1", 80, RoleLeecher, cfg)
	require.ErrorIs(t, err, ErrInvalidPort)
}

func TestMonitor_PeerRecord_InvalidRole(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(clockwork.NewFakeClock())
	_, err := NewPeerRecord("p1", "10.0.0.1", 6001, Role(99), cfg)
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestMonitor_PeerRecord_IsAliveTimeoutForcesDefaultFromWatched(t *testing.T) {
	t.Parallel()

	clk := clockwork.NewFakeClock()
	cfg := newTestConfig(clk)
	peer, err := NewPeerRecord("p1", "10.0.0.1", 6001, RoleLeecher, cfg)
	require.NoError(t, err)

	peer.Receive(MsgSupportRequired, clk.Now())
	require.Equal(t, StateWatched, peer.State())

	clk.Advance(cfg.IsAliveTimeoutBound + time.Second)
	peer.TickTransition(clk.Now())
	require.Equal(t, StateDefault, peer.State())
	require.Equal(t, 0, peer.SupportRequestCount())
}

func TestMonitor_PeerRecord_SameIdentity(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(clockwork.NewFakeClock())
	a, err := NewPeerRecord("p1", "10.0.0.1", 6001, RoleLeecher, cfg)
	require.NoError(t, err)
	b, err := NewPeerRecord("p1", "10.0.0.1", 6001, RoleSeeder, cfg)
	require.NoError(t, err)
	c, err := NewPeerRecord("p1", "10.0.0.2", 6001, RoleLeecher, cfg)
	require.NoError(t, err)

	require.True(t, a.SameIdentity(b))
	require.False(t, a.SameIdentity(c))
}
