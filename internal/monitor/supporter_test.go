package monitor

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func newTestPeer(t *testing.T, id string) *PeerRecord {
	t.Helper()
	cfg := newTestConfig(clockwork.NewFakeClock())
	p, err := NewPeerRecord(id, "10.0.0.1", 6001, RoleLeecher, cfg)
	require.NoError(t, err)
	return p
}

func TestMonitor_SupporterRecord_InvalidBounds(t *testing.T) {
	t.Parallel()

	_, err := NewSupporterRecord("s1", "supporter.local", 6000, 0, 5)
	require.ErrorIs(t, err, ErrInvalidBounds)

	_, err = NewSupporterRecord("s1", "supporter.local", 6000, 5, 3)
	require.ErrorIs(t, err, ErrInvalidBounds)

	_, err = NewSupporterRecord("s1", "supporter.local", 80, 1, 3)
	require.ErrorIs(t, err, ErrInvalidPort)
}

func TestMonitor_SupporterRecord_AddRemoveAndSlots(t *testing.T) {
	t.Parallel()

	s, err := NewSupporterRecord("s1", "supporter.local", 6000, 1, 2)
	require.NoError(t, err)
	require.False(t, s.Active())
	require.Equal(t, 2, s.AvailableSlots())

	p1 := newTestPeer(t, "p1")
	p2 := newTestPeer(t, "p2")

	s.Add(p1)
	require.True(t, s.Active())
	require.Equal(t, 1, s.AssignedSlots())
	require.Equal(t, 1, s.AvailableSlots())

	s.Add(p1) // duplicate add is a no-op
	require.Equal(t, 1, s.AssignedSlots())

	s.Add(p2)
	require.Equal(t, 0, s.AvailableSlots())

	s.Remove(p1)
	require.Equal(t, 1, s.AssignedSlots())
	require.Equal(t, []*PeerRecord{p2}, s.Peers())
}

func TestMonitor_SupporterRecord_CancelAllAbortsSupport(t *testing.T) {
	t.Parallel()

	s, err := NewSupporterRecord("s1", "supporter.local", 6000, 1, 2)
	require.NoError(t, err)
	p1 := newTestPeer(t, "p1")

	s.Add(p1)
	s.CancelAll()
	require.False(t, s.Active())
	require.Equal(t, StateStarving, p1.State())
}

func TestMonitor_SupporterRecord_RefreshRosterDropsDefaultPeers(t *testing.T) {
	t.Parallel()

	s, err := NewSupporterRecord("s1", "supporter.local", 6000, 1, 3)
	require.NoError(t, err)

	p1 := newTestPeer(t, "p1")
	p2 := newTestPeer(t, "p2")
	// New peers start in Default; move both out of it so only p1's later
	// ForceDefault makes it eligible for removal.
	p1.AbortSupport()
	p2.AbortSupport()
	s.Add(p1)
	s.Add(p2)
	require.True(t, s.ConsumeDirty())
	require.False(t, s.ConsumeDirty())

	p1.ForceDefault()
	s.RefreshRoster()
	require.Equal(t, []*PeerRecord{p2}, s.Peers())
	require.True(t, s.ConsumeDirty())
}

func TestMonitor_SupporterRecord_RefreshRosterNoopWhenNothingChanged(t *testing.T) {
	t.Parallel()

	s, err := NewSupporterRecord("s1", "supporter.local", 6000, 1, 3)
	require.NoError(t, err)
	p1 := newTestPeer(t, "p1")
	p1.AbortSupport() // out of Default, so RefreshRoster keeps it
	s.Add(p1)
	require.True(t, s.ConsumeDirty())

	s.RefreshRoster()
	require.False(t, s.ConsumeDirty())
}

func TestMonitor_SupporterRecord_SameIdentity(t *testing.T) {
	t.Parallel()

	a, err := NewSupporterRecord("s1", "host", 6000, 1, 2)
	require.NoError(t, err)
	b, err := NewSupporterRecord("s1", "host", 6000, 1, 2)
	require.NoError(t, err)
	c, err := NewSupporterRecord("s1", "host", 6001, 1, 2)
	require.NoError(t, err)

	require.True(t, a.SameIdentity(b))
	require.False(t, a.SameIdentity(c))
}
