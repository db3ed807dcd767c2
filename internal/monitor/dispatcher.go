package monitor

import "context"

// PeerListEntry is one (peer_id, ip, port) triple pushed to a supporter,
// per spec §6.
type PeerListEntry struct {
	PeerID string
	IP     string
	Port   int
}

// Dispatcher is the out-of-core collaborator the coordinator calls to probe
// supporters for liveness and push updated supportee rosters, per spec §4.5.
// Implementations MAY perform I/O concurrently across supporters. The
// coordinator calls every method with its own lock held, so implementations
// must not call back into Coordinator methods that take that lock; the
// markDead callback passed to QueryAllSupporters does not take it.
type Dispatcher interface {
	// RegisterProxy establishes whatever transport handle is needed to
	// reach the given supporter. Called synchronously from
	// Coordinator.RegisterSupporter.
	RegisterProxy(ctx context.Context, supporter *SupporterRecord)

	// UnregisterProxy tears down the transport handle for a supporter.
	// Called synchronously from Coordinator.UnregisterSupporter.
	UnregisterProxy(ctx context.Context, supporter *SupporterRecord)

	// QueryAllSupporters probes every registered supporter for liveness.
	// Unresponsive supporters must be reported through markDead.
	QueryAllSupporters(ctx context.Context, supporters []*SupporterRecord, markDead func(*SupporterRecord))

	// DispatchPeerLists pushes the current roster of every dirty supporter.
	// Implementations should consume the dirty flag via ConsumeDirty and
	// push the up-to-date roster; failures must be swallowed (logged, not
	// returned) per spec §7.
	DispatchPeerLists(ctx context.Context, supporters []*SupporterRecord)
}
