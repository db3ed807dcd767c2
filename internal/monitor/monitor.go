package monitor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Coordinator owns the registries of peer and supporter records, serializes
// access under one lock, runs the periodic update, and exposes the ingress
// operations, per spec §4.4.
type Coordinator struct {
	log        *slog.Logger
	cfg        *Config
	dispatcher Dispatcher
	stats      *StatsSink
	metrics    *Metrics

	mu            sync.Mutex
	peers         []*PeerRecord
	peerByID      map[string]*PeerRecord
	supporters    []*SupporterRecord
	supporterByID map[string]*SupporterRecord
	active        []*SupporterRecord

	deadMu    sync.Mutex
	deadQueue []*SupporterRecord

	assignments *assignmentCounter
}

// Option configures a Coordinator at construction time, mirroring the
// teacher's functional-option pattern (controlplane/controller.Option).
type Option func(*Coordinator)

func WithStatsSink(sink *StatsSink) Option {
	return func(c *Coordinator) { c.stats = sink }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithAssignmentTTL overrides how long the historical assignment counter
// remembers a peer ID with no new assignment. Without this option the TTL is
// zero, which ttlcache treats as no expiry (never evict), matching the
// original's unbounded map.
func WithAssignmentTTL(ttl time.Duration) Option {
	return func(c *Coordinator) { c.assignments = newAssignmentCounter(ttl) }
}

// NewCoordinator constructs a Coordinator with empty registries.
func NewCoordinator(log *slog.Logger, cfg *Config, dispatcher Dispatcher, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dispatcher == nil {
		dispatcher = NewNoopDispatcher()
	}
	c := &Coordinator{
		log:           log,
		cfg:           cfg,
		dispatcher:    dispatcher,
		peerByID:      make(map[string]*PeerRecord),
		supporterByID: make(map[string]*SupporterRecord),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.assignments == nil {
		c.assignments = newAssignmentCounter(noEviction)
	}
	return c, nil
}

// noEviction is used when no WithAssignmentTTL option is supplied: entries
// never expire, matching the original's unbounded assignment map.
const noEviction = 0

// RegisterPeer constructs and registers a peer, rejecting duplicates by
// identity. Returns ErrAlreadyExists if a peer with the same ID is already
// registered.
func (c *Coordinator) RegisterPeer(id, ip string, port int, role Role) (*PeerRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.peerByID[id]; exists {
		return existing, ErrAlreadyExists
	}

	peer, err := NewPeerRecord(id, ip, port, role, c.cfg)
	if err != nil {
		return nil, err
	}

	c.peers = append(c.peers, peer)
	c.peerByID[id] = peer
	peer.Receive(MsgPeerRegistered, c.cfg.Clock.Now())
	return peer, nil
}

// UnregisterPeer idempotently removes peer from the registry.
func (c *Coordinator) UnregisterPeer(peer *PeerRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unregisterPeerLocked(peer)
}

func (c *Coordinator) unregisterPeerLocked(peer *PeerRecord) {
	if peer == nil {
		return
	}
	if _, ok := c.peerByID[peer.ID()]; !ok {
		return
	}
	delete(c.peerByID, peer.ID())
	for i, p := range c.peers {
		if p == peer {
			c.peers = append(c.peers[:i], c.peers[i+1:]...)
			break
		}
	}
}

// RegisterSupporter constructs and registers a supporter, validating bounds
// and establishing a dispatcher proxy for it.
func (c *Coordinator) RegisterSupporter(ctx context.Context, id, host string, port, minPeer, maxPeer int) (*SupporterRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.supporterByID[id]; exists {
		return existing, ErrAlreadyExists
	}

	supporter, err := NewSupporterRecord(id, host, port, minPeer, maxPeer)
	if err != nil {
		return nil, err
	}

	c.supporters = append(c.supporters, supporter)
	c.supporterByID[id] = supporter
	c.dispatcher.RegisterProxy(ctx, supporter)
	return supporter, nil
}

// UnregisterSupporter cancels support for every peer in supporter's roster
// (forcing them back to Starving), removes it from both registries, and
// tears down its dispatcher proxy.
func (c *Coordinator) UnregisterSupporter(ctx context.Context, supporter *SupporterRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unregisterSupporterLocked(ctx, supporter)
}

func (c *Coordinator) unregisterSupporterLocked(ctx context.Context, supporter *SupporterRecord) {
	if supporter == nil {
		return
	}
	if _, ok := c.supporterByID[supporter.ID()]; !ok {
		return
	}
	supporter.CancelAll()
	delete(c.supporterByID, supporter.ID())
	c.supporters = removeSupporter(c.supporters, supporter)
	c.active = removeSupporter(c.active, supporter)
	c.dispatcher.UnregisterProxy(ctx, supporter)
}

func removeSupporter(list []*SupporterRecord, target *SupporterRecord) []*SupporterRecord {
	for i, s := range list {
		if s == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// ReceivePeerMessage locates the peer by ID and delegates to it. An unknown
// peer ID is logged and dropped, never fatal, per spec §7.
func (c *Coordinator) ReceivePeerMessage(kind MsgKind, peerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	peer, ok := c.peerByID[peerID]
	if !ok {
		if c.log != nil {
			c.log.Warn("monitor: dropping message for unregistered peer", "peerID", peerID, "kind", kind)
		}
		return
	}
	peer.Receive(kind, c.cfg.Clock.Now())
}

func (c *Coordinator) GetMonitoredPeers() []*PeerRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*PeerRecord, len(c.peers))
	copy(out, c.peers)
	return out
}

func (c *Coordinator) GetMonitoredSupporters() []*SupporterRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*SupporterRecord, len(c.supporters))
	copy(out, c.supporters)
	return out
}

func (c *Coordinator) GetActiveSupporters() []*SupporterRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*SupporterRecord, len(c.active))
	copy(out, c.active)
	return out
}

func (c *Coordinator) FilterPeersByState(state PeerState) []*PeerRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filterPeersByStateLocked(state)
}

func (c *Coordinator) filterPeersByStateLocked(state PeerState) []*PeerRecord {
	var out []*PeerRecord
	for _, p := range c.peers {
		if p.State() == state {
			out = append(out, p)
		}
	}
	return out
}

// markDeadSupporter is passed to the dispatcher as the markDead callback for
// QueryAllSupporters. It is safe to call from any goroutine, including
// concurrently, without holding the coordinator's main lock.
func (c *Coordinator) markDeadSupporter(s *SupporterRecord) {
	c.deadMu.Lock()
	defer c.deadMu.Unlock()
	c.deadQueue = append(c.deadQueue, s)
}

// Tick runs one pass of the periodic update (spec §4.4). Any panic raised by
// the dispatcher or elsewhere inside the critical section is recovered so
// the lock is always released and the caller's scheduler can still arm the
// next tick.
func (c *Coordinator) Tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil && c.log != nil {
			c.log.Error("monitor: recovered from panic during tick", "panic", r)
		}
	}()

	now := c.cfg.Clock.Now()
	start := now

	c.reapStalePeersLocked(now)
	c.reapDeadSupportersLocked(ctx)
	c.markDeadSupportersLocked(ctx)
	c.reapDeadSupportersLocked(ctx)
	c.refreshPeerTransitionsLocked(now)
	c.refreshSupporterRostersLocked()
	c.snapshotLocked(now)
	c.assignStarvingPeersLocked(now)
	c.activateSupportersLocked(now)
	c.dispatcher.DispatchPeerLists(ctx, c.supporters)

	if c.metrics != nil {
		c.metrics.TickDuration.Observe(c.cfg.Clock.Now().Sub(start).Seconds())
	}
}

// reapStalePeersLocked removes peers whose last message of any kind is
// older than PeerRemovalTime. A peer with no last-message timestamp is never
// reaped (spec §4.4 step 1); this is unreachable in practice since
// RegisterPeer always emits a synthetic PEER_REGISTERED.
func (c *Coordinator) reapStalePeersLocked(now time.Time) {
	var stale []*PeerRecord
	for _, p := range c.peers {
		last := p.LastMessageAt()
		if last == nil {
			continue
		}
		if now.Sub(*last) >= c.cfg.PeerRemovalTime {
			stale = append(stale, p)
		}
	}
	for _, p := range stale {
		c.unregisterPeerLocked(p)
	}
}

// markDeadSupportersLocked asks the dispatcher to probe every registered
// supporter for liveness (spec §4.4 step 2). The dispatcher may fan out
// concurrently but must return only once every probe has completed or
// timed out; it reports unresponsive supporters through markDeadSupporter.
func (c *Coordinator) markDeadSupportersLocked(ctx context.Context) {
	c.dispatcher.QueryAllSupporters(ctx, c.supporters, c.markDeadSupporter)
}

// reapDeadSupportersLocked drains the dead-supporter queue, unregistering
// each one (spec §4.4 step 3, also run once up-front to absorb supporters
// marked dead by an external caller between ticks).
func (c *Coordinator) reapDeadSupportersLocked(ctx context.Context) {
	c.deadMu.Lock()
	dead := c.deadQueue
	c.deadQueue = nil
	c.deadMu.Unlock()

	for _, s := range dead {
		c.unregisterSupporterLocked(ctx, s)
	}
}

// refreshPeerTransitionsLocked re-evaluates every peer's state. A peer whose
// request window is stale by more than the forced-default threshold (10s by
// default, deliberately equal to IsAliveTimeoutBound per spec §9) is forced
// straight to Default; otherwise it runs the ordinary tick_transition.
func (c *Coordinator) refreshPeerTransitionsLocked(now time.Time) {
	for _, p := range c.peers {
		last := p.tsLastRequest()
		if last != nil && now.Sub(*last) > c.cfg.ForcedDefaultThreshold {
			p.ForceDefault()
			continue
		}
		p.TickTransition(now)
	}
}

// refreshSupporterRostersLocked prunes default-state peers from every active
// supporter's roster and moves any supporter whose roster has emptied out of
// the active list (spec §4.4 step 5).
func (c *Coordinator) refreshSupporterRostersLocked() {
	var stillActive []*SupporterRecord
	for _, s := range c.active {
		s.RefreshRoster()
		if s.AssignedSlots() > 0 {
			stillActive = append(stillActive, s)
		}
	}
	c.active = stillActive
}

func (c *Coordinator) snapshotLocked(now time.Time) {
	var counts stateCounts
	for _, p := range c.peers {
		switch p.State() {
		case StateDefault:
			counts.nrDefault++
		case StateWatched:
			counts.nrWatched++
		case StateStarving:
			counts.nrStarving++
		case StateSupported:
			counts.nrSupported++
		}
	}
	if c.stats != nil {
		if err := c.stats.snapshot(now, counts); err != nil && c.log != nil {
			c.log.Error("monitor: failed to write statistics snapshot", "error", err)
		}
	}
	if c.metrics != nil {
		c.metrics.PeersByState.WithLabelValues("default").Set(float64(counts.nrDefault))
		c.metrics.PeersByState.WithLabelValues("watched").Set(float64(counts.nrWatched))
		c.metrics.PeersByState.WithLabelValues("starving").Set(float64(counts.nrStarving))
		c.metrics.PeersByState.WithLabelValues("supported").Set(float64(counts.nrSupported))
		c.metrics.SupportersActive.Set(float64(len(c.active)))
	}
}

// orderActiveLocked sorts the active supporter list by descending available
// slots, ties broken by the list's current (insertion-stable) order, per
// spec §4.4/§8 scenario 6.
func (c *Coordinator) orderActiveLocked() {
	sort.SliceStable(c.active, func(i, j int) bool {
		return c.active[i].AvailableSlots() > c.active[j].AvailableSlots()
	})
}

// assignStarvingPeersLocked implements spec §4.4 step 7: starving peers,
// sorted descending by historical assignment count, are assigned to the
// head of the active list one at a time until either no starving peers or
// no free active slots remain.
func (c *Coordinator) assignStarvingPeersLocked(now time.Time) {
	starving := c.sortedStarvingLocked()

	for len(starving) > 0 {
		if len(c.active) == 0 || c.active[0].AvailableSlots() <= 0 {
			break
		}
		peer := starving[0]
		starving = starving[1:]
		c.assignPeerLocked(now, peer, c.active[0])
	}
}

// activateSupportersLocked implements spec §4.4 step 8: inactive supporters
// are considered in ascending order of min_peer; a supporter is accepted
// into the activation prefix as long as the remaining starving count is at
// least its min_peer, after which its available slots are subtracted from
// the remaining count. Accepted supporters are activated in order and
// remaining starving peers are assigned to each until its capacity is
// exhausted.
func (c *Coordinator) activateSupportersLocked(now time.Time) {
	starving := c.sortedStarvingLocked()
	if len(starving) == 0 {
		return
	}

	inactive := c.inactiveSupportersLocked()
	sort.SliceStable(inactive, func(i, j int) bool {
		return inactive[i].MinPeer() < inactive[j].MinPeer()
	})

	remaining := len(starving)
	activateUpTo := -1
	for i, s := range inactive {
		if remaining >= s.MinPeer() {
			remaining -= s.AvailableSlots()
			activateUpTo = i
		} else {
			break
		}
	}
	if activateUpTo < 0 {
		return
	}

	for i := 0; i <= activateUpTo; i++ {
		supporter := inactive[i]
		c.active = append(c.active, supporter)
		for len(starving) > 0 && supporter.AvailableSlots() > 0 {
			peer := starving[0]
			starving = starving[1:]
			c.assignPeerLocked(now, peer, supporter)
		}
	}
	c.orderActiveLocked()
}

func (c *Coordinator) sortedStarvingLocked() []*PeerRecord {
	starving := c.filterPeersByStateLocked(StateStarving)
	sort.SliceStable(starving, func(i, j int) bool {
		return c.assignments.count(starving[i].ID()) > c.assignments.count(starving[j].ID())
	})
	return starving
}

func (c *Coordinator) inactiveSupportersLocked() []*SupporterRecord {
	activeSet := make(map[string]bool, len(c.active))
	for _, s := range c.active {
		activeSet[s.ID()] = true
	}
	var out []*SupporterRecord
	for _, s := range c.supporters {
		if !activeSet[s.ID()] {
			out = append(out, s)
		}
	}
	return out
}

// assignPeerLocked assigns peer to supporter, transitions the peer via the
// synthetic PEER_SUPPORTED message (Starving -> Supported), bumps the
// historical assignment counter, and re-sorts the active list.
func (c *Coordinator) assignPeerLocked(now time.Time, peer *PeerRecord, supporter *SupporterRecord) {
	supporter.Add(peer)
	c.orderActiveLocked()
	peer.Receive(MsgPeerSupported, now)
	c.assignments.increment(peer.ID())
	if c.metrics != nil {
		c.metrics.AssignmentsTotal.Inc()
	}
}
