package monitor

import "time"

// peerKey is the identity tuple a PeerRecord's equality and hashing are a
// function of, per spec §3.
type peerKey struct {
	id   string
	ip   string
	port int
}

// PeerRecord is the per-peer state the coordinator tracks: identity,
// classification state, the sliding request window, and timeout bookkeeping.
// All mutating methods assume the caller already holds the coordinator's
// lock; PeerRecord has no lock of its own.
type PeerRecord struct {
	key  peerKey
	role Role

	state PeerState

	// window holds up to cfg.PeerRequiredMsgs timestamps of the most recent
	// SUPPORT_REQUIRED messages, oldest first.
	window []time.Time

	lastMsg   *MsgKind
	lastMsgAt *time.Time

	supportRequests int

	// cooldownStart is set when a SUPPORT_NOT_NEEDED message starts the
	// Supported -> Default grace timer; nil while not running.
	cooldownStart *time.Time

	isAliveTimeout time.Duration
	peerTimeout    time.Duration
	requiredMsgs   int
	approvalWindow time.Duration
}

// NewPeerRecord constructs a peer in the Default state. cfg supplies the
// window size and timeout bounds in effect at registration time.
func NewPeerRecord(id, ip string, port int, role Role, cfg *Config) (*PeerRecord, error) {
	if port < 1024 {
		return nil, ErrInvalidPort
	}
	if !role.valid() {
		return nil, ErrInvalidRole
	}
	return &PeerRecord{
		key:            peerKey{id: id, ip: ip, port: port},
		role:           role,
		state:          StateDefault,
		isAliveTimeout: cfg.IsAliveTimeoutBound,
		peerTimeout:    cfg.PeerTimeoutBound,
		requiredMsgs:   cfg.PeerRequiredMsgs,
		approvalWindow: cfg.ApprovalWindow(),
	}, nil
}

func (p *PeerRecord) ID() string     { return p.key.id }
func (p *PeerRecord) IP() string     { return p.key.ip }
func (p *PeerRecord) Port() int      { return p.key.port }
func (p *PeerRecord) Role() Role     { return p.role }
func (p *PeerRecord) State() PeerState { return p.state }

// SameIdentity reports whether p and other share the (ID, IP, Port) tuple
// spec §3 defines peer equality over.
func (p *PeerRecord) SameIdentity(other *PeerRecord) bool {
	return other != nil && p.key == other.key
}

func (p *PeerRecord) LastMessage() *MsgKind {
	return p.lastMsg
}

func (p *PeerRecord) LastMessageAt() *time.Time {
	return p.lastMsgAt
}

func (p *PeerRecord) SupportRequestCount() int {
	return p.supportRequests
}

func (p *PeerRecord) RequestWindowLen() int {
	return len(p.window)
}

// Receive applies msg's side effects and runs one synchronous transition
// step, per spec §4.1.
func (p *PeerRecord) Receive(kind MsgKind, now time.Time) {
	k := kind
	p.lastMsg = &k
	p.lastMsgAt = &now

	switch kind {
	case MsgSupportRequired:
		p.supportRequests++
		p.cooldownStart = nil
		p.window = append(p.window, now)
		if len(p.window) > p.requiredMsgs {
			p.window = p.window[1:]
		}
	case MsgSupportNotNeeded:
		p.resetCycle()
		if p.cooldownStart == nil {
			t := now
			p.cooldownStart = &t
		}
	case MsgPeerSupported, MsgPeerRegistered:
		// No side effects beyond last-message bookkeeping, per spec §4.1.
	}

	p.transition(now)
}

// TickTransition re-evaluates the current state against now with no new
// message, used by the coordinator's per-peer transition refresh.
func (p *PeerRecord) TickTransition(now time.Time) {
	p.transition(now)
}

// ResetCycle clears the request window and zeroes the support-request
// counter, ending the current admission cycle.
func (p *PeerRecord) ResetCycle() {
	p.resetCycle()
}

func (p *PeerRecord) resetCycle() {
	p.window = nil
	p.supportRequests = 0
}

// AbortSupport forces the peer into Starving. Used when the supporter
// currently supporting it is removed.
func (p *PeerRecord) AbortSupport() {
	p.state = StateStarving
	// Forget the PEER_SUPPORTED that put the peer on the removed roster, so
	// the next transition step does not promote it straight back to
	// Supported.
	if p.lastMsg != nil && *p.lastMsg == MsgPeerSupported {
		p.lastMsg = nil
	}
}

// ForceDefault forces the peer straight to Default without the ordinary
// transition rules. Used by the coordinator's in-tick staleness check
// (spec §4.4 step 4), which applies to a peer in any state and, unlike the
// peer_is_alive() path, does not reset the admission cycle.
func (p *PeerRecord) ForceDefault() {
	p.state = StateDefault
}

func (p *PeerRecord) tsFirstRequest() *time.Time {
	if len(p.window) == 0 {
		return nil
	}
	return &p.window[0]
}

func (p *PeerRecord) tsLastRequest() *time.Time {
	if len(p.window) == 0 {
		return nil
	}
	return &p.window[len(p.window)-1]
}

// peerIsAlive reports whether the request window is empty (grace for a
// newly registered peer) or its most recent entry is within the is-alive
// bound. Deliberately keyed off the request-window clock, not the
// any-message clock, per spec §4.1.
func (p *PeerRecord) peerIsAlive(now time.Time) bool {
	last := p.tsLastRequest()
	if last == nil {
		return true
	}
	return now.Sub(*last) < p.isAliveTimeout
}

// peerTimedOut reports whether the Supported-state cooldown timer is
// running and has exceeded the peer timeout bound.
func (p *PeerRecord) peerTimedOut(now time.Time) bool {
	if p.cooldownStart == nil {
		return false
	}
	return now.Sub(*p.cooldownStart) >= p.peerTimeout
}

// withinApprovalWindow reports whether the span between the first and last
// entries in the request window is within PEER_STATUS_APPROVAL_TIME.
func (p *PeerRecord) withinApprovalWindow() bool {
	first := p.tsFirstRequest()
	last := p.tsLastRequest()
	if first == nil || last == nil {
		return false
	}
	return last.Sub(*first) <= p.approvalWindow
}

// enoughRequests reports whether the support-request counter has reached
// the admission threshold W.
func (p *PeerRecord) enoughRequests() bool {
	return p.supportRequests >= p.requiredMsgs
}
