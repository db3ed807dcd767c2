package monitor

import "time"

// PeerState is the closed set of states a monitored peer can occupy. It is
// modeled as a plain enum rather than an open interface hierarchy: the state
// behavior is a pure function of (state, peer, now), so a switch in
// transition() is all the polymorphism this needs.
type PeerState int

const (
	StateDefault PeerState = iota
	StateWatched
	StateStarving
	StateSupported
)

func (s PeerState) String() string {
	switch s {
	case StateDefault:
		return "Default"
	case StateWatched:
		return "Watched"
	case StateStarving:
		return "Starving"
	case StateSupported:
		return "Supported"
	default:
		return "Unknown"
	}
}

// transition re-evaluates p's current state against its own fields and the
// given wall-clock time, mutating p.state in place. It is the single
// decision point for all four states and is called both synchronously from
// Receive (after message side effects have been applied) and from
// TickTransition (with no new message).
func (p *PeerRecord) transition(now time.Time) {
	switch p.state {
	case StateDefault:
		if p.tsFirstRequest() != nil && p.supportRequests == 1 {
			p.state = StateWatched
		}

	case StateWatched:
		switch {
		case !p.peerIsAlive(now):
			p.state = StateDefault
			p.resetCycle()
		case p.lastMsg != nil && *p.lastMsg == MsgSupportNotNeeded:
			p.state = StateDefault
		case p.lastMsg != nil && *p.lastMsg == MsgSupportRequired:
			if p.withinApprovalWindow() && p.enoughRequests() {
				p.state = StateStarving
			}
		}

	case StateStarving:
		if !p.peerIsAlive(now) {
			p.state = StateDefault
			p.resetCycle()
			return
		}
		switch {
		case p.lastMsg != nil && *p.lastMsg == MsgSupportNotNeeded:
			p.state = StateDefault
		case p.lastMsg != nil && *p.lastMsg == MsgPeerSupported:
			p.state = StateSupported
		}

	case StateSupported:
		if !p.peerIsAlive(now) {
			p.state = StateDefault
			p.resetCycle()
			return
		}
		if p.lastMsg != nil && *p.lastMsg == MsgSupportNotNeeded && p.peerTimedOut(now) {
			p.state = StateDefault
		}
	}
}
