package monitor

import (
	"context"
	"sync"
)

// NoopDispatcher satisfies Dispatcher without performing any I/O. It is the
// dispatcher spec §4.5 describes as "the reference dispatcher is fully
// sequential; tests inject a no-op mock" in its simplest form.
type NoopDispatcher struct{}

func NewNoopDispatcher() *NoopDispatcher { return &NoopDispatcher{} }

func (NoopDispatcher) RegisterProxy(context.Context, *SupporterRecord)   {}
func (NoopDispatcher) UnregisterProxy(context.Context, *SupporterRecord) {}
func (NoopDispatcher) QueryAllSupporters(context.Context, []*SupporterRecord, func(*SupporterRecord)) {
}
func (NoopDispatcher) DispatchPeerLists(context.Context, []*SupporterRecord) {}

// RecordingDispatcher is a Dispatcher test double that records every call it
// receives, and lets tests script which supporters should be reported dead.
// Every peer-list push it records succeeds. Exported (not _test.go) so other
// packages' tests (e.g. pkg/supporterrpc, internal/ingress) can reuse it,
// mirroring the teacher's pkg/arista/mock.go convention.
type RecordingDispatcher struct {
	mu sync.Mutex

	Registered   []string // supporter IDs passed to RegisterProxy
	Unregistered []string // supporter IDs passed to UnregisterProxy

	// DeadIDs names supporters that QueryAllSupporters should report as
	// unresponsive on every call.
	DeadIDs map[string]bool

	// Pushes records, for each DispatchPeerLists call, the supporter IDs
	// whose dirty flag was consumed and the roster pushed for each.
	Pushes []DispatchCall
}

type DispatchCall struct {
	SupporterID string
	Roster      []PeerListEntry
}

func NewRecordingDispatcher() *RecordingDispatcher {
	return &RecordingDispatcher{DeadIDs: make(map[string]bool)}
}

func (d *RecordingDispatcher) RegisterProxy(_ context.Context, s *SupporterRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Registered = append(d.Registered, s.ID())
}

func (d *RecordingDispatcher) UnregisterProxy(_ context.Context, s *SupporterRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Unregistered = append(d.Unregistered, s.ID())
}

func (d *RecordingDispatcher) QueryAllSupporters(_ context.Context, supporters []*SupporterRecord, markDead func(*SupporterRecord)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range supporters {
		if d.DeadIDs[s.ID()] {
			markDead(s)
		}
	}
}

func (d *RecordingDispatcher) DispatchPeerLists(_ context.Context, supporters []*SupporterRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range supporters {
		if !s.ConsumeDirty() {
			continue
		}
		entries := make([]PeerListEntry, 0, len(s.Peers()))
		for _, p := range s.Peers() {
			entries = append(entries, PeerListEntry{PeerID: p.ID(), IP: p.IP(), Port: p.Port()})
		}
		d.Pushes = append(d.Pushes, DispatchCall{SupporterID: s.ID(), Roster: entries})
	}
}
