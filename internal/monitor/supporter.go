package monitor

// supporterKey is the identity tuple a SupporterRecord's equality and
// hashing are a function of, per spec §3.
type supporterKey struct {
	id      string
	host    string
	port    int
	minPeer int
	maxPeer int
}

// SupporterRecord is the per-supporter state the coordinator tracks: its
// capacity bounds and the roster of peers currently assigned to it. A
// SupporterRecord owns its roster privately — the coordinator only ever
// holds a *SupporterRecord, never a reference into its roster — which is
// the deliberate fix for the aliasing bug called out in spec §9.
type SupporterRecord struct {
	key supporterKey

	// roster preserves insertion order for deterministic dispatch payloads.
	roster      []*PeerRecord
	rosterIndex map[string]int // peer ID -> index into roster

	dirty bool
}

// NewSupporterRecord constructs an inactive supporter (empty roster).
func NewSupporterRecord(id, host string, port, minPeer, maxPeer int) (*SupporterRecord, error) {
	if port < 1024 {
		return nil, ErrInvalidPort
	}
	if minPeer < 1 || minPeer > maxPeer {
		return nil, ErrInvalidBounds
	}
	return &SupporterRecord{
		key:         supporterKey{id: id, host: host, port: port, minPeer: minPeer, maxPeer: maxPeer},
		rosterIndex: make(map[string]int),
		dirty:       true,
	}, nil
}

func (s *SupporterRecord) ID() string   { return s.key.id }
func (s *SupporterRecord) Host() string { return s.key.host }
func (s *SupporterRecord) Port() int    { return s.key.port }
func (s *SupporterRecord) MinPeer() int { return s.key.minPeer }
func (s *SupporterRecord) MaxPeer() int { return s.key.maxPeer }

// SameIdentity reports whether s and other share the (ID, address, min_peer,
// max_peer) tuple spec §3 defines supporter equality over.
func (s *SupporterRecord) SameIdentity(other *SupporterRecord) bool {
	return other != nil && s.key == other.key
}

// Active reports whether the roster is non-empty. Activation/inactivation is
// derived state, never stored directly, per spec §3.
func (s *SupporterRecord) Active() bool {
	return len(s.roster) > 0
}

// Peers returns the current roster in assignment order. Callers must not
// mutate the returned slice.
func (s *SupporterRecord) Peers() []*PeerRecord {
	return s.roster
}

func (s *SupporterRecord) AvailableSlots() int {
	return s.key.maxPeer - len(s.roster)
}

func (s *SupporterRecord) AssignedSlots() int {
	return len(s.roster)
}

// Add assigns peer to the roster if not already present. The caller is
// responsible for having checked capacity beforehand, per spec §4.3.
func (s *SupporterRecord) Add(peer *PeerRecord) {
	if _, ok := s.rosterIndex[peer.ID()]; ok {
		return
	}
	s.rosterIndex[peer.ID()] = len(s.roster)
	s.roster = append(s.roster, peer)
	s.dirty = true
}

// Remove drops peer from the roster if present.
func (s *SupporterRecord) Remove(peer *PeerRecord) {
	idx, ok := s.rosterIndex[peer.ID()]
	if !ok {
		return
	}
	s.removeAt(idx)
	s.dirty = true
}

func (s *SupporterRecord) removeAt(idx int) {
	removedID := s.roster[idx].ID()
	s.roster = append(s.roster[:idx], s.roster[idx+1:]...)
	delete(s.rosterIndex, removedID)
	for id, i := range s.rosterIndex {
		if i > idx {
			s.rosterIndex[id] = i - 1
		}
	}
}

// CancelAll removes every peer from the roster and forces each one back to
// Starving, per spec §4.3. Used when the supporter itself is unregistered or
// goes dead.
func (s *SupporterRecord) CancelAll() {
	if len(s.roster) == 0 {
		return
	}
	cancelled := s.roster
	s.roster = nil
	s.rosterIndex = make(map[string]int)
	s.dirty = true
	for _, peer := range cancelled {
		peer.AbortSupport()
	}
}

// RefreshRoster removes peers whose state has returned to Default. Default
// is the only state reachable out of Supported, so no other state needs
// checking, per spec §4.3.
func (s *SupporterRecord) RefreshRoster() {
	if len(s.roster) == 0 {
		return
	}
	kept := s.roster[:0:0]
	changed := false
	for _, peer := range s.roster {
		if peer.State() == StateDefault {
			changed = true
			continue
		}
		kept = append(kept, peer)
	}
	if !changed {
		return
	}
	s.roster = kept
	s.rosterIndex = make(map[string]int, len(kept))
	for i, peer := range kept {
		s.rosterIndex[peer.ID()] = i
	}
	s.dirty = true
}

// ConsumeDirty atomically returns the dirty flag's value and clears it.
func (s *SupporterRecord) ConsumeDirty() bool {
	v := s.dirty
	s.dirty = false
	return v
}
