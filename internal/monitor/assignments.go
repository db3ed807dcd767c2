package monitor

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// assignmentCounter tracks, per peer ID, how many times a peer has ever been
// assigned to a supporter. It exists purely as a sort key for the assignment
// phase (spec §4.4): peers that re-starve often are served first.
//
// The original implementation keeps this counter in a plain map that never
// shrinks (spec §9 DESIGN NOTES calls this out explicitly: "a production
// implementation should decay or evict entries for long-departed peers; the
// tests do not require it"). We address that note directly by backing the
// counter with a ttlcache: entries for peers that haven't been reassigned
// within ttl age out on their own. A zero TTL (the Coordinator's default,
// used by the test suite) never expires entries and reproduces the
// original's unbounded-growth behavior exactly.
type assignmentCounter struct {
	cache *ttlcache.Cache[string, int]
}

func newAssignmentCounter(ttl time.Duration) *assignmentCounter {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, int](ttl),
	)
	go cache.Start()
	return &assignmentCounter{cache: cache}
}

func (a *assignmentCounter) increment(peerID string) int {
	next := 1
	if item := a.cache.Get(peerID); item != nil {
		next = item.Value() + 1
	}
	a.cache.Set(peerID, next, ttlcache.DefaultTTL)
	return next
}

func (a *assignmentCounter) count(peerID string) int {
	item := a.cache.Get(peerID)
	if item == nil {
		return 0
	}
	return item.Value()
}

func (a *assignmentCounter) stop() {
	a.cache.Stop()
}
