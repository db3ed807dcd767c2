package monitor

import (
	"fmt"
	"io"
	"time"
)

// StatsSink receives one line per tick: <unix_time>\t<nr_default>\t
// <nr_watched>\t<nr_starving>\t<nr_supported>\n, per spec §6. It is an
// optional external hook — a nil sink simply skips the snapshot.
type StatsSink struct {
	w io.Writer
}

func NewStatsSink(w io.Writer) *StatsSink {
	return &StatsSink{w: w}
}

type stateCounts struct {
	nrDefault, nrWatched, nrStarving, nrSupported int
}

func (s *StatsSink) snapshot(now time.Time, counts stateCounts) error {
	if s == nil || s.w == nil {
		return nil
	}
	_, err := fmt.Fprintf(s.w, "%d\t%d\t%d\t%d\t%d\n",
		now.Unix(), counts.nrDefault, counts.nrWatched, counts.nrStarving, counts.nrSupported)
	return err
}
