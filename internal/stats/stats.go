// Package stats tracks runtime statistics for the alert engine.
//
// Counters record what happened to each candidate (committed, merged,
// suppressed, discarded, trimmed); a DDSketch tracks commit latency so the
// host can report percentiles without keeping raw samples.
package stats

import (
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// Stats tracks engine counters and commit-latency percentiles.
//
// Like the engine itself, Stats is single-threaded; the host serializes
// access externally.
type Stats struct {
	// Counters
	EventsIn    int64 // change events and catch-up records ingested
	Committed   int64 // alerts appended to the log
	Merged      int64 // candidates folded into an existing alert
	Suppressed  int64 // ghost-suppressed node removals
	Discarded   int64 // provisional alerts that failed validation
	Unwanted    int64 // alerts dropped by category flags
	Trimmed     int64 // alerts removed by the size bound
	DecodeSkips int64 // persisted records skipped during restore

	// sketch holds commit latencies in milliseconds; nil if percentiles are
	// disabled or the sketch could not be built.
	sketch *ddsketch.DDSketch
}

// New creates a Stats tracker. accuracy is the DDSketch relative accuracy
// (0.01 = 1% error); an invalid accuracy disables percentiles rather than
// failing.
func New(accuracy float64) *Stats {
	s := &Stats{}
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err == nil {
		s.sketch = sketch
	}
	return s
}

// RecordCommit records the latency of one committed batch.
func (s *Stats) RecordCommit(d time.Duration) {
	if s.sketch == nil {
		return
	}
	// Add only accepts positive values; clamp sub-microsecond batches.
	ms := float64(d.Microseconds()) / 1000.0
	if ms <= 0 {
		ms = 0.001
	}
	_ = s.sketch.Add(ms)
}

// CommitLatency returns the given commit-latency quantile in milliseconds,
// e.g. 0.5 or 0.99. Returns 0 when no commits were recorded or percentiles
// are disabled.
func (s *Stats) CommitLatency(quantile float64) float64 {
	if s.sketch == nil || s.sketch.GetCount() == 0 {
		return 0
	}
	v, err := s.sketch.GetValueAtQuantile(quantile)
	if err != nil {
		return 0
	}
	return v
}

// CommitCount returns the number of recorded commit latencies.
func (s *Stats) CommitCount() int64 {
	if s.sketch == nil {
		return 0
	}
	return int64(s.sketch.GetCount())
}
