package hook

import (
	"sync/atomic"

	"github.com/villas-project/villasnode-go/pkg/sample"
)

// Stats is a periodic hook that counts samples seen on its configured
// read/write kinds and counts the rate-timer ticks it is run on; it never
// suppresses an emission. Both counters are readable through Seen and
// Ticks; pkg/stats does not read them.
type Stats struct {
	priority int
	kinds    Kind

	seen atomic.Int64
	tick atomic.Int64
}

func NewStats(priority int, kinds Kind) *Stats {
	return &Stats{priority: priority, kinds: kinds | KindPeriodic}
}

func (s *Stats) Name() string  { return "stats" }
func (s *Stats) Kinds() Kind   { return s.kinds }
func (s *Stats) Priority() int { return s.priority }

func (s *Stats) Process(_ *sample.Sample) Verdict {
	s.seen.Add(1)
	return OK
}

func (s *Stats) Periodic() Verdict {
	s.tick.Add(1)
	return OK
}

// Seen returns the number of samples observed so far.
func (s *Stats) Seen() int64 { return s.seen.Load() }

// Ticks returns the number of times Periodic has been run so far (the
// Path runs it only on ticks with no new Samples).
func (s *Stats) Ticks() int64 { return s.tick.Load() }

func newStatsFromConfig(priority int, settings map[string]any) (Hook, error) {
	kinds := KindPathRead | KindPathWrite
	if v, ok := settings["kind"]; ok {
		k, ok := v.(string)
		if ok {
			if parsed, err := parseKind(k); err == nil {
				kinds = parsed
			}
		}
	}
	return NewStats(priority, kinds), nil
}
