// Package sample implements the time-stamped value vector that travels
// through a path, and the fixed-capacity Pool that allocates it.
//
// The implementation follows the concurrency texture of hayabusa-cloud's
// lfq package (code.hybscloud.com/atomix padded atomic counters,
// code.hybscloud.com/spin backoff on contention) without adopting its
// MPMC work-stealing algorithm: a Pool's free list is consumed by exactly
// one logical owner at a time per path, so a Treiber-stack LIFO over a
// tagged index is enough — no SCQ cycle tags are needed here.
package sample

import (
	"time"

	"code.hybscloud.com/atomix"

	"github.com/villas-project/villasnode-go/pkg/signal"
)

// Source is a weak, identity-only back-reference to the Node that
// produced a Sample. Sample deliberately does not import pkg/node (which
// itself produces Samples) — only the identity is needed downstream.
type Source interface {
	Name() string
}

// Sample is a single time-stamped vector of typed values.
//
// Invariants: 0 <= Length <= cap(Values); refCount starts at 1 on Acquire
// (the pipeline's initial ownership) and drops to 0 exactly once, when
// the Queue's Reclaim passes the slowest reader past this Sample's slot
// or a read-side hook drops it before it ever reaches the Queue. Once it
// reaches zero the Sample is returned to its owning Pool intact — storage
// is reused, values become stale but are never read again until the next
// producer overwrites them.
type Sample struct {
	Seq        uint64
	OriginTS   time.Time
	ReceivedTS time.Time
	Source     Source
	Signals    signal.List
	Values     []signal.Value // len == cap always; Length is the populated prefix
	Length     int

	refCount atomix.Int32
	pool     *Pool
	slot     int32 // index into pool.samples; meaningless if pool is nil (unpooled, tests only)
}

// Capacity returns the declared value-vector capacity of this Sample.
func (s *Sample) Capacity() int { return cap(s.Values) }

// Reset clears metadata ahead of reuse by a new producer. Value storage
// is left as-is (undefined until the producer writes it); only metadata
// is zeroed: sequence number, length, both timestamps and the source.
func (s *Sample) Reset() {
	s.Seq = 0
	s.Length = 0
	s.OriginTS = time.Time{}
	s.ReceivedTS = time.Time{}
	s.Source = nil
}

// DecRef releases this Sample's sole reference. When the count reaches zero the
// Sample is returned to its owning Pool automatically. Returns true if
// this call caused the return.
func (s *Sample) DecRef() bool {
	if s.refCount.AddAcqRel(-1) == 0 {
		if s.pool != nil {
			s.pool.release1(s)
		}
		return true
	}
	return false
}

// Pool returns the Pool this Sample was allocated from (nil if unpooled).
func (s *Sample) Pool() *Pool { return s.pool }
