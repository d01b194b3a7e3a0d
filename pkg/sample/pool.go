package sample

import (
	"math"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"github.com/villas-project/villasnode-go/pkg/api"
	"github.com/villas-project/villasnode-go/pkg/signal"
)

var errForeignSample = api.ErrForeignSample

const emptyIndex = math.MaxUint32

// Pool is a fixed-capacity allocator of N Samples of identical capacity,
// backed by one contiguous allocation. A lock-free Treiber-stack LIFO of
// free slot indices backs Acquire/Release; the stack head packs a slot
// index and an ABA-guarding tag into a single atomix.Uint64, in the same
// padded-field, spin-backoff style as hayabusa-cloud-lfq's mpmc.go.
type Pool struct {
	_        [64]byte
	freeHead atomix.Uint64 // high 32 bits: tag, low 32 bits: slot index (or emptyIndex)
	_        [64]byte

	samples  []Sample
	next     []uint32 // next[i] = slot index pushed below i on the free stack
	capacity int // N
	valueCap int // per-sample value vector capacity
}

// NewPool allocates a Pool of n Samples, each with value-vector capacity
// valueCap. All n Samples start on the free list.
func NewPool(n, valueCap int) *Pool {
	if n <= 0 {
		panic("sample: pool size must be > 0")
	}
	if valueCap <= 0 {
		panic("sample: sample capacity must be > 0")
	}

	p := &Pool{
		samples:  make([]Sample, n),
		next:     make([]uint32, n),
		capacity: n,
		valueCap: valueCap,
	}

	for i := range p.samples {
		p.samples[i].pool = p
		p.samples[i].slot = int32(i)
		p.samples[i].Values = make([]signal.Value, valueCap)
	}

	// Build the initial free stack: 0 -> 1 -> 2 -> ... -> n-1 -> empty.
	for i := 0; i < n; i++ {
		if i+1 < n {
			p.next[i] = uint32(i + 1)
		} else {
			p.next[i] = emptyIndex
		}
	}
	p.freeHead.StoreRelaxed(uint64(0))

	return p
}

// Cap returns the pool's fixed sample count N.
func (p *Pool) Cap() int { return p.capacity }

// ValueCap returns the per-sample value vector capacity.
func (p *Pool) ValueCap() int { return p.valueCap }

func pack(tag uint32, idx uint32) uint64 { return uint64(tag)<<32 | uint64(idx) }
func unpack(v uint64) (tag uint32, idx uint32) {
	return uint32(v >> 32), uint32(v)
}

// Acquire fills out with up to len(out) free Samples and returns the
// number actually obtained. It never blocks: on exhaustion the caller
// simply receives fewer Samples than requested.
func (p *Pool) Acquire(out []*Sample) int {
	got := 0
	sw := spin.Wait{}
	for got < len(out) {
		cur := p.freeHead.LoadAcquire()
		tag, idx := unpack(cur)
		if idx == emptyIndex {
			break // exhausted; never blocks
		}
		nextIdx := p.next[idx]
		newHead := pack(tag+1, nextIdx)
		if p.freeHead.CompareAndSwapAcqRel(cur, newHead) {
			s := &p.samples[idx]
			s.Reset()
			s.refCount.StoreRelease(1)
			out[got] = s
			got++
			sw = spin.Wait{}
			continue
		}
		sw.Once()
	}
	return got
}

// Release returns k Samples to the Pool. Every Sample must belong to this
// Pool; if any does not, the call fails with api.ErrForeignSample and
// releases nothing (the whole batch is rejected rather than partially
// honored, since a mixed-ownership batch indicates a caller bug).
func (p *Pool) Release(samples []*Sample) (int, error) {
	for _, s := range samples {
		if s.pool != p {
			return 0, errForeignSample
		}
	}
	for _, s := range samples {
		p.push(s.slot)
	}
	return len(samples), nil
}

// release1 is called by Sample.DecRef when a single Sample's reference
// count reaches zero; it is the internal counterpart of Release for the
// one-at-a-time path used by the Queue's cursor-release logic.
func (p *Pool) release1(s *Sample) {
	p.push(s.slot)
}

func (p *Pool) push(idx int32) {
	sw := spin.Wait{}
	for {
		cur := p.freeHead.LoadAcquire()
		tag, head := unpack(cur)
		p.next[idx] = head
		newHead := pack(tag+1, uint32(idx))
		if p.freeHead.CompareAndSwapAcqRel(cur, newHead) {
			return
		}
		sw.Once()
	}
}
