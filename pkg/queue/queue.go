// Package queue implements the bounded, single-writer, multi-reader ring
// buffer each Path uses to fan samples out to its destinations and to any
// hook that declared a history window.
//
// Unlike hayabusa-cloud-lfq's MPMC/MPSC/SPMC queues (each enqueued item
// consumed exactly once, by whichever consumer wins a Fetch-And-Add race),
// this queue is a broadcast ring: every registered reader observes every
// pushed Sample independently, and a slot is only reclaimed once the
// slowest reader has passed it. The padded-atomic-field, spin-backoff
// texture is carried over from that package (code.hybscloud.com/atomix,
// code.hybscloud.com/spin); the algorithm is adapted for broadcast reads
// instead of work-stealing.
package queue

import (
	"sync"

	"code.hybscloud.com/atomix"

	"github.com/villas-project/villasnode-go/pkg/api"
	"github.com/villas-project/villasnode-go/pkg/sample"
)

// Queue is a bounded circular buffer of slot count Q (rounded up to the
// next power of two) holding Sample references, with one writer cursor
// and a dynamic set of independent reader cursors registered before the
// first push.
type Queue struct {
	_      [64]byte
	writer atomix.Uint64
	_      [64]byte

	slots []*sample.Sample
	mask  uint64
	cap   uint64

	mu          sync.Mutex // guards readers slice + started flag (registration only)
	readers     []*atomix.Uint64
	started     bool
	lastReclaim uint64
}

// New creates a Queue with capacity q, rounded up to the next power of
// two if it is not one already.
func New(q int) *Queue {
	if q <= 0 {
		panic("queue: capacity must be > 0")
	}
	n := roundToPow2(uint64(q))
	return &Queue{
		slots: make([]*sample.Sample, n),
		mask:  n - 1,
		cap:   n,
	}
}

func roundToPow2(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}

// Cap returns the physical slot count (a power of two).
func (q *Queue) Cap() int { return int(q.cap) }

// RegisterReader adds a reader cursor initialized to cursorInit and
// returns its id. May only be called during path preparation, before the
// first PushMany call — registering after activity can miss samples
// already pushed to earlier readers, so this panics instead of silently
// under-delivering.
func (q *Queue) RegisterReader(cursorInit uint64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		panic(ErrReaderAfterActivity)
	}
	c := &atomix.Uint64{}
	c.StoreRelaxed(cursorInit)
	q.readers = append(q.readers, c)
	return len(q.readers) - 1
}

func (q *Queue) minReaderLocked() uint64 {
	min := q.writer.LoadAcquire()
	for _, r := range q.readers {
		if v := r.LoadAcquire(); v < min {
			min = v
		}
	}
	return min
}

// PushMany is writer-only. It advances the writer cursor by the number
// of Samples that fit without overrunning the slowest reader and returns
// that count, which may be less than n. Samples past the returned count
// are the caller's responsibility (not stored, not released). The writer
// cursor is advanced only after the accepted slots are written.
func (q *Queue) PushMany(samples []*sample.Sample, n int) int {
	q.mu.Lock()
	q.started = true
	minReader := q.minReaderLocked()
	q.mu.Unlock()

	w := q.writer.LoadAcquire()
	lead := w - minReader
	room := int64(q.cap) - int64(lead)
	if room < 0 {
		room = 0
	}
	pushed := n
	if int64(pushed) > room {
		pushed = int(room)
	}
	if pushed <= 0 {
		return 0
	}

	for i := 0; i < pushed; i++ {
		q.slots[(w+uint64(i))&q.mask] = samples[i]
	}
	q.writer.StoreRelease(w + uint64(pushed))
	return pushed
}

// PullMany advances reader readerID and returns Samples in FIFO order.
// Returns 0, not an error, if the reader is caught up with the writer.
func (q *Queue) PullMany(readerID int, out []*sample.Sample, n int) int {
	r := q.reader(readerID)
	cur := r.LoadAcquire()
	w := q.writer.LoadAcquire()
	avail := w - cur
	pulled := n
	if uint64(pulled) > avail {
		pulled = int(avail)
	}
	if pulled <= 0 {
		return 0
	}
	for i := 0; i < pulled; i++ {
		out[i] = q.slots[(cur+uint64(i))&q.mask]
	}
	r.StoreRelease(cur + uint64(pulled))
	return pulled
}

// Peek is a non-advancing read from cursorBase, used by the send path so
// that a rate-driven resend of the last batch does not move the reader
// cursor. Returns the number of Samples actually available (<= n).
func (q *Queue) Peek(cursorBase uint64, out []*sample.Sample, n int) int {
	w := q.writer.LoadAcquire()
	if cursorBase > w {
		return 0
	}
	avail := w - cursorBase
	k := n
	if uint64(k) > avail {
		k = int(avail)
	}
	for i := 0; i < k; i++ {
		out[i] = q.slots[(cursorBase+uint64(i))&q.mask]
	}
	return k
}

// ReaderCursor returns the current position of reader readerID, for use
// as a Peek base (e.g. cursor - V to re-peek the last V samples sent).
func (q *Queue) ReaderCursor(readerID int) uint64 {
	return q.reader(readerID).LoadAcquire()
}

// WriterCursor returns the current writer position.
func (q *Queue) WriterCursor() uint64 { return q.writer.LoadAcquire() }

// reader looks up a registered reader's cursor. The readers slice is only
// ever mutated before the first push (RegisterReader), so this lock is
// uncontended in steady state; it exists to make that happens-before
// relationship explicit rather than to protect a hot path.
func (q *Queue) reader(id int) *atomix.Uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if id < 0 || id >= len(q.readers) {
		panic("queue: invalid reader id")
	}
	return q.readers[id]
}

// Reclaim scans forward from the last reclaimed position to min_i R_i and
// releases (DecRef) every Sample slot the slowest reader has now passed,
// returning them to their owning Pool. It must be called by the single
// owner of the queue's lifecycle (the Path) after pulls have advanced
// reader cursors; it is not safe to call concurrently with itself.
func (q *Queue) Reclaim() int {
	q.mu.Lock()
	min := q.minReaderLocked()
	q.mu.Unlock()

	released := 0
	for q.lastReclaim < min {
		idx := q.lastReclaim & q.mask
		s := q.slots[idx]
		q.slots[idx] = nil
		q.lastReclaim++
		if s != nil {
			s.DecRef()
			released++
		}
	}
	return released
}

// ErrReaderAfterActivity is returned indirectly via panic in
// RegisterReader; exported so callers constructing error messages can
// reference the same sentinel used by pkg/api.
var ErrReaderAfterActivity = api.ErrReaderRegistered
