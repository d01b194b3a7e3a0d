package path

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/villas-project/villasnode-go/pkg/hook"
	"github.com/villas-project/villasnode-go/pkg/node"
	"github.com/villas-project/villasnode-go/pkg/sample"
	"github.com/villas-project/villasnode-go/pkg/signal"
)

// fakeNode is a minimal node.Type test double: Read drains a fed queue of
// payloads, Write records whatever it is given. It stands in for the
// real transports (socket, mqtt, ...) the way the teacher's own tests
// stand in fake Machines for a real VM backend. Once the feed is
// exhausted, a fakeNode with failOnEmpty set returns a fatal (-1) read
// instead of looping on "no data" — it stands in for a socket/broker
// node whose connection has dropped.
type fakeNode struct {
	mu          sync.Mutex
	feed        [][]float64
	written     [][]float64
	signals     signal.List
	failOnEmpty bool
}

func newFakeNode(width int) *fakeNode {
	sigs := make(signal.List, width)
	for i := range sigs {
		sigs[i] = signal.Descriptor{Name: "v", Kind: signal.KindFloat}
	}
	return &fakeNode{signals: sigs}
}

func (f *fakeNode) push(values ...float64) { f.mu.Lock(); f.feed = append(f.feed, values); f.mu.Unlock() }

func (f *fakeNode) Signals() signal.List { return f.signals }
func (f *fakeNode) Check() error         { return nil }
func (f *fakeNode) Start() error         { return nil }
func (f *fakeNode) Stop() error          { return nil }
func (f *fakeNode) Destroy() error       { return nil }
func (f *fakeNode) Print() string        { return "fake" }
func (f *fakeNode) PollFDs() []int       { return nil }

var errFakeNodeFault = errors.New("fake node: connection dropped")

func (f *fakeNode) Read(out []*sample.Sample) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.feed)
	if n > len(out) {
		n = len(out)
	}
	if n == 0 && f.failOnEmpty {
		return -1, errFakeNodeFault
	}
	for i := 0; i < n; i++ {
		vals := f.feed[i]
		out[i].Length = len(vals)
		for j, v := range vals {
			out[i].Values[j] = signal.FloatValue(v)
		}
	}
	f.feed = f.feed[n:]
	return n, nil
}

func (f *fakeNode) Write(in []*sample.Sample) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range in {
		vals := make([]float64, s.Length)
		for i := 0; i < s.Length; i++ {
			vals[i] = s.Values[i].Float
		}
		f.written = append(f.written, vals)
	}
	return len(in), nil
}

func (f *fakeNode) writtenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Scenario 1: Forward, on-arrival. rate=0, V=1 — every receive iteration
// immediately sends. Three samples with sequence-distinguishing payloads
// arrive at the source and must appear, in order, with identical
// payloads at the destination; afterwards at most those three samples may
// still be held, so every other pool slot must be free again.
func TestScenario1ForwardOnArrival(t *testing.T) {
	src := newFakeNode(1)
	dst := newFakeNode(1)
	src.push(1.0)
	src.push(2.0)
	src.push(3.0)

	p := New(Config{
		Name:         "A->B",
		Source:       node.NewInstance("A", src),
		Destinations: []*node.Instance{node.NewInstance("B", dst)},
		Hooks:        hook.NewChain(nil),
		Rate:         0,
		QueueLen:     8,
		SampleLen:    1,
		Vectorize:    1,
		Logger:       newTestLogger(),
	})
	require.NoError(t, p.Prepare())
	require.NoError(t, p.Start())

	require.Eventually(t, func() bool { return dst.writtenCount() >= 3 }, time.Second, time.Millisecond)
	require.NoError(t, p.Stop())

	require.Len(t, dst.written, 3)
	require.Equal(t, []float64{1.0}, dst.written[0])
	require.Equal(t, []float64{2.0}, dst.written[1])
	require.Equal(t, []float64{3.0}, dst.written[2])

	free := make([]*sample.Sample, p.pool.Cap())
	require.GreaterOrEqual(t, p.pool.Acquire(free), p.pool.Cap()-3)
}

// Scenario 2: Rate-driven with resend. With no new Samples arriving
// between two send-routine invocations, the second is a resend of the
// same Queue contents without advancing the destination's reader cursor.
func TestScenario2RateDrivenResend(t *testing.T) {
	src := newFakeNode(1)
	dst := newFakeNode(1)

	p := New(Config{
		Name:         "A->B",
		Source:       node.NewInstance("A", src),
		Destinations: []*node.Instance{node.NewInstance("B", dst)},
		Hooks:        hook.NewChain(nil),
		Rate:         2.0,
		QueueLen:     8,
		SampleLen:    1,
		Vectorize:    1,
		Logger:       newTestLogger(),
	})
	require.NoError(t, p.Prepare())

	s := &sample.Sample{Length: 1, Values: []signal.Value{signal.FloatValue(5.0)}}
	require.Equal(t, 1, p.q.PushMany([]*sample.Sample{s}, 1))

	readerID := p.destReaders[0].readerID
	p.sendOnce(false)
	cursorAfterFirst := p.q.ReaderCursor(readerID)

	p.sendOnce(true) // resend: cursor must not move
	cursorAfterResend := p.q.ReaderCursor(readerID)

	require.Equal(t, cursorAfterFirst, cursorAfterResend)
	require.Equal(t, 2, dst.writtenCount())
	require.Equal(t, dst.written[0], dst.written[1])
}

// A fatal (negative) read from the source must stop the receive loop
// instead of being mistaken for "no data, keep looping" — regression
// coverage for node.Instance.Read propagating a fatal count unchanged.
func TestFatalSourceReadStopsReceiveLoop(t *testing.T) {
	src := newFakeNode(1)
	src.failOnEmpty = true
	dst := newFakeNode(1)

	p := New(Config{
		Name:         "A->B",
		Source:       node.NewInstance("A", src),
		Destinations: []*node.Instance{node.NewInstance("B", dst)},
		Hooks:        hook.NewChain(nil),
		Rate:         0,
		QueueLen:     8,
		SampleLen:    1,
		Vectorize:    1,
		Logger:       newTestLogger(),
	})
	require.NoError(t, p.Prepare())
	require.NoError(t, p.Start())

	require.Eventually(t, func() bool {
		return p.recvGroup.Wait() != nil
	}, time.Second, time.Millisecond, "receive loop must exit on a fatal source read")

	err := p.Stop()
	require.Error(t, err)
	require.ErrorIs(t, err, errFakeNodeFault)
	require.Equal(t, StateStopped, p.State())
}

// Scenario 6: Hook skip. A HOOK_READ hook that skips every other sample
// halves the throughput and accounts every dropped sample as skipped.
func TestScenario6HookSkip(t *testing.T) {
	src := newFakeNode(1)
	dst := newFakeNode(1)
	for i := 1; i <= 10; i++ {
		src.push(float64(i))
	}

	everyOther := hook.NewDecimate(0, hook.KindPathRead, 2)
	p := New(Config{
		Name:         "A->B",
		Source:       node.NewInstance("A", src),
		Destinations: []*node.Instance{node.NewInstance("B", dst)},
		Hooks:        hook.NewChain([]hook.Hook{everyOther}),
		Rate:         0,
		QueueLen:     16,
		SampleLen:    1,
		Vectorize:    1,
		Logger:       newTestLogger(),
	})
	require.NoError(t, p.Prepare())
	require.NoError(t, p.Start())

	require.Eventually(t, func() bool { return dst.writtenCount() >= 5 }, time.Second, time.Millisecond)
	require.NoError(t, p.Stop())

	require.Len(t, dst.written, 5)
	for i, want := range []float64{1, 3, 5, 7, 9} {
		require.Equal(t, want, dst.written[i][0])
	}
	require.Equal(t, int64(5), p.Stats.Skipped.Load())
}
