package queue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/villas-project/villasnode-go/pkg/sample"
)

func mkSamples(n int) []*sample.Sample {
	out := make([]*sample.Sample, n)
	for i := range out {
		out[i] = &sample.Sample{Seq: uint64(i)}
	}
	return out
}

func TestQueueBroadcastToAllReaders(t *testing.T) {
	q := New(8)
	r1 := q.RegisterReader(0)
	r2 := q.RegisterReader(0)

	in := mkSamples(3)
	pushed := q.PushMany(in, 3)
	require.Equal(t, 3, pushed)

	out1 := make([]*sample.Sample, 3)
	n1 := q.PullMany(r1, out1, 3)
	require.Equal(t, 3, n1)
	require.Equal(t, in, out1)

	out2 := make([]*sample.Sample, 3)
	n2 := q.PullMany(r2, out2, 3)
	require.Equal(t, 3, n2)
	require.Equal(t, in, out2)
}

func TestQueueWriterBoundedBySlowestReader(t *testing.T) {
	q := New(4) // rounds to 4
	fast := q.RegisterReader(0)
	slow := q.RegisterReader(0)

	in := mkSamples(4)
	require.Equal(t, 4, q.PushMany(in, 4))

	out := make([]*sample.Sample, 4)
	require.Equal(t, 4, q.PullMany(fast, out, 4))

	// slow reader hasn't advanced: the ring is full from its perspective.
	more := mkSamples(1)
	require.Equal(t, 0, q.PushMany(more, 1))

	require.Equal(t, 4, q.PullMany(slow, out, 4))
	require.Equal(t, 1, q.PushMany(more, 1))
}

func TestQueuePeekDoesNotAdvanceCursor(t *testing.T) {
	q := New(4)
	r := q.RegisterReader(0)
	in := mkSamples(2)
	q.PushMany(in, 2)

	out := make([]*sample.Sample, 2)
	n := q.Peek(q.ReaderCursor(r), out, 2)
	require.Equal(t, 2, n)
	require.Equal(t, uint64(0), q.ReaderCursor(r))
}

func TestQueueReclaimReleasesPastSlowestReader(t *testing.T) {
	q := New(4)
	r := q.RegisterReader(0)

	s := &sample.Sample{}
	released := q.PushMany([]*sample.Sample{s}, 1)
	require.Equal(t, 1, released)

	out := make([]*sample.Sample, 1)
	require.Equal(t, 1, q.PullMany(r, out, 1))

	n := q.Reclaim()
	require.Equal(t, 1, n)
}

func TestRegisterReaderAfterActivityPanics(t *testing.T) {
	q := New(4)
	q.PushMany(mkSamples(1), 1)
	require.Panics(t, func() { q.RegisterReader(0) })
}
