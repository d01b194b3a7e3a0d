package hook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/villas-project/villasnode-go/pkg/sample"
)

func mkBatch(n int) []*sample.Sample {
	out := make([]*sample.Sample, n)
	for i := range out {
		out[i] = &sample.Sample{Seq: uint64(i + 1)}
	}
	return out
}

func TestChainOrdersByPriority(t *testing.T) {
	var order []string
	record := func(name string, priority int) Hook {
		return &recordingHook{name: name, priority: priority, kinds: KindPathRead, onProcess: func(*sample.Sample) Verdict {
			order = append(order, name)
			return OK
		}}
	}
	chain := NewChain([]Hook{record("b", 2), record("a", 1), record("c", 3)})
	batch := mkBatch(1)
	chain.Run(KindPathRead, batch, nil)
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestDecimateKeepsEveryOther(t *testing.T) {
	d := NewDecimate(0, KindPathRead, 2)
	chain := NewChain([]Hook{d})

	batch := mkBatch(10)
	n, skipped, _ := chain.Run(KindPathRead, batch, func(*sample.Sample) {})
	require.Equal(t, 5, n)
	require.Equal(t, 5, skipped)
	for i, s := range batch[:n] {
		require.Equal(t, uint64(2*i+1), s.Seq)
	}
}

func TestSkipFirstDropsWarmup(t *testing.T) {
	sf := NewSkipFirst(0, KindNodeRead, 3)
	chain := NewChain([]Hook{sf})

	batch := mkBatch(5)
	n, skipped, _ := chain.Run(KindNodeRead, batch, func(*sample.Sample) {})
	require.Equal(t, 2, n)
	require.Equal(t, 3, skipped)
	require.Equal(t, uint64(4), batch[0].Seq)
	require.Equal(t, uint64(5), batch[1].Seq)
}

func TestLimitRateKeepsOnlySamplesFarEnoughApart(t *testing.T) {
	lr := NewLimitRate(0, KindPathRead, 2) // max 2 Hz -> 500ms interval
	chain := NewChain([]Hook{lr})

	base := time.Unix(0, 0)
	batch := []*sample.Sample{
		{Seq: 1, OriginTS: base},
		{Seq: 2, OriginTS: base.Add(100 * time.Millisecond)},
		{Seq: 3, OriginTS: base.Add(500 * time.Millisecond)},
		{Seq: 4, OriginTS: base.Add(600 * time.Millisecond)},
		{Seq: 5, OriginTS: base.Add(1100 * time.Millisecond)},
	}
	n, skipped, _ := chain.Run(KindPathRead, batch, func(*sample.Sample) {})
	require.Equal(t, 3, n)
	require.Equal(t, 2, skipped)
	require.Equal(t, []uint64{1, 3, 5}, []uint64{batch[0].Seq, batch[1].Seq, batch[2].Seq})
}

func TestRunOnlyMatchesDeclaredKind(t *testing.T) {
	sf := NewSkipFirst(0, KindNodeWrite, 3)
	chain := NewChain([]Hook{sf})

	batch := mkBatch(5)
	n, skipped, _ := chain.Run(KindNodeRead, batch, nil)
	require.Equal(t, 5, n)
	require.Equal(t, 0, skipped)
}

func TestHookStopHaltsPath(t *testing.T) {
	stopper := &recordingHook{name: "s", kinds: KindPathRead, onProcess: func(*sample.Sample) Verdict { return Stop }}
	chain := NewChain([]Hook{stopper})
	batch := mkBatch(1)
	n, skipped, stop := chain.Run(KindPathRead, batch, func(*sample.Sample) {})
	require.Equal(t, 0, n)
	require.Equal(t, 1, skipped)
	require.True(t, stop)
}

// recordingHook is a minimal test double implementing Hook + Processor.
type recordingHook struct {
	name      string
	priority  int
	kinds     Kind
	onProcess func(*sample.Sample) Verdict
}

func (r *recordingHook) Name() string  { return r.name }
func (r *recordingHook) Kinds() Kind   { return r.kinds }
func (r *recordingHook) Priority() int { return r.priority }
func (r *recordingHook) Process(s *sample.Sample) Verdict {
	return r.onProcess(s)
}
