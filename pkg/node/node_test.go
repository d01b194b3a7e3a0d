package node

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/villas-project/villasnode-go/pkg/api"
	"github.com/villas-project/villasnode-go/pkg/sample"
	"github.com/villas-project/villasnode-go/pkg/signal"
)

// faultyType is a minimal node.Type test double whose Read/Write can be
// told to return a fatal (negative) count, so the Instance wrapper's
// propagation of that fault can be exercised without a real transport.
type faultyType struct {
	readN, writeN     int
	readErr, writeErr error
}

func (f *faultyType) Signals() signal.List { return nil }
func (f *faultyType) Check() error         { return nil }
func (f *faultyType) Start() error         { return nil }
func (f *faultyType) Stop() error          { return nil }
func (f *faultyType) Destroy() error       { return nil }
func (f *faultyType) Print() string        { return "faulty" }
func (f *faultyType) PollFDs() []int       { return nil }

func (f *faultyType) Read(out []*sample.Sample) (int, error) { return f.readN, f.readErr }
func (f *faultyType) Write(in []*sample.Sample) (int, error) { return f.writeN, f.writeErr }

func TestInstanceReadPropagatesFatalCount(t *testing.T) {
	underlying := errors.New("socket closed")
	inst := NewInstance("src", &faultyType{readN: -1, readErr: underlying})

	out := make([]*sample.Sample, 4)
	n, err := inst.Read(out)

	require.Equal(t, -1, n, "a fatal Read must surface its negative count, not be clamped to 0")
	require.ErrorIs(t, err, api.ErrIO)
	require.ErrorIs(t, err, underlying)
}

func TestInstanceWritePropagatesFatalCount(t *testing.T) {
	underlying := errors.New("broker disconnected")
	inst := NewInstance("dst", &faultyType{writeN: -1, writeErr: underlying})

	n, err := inst.Write(make([]*sample.Sample, 2))

	require.Equal(t, -1, n, "a fatal Write must surface its negative count, not be clamped to 0")
	require.ErrorIs(t, err, api.ErrIO)
	require.ErrorIs(t, err, underlying)
}

func TestInstanceReadStampsSequenceOnSuccess(t *testing.T) {
	inst := NewInstance("src", &faultyType{readN: 2})

	out := []*sample.Sample{{}, {}}
	n, err := inst.Read(out)

	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, uint64(0), out[0].Seq)
	require.Equal(t, uint64(1), out[1].Seq)
	require.Same(t, inst, out[0].Source)
}
