package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerFiresAtConfiguredRate(t *testing.T) {
	tmr, err := New(1000) // 1ms period
	require.NoError(t, err)
	defer tmr.Close()

	overrun, err := tmr.Wait()
	require.NoError(t, err)
	require.Zero(t, overrun)
}

// Scenario 4: Timer overrun. Stalling the waiting goroutine across
// several ticks must surface as a single Wait call reporting the missed
// tick count, not as several delayed-but-uncounted ticks.
func TestTimerOverrunCountsMissedTicks(t *testing.T) {
	tmr, err := New(1000) // 1ms period
	require.NoError(t, err)
	defer tmr.Close()

	_, err = tmr.Wait() // consume the first tick, one period after New
	require.NoError(t, err)

	time.Sleep(9 * time.Millisecond) // stall long enough for several ticks to elapse

	overrun, err := tmr.Wait()
	require.NoError(t, err)
	require.Greater(t, overrun, uint64(0))
}
