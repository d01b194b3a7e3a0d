package hook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltinHooksRegistered(t *testing.T) {
	for _, name := range []string{"decimate", "skip_first", "limit_rate", "stats"} {
		_, ok := Lookup(name)
		require.True(t, ok, "expected %q to be registered", name)
	}
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	require.Panics(t, func() {
		Register("decimate", newDecimateFromConfig)
	})
}

func TestDecimateFromConfigDefaults(t *testing.T) {
	h, err := newDecimateFromConfig(5, map[string]any{})
	require.NoError(t, err)
	d, ok := h.(*Decimate)
	require.True(t, ok)
	require.Equal(t, 2, d.Ratio)
	require.Equal(t, 5, d.Priority())
}
