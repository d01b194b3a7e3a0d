package c37118

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/villas-project/villasnode-go/pkg/api"
)

func TestEncodeDecodeRoundTrip32Bit(t *testing.T) {
	cfg := &Config{IDCode: 7, PhasorNum: 2, AnalogNum: 1, DigitalNum: 1}
	df := &DataFrame{
		Header:   Header{IDCode: 7, SOC: 1234, FracSec: 5},
		Stat:     0x1234,
		Phasors:  [][2]float64{{120.5, 0.1}, {119.9, -0.2}},
		Analogs:  []float64{42.5},
		Digitals: []uint16{0xBEEF},
	}

	buf, err := Encode(df, cfg)
	require.NoError(t, err)

	got, err := Decode(buf, cfg)
	require.NoError(t, err)
	require.Equal(t, df.Header.IDCode, got.Header.IDCode)
	require.Equal(t, df.Stat, got.Stat)
	require.InDeltaSlice(t, []float64{120.5, 0.1, 119.9, -0.2}, flatten(got.Phasors), 1e-3)
	require.InDelta(t, 42.5, got.Analogs[0], 1e-3)
	require.Equal(t, df.Digitals, got.Digitals)
}

func TestEncodeDecodeRoundTrip16Bit(t *testing.T) {
	cfg := &Config{IDCode: 1, PhasorNum: 1, AnalogNum: 0, DigitalNum: 0, Format16: true}
	df := &DataFrame{
		Header:  Header{IDCode: 1},
		Phasors: [][2]float64{{100, -50}},
	}
	buf, err := Encode(df, cfg)
	require.NoError(t, err)
	got, err := Decode(buf, cfg)
	require.NoError(t, err)
	require.Equal(t, float64(100), got.Phasors[0][0])
	require.Equal(t, float64(-50), got.Phasors[0][1])
}

func TestDecodeDetectsCorruptChecksum(t *testing.T) {
	cfg := &Config{IDCode: 1, AnalogNum: 1}
	df := &DataFrame{Header: Header{IDCode: 1}, Analogs: []float64{1}}
	buf, err := Encode(df, cfg)
	require.NoError(t, err)
	buf[len(buf)-1] ^= 0xFF

	_, err = Decode(buf, cfg)
	require.ErrorIs(t, err, api.ErrInvalidChecksum)
}

func TestDecodeTruncatedFrame(t *testing.T) {
	cfg := &Config{IDCode: 1, AnalogNum: 1}
	df := &DataFrame{Header: Header{IDCode: 1}, Analogs: []float64{1}}
	buf, err := Encode(df, cfg)
	require.NoError(t, err)

	_, err = Decode(buf[:len(buf)-4], cfg)
	require.ErrorIs(t, err, api.ErrMissingBytes)
}

func TestDecodeWithoutBoundConfig(t *testing.T) {
	cfg := &Config{IDCode: 1}
	df := &DataFrame{Header: Header{IDCode: 1}}
	buf, err := Encode(df, cfg)
	require.NoError(t, err)

	_, err = Decode(buf, nil)
	require.ErrorIs(t, err, api.ErrMissingConfig)
}

func flatten(phasors [][2]float64) []float64 {
	out := make([]float64, 0, len(phasors)*2)
	for _, p := range phasors {
		out = append(out, p[0], p[1])
	}
	return out
}
