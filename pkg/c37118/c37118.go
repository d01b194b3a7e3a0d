// Package c37118 implements the IEEE C37.118 synchrophasor binary frame
// codec: big-endian wire format, a sync word encoding frame type and
// version, and a trailing CRC-CCITT-FALSE checksum over everything
// preceding it. Serialization uses the placeholder-patch technique: the
// frame size field is written as zero, the body is appended, then the
// size is patched in place once the final length is known, and the CRC
// is computed over the finished bytes and appended last — the same
// "reserve, fill, patch" approach the source system's frame encoder
// uses, expressed here as byte-slice index patching instead of pointer
// arithmetic over a fixed C struct.
package c37118

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sigurn/crc16"

	"github.com/villas-project/villasnode-go/pkg/api"
)

// FrameType is the high nibble of the sync word's second byte; the low
// nibble carries the frame version.
type FrameType uint8

const (
	FrameTypeData FrameType = iota
	FrameTypeHeader
	FrameTypeConfig1
	FrameTypeConfig2
	FrameTypeConfig3
	FrameTypeCommand
)

const (
	syncLeader   = 0xAA
	versionMask  = 0x0F
	frameVersion = 1

	headerLen = 14 // SYNC(2) FRAMESIZE(2) IDCODE(2) SOC(4) FRACSEC(4)
	crcLen    = 2
)

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Header is the common prefix of every C37.118 frame.
type Header struct {
	Type    FrameType
	IDCode  uint16
	SOC     uint32 // seconds-of-century
	FracSec uint32 // fraction-of-second, 24-bit value + 8-bit time quality flags
}

// Config describes the PMU data layout a DataFrame is decoded against;
// it is the frame this codec expects config-2 frames to have already
// been decoded into and bound by the caller before decoding data frames.
// Config-3 frames are not implemented (an open question left undecided
// upstream).
type Config struct {
	IDCode     uint16
	PhasorNum  int
	AnalogNum  int
	DigitalNum int
	PhasorType bool // true: polar (magnitude, angle); false: rectangular (real, imag)
	Format16   bool // true: 16-bit fixed-point values; false: 32-bit float
}

// DataFrame is one decoded C37.118 data frame's payload: a fixed number
// of phasors, analog values, and digital status words, per Config.
type DataFrame struct {
	Header   Header
	Stat     uint16
	Phasors  [][2]float64 // [0]=magnitude|real, [1]=angle|imag, per Config.PhasorType
	Analogs  []float64
	Digitals []uint16
}

// Encode serializes a DataFrame against cfg into its wire representation.
func Encode(df *DataFrame, cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, api.ErrMissingConfig
	}
	if len(df.Phasors) != cfg.PhasorNum || len(df.Analogs) != cfg.AnalogNum || len(df.Digitals) != cfg.DigitalNum {
		return nil, fmt.Errorf("%w: data frame does not match bound config vector lengths", api.ErrInvalidValue)
	}

	buf := make([]byte, headerLen)
	buf[0] = syncLeader
	buf[1] = byte(FrameTypeData)<<4 | frameVersion
	// buf[2:4] framesize placeholder, patched below
	binary.BigEndian.PutUint16(buf[4:6], df.Header.IDCode)
	binary.BigEndian.PutUint32(buf[6:10], df.Header.SOC)
	binary.BigEndian.PutUint32(buf[10:14], df.Header.FracSec)

	buf = binary.BigEndian.AppendUint16(buf, df.Stat)
	for _, ph := range df.Phasors {
		buf = appendPhasor(buf, ph, cfg)
	}
	for _, a := range df.Analogs {
		buf = appendValue(buf, a, cfg.Format16)
	}
	for _, d := range df.Digitals {
		buf = binary.BigEndian.AppendUint16(buf, d)
	}

	// Patch FRAMESIZE now that the body length is known.
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(buf)+crcLen))

	crc := crc16.Checksum(buf, crcTable)
	buf = binary.BigEndian.AppendUint16(buf, crc)
	return buf, nil
}

func appendPhasor(buf []byte, ph [2]float64, cfg *Config) []byte {
	_ = cfg.PhasorType // both polar and rectangular encode as two values; meaning differs, wire shape does not
	buf = appendValue(buf, ph[0], cfg.Format16)
	buf = appendValue(buf, ph[1], cfg.Format16)
	return buf
}

func appendValue(buf []byte, v float64, format16 bool) []byte {
	if format16 {
		return binary.BigEndian.AppendUint16(buf, uint16(int16(v)))
	}
	return binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(v)))
}

// Decode parses a wire data frame against cfg (required; a nil cfg yields
// api.ErrMissingConfig). Frames of any other type are rejected with
// api.ErrInvalidValue after the CRC check. Returns api.ErrMissingBytes if buf is
// shorter than the frame's declared size, api.ErrInvalidChecksum on a CRC
// mismatch, and api.ErrInvalidSlice if a phasor/analog/digital slice
// would read past the frame's declared body.
func Decode(buf []byte, cfg *Config) (*DataFrame, error) {
	if len(buf) < headerLen+crcLen {
		return nil, api.ErrMissingBytes
	}
	if buf[0] != syncLeader {
		return nil, fmt.Errorf("%w: bad sync leader byte", api.ErrInvalidValue)
	}
	frameType := FrameType(buf[1] >> 4)
	if buf[1]&versionMask != frameVersion {
		return nil, fmt.Errorf("%w: unsupported frame version", api.ErrInvalidValue)
	}
	size := binary.BigEndian.Uint16(buf[2:4])
	if int(size) > len(buf) {
		return nil, api.ErrMissingBytes
	}
	frame := buf[:size]

	wantCRC := binary.BigEndian.Uint16(frame[len(frame)-crcLen:])
	gotCRC := crc16.Checksum(frame[:len(frame)-crcLen], crcTable)
	if wantCRC != gotCRC {
		return nil, api.ErrInvalidChecksum
	}

	if frameType != FrameTypeData {
		return nil, fmt.Errorf("%w: only data frames are decoded by this codec", api.ErrInvalidValue)
	}
	if cfg == nil {
		return nil, api.ErrMissingConfig
	}

	df := &DataFrame{
		Header: Header{
			Type:    frameType,
			IDCode:  binary.BigEndian.Uint16(frame[4:6]),
			SOC:     binary.BigEndian.Uint32(frame[6:10]),
			FracSec: binary.BigEndian.Uint32(frame[10:14]),
		},
	}

	off := headerLen
	if off+2 > len(frame)-crcLen {
		return nil, api.ErrInvalidSlice
	}
	df.Stat = binary.BigEndian.Uint16(frame[off : off+2])
	off += 2

	width := 4
	if cfg.Format16 {
		width = 2
	}

	df.Phasors = make([][2]float64, 0, cfg.PhasorNum)
	for i := 0; i < cfg.PhasorNum; i++ {
		v0, next, err := readValue(frame, off, width, len(frame)-crcLen)
		if err != nil {
			return nil, err
		}
		v1, next2, err := readValue(frame, next, width, len(frame)-crcLen)
		if err != nil {
			return nil, err
		}
		off = next2
		df.Phasors = append(df.Phasors, [2]float64{v0, v1})
	}

	df.Analogs = make([]float64, 0, cfg.AnalogNum)
	for i := 0; i < cfg.AnalogNum; i++ {
		v, next, err := readValue(frame, off, width, len(frame)-crcLen)
		if err != nil {
			return nil, err
		}
		off = next
		df.Analogs = append(df.Analogs, v)
	}

	df.Digitals = make([]uint16, 0, cfg.DigitalNum)
	for i := 0; i < cfg.DigitalNum; i++ {
		if off+2 > len(frame)-crcLen {
			return nil, api.ErrInvalidSlice
		}
		df.Digitals = append(df.Digitals, binary.BigEndian.Uint16(frame[off:off+2]))
		off += 2
	}

	return df, nil
}

func readValue(frame []byte, off, width, limit int) (float64, int, error) {
	if off+width > limit {
		return 0, 0, api.ErrInvalidSlice
	}
	if width == 2 {
		return float64(int16(binary.BigEndian.Uint16(frame[off : off+2]))), off + 2, nil
	}
	bits := binary.BigEndian.Uint32(frame[off : off+4])
	return float64(math.Float32frombits(bits)), off + 4, nil
}
