// Package c37118 wraps pkg/c37118's wire codec in a node.Type, giving it
// a UDP transport and an actual routing-engine caller. It exercises the
// codec's error taxonomy against the plug-in contract's negative-return-
// is-fatal / partial-is-warning convention: a checksum or truncation
// error on one datagram is a partial-read warning (the bad datagram is
// dropped, the rest of the batch is kept), while a socket-level failure
// is fatal.
package c37118

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	codec "github.com/villas-project/villasnode-go/pkg/c37118"
	"github.com/villas-project/villasnode-go/pkg/node"
	"github.com/villas-project/villasnode-go/pkg/registry"
	"github.com/villas-project/villasnode-go/pkg/sample"
	"github.com/villas-project/villasnode-go/pkg/signal"
)

func init() {
	registry.RegisterType("c37118", New)
}

// Node is the "c37118" node type: a PMU data-frame source/sink over UDP.
type Node struct {
	name    string
	local   string
	remote  string
	cfg     codec.Config
	signals signal.List

	conn     *net.UDPConn
	remoteAO *net.UDPAddr
}

// New is the node.Factory for the "c37118" node type. Settings: local,
// remote (as pkg/node/socket), idcode, phasors, analogs, digitals,
// phasor_type ("polar"|"rectangular"), format16 (bool).
func New(name string, settings map[string]any) (node.Type, error) {
	n := &Node{name: name}
	if v, ok := settings["local"].(string); ok {
		n.local = v
	}
	if v, ok := settings["remote"].(string); ok {
		n.remote = v
	}
	if v, ok := toInt(settings["idcode"]); ok {
		n.cfg.IDCode = uint16(v)
	}
	if v, ok := toInt(settings["phasors"]); ok {
		n.cfg.PhasorNum = v
	}
	if v, ok := toInt(settings["analogs"]); ok {
		n.cfg.AnalogNum = v
	}
	if v, ok := toInt(settings["digitals"]); ok {
		n.cfg.DigitalNum = v
	}
	if v, ok := settings["phasor_type"].(string); ok {
		n.cfg.PhasorType = v == "polar"
	}
	if v, ok := settings["format16"].(bool); ok {
		n.cfg.Format16 = v
	}

	n.signals = make(signal.List, 0, n.cfg.PhasorNum*2+n.cfg.AnalogNum+n.cfg.DigitalNum)
	for i := 0; i < n.cfg.PhasorNum; i++ {
		n.signals = append(n.signals,
			signal.Descriptor{Name: fmt.Sprintf("phasor%d.0", i), Kind: signal.KindFloat},
			signal.Descriptor{Name: fmt.Sprintf("phasor%d.1", i), Kind: signal.KindFloat})
	}
	for i := 0; i < n.cfg.AnalogNum; i++ {
		n.signals = append(n.signals, signal.Descriptor{Name: fmt.Sprintf("analog%d", i), Kind: signal.KindFloat})
	}
	for i := 0; i < n.cfg.DigitalNum; i++ {
		n.signals = append(n.signals, signal.Descriptor{Name: fmt.Sprintf("digital%d", i), Kind: signal.KindInt})
	}
	return n, nil
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func (n *Node) Signals() signal.List { return n.signals }

func (n *Node) Check() error {
	if n.local == "" {
		return fmt.Errorf("c37118: local address is required")
	}
	if n.cfg.PhasorNum == 0 && n.cfg.AnalogNum == 0 && n.cfg.DigitalNum == 0 {
		return fmt.Errorf("c37118: at least one of phasors, analogs, digitals must be non-zero")
	}
	return nil
}

func (n *Node) Start() error {
	addr, err := net.ResolveUDPAddr("udp", n.local)
	if err != nil {
		return fmt.Errorf("c37118: resolve local: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("c37118: listen: %w", err)
	}
	n.conn = conn
	if n.remote != "" {
		raddr, err := net.ResolveUDPAddr("udp", n.remote)
		if err != nil {
			conn.Close()
			return fmt.Errorf("c37118: resolve remote: %w", err)
		}
		n.remoteAO = raddr
	}
	return nil
}

func (n *Node) Stop() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

func (n *Node) Destroy() error { return nil }
func (n *Node) Print() string  { return "c37118: " + n.local }

func (n *Node) PollFDs() []int {
	if n.conn == nil {
		return nil
	}
	sc, err := n.conn.SyscallConn()
	if err != nil {
		return nil
	}
	var fd int
	sc.Control(func(f uintptr) { fd = int(f) })
	return []int{fd}
}

func (n *Node) Read(out []*sample.Sample) (int, error) {
	if n.conn == nil {
		return 0, fmt.Errorf("c37118: not started")
	}
	count := 0
	for count < len(out) {
		n.conn.SetReadDeadline(time.Now())
		buf := make([]byte, 2048)
		rn, _, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			return -1, fmt.Errorf("c37118: socket read: %w", err)
		}
		df, err := codec.Decode(buf[:rn], &n.cfg)
		if err != nil {
			// A bad frame is a partial-read warning: drop it, keep going.
			continue
		}
		writeSample(out[count], df, &n.cfg)
		count++
	}
	return count, nil
}

func writeSample(s *sample.Sample, df *codec.DataFrame, cfg *codec.Config) {
	idx := 0
	for _, ph := range df.Phasors {
		s.Values[idx] = signal.FloatValue(ph[0])
		idx++
		s.Values[idx] = signal.FloatValue(ph[1])
		idx++
	}
	for _, a := range df.Analogs {
		s.Values[idx] = signal.FloatValue(a)
		idx++
	}
	for _, d := range df.Digitals {
		s.Values[idx] = signal.IntValue(int64(d))
		idx++
	}
	s.Length = idx
}

func (n *Node) Write(in []*sample.Sample) (int, error) {
	if n.remoteAO == nil {
		return -1, fmt.Errorf("c37118: no remote address configured for write")
	}
	sent := 0
	for _, smp := range in {
		df := sampleToFrame(smp, &n.cfg)
		buf, err := codec.Encode(df, &n.cfg)
		if err != nil {
			return sent, fmt.Errorf("c37118: encode: %w", err)
		}
		if _, err := n.conn.WriteToUDP(buf, n.remoteAO); err != nil {
			return sent, fmt.Errorf("c37118: socket write: %w", err)
		}
		sent++
	}
	return sent, nil
}

func sampleToFrame(s *sample.Sample, cfg *codec.Config) *codec.DataFrame {
	df := &codec.DataFrame{
		Header: codec.Header{IDCode: cfg.IDCode, SOC: uint32(s.OriginTS.Unix())},
	}
	idx := 0
	for i := 0; i < cfg.PhasorNum; i++ {
		df.Phasors = append(df.Phasors, [2]float64{valueAt(s, idx), valueAt(s, idx+1)})
		idx += 2
	}
	for i := 0; i < cfg.AnalogNum; i++ {
		df.Analogs = append(df.Analogs, valueAt(s, idx))
		idx++
	}
	for i := 0; i < cfg.DigitalNum; i++ {
		df.Digitals = append(df.Digitals, uint16(int64ValueAt(s, idx)))
		idx++
	}
	return df
}

func valueAt(s *sample.Sample, i int) float64 {
	if i >= s.Length {
		return 0
	}
	return s.Values[i].Float
}

func int64ValueAt(s *sample.Sample, i int) int64 {
	if i >= s.Length {
		return 0
	}
	return s.Values[i].Int
}
