// Package socket implements a UDP node type: each Sample's value vector
// is carried as one datagram of big-endian float64s, one per signal. The
// c37118 node type does not use this package; it opens its own UDP
// socket.
package socket

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"time"

	"github.com/villas-project/villasnode-go/pkg/node"
	"github.com/villas-project/villasnode-go/pkg/registry"
	"github.com/villas-project/villasnode-go/pkg/sample"
	"github.com/villas-project/villasnode-go/pkg/signal"
)

func init() {
	registry.RegisterType("socket", New)
}

// Socket is a UDP node type. It listens on local and, if remote is set,
// sends Write batches there; Read always drains whatever arrives on the
// listening socket regardless of source.
type Socket struct {
	name    string
	local   string
	remote  string
	signals signal.List

	conn     *net.UDPConn
	remoteAO *net.UDPAddr
}

// New is the node.Factory for the "socket" node type. Settings: local
// (listen address, "host:port" or ":port"), remote (optional send
// address), signals (a list; only its length is used, and every signal
// is a float, named signal0, signal1, ... by position).
func New(name string, settings map[string]any) (node.Type, error) {
	s := &Socket{name: name}
	if v, ok := settings["local"].(string); ok {
		s.local = v
	}
	if v, ok := settings["remote"].(string); ok {
		s.remote = v
	}
	n := 1
	if v, ok := settings["signals"]; ok {
		if list, ok := v.([]any); ok {
			n = len(list)
		}
	}
	sigs := make(signal.List, n)
	for i := range sigs {
		sigs[i] = signal.Descriptor{Name: fmt.Sprintf("signal%d", i), Kind: signal.KindFloat}
	}
	s.signals = sigs
	return s, nil
}

func (s *Socket) Signals() signal.List { return s.signals }

func (s *Socket) Check() error {
	if s.local == "" {
		return fmt.Errorf("socket: local address is required")
	}
	return nil
}

func (s *Socket) Start() error {
	addr, err := net.ResolveUDPAddr("udp", s.local)
	if err != nil {
		return fmt.Errorf("socket: resolve local: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("socket: listen: %w", err)
	}
	s.conn = conn
	if s.remote != "" {
		raddr, err := net.ResolveUDPAddr("udp", s.remote)
		if err != nil {
			conn.Close()
			return fmt.Errorf("socket: resolve remote: %w", err)
		}
		s.remoteAO = raddr
	}
	return nil
}

func (s *Socket) Stop() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Socket) Destroy() error { return nil }
func (s *Socket) Print() string {
	return fmt.Sprintf("socket: local=%s remote=%s", s.local, s.remote)
}

func (s *Socket) PollFDs() []int {
	if s.conn == nil {
		return nil
	}
	sc, err := s.conn.SyscallConn()
	if err != nil {
		return nil
	}
	var fd int
	sc.Control(func(f uintptr) { fd = int(f) })
	return []int{fd}
}

func (s *Socket) Read(out []*sample.Sample) (int, error) {
	if s.conn == nil {
		return 0, fmt.Errorf("socket: not started")
	}
	n := 0
	for n < len(out) {
		s.conn.SetReadDeadline(time.Now())
		buf := make([]byte, 8*len(s.signals))
		rn, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			return -1, fmt.Errorf("socket: read: %w", err)
		}
		count := rn / 8
		if count > len(s.signals) {
			count = len(s.signals)
		}
		out[n].Length = count
		for i := 0; i < count; i++ {
			bits := binary.BigEndian.Uint64(buf[i*8:])
			out[n].Values[i] = signal.FloatValue(math.Float64frombits(bits))
		}
		n++
	}
	return n, nil
}

func (s *Socket) Write(in []*sample.Sample) (int, error) {
	if s.conn == nil {
		return 0, fmt.Errorf("socket: not started")
	}
	if s.remoteAO == nil {
		return -1, fmt.Errorf("socket: no remote address configured for write")
	}
	sent := 0
	for _, smp := range in {
		buf := make([]byte, 8*smp.Length)
		for i := 0; i < smp.Length; i++ {
			binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(smp.Values[i].Float))
		}
		if _, err := s.conn.WriteToUDP(buf, s.remoteAO); err != nil {
			return sent, fmt.Errorf("socket: write: %w", err)
		}
		sent++
	}
	return sent, nil
}
