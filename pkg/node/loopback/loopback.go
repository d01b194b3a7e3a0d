// Package loopback implements an in-memory node type that returns on
// Read the Samples given to Write, oldest first, used to exercise a
// path end-to-end without any real transport — the routing-engine
// equivalent of a test double.
package loopback

import (
	"errors"
	"sync"

	"github.com/villas-project/villasnode-go/pkg/node"
	"github.com/villas-project/villasnode-go/pkg/registry"
	"github.com/villas-project/villasnode-go/pkg/sample"
	"github.com/villas-project/villasnode-go/pkg/signal"
)

func init() {
	registry.RegisterType("loopback", New)
}

var errInvalidSignalSpec = errors.New("loopback: signals must be a list of {name, kind} maps")

// Loopback queues every Sample written to it until a Read consumes it.
type Loopback struct {
	name    string
	signals signal.List

	mu      sync.Mutex
	pending []*sample.Sample
}

// New is the node.Factory for the "loopback" node type. Settings:
// signals (list of {name, kind} maps) describes the value vector.
func New(name string, settings map[string]any) (node.Type, error) {
	sigs, err := parseSignals(settings)
	if err != nil {
		return nil, err
	}
	return &Loopback{name: name, signals: sigs}, nil
}

func parseSignals(settings map[string]any) (signal.List, error) {
	raw, ok := settings["signals"]
	if !ok {
		return signal.List{{Name: "value", Kind: signal.KindFloat}}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, errInvalidSignalSpec
	}
	out := make(signal.List, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, errInvalidSignalSpec
		}
		d := signal.Descriptor{Kind: signal.KindFloat}
		if n, ok := m["name"].(string); ok {
			d.Name = n
		}
		if u, ok := m["unit"].(string); ok {
			d.Unit = u
		}
		if k, ok := m["kind"].(string); ok {
			switch k {
			case "int":
				d.Kind = signal.KindInt
			case "bool":
				d.Kind = signal.KindBool
			case "complex":
				d.Kind = signal.KindComplex
			default:
				d.Kind = signal.KindFloat
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func (l *Loopback) Signals() signal.List { return l.signals }
func (l *Loopback) Check() error         { return nil }
func (l *Loopback) Start() error         { return nil }
func (l *Loopback) Stop() error          { return nil }
func (l *Loopback) Destroy() error       { return nil }
func (l *Loopback) Print() string        { return "loopback: " + l.name }
func (l *Loopback) PollFDs() []int       { return nil }

func (l *Loopback) Read(out []*sample.Sample) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.pending)
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		copySample(out[i], l.pending[i])
	}
	l.pending = l.pending[n:]
	return n, nil
}

func (l *Loopback) Write(in []*sample.Sample) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range in {
		dup := &sample.Sample{
			Seq:        s.Seq,
			OriginTS:   s.OriginTS,
			ReceivedTS: s.ReceivedTS,
			Signals:    s.Signals,
			Length:     s.Length,
			Values:     append([]signal.Value(nil), s.Values...),
		}
		l.pending = append(l.pending, dup)
	}
	return len(in), nil
}

func copySample(dst, src *sample.Sample) {
	dst.Seq = src.Seq
	dst.OriginTS = src.OriginTS
	dst.ReceivedTS = src.ReceivedTS
	dst.Signals = src.Signals
	dst.Length = src.Length
	n := copy(dst.Values, src.Values)
	if dst.Length > n {
		dst.Length = n
	}
}
