// Package mqtt implements a node type backed by an MQTT broker
// connection: Write publishes a batch as one encoded payload per
// Sample to a topic, Read drains an internal mutex-guarded list of
// payloads fed by the client's subscription callback. Per the shared-broker-thread
// concurrency model, the paho client's own event loop goroutine is the
// "process-wide broker thread"; access to per-instance state it shares
// with a Path's receive/send goroutines is guarded by mu.
package mqtt

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"

	"github.com/villas-project/villasnode-go/pkg/node"
	"github.com/villas-project/villasnode-go/pkg/registry"
	"github.com/villas-project/villasnode-go/pkg/sample"
	"github.com/villas-project/villasnode-go/pkg/signal"
)

func init() {
	registry.RegisterType("mqtt", New)
}

// MQTT is the "mqtt" node type.
type MQTT struct {
	name       string
	broker     string
	subTopic   string
	pubTopic   string
	qos        byte
	signalsLen int
	signals    signal.List

	client mqttlib.Client

	mu      sync.Mutex
	pending [][]byte
}

// New is the node.Factory for the "mqtt" node type. Settings: broker
// (tcp://host:port URL), sub (subscribe topic, optional), pub (publish
// topic, optional), qos (0/1/2), signals (value vector width).
func New(name string, settings map[string]any) (node.Type, error) {
	m := &MQTT{name: name, signalsLen: 1}
	if v, ok := settings["broker"].(string); ok {
		m.broker = v
	}
	if v, ok := settings["sub"].(string); ok {
		m.subTopic = v
	}
	if v, ok := settings["pub"].(string); ok {
		m.pubTopic = v
	}
	if v, ok := settings["qos"]; ok {
		if q, ok := toInt(v); ok {
			m.qos = byte(q)
		}
	}
	if v, ok := settings["signals"]; ok {
		if list, ok := v.([]any); ok {
			m.signalsLen = len(list)
		}
	}
	sigs := make(signal.List, m.signalsLen)
	for i := range sigs {
		sigs[i] = signal.Descriptor{Name: fmt.Sprintf("signal%d", i), Kind: signal.KindFloat}
	}
	m.signals = sigs
	return m, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func (m *MQTT) Signals() signal.List { return m.signals }

func (m *MQTT) Check() error {
	if m.broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	if m.subTopic == "" && m.pubTopic == "" {
		return fmt.Errorf("mqtt: at least one of sub or pub is required")
	}
	return nil
}

func (m *MQTT) Start() error {
	opts := mqttlib.NewClientOptions().
		AddBroker(m.broker).
		SetClientID("villasnode-" + m.name).
		SetAutoReconnect(true)
	if m.subTopic != "" {
		opts.SetDefaultPublishHandler(m.onMessage)
	}
	m.client = mqttlib.NewClient(opts)
	tok := m.client.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt: connect timed out")
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt: connect: %w", err)
	}
	if m.subTopic != "" {
		tok := m.client.Subscribe(m.subTopic, m.qos, m.onMessage)
		tok.Wait()
		if err := tok.Error(); err != nil {
			return fmt.Errorf("mqtt: subscribe: %w", err)
		}
	}
	return nil
}

// onMessage runs on the paho client's own event-loop goroutine; it only
// ever appends to m.pending under m.mu, handing the decode work to Read
// instead of doing it inline on the broker thread.
func (m *MQTT) onMessage(_ mqttlib.Client, msg mqttlib.Message) {
	m.mu.Lock()
	m.pending = append(m.pending, append([]byte(nil), msg.Payload()...))
	m.mu.Unlock()
}

func (m *MQTT) Stop() error {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}

func (m *MQTT) Destroy() error { return nil }
func (m *MQTT) Print() string  { return "mqtt: " + m.broker }
func (m *MQTT) PollFDs() []int { return nil }

func (m *MQTT) Read(out []*sample.Sample) (int, error) {
	m.mu.Lock()
	n := len(m.pending)
	if n > len(out) {
		n = len(out)
	}
	batch := m.pending[:n]
	m.pending = m.pending[n:]
	m.mu.Unlock()

	for i, payload := range batch {
		count := len(payload) / 8
		if count > m.signalsLen {
			count = m.signalsLen
		}
		out[i].Length = count
		for j := 0; j < count; j++ {
			bits := binary.BigEndian.Uint64(payload[j*8:])
			out[i].Values[j] = signal.FloatValue(math.Float64frombits(bits))
		}
	}
	return n, nil
}

func (m *MQTT) Write(in []*sample.Sample) (int, error) {
	if m.pubTopic == "" {
		return -1, fmt.Errorf("mqtt: no pub topic configured")
	}
	sent := 0
	for _, smp := range in {
		buf := make([]byte, 8*smp.Length)
		for i := 0; i < smp.Length; i++ {
			binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(smp.Values[i].Float))
		}
		tok := m.client.Publish(m.pubTopic, m.qos, false, buf)
		if !tok.WaitTimeout(5 * time.Second) {
			return sent, fmt.Errorf("mqtt: publish timed out")
		}
		if err := tok.Error(); err != nil {
			return sent, fmt.Errorf("mqtt: publish: %w", err)
		}
		sent++
	}
	return sent, nil
}
