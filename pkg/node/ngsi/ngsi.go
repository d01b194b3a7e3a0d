// Package ngsi implements a node type that reads from, and writes to, an
// NGSI-10 context broker over HTTP: Write performs an updateContext POST,
// and every Read performs one entity query and returns at most one
// Sample. A pure HTTP transport has no descriptor to expose via PollFDs,
// so PollFDs returns nil.
package ngsi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/villas-project/villasnode-go/pkg/node"
	"github.com/villas-project/villasnode-go/pkg/registry"
	"github.com/villas-project/villasnode-go/pkg/sample"
	"github.com/villas-project/villasnode-go/pkg/signal"
)

func init() {
	registry.RegisterType("ngsi", New)
}

// NGSI is the "ngsi" node type.
type NGSI struct {
	name     string
	endpoint string
	entityID string
	attrs    []string
	signals  signal.List

	client *http.Client
}

type contextAttribute struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type contextElement struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Attributes []contextAttribute `json:"attributes"`
}

type updateContextRequest struct {
	ContextElements []contextElement `json:"contextElements"`
	UpdateAction    string           `json:"updateAction"`
}

// New is the node.Factory for the "ngsi" node type. Settings: endpoint
// (broker base URL), entity (NGSI entity id), attributes (attribute
// names, one per signal, in vector order).
func New(name string, settings map[string]any) (node.Type, error) {
	n := &NGSI{name: name, client: &http.Client{Timeout: 10 * time.Second}}
	if v, ok := settings["endpoint"].(string); ok {
		n.endpoint = v
	}
	if v, ok := settings["entity"].(string); ok {
		n.entityID = v
	}
	if v, ok := settings["attributes"]; ok {
		if list, ok := v.([]any); ok {
			for _, e := range list {
				if s, ok := e.(string); ok {
					n.attrs = append(n.attrs, s)
				}
			}
		}
	}
	if len(n.attrs) == 0 {
		n.attrs = []string{"value"}
	}
	sigs := make(signal.List, len(n.attrs))
	for i, a := range n.attrs {
		sigs[i] = signal.Descriptor{Name: a, Kind: signal.KindFloat}
	}
	n.signals = sigs
	return n, nil
}

func (n *NGSI) Signals() signal.List { return n.signals }

func (n *NGSI) Check() error {
	if n.endpoint == "" || n.entityID == "" {
		return fmt.Errorf("ngsi: endpoint and entity are required")
	}
	return nil
}

func (n *NGSI) Start() error { return nil }
func (n *NGSI) Stop() error  { return nil }

func (n *NGSI) Destroy() error { return nil }
func (n *NGSI) Print() string  { return fmt.Sprintf("ngsi: %s entity=%s", n.endpoint, n.entityID) }
func (n *NGSI) PollFDs() []int { return nil }

func (n *NGSI) Read(out []*sample.Sample) (int, error) {
	url := n.endpoint + "/v1/contextEntities/" + n.entityID
	resp, err := n.client.Get(url)
	if err != nil {
		return -1, fmt.Errorf("ngsi: queryContext: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return -1, fmt.Errorf("ngsi: queryContext: status %d: %s", resp.StatusCode, body)
	}

	var element contextElement
	if err := json.NewDecoder(resp.Body).Decode(&element); err != nil {
		return -1, fmt.Errorf("ngsi: decode: %w", err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	s := out[0]
	count := len(element.Attributes)
	if count > len(n.signals) {
		count = len(n.signals)
	}
	s.Length = count
	for i := 0; i < count; i++ {
		f, _ := toFloat(element.Attributes[i].Value)
		s.Values[i] = signal.FloatValue(f)
	}
	return 1, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func (n *NGSI) Write(in []*sample.Sample) (int, error) {
	sent := 0
	for _, smp := range in {
		elem := contextElement{ID: n.entityID, Type: "Measurement"}
		for i := 0; i < smp.Length && i < len(n.attrs); i++ {
			elem.Attributes = append(elem.Attributes, contextAttribute{
				Name:  n.attrs[i],
				Type:  "float",
				Value: smp.Values[i].Float,
			})
		}
		req := updateContextRequest{ContextElements: []contextElement{elem}, UpdateAction: "UPDATE"}
		body, err := json.Marshal(req)
		if err != nil {
			return sent, fmt.Errorf("ngsi: marshal: %w", err)
		}
		resp, err := n.client.Post(n.endpoint+"/v1/updateContext", "application/json", bytes.NewReader(body))
		if err != nil {
			return sent, fmt.Errorf("ngsi: updateContext: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return sent, fmt.Errorf("ngsi: updateContext: status %d", resp.StatusCode)
		}
		sent++
	}
	return sent, nil
}
