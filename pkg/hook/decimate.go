package hook

import (
	"fmt"

	"github.com/villas-project/villasnode-go/pkg/sample"
)

// Decimate keeps every Nth sample on its configured kind and skips the
// rest. Ratio 2 keeps odd-numbered arrivals and skips even-numbered ones
// — the "skip every other sample" behavior the routing-engine scenario
// suite exercises on HOOK_READ.
type Decimate struct {
	priority int
	kinds    Kind
	Ratio    int

	count int
}

// NewDecimate constructs a Decimate hook with the given priority, kind
// mask, and ratio (must be >= 1).
func NewDecimate(priority int, kinds Kind, ratio int) *Decimate {
	return &Decimate{priority: priority, kinds: kinds, Ratio: ratio}
}

func (d *Decimate) Name() string  { return "decimate" }
func (d *Decimate) Kinds() Kind   { return d.kinds }
func (d *Decimate) Priority() int { return d.priority }

func (d *Decimate) Check() error {
	if d.Ratio < 1 {
		return fmt.Errorf("hook/decimate: ratio must be >= 1, got %d", d.Ratio)
	}
	return nil
}

func (d *Decimate) Process(s *sample.Sample) Verdict {
	keep := d.count%d.Ratio == 0
	d.count++
	if keep {
		return OK
	}
	return Skip
}

func newDecimateFromConfig(priority int, settings map[string]any) (Hook, error) {
	ratio := 2
	kinds := KindPathRead
	if v, ok := settings["ratio"]; ok {
		r, ok := toInt(v)
		if !ok {
			return nil, fmt.Errorf("hook/decimate: ratio must be an integer")
		}
		ratio = r
	}
	if v, ok := settings["kind"]; ok {
		k, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("hook/decimate: kind must be a string")
		}
		parsed, err := parseKind(k)
		if err != nil {
			return nil, err
		}
		kinds = parsed
	}
	return NewDecimate(priority, kinds, ratio), nil
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

func parseKind(s string) (Kind, error) {
	switch s {
	case "node_read":
		return KindNodeRead, nil
	case "node_write":
		return KindNodeWrite, nil
	case "path_read":
		return KindPathRead, nil
	case "path_write":
		return KindPathWrite, nil
	case "periodic":
		return KindPeriodic, nil
	default:
		return 0, fmt.Errorf("hook: unknown kind %q", s)
	}
}
