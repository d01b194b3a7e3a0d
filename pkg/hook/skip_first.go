package hook

import (
	"fmt"

	"github.com/villas-project/villasnode-go/pkg/sample"
)

// SkipFirst discards the first N samples it sees, then lets everything
// through. Useful on node_read to drop warm-up transients from a freshly
// started source node.
type SkipFirst struct {
	priority int
	kinds    Kind
	N        int

	seen int
}

func NewSkipFirst(priority int, kinds Kind, n int) *SkipFirst {
	return &SkipFirst{priority: priority, kinds: kinds, N: n}
}

func (s *SkipFirst) Name() string  { return "skip_first" }
func (s *SkipFirst) Kinds() Kind   { return s.kinds }
func (s *SkipFirst) Priority() int { return s.priority }

func (s *SkipFirst) Process(_ *sample.Sample) Verdict {
	if s.seen < s.N {
		s.seen++
		return Skip
	}
	return OK
}

func newSkipFirstFromConfig(priority int, settings map[string]any) (Hook, error) {
	n := 0
	kinds := KindNodeRead
	if v, ok := settings["count"]; ok {
		c, ok := toInt(v)
		if !ok {
			return nil, fmt.Errorf("hook/skip_first: count must be an integer")
		}
		n = c
	}
	if v, ok := settings["kind"]; ok {
		k, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("hook/skip_first: kind must be a string")
		}
		parsed, err := parseKind(k)
		if err != nil {
			return nil, err
		}
		kinds = parsed
	}
	return NewSkipFirst(priority, kinds, n), nil
}
