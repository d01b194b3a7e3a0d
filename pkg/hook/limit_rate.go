package hook

import (
	"fmt"
	"time"

	"github.com/villas-project/villasnode-go/pkg/sample"
)

// LimitRate caps the rate samples pass through at Rate Hz, measured
// against each Sample's own OriginTS rather than wall-clock arrival time
// — two samples whose origin timestamps are closer together than
// 1/Rate seconds are collapsed to the first, the rest skipped. Unlike
// Decimate (a fixed count-based ratio), this hook reacts to however
// densely samples actually arrive.
type LimitRate struct {
	priority int
	kinds    Kind
	Rate     float64

	seenAny  bool
	lastKept time.Time
}

// NewLimitRate constructs a LimitRate hook with the given priority, kind
// mask, and maximum rate in Hz (must be > 0).
func NewLimitRate(priority int, kinds Kind, rate float64) *LimitRate {
	return &LimitRate{priority: priority, kinds: kinds, Rate: rate}
}

func (l *LimitRate) Name() string  { return "limit_rate" }
func (l *LimitRate) Kinds() Kind   { return l.kinds }
func (l *LimitRate) Priority() int { return l.priority }

func (l *LimitRate) Check() error {
	if l.Rate <= 0 {
		return fmt.Errorf("hook/limit_rate: rate must be > 0, got %v", l.Rate)
	}
	return nil
}

func (l *LimitRate) Process(s *sample.Sample) Verdict {
	interval := time.Duration(float64(time.Second) / l.Rate)
	if !l.seenAny || s.OriginTS.Sub(l.lastKept) >= interval {
		l.lastKept = s.OriginTS
		l.seenAny = true
		return OK
	}
	return Skip
}

func newLimitRateFromConfig(priority int, settings map[string]any) (Hook, error) {
	rate := 1.0
	kinds := KindPathRead
	if v, ok := settings["rate"]; ok {
		r, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("hook/limit_rate: rate must be a number")
		}
		rate = r
	}
	if v, ok := settings["kind"]; ok {
		k, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("hook/limit_rate: kind must be a string")
		}
		parsed, err := parseKind(k)
		if err != nil {
			return nil, err
		}
		kinds = parsed
	}
	return NewLimitRate(priority, kinds, rate), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
