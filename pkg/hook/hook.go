// Package hook implements the priority-ordered transformation chain each
// Path runs samples through.
//
// Hook polymorphism is expressed the way the teacher's pkg/policy package
// expresses its plugin phases: a minimal base interface plus a set of
// optional capability interfaces (Parser, Starter, Processor, ...) that a
// concrete hook implements only the subset of. The engine (Chain here)
// type-asserts for each capability before calling it, exactly as
// pkg/policy.Engine checks for GatePlugin/RequestPlugin/ResponsePlugin
// membership — Go has no function-pointer table to hang no-ops off, and
// this is the idiomatic substitute the spec's design notes call for.
package hook

import (
	"sort"
	"sync"

	"github.com/villas-project/villasnode-go/pkg/sample"
)

// Kind is a bitmask of the processing phases a Hook participates in.
type Kind uint8

const (
	KindNodeRead Kind = 1 << iota
	KindNodeWrite
	KindPathRead
	KindPathWrite
	KindPeriodic
)

// Verdict is the result of running a Hook's Process method against one
// Sample.
type Verdict int

const (
	// OK lets the Sample continue through the chain.
	OK Verdict = iota
	// Skip discards the Sample from the batch; it never reaches the
	// Queue (if on a read phase) or the destination (if on a write
	// phase). The Path's skipped counter increments once per Skip.
	Skip
	// Error is handled exactly like Skip (dropped and counted as
	// skipped); no separate warning is logged and it does not tear down
	// the Path.
	Error
	// Stop drops the Sample like Skip and makes Chain.Run report stop.
	// On the read phase the Path's receive loop returns after this batch;
	// the Path's state stays running until Path.Stop is called, and a
	// Stop on the write phase has no effect beyond the drop.
	Stop
)

// Hook is the minimal capability every hook instance implements: identity,
// the phases it participates in, and its position in the total order.
// Everything else (Parse, Check, Start, Process, Periodic, Stop, Deinit)
// is an optional interface a concrete hook adds as needed.
type Hook interface {
	Name() string
	Kinds() Kind
	Priority() int
}

// Parser is implemented by hooks that take configuration.
type Parser interface {
	Hook
	Parse(settings map[string]any) error
}

// Checker is implemented by hooks that validate their own configuration
// once all hooks on a Path have been parsed.
type Checker interface {
	Hook
	Check() error
}

// Initializer runs once, at Path preparation time, before Parse.
type Initializer interface {
	Hook
	Init() error
}

// Starter runs when the Path transitions to running.
type Starter interface {
	Hook
	Start() error
}

// Processor is implemented by hooks that inspect or transform samples on
// a read or write phase.
type Processor interface {
	Hook
	Process(s *sample.Sample) Verdict
}

// PeriodicRunner is implemented by hooks that run on rate timer ticks
// where no new Samples arrived, ahead of the resend emission; its verdict
// can suppress that resend. Ticks that carry new Samples do not run it.
type PeriodicRunner interface {
	Hook
	Periodic() Verdict
}

// Stopper runs when the Path transitions to stopped.
type Stopper interface {
	Hook
	Stop() error
}

// Deinitializer runs once the Path is fully torn down.
type Deinitializer interface {
	Hook
	Deinit() error
}

// HistoryProvider is implemented by hooks that need to inspect a trailing
// window of past samples; the Path registers a queue reader for each such
// hook during preparation and keeps that reader h samples behind the
// writer as new samples arrive.
type HistoryProvider interface {
	Hook
	HistoryWindow() int
}

// Chain is a Path's priority-sorted list of hook instances.
type Chain struct {
	mu    sync.Mutex
	hooks []Hook
}

// NewChain builds a Chain from an unordered hook list, sorting by
// priority ascending (lower priority value runs first).
func NewChain(hooks []Hook) *Chain {
	sorted := make([]Hook, len(hooks))
	copy(sorted, hooks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Chain{hooks: sorted}
}

// Hooks returns the chain's hooks in execution order.
func (c *Chain) Hooks() []Hook { return c.hooks }

// InitAll runs Init on every hook that implements Initializer, in order.
func (c *Chain) InitAll() error {
	for _, h := range c.hooks {
		if i, ok := h.(Initializer); ok {
			if err := i.Init(); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckAll runs Check on every hook that implements Checker.
func (c *Chain) CheckAll() error {
	for _, h := range c.hooks {
		if ck, ok := h.(Checker); ok {
			if err := ck.Check(); err != nil {
				return err
			}
		}
	}
	return nil
}

// StartAll runs Start on every hook that implements Starter.
func (c *Chain) StartAll() error {
	for _, h := range c.hooks {
		if s, ok := h.(Starter); ok {
			if err := s.Start(); err != nil {
				return err
			}
		}
	}
	return nil
}

// StopAll runs Stop on every hook that implements Stopper, collecting but
// not aborting on the first error so every hook gets a chance to tear
// down (the same policy the Path uses when stopping destination writes).
func (c *Chain) StopAll() error {
	var first error
	for _, h := range c.hooks {
		if s, ok := h.(Stopper); ok {
			if err := s.Stop(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// DeinitAll runs Deinit on every hook that implements Deinitializer.
func (c *Chain) DeinitAll() error {
	var first error
	for _, h := range c.hooks {
		if d, ok := h.(Deinitializer); ok {
			if err := d.Deinit(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Run executes every hook matching kind, in priority order, against the
// batch, compacting out Skipped (and Errored) samples in place. It
// returns the surviving batch length, the number of samples skipped on
// this call, and whether any hook returned Stop. onDrop, if non-nil, is
// called once for every sample compacted out — HOOK_READ passes a
// callback that releases the sample's pool reference immediately (it has
// not yet been handed to the Queue, so nothing else will ever release
// it); HOOK_WRITE passes nil, since the Queue still owns those samples
// and will release them itself once every reader cursor passes the slot.
func (c *Chain) Run(kind Kind, batch []*sample.Sample, onDrop func(*sample.Sample)) (n int, skipped int, stop bool) {
	n = len(batch)
	for _, h := range c.hooks {
		if h.Kinds()&kind == 0 {
			continue
		}
		p, ok := h.(Processor)
		if !ok {
			continue
		}
		write := 0
		for read := 0; read < n; read++ {
			s := batch[read]
			switch p.Process(s) {
			case OK:
				batch[write] = s
				write++
			case Error, Skip:
				skipped++
				if onDrop != nil {
					onDrop(s)
				}
			case Stop:
				stop = true
				skipped++
				if onDrop != nil {
					onDrop(s)
				}
			}
		}
		n = write
	}
	return n, skipped, stop
}

// RunPeriodic runs every hook matching KindPeriodic's PeriodicRunner, in
// priority order. It returns Skip if any hook returns Skip, Error or Stop
// (any of them suppresses the pending emission), else OK.
func (c *Chain) RunPeriodic() Verdict {
	for _, h := range c.hooks {
		if h.Kinds()&KindPeriodic == 0 {
			continue
		}
		pr, ok := h.(PeriodicRunner)
		if !ok {
			continue
		}
		switch pr.Periodic() {
		case Skip, Stop, Error:
			return Skip
		}
	}
	return OK
}

// HistoryWindows returns the (hook, window) pairs for every hook that
// declares one, used by the Path during preparation to register extra
// queue readers.
func (c *Chain) HistoryWindows() []HistoryProvider {
	var out []HistoryProvider
	for _, h := range c.hooks {
		if hp, ok := h.(HistoryProvider); ok && hp.HistoryWindow() > 0 {
			out = append(out, hp)
		}
	}
	return out
}
