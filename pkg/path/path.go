// Package path implements the Path state machine: created, prepared,
// running, stopped, and the receive/send thread pair each running Path
// drives. Teardown order (cancel and join receive before send, then stop
// hooks, then stop nodes) follows the teacher's sandboxVM.Close()
// pattern: stop dependents before releasing the resources they depend
// on, collecting but not aborting on the first error so every step still
// runs.
package path

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/villas-project/villasnode-go/pkg/api"
	"github.com/villas-project/villasnode-go/pkg/hook"
	"github.com/villas-project/villasnode-go/pkg/node"
	"github.com/villas-project/villasnode-go/pkg/queue"
	"github.com/villas-project/villasnode-go/pkg/sample"
	"github.com/villas-project/villasnode-go/pkg/timer"
)

// State is one of the path lifecycle's four stages.
type State int32

const (
	StateCreated State = iota
	StatePrepared
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePrepared:
		return "prepared"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats are the path's running counters, exported for pkg/stats'
// periodic emitter.
type Stats struct {
	Received       atomic.Int64
	Sent           atomic.Int64
	Skipped        atomic.Int64
	PoolUnderruns  atomic.Int64
	QueueUnderruns atomic.Int64
	Overruns       atomic.Int64
}

type destReader struct {
	node     *node.Instance
	readerID int
}

// Path is one routing pipeline: a source Node, one or more destination
// Nodes, a Hook chain, and the Pool/Queue pair connecting them.
type Path struct {
	ID   uuid.UUID
	Name string

	source  *node.Instance
	dests   []*node.Instance
	hooks   *hook.Chain
	logger  *slog.Logger
	rate    float64
	vecIn   int
	vecOut  int
	sampLen int
	poolLen int

	pool         *sample.Pool
	q            *queue.Queue
	destReaders  []destReader
	historyReads []historyReader

	Stats Stats

	mu    sync.Mutex
	state State

	tmr timer.Timer

	lastTickWriter uint64

	recvCancel context.CancelFunc
	sendCancel context.CancelFunc
	recvGroup  *errgroup.Group
	sendGroup  *errgroup.Group
}

type historyReader struct {
	hook     hook.HistoryProvider
	readerID int
}

// Config bundles the construction-time parameters of a Path.
type Config struct {
	Name        string
	Source      *node.Instance
	Destinations []*node.Instance
	Hooks       *hook.Chain
	Rate        float64
	QueueLen    int
	SampleLen   int
	Vectorize   int
	Logger      *slog.Logger
}

// New constructs a Path in the created state. It does not allocate the
// Pool or Queue yet — that happens in Prepare.
func New(cfg Config) *Path {
	vec := cfg.Vectorize
	if vec <= 0 {
		vec = 1
	}
	queueLen := cfg.QueueLen
	if queueLen <= 0 {
		queueLen = api.DefaultQueueLen
	}
	sampLen := cfg.SampleLen
	if sampLen <= 0 {
		sampLen = api.DefaultSampleLen
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Path{
		ID:      uuid.New(),
		Name:    cfg.Name,
		source:  cfg.Source,
		dests:   cfg.Destinations,
		hooks:   cfg.Hooks,
		logger:  logger.With("path", cfg.Name),
		rate:    cfg.Rate,
		vecIn:   vec,
		vecOut:  vec,
		sampLen: sampLen,
		poolLen: queueLen * 2,
		state:   StateCreated,
	}
}

// State returns the path's current lifecycle state.
func (p *Path) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Prepare allocates the Pool and Queue, registers one reader per
// destination plus one per hook history window, and runs each hook's
// Init/Check. A path with no destinations is rejected as a configuration
// error before anything is allocated.
func (p *Path) Prepare() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateCreated {
		return fmt.Errorf("path %q: Prepare called in state %s", p.Name, p.state)
	}
	if len(p.dests) == 0 {
		return fmt.Errorf("path %q: %w", p.Name, api.ErrNoDestinations)
	}

	valueCap := len(p.source.Type().Signals())
	if valueCap == 0 {
		valueCap = 1
	}
	p.pool = sample.NewPool(p.poolLen, valueCap)
	p.q = queue.New(p.poolLen / 2)

	for _, d := range p.dests {
		rid := p.q.RegisterReader(0)
		p.destReaders = append(p.destReaders, destReader{node: d, readerID: rid})
	}
	for _, hw := range p.hooks.HistoryWindows() {
		rid := p.q.RegisterReader(0)
		p.historyReads = append(p.historyReads, historyReader{hook: hw, readerID: rid})
	}

	if err := p.hooks.InitAll(); err != nil {
		return fmt.Errorf("path %q: hook init: %w", p.Name, err)
	}
	if err := p.hooks.CheckAll(); err != nil {
		return fmt.Errorf("path %q: hook check: %w", p.Name, err)
	}

	p.state = StatePrepared
	return nil
}

func nextCap(n int) uint64 {
	v := uint64(n)
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}

// Start invokes each hook's Start, starts the source and destination
// nodes, and spawns the receive thread (and, if rate > 0, a rate-driven
// send thread and timer).
func (p *Path) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePrepared {
		return fmt.Errorf("path %q: %w", p.Name, api.ErrPathNotPrepared)
	}

	if err := p.hooks.StartAll(); err != nil {
		return fmt.Errorf("path %q: hook start: %w", p.Name, err)
	}
	if err := p.source.Type().Start(); err != nil {
		return fmt.Errorf("path %q: source start: %w", p.Name, err)
	}
	for _, d := range p.dests {
		if err := d.Type().Start(); err != nil {
			return fmt.Errorf("path %q: destination %q start: %w", p.Name, d.Name(), err)
		}
	}

	if p.rate > 0 {
		t, err := timer.New(p.rate)
		if err != nil {
			return fmt.Errorf("path %q: rate timer: %w", p.Name, err)
		}
		p.tmr = t
	}

	rctx, rcancel := context.WithCancel(context.Background())
	p.recvCancel = rcancel
	rg, rgctx := errgroup.WithContext(rctx)
	p.recvGroup = rg
	rg.Go(func() error { return p.receiveLoop(rgctx) })

	if p.rate > 0 {
		sctx, scancel := context.WithCancel(context.Background())
		p.sendCancel = scancel
		sg, sgctx := errgroup.WithContext(sctx)
		p.sendGroup = sg
		sg.Go(func() error { return p.sendLoop(sgctx) })
	}

	p.state = StateRunning
	return nil
}

// Stop cancels and joins the receive thread, then the send thread, then
// stops every hook, then stops the source and destination nodes. Errors
// from each step are collected but do not prevent later steps from
// running.
func (p *Path) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateRunning {
		return fmt.Errorf("path %q: %w", p.Name, api.ErrPathNotRunning)
	}

	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if p.recvCancel != nil {
		p.recvCancel()
		record(p.recvGroup.Wait())
	}
	if p.sendCancel != nil {
		p.sendCancel()
		record(p.sendGroup.Wait())
	}
	if p.tmr != nil {
		record(p.tmr.Close())
	}

	record(p.hooks.StopAll())
	record(p.source.Type().Stop())
	for _, d := range p.dests {
		record(d.Type().Stop())
	}

	p.state = StateStopped
	return first
}

// receiveLoop is the single thread reading from the source Node, running
// HOOK_READ (node-read and path-read kinds), enqueuing, and reclaiming
// history-aged Samples. When rate == 0 it also invokes the send routine
// inline after every batch.
func (p *Path) receiveLoop(ctx context.Context) error {
	batch := make([]*sample.Sample, p.vecIn)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n := p.pool.Acquire(batch)
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		if n < p.vecIn {
			p.Stats.PoolUnderruns.Add(1)
		}
		acquired := batch[:n]

		read, err := p.source.Read(acquired)
		if read < 0 {
			p.pool.Release(acquired)
			p.logger.Error("source read fatal", "error", err)
			return err
		}
		if read > 0 && read < n {
			p.logger.Warn("partial read", "got", read, "want", n)
		}
		if read < n {
			p.pool.Release(acquired[read:])
		}
		if read == 0 {
			continue
		}
		used := acquired[:read]

		kept, skipped, stop := p.hooks.Run(hook.KindNodeRead|hook.KindPathRead, used, func(s *sample.Sample) { s.DecRef() })
		if skipped > 0 {
			p.Stats.Skipped.Add(int64(skipped))
		}
		toEnqueue := used[:kept]
		if len(toEnqueue) > 0 {
			pushed := p.q.PushMany(toEnqueue, len(toEnqueue))
			if pushed < len(toEnqueue) {
				p.Stats.Skipped.Add(int64(len(toEnqueue) - pushed))
				p.pool.Release(toEnqueue[pushed:])
			}
			p.Stats.Received.Add(int64(pushed))
		}

		p.reclaimHistory()
		p.q.Reclaim()

		if p.rate == 0 {
			p.sendOnce(false)
		}

		if stop {
			p.logger.Info("hook requested stop")
			return nil
		}
	}
}

// reclaimHistory advances each history-window reader cursor past Samples
// older than its declared window, releasing them.
func (p *Path) reclaimHistory() {
	w := p.q.WriterCursor()
	for _, hr := range p.historyReads {
		window := uint64(hr.hook.HistoryWindow())
		if w <= window {
			continue
		}
		target := w - window
		cur := p.q.ReaderCursor(hr.readerID)
		if cur >= target {
			continue
		}
		scratch := make([]*sample.Sample, target-cur)
		p.q.PullMany(hr.readerID, scratch, len(scratch))
	}
}

// sendLoop is the rate-controlled send thread: it blocks on the timer,
// records overruns, and calls the send routine once per tick, with
// resend semantics when no new Samples arrived since the previous tick.
func (p *Path) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		overrun, err := p.tmr.Wait()
		if err != nil {
			return fmt.Errorf("path %q: rate timer: %w", p.Name, err)
		}
		if overrun > 0 {
			p.Stats.Overruns.Add(int64(overrun))
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}

		w := p.q.WriterCursor()
		resend := w == p.lastTickWriter
		if resend {
			if verdict := p.hooks.RunPeriodic(); verdict != hook.OK {
				continue
			}
		}
		p.sendOnce(resend)
		p.lastTickWriter = w
	}
}

// sendOnce runs the send routine once across every destination: peek
// (or re-peek, on resend) up to vecOut Samples, run HOOK_WRITE, write,
// and advance (unless resending) the destination's reader cursor.
func (p *Path) sendOnce(resend bool) {
	out := make([]*sample.Sample, p.vecOut)
	for _, dr := range p.destReaders {
		var n int
		var base uint64
		if resend {
			cur := p.q.ReaderCursor(dr.readerID)
			if cur < uint64(p.vecOut) {
				base = 0
			} else {
				base = cur - uint64(p.vecOut)
			}
			n = p.q.Peek(base, out, p.vecOut)
		} else {
			base = p.q.ReaderCursor(dr.readerID)
			n = p.q.Peek(base, out, p.vecOut)
		}
		if n == 0 {
			continue
		}
		if n < p.vecOut {
			p.Stats.QueueUnderruns.Add(1)
		}
		batch := out[:n]

		kept, skipped, _ := p.hooks.Run(hook.KindNodeWrite|hook.KindPathWrite, batch, nil)
		if skipped > 0 {
			p.Stats.Skipped.Add(int64(skipped))
		}
		toSend := batch[:kept]
		if len(toSend) == 0 {
			if !resend {
				p.q.PullMany(dr.readerID, out, n)
			}
			continue
		}

		sent, err := dr.node.Write(toSend)
		if sent < 0 {
			p.logger.Error("destination write fatal", "destination", dr.node.Name(), "error", err)
		} else {
			if sent < len(toSend) {
				p.logger.Warn("partial write", "destination", dr.node.Name(), "got", sent, "want", len(toSend))
			}
			p.Stats.Sent.Add(int64(sent))
		}

		if !resend {
			p.q.PullMany(dr.readerID, out, n)
		}
	}
}
