// Package stats implements the periodic-stats emitter: a single
// goroutine that wakes on a fixed interval and logs one structured line
// per configured Path, summarizing counters accumulated since startup.
// Grounded on the teacher's logging Emitter/Sink/Event split: Emitter
// owns the ticking goroutine and collects Events, a Sink renders them
// (here, directly through log/slog rather than a separate JSONL sink,
// since the daemon's ambient logger already is the structured sink).
package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/villas-project/villasnode-go/pkg/path"
)

// Source names a Path and exposes the counters to summarize.
type Source struct {
	Name  string
	Stats *path.Stats
}

// Event is one periodic-stats line's worth of path counters, the
// payload an Emitter hands to its Sink.
type Event struct {
	RunID    uuid.UUID
	Path     string
	Received int64
	Sent     int64
	Skipped  int64
	Underrun int64
	Overrun  int64
}

// Sink renders an Event; the default sink below logs it via slog.
type Sink func(Event)

// SlogSink returns a Sink that logs each Event as a structured line
// through logger, with human-readable counts alongside the raw ones —
// mirroring the teacher's go-humanize use in its own summary lines.
func SlogSink(logger *slog.Logger) Sink {
	return func(e Event) {
		logger.Info("path stats",
			"run", e.RunID,
			"path", e.Path,
			"received", e.Received,
			"received_h", humanize.Comma(e.Received),
			"sent", e.Sent,
			"sent_h", humanize.Comma(e.Sent),
			"skipped", e.Skipped,
			"underrun", e.Underrun,
			"overrun", e.Overrun,
		)
	}
}

// Emitter ticks every interval and emits one Event per registered Source
// to its Sink, until its context is canceled.
type Emitter struct {
	runID     uuid.UUID
	interval  time.Duration
	sources   []Source
	sink      Sink
}

// NewEmitter builds an Emitter over sources, firing every interval.
func NewEmitter(interval time.Duration, sink Sink, sources ...Source) *Emitter {
	return &Emitter{runID: uuid.New(), interval: interval, sources: sources, sink: sink}
}

// Run blocks, emitting on every tick, until ctx is canceled.
func (e *Emitter) Run(ctx context.Context) error {
	if e.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.emitOnce()
		}
	}
}

func (e *Emitter) emitOnce() {
	for _, src := range e.sources {
		e.sink(Event{
			RunID:    e.runID,
			Path:     src.Name,
			Received: src.Stats.Received.Load(),
			Sent:     src.Stats.Sent.Load(),
			Skipped:  src.Stats.Skipped.Load(),
			Underrun: src.Stats.PoolUnderruns.Load() + src.Stats.QueueUnderruns.Load(),
			Overrun:  src.Stats.Overruns.Load(),
		})
	}
}
