package orpheus

import (
	"bytes"
	"sync/atomic"

	"go.uber.org/zap"
)

// Filter may suppress an event (return false) or rewrite it before
// serialization.
type Filter func(TelemetryEvent) (TelemetryEvent, bool)

// PublisherConfig configures a Publisher. Zero values are usable: a nop
// logger, no filter, no extra tags and a default capacity.
type PublisherConfig struct {
	// ExtraTags are merged into every published event; they win on
	// collision.
	ExtraTags TraceTags
	// Filter runs on the worker before serialization.
	Filter Filter
	// Capacity bounds the submission queue. Defaults to 1024.
	Capacity int
	// Sink is invoked with the event and the serialized buffer before the
	// buffer is handed to Listener.
	Sink func(TelemetryEvent, *bytes.Buffer)
	// Listener receives the finalized wire string of each surviving event.
	Listener func(string)
	// Logger receives drop/stop diagnostics. Defaults to a nop logger.
	Logger *zap.Logger
}

// Publisher buffers telemetry events on a bounded queue and serializes them
// on a single dedicated worker, giving total order to emitted output even
// though many producers call Publish concurrently. When the queue is full
// events are silently dropped rather than blocking the producer.
type Publisher struct {
	cfg     PublisherConfig
	logger  *zap.Logger
	events  chan TelemetryEvent
	stopCh  chan struct{}
	done    chan struct{}
	buf     bytes.Buffer // owned exclusively by the worker goroutine
	started atomic.Bool
	stopped atomic.Bool
	dropped atomic.Uint64
}

// NewPublisher creates a publisher. Call Start to launch the worker.
func NewPublisher(cfg PublisherConfig) *Publisher {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1024
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		cfg:    cfg,
		logger: logger,
		events: make(chan TelemetryEvent, cfg.Capacity),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Publish merges the configured extra tags into the event and attempts a
// non-blocking enqueue. On a full or stopped queue the event is dropped
// without a caller-visible error.
func (p *Publisher) Publish(e TelemetryEvent) {
	if p.stopped.Load() {
		p.dropped.Add(1)
		return
	}

	e.Tags = Merge(e.Tags, p.cfg.ExtraTags)

	select {
	case p.events <- e:
	default:
		p.dropped.Add(1)
		p.logger.Debug("telemetry event dropped",
			zap.String("tid", e.TraceID),
			zap.String("et", string(e.EventType)))
	}
}

// Start launches the worker goroutine. Idempotent.
func (p *Publisher) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.run()
}

func (p *Publisher) run() {
	defer close(p.done)

	for {
		select {
		case <-p.stopCh:
			// Drain remaining events in FIFO order before exiting.
			for {
				select {
				case e := <-p.events:
					p.handle(e)
				default:
					return
				}
			}
		case e := <-p.events:
			p.handle(e)
		}
	}
}

// handle is called from the worker goroutine only; it owns p.buf.
func (p *Publisher) handle(e TelemetryEvent) {
	if p.cfg.Filter != nil {
		var keep bool
		if e, keep = p.cfg.Filter(e); !keep {
			return
		}
	}

	EncodeEvent(e, &p.buf)
	if p.cfg.Sink != nil {
		p.cfg.Sink(e, &p.buf)
	}
	if p.cfg.Listener != nil {
		p.cfg.Listener(p.buf.String())
	}
	p.buf.Reset()
}

// Stop closes the queue for new entries; the worker drains buffered events
// then exits. Idempotent, decided by a single compare-and-swap.
func (p *Publisher) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	close(p.stopCh)
	if p.started.Load() {
		<-p.done
	}
	p.logger.Info("publisher stopped", zap.Uint64("dropped", p.dropped.Load()))
}

// Dropped returns the number of events dropped due to a full queue or a
// stopped publisher.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}
