// Package pipeline wires the feed, processor, buffer, scheduler and
// supervisor into one service with an ordered shutdown.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"futuresflow/internal/buffer"
	"futuresflow/internal/calendar"
	"futuresflow/internal/catalog"
	"futuresflow/internal/channel"
	"futuresflow/internal/scheduler"
	"futuresflow/internal/supervisor"
	"futuresflow/logger"
	"futuresflow/models"
	"futuresflow/processor"
	"futuresflow/reader/ctp"
	"futuresflow/writer"
)

// Feed is the upstream market-data connection.
type Feed interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	State() models.ConnectionState
}

// Publisher is an optional live consumer of normalized ticks.
type Publisher interface {
	Start(ctx context.Context) error
	Stop()
}

// Options are the collaborators of a Pipeline. NewFeed receives the
// pipeline itself as the feed's listener.
type Options struct {
	Calendar  *calendar.Calendar
	Catalog   *catalog.Catalog
	Channels  *channel.Channels
	Store     writer.Store
	NewFeed   func(l ctp.Listener) Feed
	Publisher Publisher

	SchedulerInterval  time.Duration
	SupervisorInterval time.Duration
	ChannelStats       time.Duration

	// Clock overrides time.Now for the scheduler and supervisor.
	Clock func() time.Time
}

// Pipeline is the running service. It implements ctp.Listener.
type Pipeline struct {
	channels   *channel.Channels
	buffer     *buffer.TickBuffer
	processor  *processor.Processor
	scheduler  *scheduler.Scheduler
	supervisor *supervisor.Supervisor
	feed       Feed
	publisher  Publisher
	stats      time.Duration

	ctx     context.Context
	mu      sync.Mutex
	running bool
	closed  atomic.Bool
	lost    atomic.Int64
	log     *logger.Log
}

func New(opts Options) (*Pipeline, error) {
	if opts.Calendar == nil || opts.Catalog == nil || opts.Channels == nil || opts.Store == nil || opts.NewFeed == nil {
		return nil, errors.New("pipeline: calendar, catalog, channels, store and feed are required")
	}
	if err := opts.Calendar.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p := &Pipeline{
		channels:  opts.Channels,
		buffer:    buffer.New(),
		publisher: opts.Publisher,
		stats:     opts.ChannelStats,
		log:       logger.GetLogger(),
	}
	p.processor = processor.NewProcessor(opts.Channels, p.buffer, opts.Publisher != nil)
	p.scheduler = scheduler.New(p.buffer, opts.Catalog, opts.Calendar, opts.Store, opts.SchedulerInterval)
	p.feed = opts.NewFeed(p)
	p.supervisor = supervisor.New(p.feed, opts.Calendar, opts.SupervisorInterval)
	if opts.Clock != nil {
		p.scheduler.SetClock(opts.Clock)
		p.supervisor.SetClock(opts.Clock)
	}
	return p, nil
}

// Start launches every stage. The supervisor connects the feed right away
// when the calendar is online.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("pipeline already running")
	}
	p.running = true
	p.ctx = ctx

	log := p.log.WithComponent("pipeline")
	if p.stats > 0 {
		p.channels.StartMetricsReporting(ctx, p.stats)
	}
	if err := p.processor.Start(ctx); err != nil {
		return fmt.Errorf("start processor: %w", err)
	}
	if err := p.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if p.publisher != nil {
		if err := p.publisher.Start(ctx); err != nil {
			return fmt.Errorf("start publisher: %w", err)
		}
	}
	if err := p.supervisor.Start(ctx); err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}
	log.Info("pipeline started")
	return nil
}

// Stop shuts down in dependency order: supervisor, feed, processor, a final
// flush regardless of the calendar, scheduler, publisher, channels. The
// returned error is the final flush's.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	log := p.log.WithComponent("pipeline")
	start := time.Now()

	p.supervisor.Stop()
	if err := p.feed.Disconnect(ctx); err != nil {
		log.WithError(err).Warn("feed disconnect failed")
	}
	p.processor.Stop()

	res := p.scheduler.FlushNow(ctx)
	if res.Err != nil {
		log.WithError(res.Err).WithField("requeued", res.Requeued).Error("final flush failed")
	}
	p.scheduler.Stop()

	if p.publisher != nil {
		p.publisher.Stop()
	}
	p.closed.Store(true)
	p.channels.Close()

	logger.LogPerformanceEntry(log, "pipeline", "shutdown", time.Since(start), logger.Fields{
		"flushed":   res.Written,
		"discarded": res.Discarded,
		"pending":   p.buffer.Pending(),
	})
	return res.Err
}

// CurrentTick returns the latest tick seen for an instrument, persisted or
// not.
func (p *Pipeline) CurrentTick(instrumentID string) (models.MarketTick, bool) {
	return p.buffer.CurrentTick(instrumentID)
}

// Instruments lists every instrument that has produced a tick.
func (p *Pipeline) Instruments() []string {
	return p.buffer.Instruments()
}

// FeedState reports the feed's connection state.
func (p *Pipeline) FeedState() models.ConnectionState {
	return p.feed.State()
}

// Status is a point-in-time view for hosts and health checks.
type Status struct {
	FeedState      string
	FeedConnected  bool
	PendingTicks   int
	Instruments    int
	Flushes        int64
	LastFlush      scheduler.FlushResult
	ConnectionLost int64
	Channels       channel.ChannelStats
}

func (p *Pipeline) Status() Status {
	return Status{
		FeedState:      p.feed.State().String(),
		FeedConnected:  p.feed.IsConnected(),
		PendingTicks:   p.buffer.Pending(),
		Instruments:    len(p.buffer.Instruments()),
		Flushes:        p.scheduler.Flushes(),
		LastFlush:      p.scheduler.LastResult(),
		ConnectionLost: p.lost.Load(),
		Channels:       p.channels.GetStats(),
	}
}

func (p *Pipeline) OnDepthQuote(raw models.DepthMarketDataField) {
	if p.closed.Load() {
		return
	}
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	p.channels.SendRaw(ctx, raw)
}

func (p *Pipeline) OnConnectionLost(reason string) {
	p.lost.Add(1)
	p.log.WithComponent("pipeline").WithField("reason", reason).Warn("feed connection lost, waiting for supervisor")
}

func (p *Pipeline) OnSessionClosed() {
	p.log.WithComponent("pipeline").Info("feed session closed")
}
