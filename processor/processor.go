package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"futuresflow/internal/channel"
	"futuresflow/logger"
	"futuresflow/models"
)

// TickSink receives normalized ticks.
type TickSink interface {
	Append(tick models.MarketTick)
}

// Processor drains the raw channel, normalizes each record and appends it
// to the sink. A single worker keeps per-instrument order intact.
type Processor struct {
	channels *channel.Channels
	sink     TickSink
	publish  bool

	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	log     *logger.Log

	statsMu    sync.Mutex
	processed  int64
	malformed  int64
	malformLog *rate.Limiter
}

// NewProcessor wires a processor. When publish is set every tick is also
// offered on the tick channel for live publishers.
func NewProcessor(channels *channel.Channels, sink TickSink, publish bool) *Processor {
	return &Processor{
		channels:   channels,
		sink:       sink,
		publish:    publish,
		log:        logger.GetLogger(),
		malformLog: rate.NewLimiter(rate.Every(5*time.Second), 5),
	}
}

func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("processor already running")
	}
	p.running = true
	p.parent = ctx
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.worker()

	p.log.WithComponent("processor").Info("processor started")
	return nil
}

// Stop ends the worker after it has handled whatever is already queued on
// the raw channel.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	processed, malformed := p.Stats()
	p.log.WithComponent("processor").WithFields(logger.Fields{
		"processed": processed,
		"malformed": malformed,
	}).Info("processor stopped")
}

func (p *Processor) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			p.drainRemaining()
			return
		case raw, ok := <-p.channels.Raw:
			if !ok {
				return
			}
			p.Handle(raw)
		}
	}
}

func (p *Processor) drainRemaining() {
	for {
		select {
		case raw, ok := <-p.channels.Raw:
			if !ok {
				return
			}
			p.Handle(raw)
		default:
			return
		}
	}
}

// Handle normalizes one record. Malformed records are dropped and counted;
// a panicking sink is recovered so the worker keeps running.
func (p *Processor) Handle(raw models.DepthMarketDataField) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithComponent("processor").WithFields(logger.Fields{
				"instrument_id": raw.InstrumentID,
				"panic":         fmt.Sprint(r),
			}).Error("recovered from panic while handling depth record")
		}
	}()

	tick, err := Normalize(raw)
	if err != nil {
		p.statsMu.Lock()
		p.malformed++
		p.statsMu.Unlock()
		logger.IncrementTicksDropped()
		if errors.Is(err, ErrInvalidRecord) && p.malformLog.Allow() {
			p.log.WithComponent("processor").WithError(err).
				WithField("instrument_id", raw.InstrumentID).Debug("dropping malformed depth record")
		}
		return
	}

	p.sink.Append(tick)
	p.statsMu.Lock()
	p.processed++
	p.statsMu.Unlock()

	// publish against the parent context so ticks drained during Stop
	// still reach publishers
	if p.publish && p.parent != nil {
		p.channels.SendTick(p.parent, tick)
	}
}

func (p *Processor) Stats() (processed, malformed int64) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.processed, p.malformed
}
