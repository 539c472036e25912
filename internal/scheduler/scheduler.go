// Package scheduler moves buffered ticks to storage during the closing
// window.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"futuresflow/logger"
	"futuresflow/models"
	"futuresflow/writer"
)

// State is the flush state machine: Idle <-> Flushing.
type State int32

const (
	Idle State = iota
	Flushing
)

func (s State) String() string {
	if s == Flushing {
		return "flushing"
	}
	return "idle"
}

// Buffer is the tick source the scheduler drains.
type Buffer interface {
	DrainAll() map[string][]models.MarketTick
	Requeue(id string, ticks []models.MarketTick)
	Pending() int
}

// Resolver maps an instrument code to its category.
type Resolver interface {
	Resolve(code string) (models.InstrumentCategory, bool)
}

// Window decides when persistence may run.
type Window interface {
	IsClosingWindow(t time.Time) bool
}

// FlushResult summarizes one flush cycle.
type FlushResult struct {
	ID          string
	Started     time.Time
	Duration    time.Duration
	Instruments int
	Ticks       int
	Written     int
	Discarded   int
	Requeued    int
	Deferred    int
	Err         error
}

// maxRetryBackoff caps the wait between write attempts for an instrument
// whose writes keep failing.
const maxRetryBackoff = 5 * time.Minute

type retryState struct {
	failures int
	next     time.Time
}

// Scheduler checks the calendar every interval and, inside the closing
// window, drains the buffer into the store. At most one flush runs at a
// time; a timer tick that finds a flush in progress is skipped. An
// instrument whose write fails is retried after a backoff that doubles
// from the interval up to maxRetryBackoff; FlushNow ignores the backoff.
type Scheduler struct {
	buffer   Buffer
	resolver Resolver
	window   Window
	store    writer.Store
	interval time.Duration
	now      func() time.Time

	state atomic.Int32

	unresolvedMu sync.Mutex
	unresolved   map[string]struct{}

	retryMu sync.Mutex
	retry   map[string]retryState

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	log     *logger.Log

	statsMu sync.Mutex
	flushes int64
	last    FlushResult
}

func New(buffer Buffer, resolver Resolver, window Window, store writer.Store, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		buffer:     buffer,
		resolver:   resolver,
		window:     window,
		store:      store,
		interval:   interval,
		now:        time.Now,
		unresolved: make(map[string]struct{}),
		retry:      make(map[string]retryState),
		log:        logger.GetLogger(),
	}
}

// SetClock replaces the time source used by the timer loop. It may be
// called while the loop is running.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.log.WithComponent("scheduler").WithField("interval", s.interval.String()).Info("starting scheduler")
	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop ends the timer loop and waits for an in-flight flush to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.WithComponent("scheduler").WithField("flushes", s.Flushes()).Info("scheduler stopped")
}

func (s *Scheduler) clock() time.Time {
	s.mu.Lock()
	now := s.now
	s.mu.Unlock()
	return now()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Tick(s.ctx, s.clock())
		}
	}
}

// State returns the current flush state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Tick flushes if now is inside the closing window, ticks are pending and
// no other flush is running. It reports whether a flush ran.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (FlushResult, bool) {
	if !s.window.IsClosingWindow(now) || s.buffer.Pending() == 0 {
		return FlushResult{}, false
	}
	if !s.state.CompareAndSwap(int32(Idle), int32(Flushing)) {
		s.log.WithComponent("scheduler").Debug("flush in progress, skipping tick")
		return FlushResult{}, false
	}
	defer s.state.Store(int32(Idle))
	return s.flush(ctx, now, false), true
}

// FlushNow persists everything pending regardless of the calendar. It waits
// for an in-flight flush to complete first.
func (s *Scheduler) FlushNow(ctx context.Context) FlushResult {
	wait := time.NewTicker(5 * time.Millisecond)
	defer wait.Stop()
	for !s.state.CompareAndSwap(int32(Idle), int32(Flushing)) {
		select {
		case <-ctx.Done():
			return FlushResult{Err: ctx.Err()}
		case <-wait.C:
		}
	}
	defer s.state.Store(int32(Idle))
	return s.flush(ctx, s.clock(), true)
}

// Flushes returns the number of completed flush cycles.
func (s *Scheduler) Flushes() int64 {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.flushes
}

// LastResult returns the most recent flush summary.
func (s *Scheduler) LastResult() FlushResult {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.last
}

type dayGroup struct {
	day   string
	ticks []models.MarketTick
}

// byTradingDay splits an instrument's queue by trading day, keeping the
// order of first appearance and the order within each day.
func byTradingDay(ticks []models.MarketTick) []dayGroup {
	var groups []dayGroup
	index := make(map[string]int)
	for _, t := range ticks {
		day := t.TradingDay
		if day == "" {
			day = t.UpdateTime.Format("20060102")
		}
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, dayGroup{day: day})
		}
		groups[i].ticks = append(groups[i].ticks, t)
	}
	return groups
}

// flush drains the buffer and writes every instrument. Unless force is set,
// instruments still backing off from a failed write are put back untouched.
func (s *Scheduler) flush(ctx context.Context, now time.Time, force bool) FlushResult {
	res := FlushResult{ID: uuid.NewString(), Started: time.Now()}
	log := s.log.WithComponent("scheduler").WithField("flush_id", res.ID)

	drained := s.buffer.DrainAll()
	ids := make([]string, 0, len(drained))
	for id := range drained {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	res.Instruments = len(ids)

	var errs []error
	for _, id := range ids {
		ticks := drained[id]
		res.Ticks += len(ticks)

		category, ok := s.resolver.Resolve(id)
		if !ok {
			res.Discarded += len(ticks)
			s.warnUnresolved(id)
			continue
		}

		if !force && s.backingOff(id, now) {
			s.buffer.Requeue(id, ticks)
			res.Deferred += len(ticks)
			continue
		}

		var failed []models.MarketTick
		var lastErr error
		for _, g := range byTradingDay(ticks) {
			if err := s.store.Write(ctx, category, id, g.day, g.ticks); err != nil {
				errs = append(errs, fmt.Errorf("write %s %s: %w", id, g.day, err))
				failed = append(failed, g.ticks...)
				lastErr = err
				logger.IncrementFlushError()
				continue
			}
			res.Written += len(g.ticks)
			logger.IncrementFlushWrite(len(g.ticks))
		}
		if len(failed) > 0 {
			s.buffer.Requeue(id, failed)
			res.Requeued += len(failed)
			s.recordFailure(log, id, now, len(failed), lastErr)
		} else {
			s.clearFailures(id)
		}
	}

	res.Err = errors.Join(errs...)
	res.Duration = time.Since(res.Started)
	if res.Ticks == res.Deferred {
		return res
	}

	s.statsMu.Lock()
	s.flushes++
	s.last = res
	s.statsMu.Unlock()

	if res.Ticks > 0 {
		logger.LogPerformanceEntry(log, "scheduler", "flush", res.Duration, logger.Fields{
			"instruments": res.Instruments,
			"ticks":       res.Ticks,
			"written":     res.Written,
			"discarded":   res.Discarded,
			"requeued":    res.Requeued,
			"deferred":    res.Deferred,
		})
	}
	return res
}

func (s *Scheduler) backingOff(id string, now time.Time) bool {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	r, ok := s.retry[id]
	return ok && now.Before(r.next)
}

// recordFailure schedules the next attempt for id. The first failure is
// logged at Error, repeats at Warn.
func (s *Scheduler) recordFailure(log *logger.Entry, id string, now time.Time, ticks int, err error) {
	s.retryMu.Lock()
	r := s.retry[id]
	r.failures++
	backoff := maxRetryBackoff
	if r.failures <= 32 {
		if b := s.interval << (r.failures - 1); b > 0 && b < maxRetryBackoff {
			backoff = b
		}
	}
	r.next = now.Add(backoff)
	s.retry[id] = r
	s.retryMu.Unlock()

	entry := log.WithError(err).WithFields(logger.Fields{
		"instrument_id": id,
		"ticks":         ticks,
		"failures":      r.failures,
		"retry_in":      backoff.String(),
	})
	if r.failures == 1 {
		entry.Error("failed to persist ticks, requeueing")
		return
	}
	entry.Warn("persisting ticks still failing, requeueing")
}

func (s *Scheduler) clearFailures(id string) {
	s.retryMu.Lock()
	delete(s.retry, id)
	s.retryMu.Unlock()
}

func (s *Scheduler) warnUnresolved(id string) {
	s.unresolvedMu.Lock()
	_, seen := s.unresolved[id]
	if !seen {
		s.unresolved[id] = struct{}{}
	}
	s.unresolvedMu.Unlock()
	if !seen {
		s.log.WithComponent("scheduler").WithField("instrument_id", id).Warn("unknown instrument prefix, ticks not persisted")
	}
}

// Unresolved returns the instrument codes that could not be mapped to a
// category, sorted.
func (s *Scheduler) Unresolved() []string {
	s.unresolvedMu.Lock()
	defer s.unresolvedMu.Unlock()
	out := make([]string, 0, len(s.unresolved))
	for id := range s.unresolved {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
