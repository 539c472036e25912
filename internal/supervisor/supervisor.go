// Package supervisor keeps the feed connected during online hours.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"futuresflow/logger"
)

// Feed is the connection the supervisor heals.
type Feed interface {
	IsConnected() bool
	Connect(ctx context.Context) error
}

// Schedule reports whether the feed should be up at t.
type Schedule interface {
	IsOnlineTime(t time.Time) bool
}

// Supervisor checks the feed once on start and then every interval. Inside
// online hours a disconnected feed is reconnected; failures wait for the
// next check.
type Supervisor struct {
	feed     Feed
	schedule Schedule
	interval time.Duration
	now      func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	log     *logger.Log

	checks   int64
	attempts int64
	failures int64
}

func New(feed Feed, schedule Schedule, interval time.Duration) *Supervisor {
	if interval <= 0 {
		interval = 3 * time.Minute
	}
	return &Supervisor{
		feed:     feed,
		schedule: schedule,
		interval: interval,
		now:      time.Now,
		log:      logger.GetLogger(),
	}
}

// SetClock replaces the time source. Call before Start.
func (s *Supervisor) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("supervisor already running")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.log.WithComponent("supervisor").WithField("interval", s.interval.String()).Info("starting reconnect supervisor")
	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop ends the loop. The feed is left as it is.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	checks, attempts, failures := s.Stats()
	s.log.WithComponent("supervisor").WithFields(logger.Fields{
		"checks":   checks,
		"attempts": attempts,
		"failures": failures,
	}).Info("reconnect supervisor stopped")
}

func (s *Supervisor) run() {
	defer s.wg.Done()
	s.Check(s.ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Check(s.ctx)
		}
	}
}

// Check runs one supervision step and reports whether a connect was
// attempted.
func (s *Supervisor) Check(ctx context.Context) bool {
	s.mu.Lock()
	now := s.now()
	s.checks++
	s.mu.Unlock()

	if ctx.Err() != nil || !s.schedule.IsOnlineTime(now) || s.feed.IsConnected() {
		return false
	}

	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()

	log := s.log.WithComponent("supervisor").WithField("at", now.Format(time.RFC3339))
	log.Info("feed offline during trading hours, reconnecting")
	if err := s.feed.Connect(ctx); err != nil {
		s.mu.Lock()
		s.failures++
		s.mu.Unlock()
		log.WithError(err).Warn("reconnect failed, retrying on next check")
	}
	return true
}

// Stats returns the number of checks, connect attempts and failed attempts.
func (s *Supervisor) Stats() (checks, attempts, failures int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks, s.attempts, s.failures
}
