package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresflow/internal/calendar"
)

type fakeFeed struct {
	mu        sync.Mutex
	connected bool
	connects  int
	err       error
}

func (f *fakeFeed) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeFeed) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.err != nil {
		return f.err
	}
	f.connected = true
	return nil
}

func (f *fakeFeed) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Monday 2024-01-15.
func monday(hour, minute int) func() time.Time {
	return func() time.Time { return time.Date(2024, 1, 15, hour, minute, 0, 0, time.Local) }
}

func TestCheckReconnectsWhenOnline(t *testing.T) {
	feed := &fakeFeed{}
	s := New(feed, calendar.Default(), time.Minute)
	s.SetClock(monday(9, 0))

	assert.True(t, s.Check(context.Background()))
	assert.Equal(t, 1, feed.connectCount())

	assert.False(t, s.Check(context.Background()), "already connected")
	assert.Equal(t, 1, feed.connectCount())
}

func TestCheckIdleOutsideOnlineHours(t *testing.T) {
	feed := &fakeFeed{}
	s := New(feed, calendar.Default(), time.Minute)
	s.SetClock(monday(17, 0))

	assert.False(t, s.Check(context.Background()))
	assert.Zero(t, feed.connectCount())
}

func TestCheckCountsFailures(t *testing.T) {
	feed := &fakeFeed{err: errors.New("login timed out")}
	s := New(feed, calendar.Default(), time.Minute)
	s.SetClock(monday(10, 0))

	s.Check(context.Background())
	s.Check(context.Background())
	checks, attempts, failures := s.Stats()
	assert.Equal(t, int64(2), checks)
	assert.Equal(t, int64(2), attempts)
	assert.Equal(t, int64(2), failures)
}

func TestStartChecksImmediatelyAndOnInterval(t *testing.T) {
	feed := &fakeFeed{err: errors.New("front unreachable")}
	s := New(feed, calendar.Default(), 10*time.Millisecond)
	s.SetClock(monday(9, 0))

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return feed.connectCount() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	n := feed.connectCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, feed.connectCount(), "no checks after Stop")
}

func TestDefaultInterval(t *testing.T) {
	s := New(&fakeFeed{}, calendar.Default(), 0)
	assert.Equal(t, 3*time.Minute, s.interval)
}
