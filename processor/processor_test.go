package processor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresflow/internal/channel"
	"futuresflow/models"
)

type recordingSink struct {
	mu    sync.Mutex
	ticks []models.MarketTick
	panic bool
}

func (s *recordingSink) Append(t models.MarketTick) {
	if s.panic {
		panic("sink exploded")
	}
	s.mu.Lock()
	s.ticks = append(s.ticks, t)
	s.mu.Unlock()
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

func TestProcessorStopDrainsQueuedRecords(t *testing.T) {
	ch := channel.NewChannels(16, 16)
	sink := &recordingSink{}
	p := NewProcessor(ch, sink, true)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.True(t, ch.SendRaw(ctx, sampleRaw()))
	}
	bad := sampleRaw()
	bad.UpdateTime = "garbage"
	require.True(t, ch.SendRaw(ctx, bad))

	require.NoError(t, p.Start(ctx))
	assert.Error(t, p.Start(ctx), "second start must fail")
	p.Stop()
	p.Stop()

	assert.Equal(t, 3, sink.len())
	processed, malformed := p.Stats()
	assert.Equal(t, int64(3), processed)
	assert.Equal(t, int64(1), malformed)
	assert.Len(t, ch.Ticks, 3, "ticks are published when enabled")
}

func TestHandleRecoversFromSinkPanic(t *testing.T) {
	ch := channel.NewChannels(1, 1)
	p := NewProcessor(ch, &recordingSink{panic: true}, false)

	assert.NotPanics(t, func() { p.Handle(sampleRaw()) })
	processed, _ := p.Stats()
	assert.Zero(t, processed)
}
