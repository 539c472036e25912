// Package buffer holds normalized ticks between the feed and the scheduled
// flush to storage.
package buffer

import (
	"sort"
	"sync"

	"futuresflow/models"
)

// TickBuffer keeps the latest tick per instrument and a FIFO queue of ticks
// not yet persisted. One mutex guards both maps; appends are far cheaper
// than the disk writes they feed.
type TickBuffer struct {
	mu      sync.Mutex
	current map[string]models.MarketTick
	pending map[string][]models.MarketTick
	count   int
}

func New() *TickBuffer {
	return &TickBuffer{
		current: make(map[string]models.MarketTick),
		pending: make(map[string][]models.MarketTick),
	}
}

// Append records tick as the instrument's current tick and queues it.
func (b *TickBuffer) Append(tick models.MarketTick) {
	b.mu.Lock()
	b.current[tick.InstrumentID] = tick
	b.pending[tick.InstrumentID] = append(b.pending[tick.InstrumentID], tick)
	b.count++
	b.mu.Unlock()
}

// DrainAll removes and returns every non-empty queue. A second call with no
// appends in between returns an empty map.
func (b *TickBuffer) DrainAll() map[string][]models.MarketTick {
	b.mu.Lock()
	out := b.pending
	b.pending = make(map[string][]models.MarketTick, len(out))
	b.count = 0
	b.mu.Unlock()

	for id, q := range out {
		if len(q) == 0 {
			delete(out, id)
		}
	}
	return out
}

// Requeue puts ticks back at the front of id's queue, ahead of anything
// appended since they were drained.
func (b *TickBuffer) Requeue(id string, ticks []models.MarketTick) {
	if len(ticks) == 0 {
		return
	}
	b.mu.Lock()
	q := make([]models.MarketTick, 0, len(ticks)+len(b.pending[id]))
	q = append(q, ticks...)
	q = append(q, b.pending[id]...)
	b.pending[id] = q
	b.count += len(ticks)
	b.mu.Unlock()
}

// CurrentTick returns the most recent tick seen for id.
func (b *TickBuffer) CurrentTick(id string) (models.MarketTick, bool) {
	b.mu.Lock()
	t, ok := b.current[id]
	b.mu.Unlock()
	return t, ok
}

// Pending is the number of queued ticks across all instruments.
func (b *TickBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Instruments lists every instrument that has produced a tick, sorted.
func (b *TickBuffer) Instruments() []string {
	b.mu.Lock()
	out := make([]string, 0, len(b.current))
	for id := range b.current {
		out = append(out, id)
	}
	b.mu.Unlock()
	sort.Strings(out)
	return out
}
