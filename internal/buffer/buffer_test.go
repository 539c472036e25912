package buffer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresflow/models"
)

func tick(id string, seq int) models.MarketTick {
	return models.MarketTick{
		InstrumentID: id,
		TradingDay:   "20240115",
		Volume:       int64(seq),
		UpdateTime:   time.Date(2024, 1, 15, 9, 0, 0, 0, time.Local).Add(time.Duration(seq) * time.Millisecond),
	}
}

func TestAppendAndDrainPreservesOrder(t *testing.T) {
	b := New()
	for i := 0; i < 5; i++ {
		b.Append(tick("cu2309", i))
	}
	b.Append(tick("rb2401", 0))
	assert.Equal(t, 6, b.Pending())

	drained := b.DrainAll()
	require.Len(t, drained, 2)
	require.Len(t, drained["cu2309"], 5)
	for i, tk := range drained["cu2309"] {
		assert.Equal(t, int64(i), tk.Volume)
	}
	assert.Equal(t, 0, b.Pending())
}

func TestDrainAllIsIdempotent(t *testing.T) {
	b := New()
	b.Append(tick("cu2309", 1))
	require.Len(t, b.DrainAll(), 1)
	assert.Empty(t, b.DrainAll())
	assert.Empty(t, b.DrainAll())
}

func TestCurrentTickSurvivesDrain(t *testing.T) {
	b := New()
	_, ok := b.CurrentTick("cu2309")
	assert.False(t, ok)

	b.Append(tick("cu2309", 1))
	b.Append(tick("cu2309", 2))
	b.DrainAll()

	cur, ok := b.CurrentTick("cu2309")
	require.True(t, ok)
	assert.Equal(t, int64(2), cur.Volume)
	assert.Equal(t, []string{"cu2309"}, b.Instruments())
}

func TestRequeueGoesToFront(t *testing.T) {
	b := New()
	b.Append(tick("cu2309", 1))
	b.Append(tick("cu2309", 2))
	failed := b.DrainAll()["cu2309"]

	b.Append(tick("cu2309", 3))
	b.Requeue("cu2309", failed)
	b.Requeue("cu2309", nil)
	assert.Equal(t, 3, b.Pending())

	got := b.DrainAll()["cu2309"]
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].Volume, got[1].Volume, got[2].Volume})
}

func TestConcurrentAppendsAndDrains(t *testing.T) {
	b := New()
	const (
		instruments = 10
		perInstr    = 100
		drains      = 10
	)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []map[string][]models.MarketTick
	)
	for i := 0; i < instruments; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for seq := 0; seq < perInstr; seq++ {
				b.Append(tick(id, seq))
			}
		}(fmt.Sprintf("cu24%02d", i+1))
	}
	for i := 0; i < drains; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := b.DrainAll()
			mu.Lock()
			results = append(results, d)
			mu.Unlock()
		}()
	}
	wg.Wait()
	results = append(results, b.DrainAll())

	total := 0
	perID := map[string]map[int64]bool{}
	for _, d := range results {
		for id, q := range d {
			total += len(q)
			for i := 1; i < len(q); i++ {
				assert.Less(t, q[i-1].Volume, q[i].Volume, "%s reordered inside a drain", id)
			}
			if perID[id] == nil {
				perID[id] = map[int64]bool{}
			}
			for _, tk := range q {
				assert.False(t, perID[id][tk.Volume], "%s seq %d drained twice", id, tk.Volume)
				perID[id][tk.Volume] = true
			}
		}
	}
	assert.Equal(t, instruments*perInstr, total)
	assert.Len(t, perID, instruments)
	for id, seqs := range perID {
		assert.Len(t, seqs, perInstr, id)
	}
}
