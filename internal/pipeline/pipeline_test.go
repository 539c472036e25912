package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresflow/internal/calendar"
	"futuresflow/internal/catalog"
	"futuresflow/internal/channel"
	"futuresflow/models"
	"futuresflow/reader/ctp"
	"futuresflow/writer"
)

type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

// scriptedFeed delivers its quotes to the listener on every Connect.
type scriptedFeed struct {
	listener ctp.Listener
	quotes   []models.DepthMarketDataField
	events   *events

	mu        sync.Mutex
	connected bool
	connects  int
}

func (f *scriptedFeed) Connect(context.Context) error {
	f.mu.Lock()
	f.connects++
	f.connected = true
	f.mu.Unlock()
	f.events.add("connect")
	for _, q := range f.quotes {
		f.listener.OnDepthQuote(q)
	}
	return nil
}

func (f *scriptedFeed) Disconnect(context.Context) error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.events.add("disconnect")
	f.listener.OnSessionClosed()
	return nil
}

func (f *scriptedFeed) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *scriptedFeed) State() models.ConnectionState {
	if f.IsConnected() {
		return models.SubscriptionActive
	}
	return models.Disconnected
}

type tracingStore struct {
	next   writer.Store
	events *events
}

func (s *tracingStore) Write(ctx context.Context, c models.InstrumentCategory, id, day string, ticks []models.MarketTick) error {
	s.events.add("write " + id)
	return s.next.Write(ctx, c, id, day, ticks)
}

type fakePublisher struct {
	events *events
}

func (p *fakePublisher) Start(context.Context) error { p.events.add("publisher start"); return nil }
func (p *fakePublisher) Stop()                       { p.events.add("publisher stop") }

func quote(id string, price float64) models.DepthMarketDataField {
	return models.DepthMarketDataField{
		InstrumentID: id,
		TradingDay:   "20240115",
		ActionDay:    "20240115",
		UpdateTime:   "09:00:01",
		LastPrice:    price,
		Volume:       5,
		BidPrice1:    price - 10,
		BidVolume1:   2,
		AskPrice1:    price + 10,
		AskVolume1:   1,
	}
}

func TestPipelineIngestsAndFlushesOnStop(t *testing.T) {
	root := t.TempDir()
	ev := &events{}
	feed := &scriptedFeed{
		events: ev,
		quotes: []models.DepthMarketDataField{quote("cu2309", 68010), quote("zz9999", 1), quote("cu2309", 68020)},
	}
	csv := writer.NewCSVWriter(root)

	p, err := New(Options{
		Calendar: calendar.Default(),
		Catalog:  catalog.Default(),
		Channels: channel.NewChannels(16, 16),
		Store:    &tracingStore{next: csv, events: ev},
		NewFeed: func(l ctp.Listener) Feed {
			feed.listener = l
			return feed
		},
		Publisher:          &fakePublisher{events: ev},
		SchedulerInterval:  10 * time.Millisecond,
		SupervisorInterval: time.Hour,
		Clock:              func() time.Time { return time.Date(2024, 1, 15, 9, 0, 0, 0, time.Local) },
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))

	require.Eventually(t, func() bool {
		tick, ok := p.CurrentTick("cu2309")
		return ok && tick.LastPrice.String() == "68020"
	}, 2*time.Second, 5*time.Millisecond)
	_, ok := p.CurrentTick("zz9999")
	assert.True(t, ok)
	assert.Equal(t, models.SubscriptionActive, p.FeedState())

	st := p.Status()
	assert.True(t, st.FeedConnected)
	assert.Equal(t, 3, st.PendingTicks, "09:00 is not a closing window")
	assert.Zero(t, st.Flushes)

	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, p.Stop(context.Background()))

	got, err := writer.ReadFile(filepath.Join(root, "SHFE", "cu", "cu2309_20240115.csv"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "68010", got[0].LastPrice.String())
	assert.Equal(t, "68020", got[1].LastPrice.String())

	assert.Equal(t, []string{"publisher start", "connect", "disconnect", "write cu2309", "publisher stop"}, ev.list())
	assert.Equal(t, []string{"cu2309", "zz9999"}, p.Instruments())
}

func TestPipelineDropsQuotesAfterStop(t *testing.T) {
	feed := &scriptedFeed{events: &events{}}
	p, err := New(Options{
		Calendar: calendar.Default(),
		Catalog:  catalog.Default(),
		Channels: channel.NewChannels(4, 4),
		Store:    writer.NewCSVWriter(t.TempDir()),
		NewFeed: func(l ctp.Listener) Feed {
			feed.listener = l
			return feed
		},
		Clock: func() time.Time { return time.Date(2024, 1, 15, 17, 0, 0, 0, time.Local) },
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Stop(context.Background()))

	assert.NotPanics(t, func() { p.OnDepthQuote(quote("cu2309", 1)) })
	p.OnConnectionLost("heartbeat timeout")
	assert.Equal(t, int64(1), p.Status().ConnectionLost)
	assert.NotContains(t, feed.events.list(), "connect", "offline at 17:00")
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	bad := calendar.Default()
	bad.Online[time.Monday] = []calendar.Frame{{Begin: calendar.At(10, 0), End: calendar.At(9, 0)}}
	_, err = New(Options{
		Calendar: bad,
		Catalog:  catalog.Default(),
		Channels: channel.NewChannels(1, 1),
		Store:    writer.NewCSVWriter(t.TempDir()),
		NewFeed:  func(ctp.Listener) Feed { return &scriptedFeed{events: &events{}} },
	})
	assert.Error(t, err)
}
