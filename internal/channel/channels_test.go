package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"futuresflow/logger"
	"futuresflow/models"
)

func TestSendRawBlocksUntilDrained(t *testing.T) {
	ch := NewChannels(1, 1)
	ctx := context.Background()

	if !ch.SendRaw(ctx, models.DepthMarketDataField{InstrumentID: "cu2309"}) {
		t.Fatalf("first send should succeed")
	}

	done := make(chan bool, 1)
	go func() { done <- ch.SendRaw(ctx, models.DepthMarketDataField{InstrumentID: "rb2401"}) }()

	select {
	case <-done:
		t.Fatalf("send on a full channel should wait for the reader")
	case <-time.After(20 * time.Millisecond):
	}

	if got := <-ch.Raw; got.InstrumentID != "cu2309" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !<-done {
		t.Fatalf("blocked send should succeed once drained")
	}
	if got := <-ch.Raw; got.InstrumentID != "rb2401" {
		t.Fatalf("unexpected record: %+v", got)
	}

	stats := ch.GetStats()
	if stats.RawSent != 2 || stats.RawBlocked != 1 || stats.RawDropped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSendRawDropsOnlyWhenCancelled(t *testing.T) {
	ch := NewChannels(1, 1)
	ch.SendRaw(context.Background(), models.DepthMarketDataField{InstrumentID: "cu2309"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if ch.SendRaw(ctx, models.DepthMarketDataField{InstrumentID: "cu2309"}) {
		t.Fatalf("send should give up when ctx is done")
	}
	if stats := ch.GetStats(); stats.RawDropped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSendTickCancelled(t *testing.T) {
	ch := NewChannels(1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if ch.SendTick(ctx, models.MarketTick{InstrumentID: "rb2401"}) {
		t.Fatalf("send on unbuffered channel without reader should fail")
	}
}

func TestLogChannelStats(t *testing.T) {
	log := logger.GetLogger()
	var buf bytes.Buffer
	log.SetOutput(&buf)

	ch := NewChannels(4, 2)
	buf.Reset()
	ch.logChannelStats()

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}
	if entry["raw_channel_cap"] != float64(4) || entry["tick_channel_cap"] != float64(2) {
		t.Fatalf("unexpected stats entry: %v", entry)
	}
}

func TestCloseTwice(t *testing.T) {
	ch := NewChannels(1, 1)
	ch.Close()
	ch.Close()
	if _, ok := <-ch.Raw; ok {
		t.Fatalf("raw channel should be closed")
	}
}
