package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMarketTickEqualComparesDecimalValues(t *testing.T) {
	ts := time.Date(2024, 1, 15, 9, 0, 0, 500*int(time.Millisecond), time.Local)
	a := MarketTick{
		InstrumentID: "cu2309",
		TradingDay:   "20240115",
		LastPrice:    decimal.RequireFromString("12345.60"),
		UpdateTime:   ts,
	}
	a.Bids[0] = DepthLevel{Price: decimal.RequireFromString("12345.50"), Volume: 3}

	b := a
	b.LastPrice = decimal.RequireFromString("12345.6")
	b.Bids[0].Price = decimal.RequireFromString("12345.5")
	if !a.Equal(b) {
		t.Fatalf("expected ticks to be equal by value")
	}

	b.Asks[4].Volume = 1
	if a.Equal(b) {
		t.Fatalf("expected level 5 ask difference to be detected")
	}
}

func TestRawLevelsOrder(t *testing.T) {
	raw := DepthMarketDataField{BidPrice1: 1, BidVolume1: 10, BidPrice5: 5, BidVolume5: 50, AskPrice3: 3, AskVolume3: 30}
	bids, asks := raw.BidLevels(), raw.AskLevels()
	if bids[0] != (RawLevel{1, 10}) || bids[4] != (RawLevel{5, 50}) || asks[2] != (RawLevel{3, 30}) {
		t.Fatalf("unexpected level order: bids=%v asks=%v", bids, asks)
	}
}

func TestTradingTimeFrameTypeRoundTrip(t *testing.T) {
	for _, tf := range []TradingTimeFrameType{IndexDayOnly, FuturesDayOnly, FuturesDayNight, FuturesDayOvernight, FuturesDayOvernightLong} {
		got, err := ParseTradingTimeFrameType(tf.String())
		if err != nil || got != tf {
			t.Fatalf("parse %s: got %v, %v", tf, got, err)
		}
	}
	if _, err := ParseTradingTimeFrameType("AllDay"); err == nil {
		t.Fatalf("expected error for unknown frame type")
	}
}

func TestConnectionStateString(t *testing.T) {
	if LoggedIn.String() != "logged_in" || ConnectionState(42).String() != "state(42)" {
		t.Fatalf("unexpected state names")
	}
}
