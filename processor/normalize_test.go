package processor

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresflow/models"
)

const dblMax = math.MaxFloat64

func sampleRaw() models.DepthMarketDataField {
	return models.DepthMarketDataField{
		TradingDay:         "20240115",
		ActionDay:          "20240115",
		InstrumentID:       "cu2309",
		ExchangeID:         "SHFE",
		LastPrice:          12345.60,
		PreSettlementPrice: 12300,
		PreClosePrice:      12310,
		PreOpenInterest:    1000,
		OpenPrice:          12320,
		HighestPrice:       12400,
		LowestPrice:        12290,
		Volume:             42,
		Turnover:           5.185152e+06,
		OpenInterest:       1042,
		ClosePrice:         dblMax,
		SettlementPrice:    dblMax,
		UpperLimitPrice:    13530,
		LowerLimitPrice:    11070,
		PreDelta:           0,
		CurrDelta:          dblMax,
		UpdateTime:         "09:00:01",
		UpdateMillisec:     500,
		BidPrice1:          12345.5,
		BidVolume1:         3,
		AskPrice1:          12346,
		AskVolume1:         4,
		BidPrice2:          dblMax,
		AskPrice2:          dblMax,
		AveragePrice:       123456.0,
	}
}

func TestSafeDecimal(t *testing.T) {
	d, err := SafeDecimal(12345.60)
	require.NoError(t, err)
	assert.Equal(t, "12345.6", d.String())

	d, err = SafeDecimal(dblMax)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = SafeDecimal(-dblMax)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = SafeDecimal(math.NaN())
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = SafeDecimal(math.Inf(1))
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = SafeDecimal(math.Inf(-1))
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestNormalize(t *testing.T) {
	tick, err := Normalize(sampleRaw())
	require.NoError(t, err)

	assert.Equal(t, "cu2309", tick.InstrumentID)
	assert.Equal(t, "20240115", tick.TradingDay)
	assert.Equal(t, "12345.6", tick.LastPrice.String())
	assert.True(t, tick.ClosePrice.IsZero(), "DBL_MAX sentinel becomes zero")
	assert.True(t, tick.CurrDelta.IsZero())
	assert.Equal(t, int64(42), tick.Volume)
	assert.Equal(t, "5185152", tick.Turnover.String())

	want := time.Date(2024, 1, 15, 9, 0, 1, 500*int(time.Millisecond), time.Local)
	assert.True(t, want.Equal(tick.UpdateTime), "got %s", tick.UpdateTime)

	assert.True(t, tick.Bids[0].Price.Equal(decimal.RequireFromString("12345.5")))
	assert.Equal(t, int64(3), tick.Bids[0].Volume)
	assert.True(t, tick.Asks[0].Price.Equal(decimal.NewFromInt(12346)))
	for i := 1; i < models.DepthLevels; i++ {
		assert.True(t, tick.Bids[i].Price.IsZero(), "bid level %d", i+1)
		assert.Zero(t, tick.Bids[i].Volume)
		assert.True(t, tick.Asks[i].Price.IsZero(), "ask level %d", i+1)
		assert.Zero(t, tick.Asks[i].Volume)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := sampleRaw()
	a, err := Normalize(raw)
	require.NoError(t, err)
	b, err := Normalize(raw)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestNormalizeFallsBackToTradingDay(t *testing.T) {
	raw := sampleRaw()
	raw.ActionDay = ""
	tick, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, 15, tick.UpdateTime.Day())
}

func TestNormalizeNightSessionUsesActionDay(t *testing.T) {
	raw := sampleRaw()
	raw.TradingDay = "20240116"
	raw.ActionDay = "20240115"
	raw.UpdateTime = "21:05:00"
	tick, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "20240116", tick.TradingDay)
	assert.Equal(t, 15, tick.UpdateTime.Day())
	assert.Equal(t, 21, tick.UpdateTime.Hour())
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	cases := map[string]func(*models.DepthMarketDataField){
		"empty instrument": func(r *models.DepthMarketDataField) { r.InstrumentID = "" },
		"bad time":         func(r *models.DepthMarketDataField) { r.UpdateTime = "9h" },
		"no day":           func(r *models.DepthMarketDataField) { r.ActionDay, r.TradingDay = "", "" },
		"bad millis":       func(r *models.DepthMarketDataField) { r.UpdateMillisec = 1000 },
		"nan price":        func(r *models.DepthMarketDataField) { r.AskPrice3 = math.NaN() },
		"inf turnover":     func(r *models.DepthMarketDataField) { r.Turnover = math.Inf(1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			raw := sampleRaw()
			mutate(&raw)
			_, err := Normalize(raw)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}
