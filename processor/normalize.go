package processor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"futuresflow/models"
)

// ErrInvalidRecord marks a vendor record that cannot be normalized.
var ErrInvalidRecord = errors.New("invalid depth record")

// maxDecimalMagnitude is the largest magnitude the exchange's decimal
// fields carry. The feed sends DBL_MAX for "no value", which lands above it.
const maxDecimalMagnitude = 7.9228162514264337593543950335e28

const (
	dayLayout  = "20060102"
	timeLayout = "15:04:05"
)

// SafeDecimal converts a vendor double. NaN and infinities are errors;
// magnitudes at or beyond the decimal range become zero. The result is the
// shortest representation of v, so 12345.60 yields 12345.6.
func SafeDecimal(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fmt.Errorf("%w: non-finite value %v", ErrInvalidRecord, v)
	}
	if math.Abs(v) >= maxDecimalMagnitude {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(v), nil
}

// Normalize converts a raw record into a MarketTick. It is pure: the same
// record always yields an equal tick.
func Normalize(raw models.DepthMarketDataField) (models.MarketTick, error) {
	if raw.InstrumentID == "" {
		return models.MarketTick{}, fmt.Errorf("%w: empty instrument id", ErrInvalidRecord)
	}

	updated, err := parseUpdateTime(raw)
	if err != nil {
		return models.MarketTick{}, err
	}

	c := converter{}
	tick := models.MarketTick{
		InstrumentID:   raw.InstrumentID,
		TradingDay:     raw.TradingDay,
		ExchangeID:     raw.ExchangeID,
		ExchangeInstID: raw.ExchangeInstID,

		LastPrice:          c.dec("LastPrice", raw.LastPrice),
		PreSettlementPrice: c.dec("PreSettlementPrice", raw.PreSettlementPrice),
		PreClosePrice:      c.dec("PreClosePrice", raw.PreClosePrice),
		PreOpenInterest:    c.dec("PreOpenInterest", raw.PreOpenInterest),
		OpenPrice:          c.dec("OpenPrice", raw.OpenPrice),
		HighestPrice:       c.dec("HighestPrice", raw.HighestPrice),
		LowestPrice:        c.dec("LowestPrice", raw.LowestPrice),
		Volume:             int64(raw.Volume),
		Turnover:           c.dec("Turnover", raw.Turnover),
		OpenInterest:       c.dec("OpenInterest", raw.OpenInterest),
		ClosePrice:         c.dec("ClosePrice", raw.ClosePrice),
		SettlementPrice:    c.dec("SettlementPrice", raw.SettlementPrice),
		UpperLimitPrice:    c.dec("UpperLimitPrice", raw.UpperLimitPrice),
		LowerLimitPrice:    c.dec("LowerLimitPrice", raw.LowerLimitPrice),
		PreDelta:           c.dec("PreDelta", raw.PreDelta),
		CurrDelta:          c.dec("CurrDelta", raw.CurrDelta),
		AveragePrice:       c.dec("AveragePrice", raw.AveragePrice),

		UpdateTime:     updated,
		UpdateMillisec: raw.UpdateMillisec,
		ActionDay:      raw.ActionDay,
	}

	bids, asks := raw.BidLevels(), raw.AskLevels()
	for i := 0; i < models.DepthLevels; i++ {
		tick.Bids[i] = models.DepthLevel{Price: c.dec(fmt.Sprintf("BidPrice%d", i+1), bids[i].Price), Volume: int64(bids[i].Volume)}
		tick.Asks[i] = models.DepthLevel{Price: c.dec(fmt.Sprintf("AskPrice%d", i+1), asks[i].Price), Volume: int64(asks[i].Volume)}
	}

	if c.err != nil {
		return models.MarketTick{}, c.err
	}
	return tick, nil
}

// converter keeps the first conversion error so Normalize can build the
// tick in one expression.
type converter struct {
	err error
}

func (c *converter) dec(field string, v float64) decimal.Decimal {
	d, err := SafeDecimal(v)
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("%s: %w", field, err)
	}
	return d
}

// parseUpdateTime combines the calendar day (ActionDay, or TradingDay when
// the vendor leaves it blank) with UpdateTime and UpdateMillisec in local
// time.
func parseUpdateTime(raw models.DepthMarketDataField) (time.Time, error) {
	day := raw.ActionDay
	if day == "" {
		day = raw.TradingDay
	}
	if day == "" {
		return time.Time{}, fmt.Errorf("%w: %s has no action or trading day", ErrInvalidRecord, raw.InstrumentID)
	}
	if raw.UpdateMillisec < 0 || raw.UpdateMillisec > 999 {
		return time.Time{}, fmt.Errorf("%w: %s update millisec %d out of range", ErrInvalidRecord, raw.InstrumentID, raw.UpdateMillisec)
	}

	t, err := time.ParseInLocation(dayLayout+" "+timeLayout, day+" "+raw.UpdateTime, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s update time %q %q: %v", ErrInvalidRecord, raw.InstrumentID, day, raw.UpdateTime, err)
	}
	return t.Add(time.Duration(raw.UpdateMillisec) * time.Millisecond), nil
}
