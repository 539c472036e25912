package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepthLevels is the number of book levels carried per side.
const DepthLevels = 5

// DepthLevel is one price level. A zero price and volume mean the vendor had
// no quote at that level.
type DepthLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
}

// MarketTick is the normalized depth quote. Values are built once by the
// normalizer and never mutated afterwards.
type MarketTick struct {
	InstrumentID   string `json:"instrument_id"`
	TradingDay     string `json:"trading_day"`
	ExchangeID     string `json:"exchange_id"`
	ExchangeInstID string `json:"exchange_inst_id"`

	LastPrice          decimal.Decimal `json:"last_price"`
	PreSettlementPrice decimal.Decimal `json:"pre_settlement_price"`
	PreClosePrice      decimal.Decimal `json:"pre_close_price"`
	PreOpenInterest    decimal.Decimal `json:"pre_open_interest"`
	OpenPrice          decimal.Decimal `json:"open_price"`
	HighestPrice       decimal.Decimal `json:"highest_price"`
	LowestPrice        decimal.Decimal `json:"lowest_price"`
	Volume             int64           `json:"volume"`
	Turnover           decimal.Decimal `json:"turnover"`
	OpenInterest       decimal.Decimal `json:"open_interest"`
	ClosePrice         decimal.Decimal `json:"close_price"`
	SettlementPrice    decimal.Decimal `json:"settlement_price"`
	UpperLimitPrice    decimal.Decimal `json:"upper_limit_price"`
	LowerLimitPrice    decimal.Decimal `json:"lower_limit_price"`
	PreDelta           decimal.Decimal `json:"pre_delta"`
	CurrDelta          decimal.Decimal `json:"curr_delta"`
	AveragePrice       decimal.Decimal `json:"average_price"`

	// index 0 is level 1 (best)
	Bids [DepthLevels]DepthLevel `json:"bids"`
	Asks [DepthLevels]DepthLevel `json:"asks"`

	UpdateTime     time.Time `json:"update_time"`
	UpdateMillisec int32     `json:"update_millisec"`
	ActionDay      string    `json:"action_day"`
}

// Equal compares two ticks by value. Decimals are compared numerically so
// 12345.6 equals 12345.60.
func (t MarketTick) Equal(o MarketTick) bool {
	if t.InstrumentID != o.InstrumentID || t.TradingDay != o.TradingDay ||
		t.ExchangeID != o.ExchangeID || t.ExchangeInstID != o.ExchangeInstID ||
		t.Volume != o.Volume || t.UpdateMillisec != o.UpdateMillisec ||
		t.ActionDay != o.ActionDay || !t.UpdateTime.Equal(o.UpdateTime) {
		return false
	}
	a, b := t.decimals(), o.decimals()
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	for i := 0; i < DepthLevels; i++ {
		if !t.Bids[i].Equal(o.Bids[i]) || !t.Asks[i].Equal(o.Asks[i]) {
			return false
		}
	}
	return true
}

func (t MarketTick) decimals() []decimal.Decimal {
	return []decimal.Decimal{
		t.LastPrice, t.PreSettlementPrice, t.PreClosePrice, t.PreOpenInterest,
		t.OpenPrice, t.HighestPrice, t.LowestPrice, t.Turnover, t.OpenInterest,
		t.ClosePrice, t.SettlementPrice, t.UpperLimitPrice, t.LowerLimitPrice,
		t.PreDelta, t.CurrDelta, t.AveragePrice,
	}
}

func (l DepthLevel) Equal(o DepthLevel) bool {
	return l.Volume == o.Volume && l.Price.Equal(o.Price)
}
