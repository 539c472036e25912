package models

// DepthMarketDataField is one depth-of-market record as delivered by the
// vendor feed. Field names follow the CTP struct; prices are raw doubles and
// may carry the DBL_MAX "no value" sentinel.
type DepthMarketDataField struct {
	TradingDay         string  `json:"TradingDay"`
	InstrumentID       string  `json:"InstrumentID"`
	ExchangeID         string  `json:"ExchangeID"`
	ExchangeInstID     string  `json:"ExchangeInstID"`
	LastPrice          float64 `json:"LastPrice"`
	PreSettlementPrice float64 `json:"PreSettlementPrice"`
	PreClosePrice      float64 `json:"PreClosePrice"`
	PreOpenInterest    float64 `json:"PreOpenInterest"`
	OpenPrice          float64 `json:"OpenPrice"`
	HighestPrice       float64 `json:"HighestPrice"`
	LowestPrice        float64 `json:"LowestPrice"`
	Volume             int32   `json:"Volume"`
	Turnover           float64 `json:"Turnover"`
	OpenInterest       float64 `json:"OpenInterest"`
	ClosePrice         float64 `json:"ClosePrice"`
	SettlementPrice    float64 `json:"SettlementPrice"`
	UpperLimitPrice    float64 `json:"UpperLimitPrice"`
	LowerLimitPrice    float64 `json:"LowerLimitPrice"`
	PreDelta           float64 `json:"PreDelta"`
	CurrDelta          float64 `json:"CurrDelta"`
	UpdateTime         string  `json:"UpdateTime"`
	UpdateMillisec     int32   `json:"UpdateMillisec"`

	BidPrice1  float64 `json:"BidPrice1"`
	BidVolume1 int32   `json:"BidVolume1"`
	AskPrice1  float64 `json:"AskPrice1"`
	AskVolume1 int32   `json:"AskVolume1"`
	BidPrice2  float64 `json:"BidPrice2"`
	BidVolume2 int32   `json:"BidVolume2"`
	AskPrice2  float64 `json:"AskPrice2"`
	AskVolume2 int32   `json:"AskVolume2"`
	BidPrice3  float64 `json:"BidPrice3"`
	BidVolume3 int32   `json:"BidVolume3"`
	AskPrice3  float64 `json:"AskPrice3"`
	AskVolume3 int32   `json:"AskVolume3"`
	BidPrice4  float64 `json:"BidPrice4"`
	BidVolume4 int32   `json:"BidVolume4"`
	AskPrice4  float64 `json:"AskPrice4"`
	AskVolume4 int32   `json:"AskVolume4"`
	BidPrice5  float64 `json:"BidPrice5"`
	BidVolume5 int32   `json:"BidVolume5"`
	AskPrice5  float64 `json:"AskPrice5"`
	AskVolume5 int32   `json:"AskVolume5"`

	AveragePrice float64 `json:"AveragePrice"`
	ActionDay    string  `json:"ActionDay"`
}

// BidLevels returns the five bid price/volume pairs, best first.
func (d *DepthMarketDataField) BidLevels() [DepthLevels]RawLevel {
	return [DepthLevels]RawLevel{
		{d.BidPrice1, d.BidVolume1},
		{d.BidPrice2, d.BidVolume2},
		{d.BidPrice3, d.BidVolume3},
		{d.BidPrice4, d.BidVolume4},
		{d.BidPrice5, d.BidVolume5},
	}
}

// AskLevels returns the five ask price/volume pairs, best first.
func (d *DepthMarketDataField) AskLevels() [DepthLevels]RawLevel {
	return [DepthLevels]RawLevel{
		{d.AskPrice1, d.AskVolume1},
		{d.AskPrice2, d.AskVolume2},
		{d.AskPrice3, d.AskVolume3},
		{d.AskPrice4, d.AskVolume4},
		{d.AskPrice5, d.AskVolume5},
	}
}

// RawLevel is a vendor price level before normalization.
type RawLevel struct {
	Price  float64
	Volume int32
}
