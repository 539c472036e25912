package models

import "fmt"

// Exchange codes used as the market directory name.
const (
	MarketSHFE  = "SHFE"
	MarketDCE   = "DCE"
	MarketCZCE  = "CZCE"
	MarketCFFEX = "CFFEX"
	MarketINE   = "INE"
)

// TradingTimeFrameType selects the session table a product trades under.
type TradingTimeFrameType int

const (
	IndexDayOnly TradingTimeFrameType = iota
	FuturesDayOnly
	FuturesDayNight
	FuturesDayOvernight
	FuturesDayOvernightLong
)

var timeFrameNames = map[TradingTimeFrameType]string{
	IndexDayOnly:            "IndexDayOnly",
	FuturesDayOnly:          "FuturesDayOnly",
	FuturesDayNight:         "FuturesDayNight",
	FuturesDayOvernight:     "FuturesDayOvernight",
	FuturesDayOvernightLong: "FuturesDayOvernightLong",
}

func (t TradingTimeFrameType) String() string {
	if s, ok := timeFrameNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TradingTimeFrameType(%d)", int(t))
}

// ParseTradingTimeFrameType maps a configured name back to its value.
func ParseTradingTimeFrameType(s string) (TradingTimeFrameType, error) {
	for k, v := range timeFrameNames {
		if v == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown trading time frame %q", s)
}

// InstrumentCategory describes a product family such as SHFE copper.
type InstrumentCategory struct {
	Symbol        string               `json:"symbol" yaml:"symbol"`
	Name          string               `json:"name" yaml:"name"`
	MarketCode    string               `json:"market" yaml:"market"`
	TimeFrameType TradingTimeFrameType `json:"time_frame" yaml:"-"`
}

// ConnectionState tracks the feed session lifecycle.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	LoggedIn
	SubscriptionActive
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case LoggedIn:
		return "logged_in"
	case SubscriptionActive:
		return "subscription_active"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
