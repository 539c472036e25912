// Package ctp owns the market-data session against a CTP front: login,
// subscription and delivery of depth records to a Listener.
package ctp

import "futuresflow/models"

// LoginRequest carries the investor credentials sent on ReqUserLogin.
type LoginRequest struct {
	BrokerID string `json:"broker_id"`
	UserID   string `json:"user_id"`
	Password string `json:"password"`
	AppID    string `json:"app_id,omitempty"`
	AuthCode string `json:"auth_code,omitempty"`
}

// RspInfo is the vendor's response status. A non-zero ErrorID is a failure.
type RspInfo struct {
	ErrorID  int    `json:"error_id"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

func (r RspInfo) Failed() bool { return r.ErrorID != 0 }

// LoginResponse is delivered by OnRspUserLogin.
type LoginResponse struct {
	TradingDay string  `json:"trading_day"`
	BrokerID   string  `json:"broker_id"`
	UserID     string  `json:"user_id"`
	FrontID    int     `json:"front_id"`
	SessionID  int     `json:"session_id"`
	Info       RspInfo `json:"info"`
}

// MdSession is the vendor market-data API. Implementations deliver their
// callbacks to the SessionHandler they were built with, usually from their
// own goroutine.
type MdSession interface {
	RegisterFront(addr string)
	Init() error
	ReqUserLogin(req LoginRequest, requestID int) error
	SubscribeMarketData(instrumentIDs []string) error
	UnsubscribeMarketData(instrumentIDs []string) error
	Release()
}

// SessionHandler receives MdSession callbacks.
type SessionHandler interface {
	OnFrontConnected()
	OnFrontDisconnected(reason int)
	OnRspUserLogin(rsp LoginResponse)
	OnRspSubMarketData(instrumentID string, info RspInfo)
	OnRtnDepthMarketData(raw *models.DepthMarketDataField)
}

// SessionFactory creates a fresh session bound to h.
type SessionFactory func(h SessionHandler) (MdSession, error)

// Listener consumes what a Connection produces. Calls arrive on the
// session's goroutine; a slow OnDepthQuote holds back the session's reads.
type Listener interface {
	OnDepthQuote(raw models.DepthMarketDataField)
	OnConnectionLost(reason string)
	OnSessionClosed()
}

// Front disconnect reasons as reported by the vendor API.
const (
	ReasonNetworkRead   = 0x1001
	ReasonNetworkWrite  = 0x1002
	ReasonHeartbeatLost = 0x2001
	ReasonHeartbeatSend = 0x2002
	ReasonBadPacket     = 0x2003
)

// DisconnectReason renders a front disconnect code.
func DisconnectReason(code int) string {
	switch code {
	case ReasonNetworkRead:
		return "network read failed"
	case ReasonNetworkWrite:
		return "network write failed"
	case ReasonHeartbeatLost:
		return "heartbeat timeout"
	case ReasonHeartbeatSend:
		return "heartbeat send failed"
	case ReasonBadPacket:
		return "bad packet received"
	default:
		return "unknown reason"
	}
}
