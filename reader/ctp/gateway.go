package ctp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"futuresflow/logger"
	"futuresflow/models"
)

// Gateway envelope types.
const (
	msgRegisterFront     = "register_front"
	msgReqUserLogin      = "req_user_login"
	msgSubscribe         = "subscribe"
	msgUnsubscribe       = "unsubscribe"
	msgFrontConnected    = "front_connected"
	msgFrontDisconnected = "front_disconnected"
	msgRspUserLogin      = "rsp_user_login"
	msgRspSubMarketData  = "rsp_sub_market_data"
	msgDepth             = "depth"
	msgPing              = "ping"
	msgPong              = "pong"
)

// envelope is the JSON frame exchanged with the CTP gateway sidecar, which
// hosts the vendor library and relays its calls and callbacks.
type envelope struct {
	Type         string          `json:"type"`
	RequestID    int             `json:"request_id,omitempty"`
	Front        string          `json:"front,omitempty"`
	Reason       int             `json:"reason,omitempty"`
	Login        *LoginRequest   `json:"login,omitempty"`
	LoginRsp     *LoginResponse  `json:"login_rsp,omitempty"`
	Instruments  []string        `json:"instruments,omitempty"`
	InstrumentID string          `json:"instrument_id,omitempty"`
	Info         *RspInfo        `json:"info,omitempty"`
	Depth        json.RawMessage `json:"depth,omitempty"`
	Timestamp    int64           `json:"ts,omitempty"`
}

// GatewaySession implements MdSession over a websocket to a gateway
// process. Callbacks are delivered from the session's read goroutine.
type GatewaySession struct {
	url          string
	handler      SessionHandler
	dialer       *websocket.Dialer
	pingInterval time.Duration
	log          *logger.Log

	front string

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu       sync.Mutex
	released bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewGatewayFactory returns a SessionFactory dialing url.
func NewGatewayFactory(url string, pingInterval time.Duration) SessionFactory {
	return func(h SessionHandler) (MdSession, error) {
		if url == "" {
			return nil, errors.New("gateway url not configured")
		}
		return NewGatewaySession(url, pingInterval, h), nil
	}
}

func NewGatewaySession(url string, pingInterval time.Duration, h SessionHandler) *GatewaySession {
	if pingInterval <= 0 {
		pingInterval = 15 * time.Second
	}
	return &GatewaySession{
		url:          url,
		handler:      h,
		dialer:       &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second},
		pingInterval: pingInterval,
		log:          logger.GetLogger(),
		done:         make(chan struct{}),
	}
}

func (s *GatewaySession) RegisterFront(addr string) {
	s.front = addr
}

// Init dials the gateway, asks it to connect to the registered front and
// starts the read and ping loops.
func (s *GatewaySession) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return errors.New("gateway session released")
	}
	if s.conn != nil {
		return errors.New("gateway session already initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.dialer.HandshakeTimeout)
	defer cancel()
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial gateway %s: %w", s.url, err)
	}
	s.conn = conn

	if err := s.send(envelope{Type: msgRegisterFront, Front: s.front}); err != nil {
		conn.Close()
		s.conn = nil
		return err
	}

	s.log.WithComponent("ctp_gateway").WithFields(logger.Fields{
		"url":   s.url,
		"front": s.front,
	}).Info("gateway session started")

	s.wg.Add(2)
	go s.readLoop(conn)
	go s.pingLoop()
	return nil
}

func (s *GatewaySession) ReqUserLogin(req LoginRequest, requestID int) error {
	return s.send(envelope{Type: msgReqUserLogin, RequestID: requestID, Login: &req})
}

func (s *GatewaySession) SubscribeMarketData(instrumentIDs []string) error {
	return s.send(envelope{Type: msgSubscribe, Instruments: instrumentIDs})
}

func (s *GatewaySession) UnsubscribeMarketData(instrumentIDs []string) error {
	return s.send(envelope{Type: msgUnsubscribe, Instruments: instrumentIDs})
}

// Release closes the websocket and waits for the session goroutines. It
// must not be called from a callback.
func (s *GatewaySession) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	close(s.done)
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		s.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "release"),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		conn.Close()
	}
	s.wg.Wait()
	s.log.WithComponent("ctp_gateway").WithField("url", s.url).Debug("gateway session released")
}

func (s *GatewaySession) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *GatewaySession) send(msg envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Type, err)
	}
	return nil
}

func (s *GatewaySession) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.send(envelope{Type: msgPing, Timestamp: time.Now().UnixMilli()}); err != nil {
				s.log.WithComponent("ctp_gateway").WithError(err).Debug("ping failed")
			}
		}
	}
}

func (s *GatewaySession) readLoop(conn *websocket.Conn) {
	defer s.wg.Done()
	log := s.log.WithComponent("ctp_gateway").WithFields(logger.Fields{"url": s.url, "worker": "read_loop"})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.isReleased() {
				return
			}
			log.WithError(err).Warn("gateway read error")
			s.handler.OnFrontDisconnected(ReasonNetworkRead)
			return
		}
		s.dispatch(data)
	}
}

func (s *GatewaySession) dispatch(data []byte) {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.WithComponent("ctp_gateway").WithError(err).Debug("failed to decode gateway message")
		return
	}

	switch msg.Type {
	case msgDepth:
		var raw models.DepthMarketDataField
		if err := json.Unmarshal(msg.Depth, &raw); err != nil {
			s.log.WithComponent("ctp_gateway").WithError(err).Debug("dropping malformed depth record")
			return
		}
		s.handler.OnRtnDepthMarketData(&raw)
	case msgFrontConnected:
		s.handler.OnFrontConnected()
	case msgFrontDisconnected:
		s.handler.OnFrontDisconnected(msg.Reason)
	case msgRspUserLogin:
		var rsp LoginResponse
		if msg.LoginRsp != nil {
			rsp = *msg.LoginRsp
		}
		if msg.Info != nil {
			rsp.Info = *msg.Info
		}
		s.handler.OnRspUserLogin(rsp)
	case msgRspSubMarketData:
		var info RspInfo
		if msg.Info != nil {
			info = *msg.Info
		}
		s.handler.OnRspSubMarketData(msg.InstrumentID, info)
	case msgPing:
		if err := s.send(envelope{Type: msgPong, Timestamp: msg.Timestamp}); err != nil {
			s.log.WithComponent("ctp_gateway").WithError(err).Debug("pong failed")
		}
	case msgPong:
	default:
		s.log.WithComponent("ctp_gateway").WithField("type", msg.Type).Debug("ignoring gateway message")
	}
}
