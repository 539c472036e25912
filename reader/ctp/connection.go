package ctp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appconfig "futuresflow/config"
	"futuresflow/logger"
	"futuresflow/models"
)

var (
	ErrLoginTimeout      = errors.New("ctp: login timed out")
	ErrLoginFailed       = errors.New("ctp: login failed")
	ErrNotConnected      = errors.New("ctp: not connected")
	ErrConnectInProgress = errors.New("ctp: connect already in progress")
)

// Options configures a Connection.
type Options struct {
	Front        string
	Login        LoginRequest
	Instruments  []string
	LoginTimeout time.Duration
}

// OptionsFromConfig builds connection options from the feed section.
func OptionsFromConfig(cfg appconfig.FeedConfig, instruments []string) Options {
	return Options{
		Front: cfg.MdFrontAddr,
		Login: LoginRequest{
			BrokerID: cfg.BrokerID,
			UserID:   cfg.UserID,
			Password: cfg.Password,
			AppID:    cfg.AppID,
			AuthCode: cfg.AuthCode,
		},
		Instruments:  instruments,
		LoginTimeout: cfg.LoginTimeout,
	}
}

// Connection drives one MdSession at a time through connect, login and
// subscribe, and hands depth records to its Listener. It never retries on
// its own; the supervisor calls Connect again.
type Connection struct {
	opts     Options
	factory  SessionFactory
	listener Listener
	log      *logger.Log

	mu         sync.Mutex
	session    MdSession
	generation uint64
	state      models.ConnectionState
	connecting bool
	requestID  int
	loginDone  chan error
	everOnline bool

	received  atomic.Bool
	quotes    atomic.Int64
	malformed atomic.Int64
}

func NewConnection(opts Options, factory SessionFactory, listener Listener) *Connection {
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 30 * time.Second
	}
	return &Connection{
		opts:     opts,
		factory:  factory,
		listener: listener,
		log:      logger.GetLogger(),
		state:    models.Disconnected,
	}
}

// Connect opens a session and blocks until login succeeds, fails, times out
// or ctx is done. A failed attempt releases the session it created.
func (c *Connection) Connect(ctx context.Context) error {
	log := c.log.WithComponent("ctp_connection").WithFields(logger.Fields{
		"operation": "Connect",
		"front":     c.opts.Front,
		"broker_id": c.opts.Login.BrokerID,
	})

	c.mu.Lock()
	if c.connecting {
		c.mu.Unlock()
		return ErrConnectInProgress
	}
	if c.session != nil && c.state >= models.LoggedIn {
		session := c.session
		c.mu.Unlock()
		if c.received.Load() {
			return nil
		}
		// Logged in but silent: ask again for the instruments.
		log.Info("session logged in without data, resubscribing")
		return c.subscribe(session)
	}

	stale := c.session
	c.generation++
	gen := c.generation
	c.session = nil
	c.connecting = true
	c.state = models.Connecting
	c.loginDone = make(chan error, 1)
	done := c.loginDone
	c.received.Store(false)
	c.mu.Unlock()

	if stale != nil {
		stale.Release()
	}

	session, err := c.factory(&sessionHandler{conn: c, generation: gen})
	if err != nil {
		c.abort(gen, nil)
		return fmt.Errorf("failed to create md session: %w", err)
	}
	c.mu.Lock()
	if c.generation != gen {
		// Disconnected while the session was being built.
		c.mu.Unlock()
		session.Release()
		return ErrNotConnected
	}
	c.session = session
	c.mu.Unlock()

	log.Info("connecting to md front")
	session.RegisterFront(c.opts.Front)
	if err := session.Init(); err != nil {
		c.abort(gen, session)
		return fmt.Errorf("failed to init md session: %w", err)
	}

	timer := time.NewTimer(c.opts.LoginTimeout)
	defer timer.Stop()

	select {
	case err = <-done:
	case <-timer.C:
		err = fmt.Errorf("%w after %s", ErrLoginTimeout, c.opts.LoginTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		c.abort(gen, session)
		log.WithError(err).Warn("connect failed")
		return err
	}

	c.mu.Lock()
	c.connecting = false
	reconnect := c.everOnline
	c.everOnline = true
	c.mu.Unlock()
	if reconnect {
		logger.IncrementReconnect()
	}
	log.WithField("instruments", len(c.opts.Instruments)).Info("md session logged in")
	return nil
}

// abort releases session if it is still the current attempt and resets the
// state to Disconnected.
func (c *Connection) abort(gen uint64, session MdSession) {
	c.mu.Lock()
	current := c.generation == gen
	if current {
		c.generation++
		c.session = nil
		c.state = models.Disconnected
		c.connecting = false
	}
	c.mu.Unlock()
	if session != nil {
		session.Release()
	}
}

// Disconnect unsubscribes and releases the current session. Calling it
// without a session is a no-op.
func (c *Connection) Disconnect(_ context.Context) error {
	c.mu.Lock()
	session := c.session
	state := c.state
	c.generation++
	c.session = nil
	c.state = models.Disconnected
	c.connecting = false
	c.received.Store(false)
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	if state >= models.LoggedIn && len(c.opts.Instruments) > 0 {
		if err := session.UnsubscribeMarketData(c.opts.Instruments); err != nil {
			c.log.WithComponent("ctp_connection").WithError(err).Debug("unsubscribe failed")
		}
	}
	session.Release()

	c.log.WithComponent("ctp_connection").WithFields(logger.Fields{
		"quotes":    c.quotes.Load(),
		"malformed": c.malformed.Load(),
	}).Info("md session closed")
	c.notify("OnSessionClosed", func() { c.listener.OnSessionClosed() })
	return nil
}

// IsConnected reports whether the session is logged in and has delivered
// at least one depth record since login.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.state >= models.LoggedIn && c.received.Load()
}

func (c *Connection) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns delivered and malformed record counts.
func (c *Connection) Stats() (quotes, malformed int64) {
	return c.quotes.Load(), c.malformed.Load()
}

func (c *Connection) subscribe(session MdSession) error {
	if len(c.opts.Instruments) == 0 {
		return nil
	}
	if err := session.SubscribeMarketData(c.opts.Instruments); err != nil {
		return fmt.Errorf("failed to subscribe %d instruments: %w", len(c.opts.Instruments), err)
	}
	return nil
}

// current returns the session if gen is still the live attempt.
func (c *Connection) current(gen uint64) (MdSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.session == nil {
		return nil, false
	}
	return c.session, true
}

func (c *Connection) signalLogin(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.loginDone == nil {
		return
	}
	select {
	case c.loginDone <- err:
	default:
	}
}

// notify runs a listener callback; a panicking listener is logged and
// never reaches the session goroutine.
func (c *Connection) notify(callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithComponent("ctp_connection").WithFields(logger.Fields{
				"callback": callback,
				"panic":    fmt.Sprint(r),
			}).Error("listener panicked")
		}
	}()
	fn()
}

// sessionHandler binds callbacks to the attempt that created the session so
// late callbacks from a released session are ignored.
type sessionHandler struct {
	conn       *Connection
	generation uint64
}

func (h *sessionHandler) OnFrontConnected() {
	c := h.conn
	session, ok := c.current(h.generation)
	if !ok {
		return
	}
	c.mu.Lock()
	c.state = models.Connected
	c.requestID++
	id := c.requestID
	c.mu.Unlock()

	c.log.WithComponent("ctp_connection").WithField("request_id", id).Debug("front connected, logging in")
	if err := session.ReqUserLogin(c.opts.Login, id); err != nil {
		c.signalLogin(h.generation, fmt.Errorf("%w: %v", ErrLoginFailed, err))
	}
}

func (h *sessionHandler) OnFrontDisconnected(reason int) {
	c := h.conn
	if _, ok := c.current(h.generation); !ok {
		return
	}
	c.mu.Lock()
	wasOnline := c.state >= models.LoggedIn
	c.state = models.Disconnected
	c.mu.Unlock()
	c.received.Store(false)

	msg := fmt.Sprintf("%s (0x%04x)", DisconnectReason(reason), reason)
	c.log.WithComponent("ctp_connection").WithField("reason", msg).Warn("front disconnected")
	if wasOnline {
		c.notify("OnConnectionLost", func() { c.listener.OnConnectionLost(msg) })
	}
}

func (h *sessionHandler) OnRspUserLogin(rsp LoginResponse) {
	c := h.conn
	session, ok := c.current(h.generation)
	if !ok {
		return
	}
	if rsp.Info.Failed() {
		c.signalLogin(h.generation, fmt.Errorf("%w: %d %s", ErrLoginFailed, rsp.Info.ErrorID, rsp.Info.ErrorMsg))
		return
	}

	c.mu.Lock()
	c.state = models.LoggedIn
	c.mu.Unlock()
	c.received.Store(false)

	c.log.WithComponent("ctp_connection").WithFields(logger.Fields{
		"trading_day": rsp.TradingDay,
		"session_id":  rsp.SessionID,
	}).Info("login succeeded")

	if err := c.subscribe(session); err != nil {
		c.log.WithComponent("ctp_connection").WithError(err).Warn("subscribe failed")
	} else {
		c.mu.Lock()
		if c.generation == h.generation {
			c.state = models.SubscriptionActive
		}
		c.mu.Unlock()
	}
	c.signalLogin(h.generation, nil)
}

func (h *sessionHandler) OnRspSubMarketData(instrumentID string, info RspInfo) {
	entry := h.conn.log.WithComponent("ctp_connection").WithField("instrument_id", instrumentID)
	if info.Failed() {
		entry.WithFields(logger.Fields{"error_id": info.ErrorID, "error_msg": info.ErrorMsg}).Warn("subscription rejected")
		return
	}
	entry.Debug("subscribed")
}

func (h *sessionHandler) OnRtnDepthMarketData(raw *models.DepthMarketDataField) {
	c := h.conn
	if _, ok := c.current(h.generation); !ok {
		return
	}
	if raw == nil || raw.InstrumentID == "" {
		c.malformed.Add(1)
		c.log.WithComponent("ctp_connection").Debug("dropping depth record without instrument id")
		return
	}
	c.received.Store(true)
	c.quotes.Add(1)
	logger.IncrementTicksReceived(1)
	quote := *raw
	c.notify("OnDepthQuote", func() { c.listener.OnDepthQuote(quote) })
}
