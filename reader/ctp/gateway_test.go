package ctp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresflow/models"
)

// fakeGateway plays the sidecar: it answers register/login/subscribe and
// pushes one depth record per subscribed instrument.
type fakeGateway struct {
	t        *testing.T
	rejectID int

	mu       sync.Mutex
	received []envelope
	conns    []*websocket.Conn
}

func (g *fakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		g.t.Errorf("upgrade: %v", err)
		return
	}
	g.mu.Lock()
	g.conns = append(g.conns, conn)
	g.mu.Unlock()
	defer conn.Close()

	for {
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		g.mu.Lock()
		g.received = append(g.received, msg)
		g.mu.Unlock()

		switch msg.Type {
		case msgRegisterFront:
			conn.WriteJSON(envelope{Type: msgFrontConnected})
		case msgReqUserLogin:
			info := &RspInfo{}
			if g.rejectID != 0 {
				info = &RspInfo{ErrorID: g.rejectID, ErrorMsg: "CTP:不合法的登录"}
			}
			conn.WriteJSON(envelope{
				Type:      msgRspUserLogin,
				RequestID: msg.RequestID,
				LoginRsp:  &LoginResponse{TradingDay: "20240115", BrokerID: msg.Login.BrokerID, UserID: msg.Login.UserID, SessionID: 7},
				Info:      info,
			})
		case msgSubscribe:
			for _, id := range msg.Instruments {
				conn.WriteJSON(envelope{Type: msgRspSubMarketData, InstrumentID: id, Info: &RspInfo{}})
				depth, _ := json.Marshal(models.DepthMarketDataField{
					InstrumentID: id,
					TradingDay:   "20240115",
					LastPrice:    68010,
					Volume:       12,
					UpdateTime:   "09:00:01",
					BidPrice1:    68000,
					BidVolume1:   3,
				})
				conn.WriteJSON(envelope{Type: msgDepth, Depth: depth})
			}
			conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"depth","depth":"not an object"}`))
			conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		case msgPing:
			conn.WriteJSON(envelope{Type: msgPong, Timestamp: msg.Timestamp})
		}
	}
}

func (g *fakeGateway) types() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.received))
	for _, m := range g.received {
		out = append(out, m.Type)
	}
	return out
}

func (g *fakeGateway) dropAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.conns {
		c.Close()
	}
}

func containsAll(have []string, want ...string) bool {
	seen := make(map[string]bool, len(have))
	for _, h := range have {
		seen[h] = true
	}
	for _, w := range want {
		if !seen[w] {
			return false
		}
	}
	return true
}

func startGateway(t *testing.T, g *fakeGateway) string {
	t.Helper()
	g.t = t
	srv := httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestGatewaySessionEndToEnd(t *testing.T) {
	g := &fakeGateway{}
	url := startGateway(t, g)
	l := &recordingListener{}
	c := NewConnection(testOptions(), NewGatewayFactory(url, 20*time.Millisecond), l)

	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, func() bool { return l.quoteCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, c.IsConnected())

	l.mu.Lock()
	assert.Equal(t, "cu2309", l.quotes[0].InstrumentID)
	assert.Equal(t, 68010.0, l.quotes[0].LastPrice)
	assert.Equal(t, int32(3), l.quotes[0].BidVolume1)
	l.mu.Unlock()

	require.Eventually(t, func() bool {
		for _, typ := range g.types() {
			if typ == msgPing {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Disconnect(context.Background()))
	assert.Equal(t, 1, l.closed)
	require.Eventually(t, func() bool {
		return containsAll(g.types(), msgRegisterFront, msgReqUserLogin, msgSubscribe, msgUnsubscribe)
	}, 2*time.Second, 10*time.Millisecond)

	g.mu.Lock()
	front := g.received[0].Front
	g.mu.Unlock()
	assert.Equal(t, "tcp://127.0.0.1:10211", front)
}

func TestGatewaySessionLoginRejected(t *testing.T) {
	g := &fakeGateway{rejectID: 3}
	url := startGateway(t, g)
	c := NewConnection(testOptions(), NewGatewayFactory(url, time.Second), &recordingListener{})

	err := c.Connect(context.Background())
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Contains(t, err.Error(), "不合法的登录")
	assert.Equal(t, models.Disconnected, c.State())
}

func TestGatewaySessionDropReportsLoss(t *testing.T) {
	g := &fakeGateway{}
	url := startGateway(t, g)
	l := &recordingListener{}
	c := NewConnection(testOptions(), NewGatewayFactory(url, time.Second), l)

	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, c.IsConnected, 2*time.Second, 10*time.Millisecond)

	g.dropAll()
	require.Eventually(t, func() bool { return !c.IsConnected() }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.lost) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.Disconnected, c.State())

	require.NoError(t, c.Disconnect(context.Background()))
}

func TestGatewayInitFailsWithoutServer(t *testing.T) {
	s := NewGatewaySession("ws://127.0.0.1:1/", time.Second, nil)
	s.RegisterFront("tcp://x")
	assert.Error(t, s.Init())
	assert.ErrorIs(t, s.SubscribeMarketData([]string{"cu2309"}), ErrNotConnected)
	s.Release()
	s.Release()

	_, err := NewGatewayFactory("", time.Second)(nil)
	assert.Error(t, err)
}
