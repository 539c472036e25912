// Package dashboard serves a read-only HTTP view of the running pipeline:
// feed state, flush results, the latest tick per instrument, recent logs and
// host resources.
package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"futuresflow/config"
	"futuresflow/internal/pipeline"
	"futuresflow/internal/scheduler"
	"futuresflow/logger"
	"futuresflow/models"
)

// Source is the pipeline view the dashboard reads from.
type Source interface {
	Status() pipeline.Status
	CurrentTick(instrumentID string) (models.MarketTick, bool)
	Instruments() []string
}

// Server hosts the Gin-powered monitoring endpoints.
type Server struct {
	cfg             config.DashboardConfig
	source          Source
	log             *logger.Log
	logStore        *logStore
	resourceSampler *resourceSampler
	httpServer      *http.Server
}

// NewServer constructs a dashboard server when the dashboard is enabled. When
// it is disabled the returned server is nil and Run is a no-op.
func NewServer(cfg config.DashboardConfig, source Source, diskPath string, log *logger.Log) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if source == nil {
		return nil, errors.New("dashboard: source is required")
	}

	cfg.Address = normalizeAddress(cfg.Address)
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}
	if cfg.LogHistory <= 0 {
		cfg.LogHistory = 200
	}
	if cfg.ResourceHistory <= 0 {
		cfg.ResourceHistory = 200
	}

	logStore := newLogStore(cfg.LogHistory)
	log.AddHook(logStore)

	return &Server{
		cfg:             cfg,
		source:          source,
		log:             log,
		logStore:        logStore,
		resourceSampler: newResourceSampler(cfg.ResourceHistory, cfg.RefreshInterval, diskPath, log),
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails.
func (s *Server) Run(ctx context.Context, appName string) error {
	if s == nil {
		return nil
	}
	defer s.cleanup()

	router, err := s.buildRouter(appName)
	if err != nil {
		return err
	}
	s.resourceSampler.start(ctx)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.WithComponent("dashboard").WithField("address", s.cfg.Address).Info("dashboard listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	if s.logStore != nil {
		s.logStore.close()
	}
	s.resourceSampler.stop()
}

// Address reports the network address the dashboard listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter(appName string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) {
		st := s.source.Status()
		c.JSON(http.StatusOK, gin.H{
			"app":        appName,
			"feed_state": st.FeedState,
			"connected":  st.FeedConnected,
		})
	})

	router.GET("/api/status", func(c *gin.Context) {
		st := s.source.Status()
		c.JSON(http.StatusOK, gin.H{
			"feed_state":      st.FeedState,
			"connected":       st.FeedConnected,
			"pending_ticks":   st.PendingTicks,
			"instruments":     st.Instruments,
			"flushes":         st.Flushes,
			"connection_lost": st.ConnectionLost,
			"last_flush":      flushPayload(st.LastFlush),
			"channels": gin.H{
				"raw_sent":      st.Channels.RawSent,
				"raw_blocked":   st.Channels.RawBlocked,
				"raw_dropped":   st.Channels.RawDropped,
				"ticks_sent":    st.Channels.TickSent,
				"ticks_dropped": st.Channels.TickDropped,
			},
			"counters":        logger.Snapshot(),
			"refresh_seconds": s.cfg.RefreshInterval.Seconds(),
		})
	})

	router.GET("/api/instruments", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"instruments": s.source.Instruments()})
	})

	router.GET("/api/ticks/:instrument", func(c *gin.Context) {
		id := c.Param("instrument")
		tick, ok := s.source.CurrentTick(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no tick for " + id})
			return
		}
		c.JSON(http.StatusOK, tick)
	})

	router.GET("/api/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"logs": s.logStore.snapshot()})
	})

	router.GET("/api/resources", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"resources": s.resourceSampler.snapshot()})
	})

	return router, nil
}

func flushPayload(res scheduler.FlushResult) gin.H {
	if res.ID == "" {
		return nil
	}
	out := gin.H{
		"id":          res.ID,
		"started":     res.Started.Format(time.RFC3339Nano),
		"duration_ms": res.Duration.Milliseconds(),
		"instruments": res.Instruments,
		"ticks":       res.Ticks,
		"written":     res.Written,
		"discarded":   res.Discarded,
		"requeued":    res.Requeued,
		"deferred":    res.Deferred,
	}
	if res.Err != nil {
		out["error"] = res.Err.Error()
	}
	return out
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
