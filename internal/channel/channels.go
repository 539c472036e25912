package channel

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"futuresflow/logger"
	"futuresflow/models"
)

type ChannelStats struct {
	RawSent     int64
	RawBlocked  int64
	RawDropped  int64
	TickSent    int64
	TickDropped int64
}

// Channels carries raw vendor records from the feed to the processor and
// normalized ticks from the processor to live publishers.
type Channels struct {
	Raw   chan models.DepthMarketDataField
	Ticks chan models.MarketTick

	stats      ChannelStats
	statsMutex sync.RWMutex
	dropLog    *rate.Limiter
	log        *logger.Log
	closeOnce  sync.Once
}

func NewChannels(rawBufferSize, tickBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Raw:     make(chan models.DepthMarketDataField, rawBufferSize),
		Ticks:   make(chan models.MarketTick, tickBufferSize),
		dropLog: rate.NewLimiter(rate.Every(10*time.Second), 1),
		log:     log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"raw_buffer_size":  rawBufferSize,
		"tick_buffer_size": tickBufferSize,
	}).Info("channels initialized")

	return c
}

// SendRaw enqueues a record. A full channel blocks the caller, which holds
// back the feed's read loop, until the processor catches up or ctx is done.
// Only a cancelled send drops the record.
func (c *Channels) SendRaw(ctx context.Context, msg models.DepthMarketDataField) bool {
	select {
	case c.Raw <- msg:
		c.countRawSent()
		return true
	default:
	}

	c.statsMutex.Lock()
	c.stats.RawBlocked++
	blocked := c.stats.RawBlocked
	c.statsMutex.Unlock()
	if c.dropLog.Allow() {
		c.log.WithComponent("channels").WithFields(logger.Fields{
			"instrument_id": msg.InstrumentID,
			"blocked_total": blocked,
		}).Warn("raw channel full, holding back the feed")
	}

	select {
	case c.Raw <- msg:
		c.countRawSent()
		return true
	case <-ctx.Done():
		c.statsMutex.Lock()
		c.stats.RawDropped++
		dropped := c.stats.RawDropped
		c.statsMutex.Unlock()
		logger.IncrementTicksDropped()
		c.warnDrop("raw", msg.InstrumentID, dropped)
		return false
	}
}

func (c *Channels) countRawSent() {
	c.statsMutex.Lock()
	c.stats.RawSent++
	c.statsMutex.Unlock()
}

// SendTick offers a normalized tick to publishers; it never blocks.
func (c *Channels) SendTick(ctx context.Context, tick models.MarketTick) bool {
	select {
	case c.Ticks <- tick:
		c.statsMutex.Lock()
		c.stats.TickSent++
		c.statsMutex.Unlock()
		return true
	case <-ctx.Done():
		return false
	default:
		c.statsMutex.Lock()
		c.stats.TickDropped++
		dropped := c.stats.TickDropped
		c.statsMutex.Unlock()
		c.warnDrop("tick", tick.InstrumentID, dropped)
		return false
	}
}

func (c *Channels) warnDrop(channel, instrument string, total int64) {
	if !c.dropLog.Allow() {
		return
	}
	c.log.WithComponent("channels").WithFields(logger.Fields{
		"channel":       channel,
		"instrument_id": instrument,
		"dropped_total": total,
	}).Warn("dropping message")
}

// StartMetricsReporting logs channel statistics every interval until ctx is
// done.
func (c *Channels) StartMetricsReporting(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.logChannelStats()
			}
		}
	}()
}

func (c *Channels) logChannelStats() {
	stats := c.GetStats()
	c.log.WithComponent("channels").WithFields(logger.Fields{
		"raw_sent":         stats.RawSent,
		"raw_blocked":      stats.RawBlocked,
		"raw_dropped":      stats.RawDropped,
		"tick_sent":        stats.TickSent,
		"tick_dropped":     stats.TickDropped,
		"raw_channel_len":  len(c.Raw),
		"raw_channel_cap":  cap(c.Raw),
		"tick_channel_len": len(c.Ticks),
		"tick_channel_cap": cap(c.Ticks),
	}).Info("channel statistics")
}

// Close closes both channels. Producers must have stopped first.
func (c *Channels) Close() {
	c.closeOnce.Do(func() {
		close(c.Raw)
		close(c.Ticks)
		c.log.WithComponent("channels").Info("channels closed")
	})
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
