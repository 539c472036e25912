package writer

import (
	"context"

	"futuresflow/logger"
	"futuresflow/models"
)

// Store persists one instrument's ticks for one trading day.
type Store interface {
	Write(ctx context.Context, category models.InstrumentCategory, instrumentID, tradingDay string, ticks []models.MarketTick) error
}

// Mirror receives a copy of every batch the primary store accepted.
type Mirror interface {
	Store
	Name() string
}

// Chain writes to Primary and then to every mirror. Only the primary's
// error is returned; mirror failures are logged and counted.
type Chain struct {
	Primary Store
	Mirrors []Mirror
	log     *logger.Log
}

func NewChain(primary Store, mirrors ...Mirror) *Chain {
	return &Chain{Primary: primary, Mirrors: mirrors, log: logger.GetLogger()}
}

func (c *Chain) Write(ctx context.Context, category models.InstrumentCategory, instrumentID, tradingDay string, ticks []models.MarketTick) error {
	if err := c.Primary.Write(ctx, category, instrumentID, tradingDay, ticks); err != nil {
		return err
	}
	for _, m := range c.Mirrors {
		if err := m.Write(ctx, category, instrumentID, tradingDay, ticks); err != nil {
			c.log.WithComponent("writer").WithError(err).WithFields(logger.Fields{
				"mirror":        m.Name(),
				"instrument_id": instrumentID,
				"trading_day":   tradingDay,
				"ticks":         len(ticks),
			}).Warn("mirror write failed")
		}
	}
	return nil
}
