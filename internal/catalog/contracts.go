package catalog

import (
	"fmt"
	"sort"
	"time"

	"futuresflow/models"
)

// Product is a configured product with the contract months to subscribe.
type Product struct {
	Symbol         string `yaml:"symbol"`
	Name           string `yaml:"name"`
	Market         string `yaml:"market"`
	ContractMonths []int  `yaml:"contract_months"`
	// LastTradingDay is the day of month from which the current month's
	// contract is considered expired.
	LastTradingDay int    `yaml:"last_trading_day"`
	TimeFrame      string `yaml:"trading_time_frame"`
}

// DefaultLastTradingDay is used when a product leaves it unset.
const DefaultLastTradingDay = 10

// ContractCode formats symbol+year+month. CZCE codes carry one year digit,
// other exchanges two.
func ContractCode(market, symbol string, year, month int) string {
	if market == models.MarketCZCE {
		return fmt.Sprintf("%s%d%02d", symbol, year%10, month)
	}
	return fmt.Sprintf("%s%02d%02d", symbol, year%100, month)
}

// ContractCodes lists the codes of p that are live at now. A month later
// than the current one is this year's contract; an earlier month is next
// year's; the current month rolls to next year once now's day reaches
// LastTradingDay.
func (p Product) ContractCodes(now time.Time) []string {
	lastDay := p.LastTradingDay
	if lastDay <= 0 {
		lastDay = DefaultLastTradingDay
	}
	year, month, dayOfMonth := now.Year(), int(now.Month()), now.Day()

	out := make([]string, 0, len(p.ContractMonths))
	for _, m := range p.ContractMonths {
		if m < 1 || m > 12 {
			continue
		}
		y := year
		switch {
		case m < month:
			y = year + 1
		case m == month && dayOfMonth >= lastDay:
			y = year + 1
		}
		out = append(out, ContractCode(p.Market, p.Symbol, y, m))
	}
	return out
}

// RollingCodes lists every category's codes for the month before now and
// the following twelve, used when no products are configured.
func (c *Catalog) RollingCodes(now time.Time) []string {
	begin := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
	var out []string
	for _, cat := range c.Categories() {
		for i := 0; i <= 13; i++ {
			d := begin.AddDate(0, i, 0)
			out = append(out, ContractCode(cat.MarketCode, cat.Symbol, d.Year(), int(d.Month())))
		}
	}
	return out
}

// SubscriptionCodes returns the deduplicated, sorted instrument codes to
// subscribe at now. With no products the rolling window over the whole
// catalog is used.
func (c *Catalog) SubscriptionCodes(products []Product, now time.Time) []string {
	var codes []string
	if len(products) == 0 {
		codes = c.RollingCodes(now)
	} else {
		for _, p := range products {
			codes = append(codes, p.ContractCodes(now)...)
		}
	}

	seen := make(map[string]struct{}, len(codes))
	out := codes[:0]
	for _, code := range codes {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
