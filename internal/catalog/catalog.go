// Package catalog maps instrument codes such as "cu2309" or "SR309" to the
// product category they belong to.
package catalog

import (
	"sort"

	"futuresflow/models"
)

// Catalog is an immutable symbol -> category table.
type Catalog struct {
	bySymbol map[string]models.InstrumentCategory
}

// New builds a catalog from categories. Later duplicates win.
func New(categories []models.InstrumentCategory) *Catalog {
	c := &Catalog{bySymbol: make(map[string]models.InstrumentCategory, len(categories))}
	for _, cat := range categories {
		c.bySymbol[cat.Symbol] = cat
	}
	return c
}

// Default returns the catalog of listed SHFE, DCE and CZCE products.
func Default() *Catalog {
	return New(defaultCategories)
}

// Prefix extracts the product symbol from an instrument code: one character
// when the second character is a digit, otherwise two. Codes shorter than
// two characters are returned unchanged.
func Prefix(code string) string {
	if len(code) < 2 {
		return code
	}
	if code[1] >= '0' && code[1] <= '9' {
		return code[:1]
	}
	return code[:2]
}

// Resolve returns the category of an instrument code.
func (c *Catalog) Resolve(code string) (models.InstrumentCategory, bool) {
	cat, ok := c.bySymbol[Prefix(code)]
	return cat, ok
}

// Lookup returns the category registered under symbol.
func (c *Catalog) Lookup(symbol string) (models.InstrumentCategory, bool) {
	cat, ok := c.bySymbol[symbol]
	return cat, ok
}

// Categories returns all categories ordered by market then symbol.
func (c *Catalog) Categories() []models.InstrumentCategory {
	out := make([]models.InstrumentCategory, 0, len(c.bySymbol))
	for _, cat := range c.bySymbol {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketCode != out[j].MarketCode {
			return out[i].MarketCode < out[j].MarketCode
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Markets returns the distinct market codes, sorted.
func (c *Catalog) Markets() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, cat := range c.bySymbol {
		if _, ok := seen[cat.MarketCode]; ok {
			continue
		}
		seen[cat.MarketCode] = struct{}{}
		out = append(out, cat.MarketCode)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) Len() int {
	return len(c.bySymbol)
}
