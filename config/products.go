package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"futuresflow/internal/catalog"
	"futuresflow/models"
)

// ProductSettings lists the products to subscribe per exchange.
type ProductSettings struct {
	SHFE  []catalog.Product `yaml:"shfe"`
	DCE   []catalog.Product `yaml:"dce"`
	CZCE  []catalog.Product `yaml:"czce"`
	CFFEX []catalog.Product `yaml:"cffex"`
}

// All returns every product with its Market set from the section it was
// listed under.
func (s *ProductSettings) All() []catalog.Product {
	var out []catalog.Product
	add := func(market string, products []catalog.Product) {
		for _, p := range products {
			p.Market = market
			out = append(out, p)
		}
	}
	add(models.MarketSHFE, s.SHFE)
	add(models.MarketDCE, s.DCE)
	add(models.MarketCZCE, s.CZCE)
	add(models.MarketCFFEX, s.CFFEX)
	return out
}

// LoadProducts reads product settings from path.
func LoadProducts(path string) (*ProductSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read products file: %w", err)
	}
	var settings ProductSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse products file: %w", err)
	}
	for _, p := range settings.All() {
		if err := validateProduct(p); err != nil {
			return nil, err
		}
	}
	return &settings, nil
}

func validateProduct(p catalog.Product) error {
	if p.Symbol == "" {
		return fmt.Errorf("%s product without symbol", p.Market)
	}
	if len(p.ContractMonths) == 0 {
		return fmt.Errorf("%s %s: contract_months is required", p.Market, p.Symbol)
	}
	for _, m := range p.ContractMonths {
		if m < 1 || m > 12 {
			return fmt.Errorf("%s %s: contract month %d out of range", p.Market, p.Symbol, m)
		}
	}
	if p.LastTradingDay < 0 || p.LastTradingDay > 31 {
		return fmt.Errorf("%s %s: last_trading_day %d out of range", p.Market, p.Symbol, p.LastTradingDay)
	}
	if p.TimeFrame != "" {
		if _, err := models.ParseTradingTimeFrameType(p.TimeFrame); err != nil {
			return fmt.Errorf("%s %s: %w", p.Market, p.Symbol, err)
		}
	}
	return nil
}
