package config

import (
	"errors"
	"time"
)

type PriceConfig struct {
	BaseURL string
	VsToken string
	TTL     time.Duration
}

func (c *PriceConfig) Key() string {
	return PRICE_CONFIG_KEY
}

func (c *PriceConfig) Load() error {
	v := newEnv()
	v.SetDefault("PRICE_BASE_URL", "https://price.jup.ag/v6")
	v.SetDefault("PRICE_VS_TOKEN", "USDC")

	c.BaseURL = v.GetString("PRICE_BASE_URL")
	c.VsToken = v.GetString("PRICE_VS_TOKEN")
	c.TTL = durationOrDefault(v, "PRICE_TTL", 30*time.Second)
	return c.Validate()
}

func (c *PriceConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("invalid price config: base url is required")
	}
	return nil
}

// ChartConfig points at the market-data API used for chart series.
type ChartConfig struct {
	BaseURL string
	APIKey  string
	TTL     time.Duration
}

func (c *ChartConfig) Key() string {
	return CHART_CONFIG_KEY
}

func (c *ChartConfig) Load() error {
	v := newEnv()
	v.SetDefault("CHART_BASE_URL", "https://public-api.birdeye.so")

	c.BaseURL = v.GetString("CHART_BASE_URL")
	c.APIKey = v.GetString("CHART_API_KEY")
	c.TTL = durationOrDefault(v, "CHART_TTL", time.Minute)
	return c.Validate()
}

func (c *ChartConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("invalid chart config: base url is required")
	}
	return nil
}
