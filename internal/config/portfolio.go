package config

import (
	"errors"
	"time"
)

type PortfolioConfig struct {
	// PollInterval drives the periodic balance refresh, independent of swaps.
	PollInterval time.Duration
}

func (c *PortfolioConfig) Key() string {
	return PORTFOLIO_CONFIG_KEY
}

func (c *PortfolioConfig) Load() error {
	c.PollInterval = durationOrDefault(newEnv(), "PORTFOLIO_POLL_INTERVAL", 30*time.Second)
	return c.Validate()
}

func (c *PortfolioConfig) Validate() error {
	if c.PollInterval < time.Second {
		return errors.New("invalid portfolio config: poll interval must be at least 1s")
	}
	return nil
}

// PaymentConfig describes the merchant-facing Solana Pay surface.
type PaymentConfig struct {
	Label   string
	IconURL string
	// PriorityFee adds compute budget instructions to transfer transactions.
	PriorityFee bool
}

func (c *PaymentConfig) Key() string {
	return PAYMENT_CONFIG_KEY
}

func (c *PaymentConfig) Load() error {
	v := newEnv()
	v.SetDefault("PAYMENT_LABEL", "Swap Engine")
	v.SetDefault("PAYMENT_ICON_URL", "")
	v.SetDefault("PAYMENT_PRIORITY_FEE", true)

	c.Label = v.GetString("PAYMENT_LABEL")
	c.IconURL = v.GetString("PAYMENT_ICON_URL")
	c.PriorityFee = v.GetBool("PAYMENT_PRIORITY_FEE")
	return c.Validate()
}

func (c *PaymentConfig) Validate() error {
	if c.Label == "" {
		return errors.New("invalid payment config: label is required")
	}
	return nil
}
