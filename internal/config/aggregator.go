package config

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
)

type AggregatorConfig struct {
	// BaseURL of the quote aggregator, e.g. https://quote-api.jup.ag/v6
	BaseURL string
	APIKey  string

	// QuoteTimeout is the client-side timeout of a single quote request.
	QuoteTimeout time.Duration
	SwapTimeout  time.Duration

	// QuoteValidity is how long a quote may be used to build a transaction.
	QuoteValidity time.Duration

	// Debounce delays quote requests while the user is still typing.
	Debounce time.Duration

	DefaultSlippageBps uint16

	// PlatformFeeBps is layered on top of the aggregator quote and paid to
	// FeeAccount. Zero disables the fee.
	PlatformFeeBps uint16
	FeeAccount     string

	WrapUnwrapSOL bool

	// SimulateBeforeSubmit runs a pre-flight simulation of the signed
	// transaction.
	SimulateBeforeSubmit bool
}

func (c *AggregatorConfig) Key() string {
	return AGGREGATOR_CONFIG_KEY
}

func (c *AggregatorConfig) Load() error {
	v := newEnv()
	v.SetDefault("AGGREGATOR_BASE_URL", "https://quote-api.jup.ag/v6")
	v.SetDefault("AGGREGATOR_DEFAULT_SLIPPAGE_BPS", 50)
	v.SetDefault("AGGREGATOR_PLATFORM_FEE_BPS", 0)
	v.SetDefault("AGGREGATOR_WRAP_UNWRAP_SOL", true)
	v.SetDefault("AGGREGATOR_SIMULATE", false)

	c.BaseURL = v.GetString("AGGREGATOR_BASE_URL")
	c.APIKey = v.GetString("AGGREGATOR_API_KEY")
	c.QuoteTimeout = durationOrDefault(v, "AGGREGATOR_QUOTE_TIMEOUT", 5*time.Second)
	c.SwapTimeout = durationOrDefault(v, "AGGREGATOR_SWAP_TIMEOUT", 10*time.Second)
	c.QuoteValidity = durationOrDefault(v, "AGGREGATOR_QUOTE_VALIDITY", 30*time.Second)
	c.Debounce = durationOrDefault(v, "AGGREGATOR_DEBOUNCE", 500*time.Millisecond)
	c.DefaultSlippageBps = uint16(v.GetUint("AGGREGATOR_DEFAULT_SLIPPAGE_BPS"))
	c.PlatformFeeBps = uint16(v.GetUint("AGGREGATOR_PLATFORM_FEE_BPS"))
	c.FeeAccount = v.GetString("AGGREGATOR_FEE_ACCOUNT")
	c.WrapUnwrapSOL = v.GetBool("AGGREGATOR_WRAP_UNWRAP_SOL")
	c.SimulateBeforeSubmit = v.GetBool("AGGREGATOR_SIMULATE")
	return c.Validate()
}

func (c *AggregatorConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("invalid aggregator config: base url is required")
	}
	if c.DefaultSlippageBps > 10000 || c.PlatformFeeBps > 10000 {
		return errors.New("invalid aggregator config: bps values must be within [0, 10000]")
	}
	if c.PlatformFeeBps > 0 {
		if c.FeeAccount == "" {
			return errors.New("invalid aggregator config: platform fee requires a fee account")
		}
		if _, err := solana.PublicKeyFromBase58(c.FeeAccount); err != nil {
			return errors.New("invalid aggregator config: fee account is not a valid address")
		}
	}
	return nil
}
