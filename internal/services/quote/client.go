package quote

import (
	"context"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/swap-engine/internal/adapters/aggregator"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/metrics"
)

// bpsPerUnit converts the aggregator's fractional price impact to bps.
var bpsPerUnit = decimal.NewFromInt(10000)

// Aggregator is the subset of the aggregator HTTP client the quote path uses.
type Aggregator interface {
	Quote(ctx context.Context, p aggregator.QuoteParams) (*aggregator.QuoteResponse, []byte, error)
}

// TokenLookup resolves a mint address or symbol to a known token.
type TokenLookup interface {
	Lookup(id string) (domain.TokenDescriptor, error)
}

// Client requests quotes and normalizes them. It has no cache: every call
// goes to the aggregator.
type Client struct {
	agg     Aggregator
	tokens  TokenLookup
	timeout time.Duration
	clock   clock.Clock
}

func NewClient(agg Aggregator, timeout time.Duration, clk clock.Clock) *Client {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Client{agg: agg, timeout: timeout, clock: clk}
}

// WithTokens makes GetQuote reject mints the registry does not know with
// UnknownToken before calling the aggregator.
func (c *Client) WithTokens(tokens TokenLookup) *Client {
	c.tokens = tokens
	return c
}

func (c *Client) resolveMints(intent domain.SwapIntent) (domain.SwapIntent, error) {
	if c.tokens == nil {
		return intent, nil
	}
	in, err := c.tokens.Lookup(intent.InputMint)
	if err != nil {
		return intent, err
	}
	out, err := c.tokens.Lookup(intent.OutputMint)
	if err != nil {
		return intent, err
	}
	intent.InputMint, intent.OutputMint = in.Address, out.Address
	return intent, nil
}

// GetQuote returns a normalized quote for intent. Failures are always
// *domain.SwapError; "no route" is KindNoRoute, distinct from KindNetworkError.
func (c *Client) GetQuote(ctx context.Context, intent domain.SwapIntent) (*domain.Quote, error) {
	if intent.Mode == "" {
		intent.Mode = domain.SwapModeExactIn
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	intent, err := c.resolveMints(intent)
	if err != nil {
		metrics.QuoteRequests.WithLabelValues(string(intent.Mode), string(domain.KindOf(err))).Inc()
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := c.clock.Now()
	resp, raw, err := c.agg.Quote(ctx, aggregator.QuoteParams{
		InputMint:      intent.InputMint,
		OutputMint:     intent.OutputMint,
		Amount:         intent.Amount,
		SlippageBps:    intent.SlippageBps,
		SwapMode:       string(intent.Mode),
		PlatformFeeBps: intent.PlatformFeeBps,
	})
	metrics.QuoteDuration.WithLabelValues(string(intent.Mode)).Observe(c.clock.Now().Sub(start).Seconds())
	if err != nil {
		metrics.QuoteRequests.WithLabelValues(string(intent.Mode), string(domain.KindOf(err))).Inc()
		return nil, err
	}

	q, err := normalize(resp, raw, intent, c.clock.Now())
	if err != nil {
		metrics.QuoteRequests.WithLabelValues(string(intent.Mode), string(domain.KindOf(err))).Inc()
		log.Warn().Err(err).Str("input", intent.InputMint).Str("output", intent.OutputMint).Msg("[quoteClient] rejected aggregator quote")
		return nil, err
	}

	metrics.QuoteRequests.WithLabelValues(string(intent.Mode), "ok").Inc()
	impactBps, _ := q.PriceImpactPct.Mul(bpsPerUnit).Float64()
	metrics.PriceImpact.WithLabelValues(metrics.ImpactSeverity(impactBps)).Observe(impactBps)
	return q, nil
}
