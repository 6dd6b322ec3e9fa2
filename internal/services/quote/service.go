package quote

import (
	"context"
	"errors"

	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/adapters/aggregator"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/services/tokens"
)

const QUOTE_SERVICE = "quote-svc"

// QuoteService owns the aggregator HTTP client shared by quoting and
// transaction assembly.
type QuoteService struct {
	container.BaseDIInstance

	conf       *config.AggregatorConfig
	aggregator *aggregator.Client
	client     *Client
	tokenSvc   *tokens.TokenService
}

func (svc *QuoteService) ID() string {
	return QUOTE_SERVICE
}

func (svc *QuoteService) Configure(c container.IContainer) error {
	conf, ok := c.GetConfig(config.AGGREGATOR_CONFIG_KEY).(*config.AggregatorConfig)
	if !ok || conf == nil {
		return errors.New("invalid aggregator config")
	}
	tokenSvc, ok := c.Instance(tokens.TOKEN_SERVICE).(*tokens.TokenService)
	if !ok || tokenSvc == nil {
		return errors.New("token service not found")
	}
	svc.conf = conf
	svc.tokenSvc = tokenSvc
	svc.aggregator = aggregator.NewClient(conf.BaseURL, conf.APIKey, conf.QuoteTimeout, conf.SwapTimeout)
	svc.client = NewClient(svc.aggregator, conf.QuoteTimeout, nil).WithTokens(svc)
	return nil
}

func (svc *QuoteService) Start() error {
	return nil
}

func (svc *QuoteService) Stop() error {
	return nil
}

func (svc *QuoteService) Client() *Client {
	return svc.client
}

func (svc *QuoteService) Aggregator() *aggregator.Client {
	return svc.aggregator
}

func (svc *QuoteService) Config() *config.AggregatorConfig {
	return svc.conf
}

// Lookup resolves mints through the token registry.
func (svc *QuoteService) Lookup(id string) (domain.TokenDescriptor, error) {
	if svc.tokenSvc.Registry() == nil {
		return domain.TokenDescriptor{}, domain.NewError(domain.KindInternal, "token registry unavailable", nil)
	}
	return svc.tokenSvc.Registry().Lookup(id)
}

// Swap delegates transaction assembly to the aggregator client.
func (svc *QuoteService) Swap(ctx context.Context, req aggregator.SwapRequest) (*aggregator.SwapResponse, error) {
	return svc.aggregator.Swap(ctx, req)
}
