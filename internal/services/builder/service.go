package builder

import (
	"errors"

	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/services/quote"
)

const BUILDER_SERVICE = "builder-svc"

type BuilderService struct {
	container.BaseDIInstance

	builder *Builder
}

func (svc *BuilderService) ID() string {
	return BUILDER_SERVICE
}

func (svc *BuilderService) Configure(c container.IContainer) error {
	conf, ok := c.GetConfig(config.AGGREGATOR_CONFIG_KEY).(*config.AggregatorConfig)
	if !ok || conf == nil {
		return errors.New("invalid aggregator config")
	}
	quoteSvc, ok := c.Instance(quote.QUOTE_SERVICE).(*quote.QuoteService)
	if !ok {
		return errors.New("quote service not registered")
	}
	rpcSvc, ok := c.Instance(blockchain.RPC_SERVICE).(*blockchain.RPCService)
	if !ok {
		return errors.New("rpc service not registered")
	}

	svc.builder = NewBuilder(quoteSvc, rpcSvc, Options{
		QuoteValidity: conf.QuoteValidity,
		FeeAccount:    conf.FeeAccount,
		Simulate:      conf.SimulateBeforeSubmit,
	}, nil)
	return nil
}

func (svc *BuilderService) Start() error {
	return nil
}

func (svc *BuilderService) Stop() error {
	return nil
}

func (svc *BuilderService) Builder() *Builder {
	return svc.builder
}
