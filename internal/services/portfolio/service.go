package portfolio

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/services/price"
	"github.com/hxuan190/swap-engine/internal/services/tokens"
)

const PORTFOLIO_SERVICE = "portfolio-svc"

type PortfolioService struct {
	container.BaseDIInstance

	conf     *config.PortfolioConfig
	rpc      *blockchain.RPCService
	tokenSvc *tokens.TokenService
	priceSvc *price.PriceService
	watcher  *Watcher
	logger   *common.ServiceLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (svc *PortfolioService) ID() string {
	return PORTFOLIO_SERVICE
}

func (svc *PortfolioService) Configure(c container.IContainer) error {
	conf, ok := c.GetConfig(config.PORTFOLIO_CONFIG_KEY).(*config.PortfolioConfig)
	if !ok || conf == nil {
		return errors.New("invalid portfolio config")
	}
	rpcSvc, ok := c.Instance(blockchain.RPC_SERVICE).(*blockchain.RPCService)
	if !ok {
		return errors.New("rpc service not registered")
	}
	svc.conf = conf
	svc.rpc = rpcSvc
	svc.tokenSvc, _ = c.Instance(tokens.TOKEN_SERVICE).(*tokens.TokenService)
	svc.priceSvc, _ = c.Instance(price.PRICE_SERVICE).(*price.PriceService)
	svc.logger = common.NewServiceLogger(svc)

	svc.watcher = NewWatcher(NewReader(svc.rpc, svc, svc, nil), conf.PollInterval, nil, nil)
	return nil
}

func (svc *PortfolioService) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	svc.cancel = cancel
	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		svc.watcher.Run(ctx)
	}()
	svc.logger.Info().Dur("interval", svc.conf.PollInterval).Msg("portfolio watcher started")
	return nil
}

func (svc *PortfolioService) Stop() error {
	if svc.cancel != nil {
		svc.cancel()
	}
	svc.wg.Wait()
	return nil
}

func (svc *PortfolioService) Watcher() *Watcher {
	return svc.watcher
}

func (svc *PortfolioService) Lookup(id string) (domain.TokenDescriptor, error) {
	if svc.tokenSvc == nil || svc.tokenSvc.Registry() == nil {
		return domain.TokenDescriptor{}, domain.ErrNotFound
	}
	return svc.tokenSvc.Registry().Lookup(id)
}

func (svc *PortfolioService) GetPrices(ctx context.Context, ids []string, vsToken string) (map[string]decimal.Decimal, error) {
	if svc.priceSvc == nil || svc.priceSvc.Oracle() == nil {
		return nil, domain.ErrNotFound
	}
	return svc.priceSvc.Oracle().GetPrices(ctx, ids, vsToken)
}
