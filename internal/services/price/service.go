package price

import (
	"errors"
	"time"

	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/adapters/restclient"
	"github.com/hxuan190/swap-engine/internal/config"
)

const PRICE_SERVICE = "price-svc"

const requestTimeout = 5 * time.Second

type PriceService struct {
	container.BaseDIInstance

	oracle *Oracle
	chart  *Chart
}

func (svc *PriceService) ID() string {
	return PRICE_SERVICE
}

func (svc *PriceService) Configure(c container.IContainer) error {
	priceConf, ok := c.GetConfig(config.PRICE_CONFIG_KEY).(*config.PriceConfig)
	if !ok || priceConf == nil {
		return errors.New("invalid price config")
	}
	chartConf, ok := c.GetConfig(config.CHART_CONFIG_KEY).(*config.ChartConfig)
	if !ok || chartConf == nil {
		return errors.New("invalid chart config")
	}

	svc.oracle = NewOracle(restclient.New(priceConf.BaseURL, requestTimeout), priceConf.VsToken, priceConf.TTL, nil)
	svc.chart = NewChart(
		restclient.New(chartConf.BaseURL, requestTimeout,
			restclient.WithHeader("X-API-KEY", chartConf.APIKey),
			restclient.WithHeader("x-chain", "solana"),
		),
		chartConf.TTL, nil,
	)
	return nil
}

func (svc *PriceService) Start() error {
	return nil
}

func (svc *PriceService) Stop() error {
	return nil
}

func (svc *PriceService) Oracle() *Oracle {
	return svc.oracle
}

func (svc *PriceService) Chart() *Chart {
	return svc.chart
}
