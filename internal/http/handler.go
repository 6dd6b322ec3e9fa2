package http

import (
	"context"
	"errors"
	gohttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/http/httputil"
	"github.com/hxuan190/swap-engine/internal/http/middlewares"
	"github.com/hxuan190/swap-engine/internal/services/payment"
	"github.com/hxuan190/swap-engine/internal/services/portfolio"
	"github.com/hxuan190/swap-engine/internal/services/price"
	"github.com/hxuan190/swap-engine/internal/services/quote"
	"github.com/hxuan190/swap-engine/internal/services/recorder"
	"github.com/hxuan190/swap-engine/internal/services/swap"
	"github.com/hxuan190/swap-engine/internal/services/tokens"
)

const HTTP_SERVICE = "http-service"

type HTTPService struct {
	container.BaseDIInstance

	conf     *config.GeneralConfig
	aggConf  *config.AggregatorConfig
	registry struct {
		quote     *quote.QuoteService
		swap      *swap.SwapService
		tokens    *tokens.TokenService
		price     *price.PriceService
		portfolio *portfolio.PortfolioService
		payment   *payment.PaymentService
		recorder  *recorder.RecorderService
	}

	rateLimiter *middlewares.RateLimiter
	server      *gohttp.Server
}

func (svc *HTTPService) ID() string {
	return HTTP_SERVICE
}

func (svc *HTTPService) Configure(c container.IContainer) error {
	conf, ok := c.GetConfig(config.GENERAL_CONFIG_KEY).(*config.GeneralConfig)
	if !ok || conf == nil {
		return errors.New("invalid server config")
	}
	aggConf, ok := c.GetConfig(config.AGGREGATOR_CONFIG_KEY).(*config.AggregatorConfig)
	if !ok || aggConf == nil {
		return errors.New("invalid aggregator config")
	}
	svc.conf = conf
	svc.aggConf = aggConf

	r := &svc.registry
	if r.quote, ok = c.Instance(quote.QUOTE_SERVICE).(*quote.QuoteService); !ok {
		return errors.New("quote service not registered")
	}
	if r.swap, ok = c.Instance(swap.SWAP_SERVICE).(*swap.SwapService); !ok {
		return errors.New("swap service not registered")
	}
	if r.tokens, ok = c.Instance(tokens.TOKEN_SERVICE).(*tokens.TokenService); !ok {
		return errors.New("token service not registered")
	}
	if r.price, ok = c.Instance(price.PRICE_SERVICE).(*price.PriceService); !ok {
		return errors.New("price service not registered")
	}
	if r.portfolio, ok = c.Instance(portfolio.PORTFOLIO_SERVICE).(*portfolio.PortfolioService); !ok {
		return errors.New("portfolio service not registered")
	}
	if r.payment, ok = c.Instance(payment.PAYMENT_SERVICE).(*payment.PaymentService); !ok {
		return errors.New("payment service not registered")
	}
	if r.recorder, ok = c.Instance(recorder.RECORDER_SERVICE).(*recorder.RecorderService); !ok {
		return errors.New("recorder service not registered")
	}

	svc.rateLimiter = middlewares.NewRateLimiter(conf.RateLimit, conf.RateBurst)
	return nil
}

// handlers is called from Start, after the services it reads from have
// started.
func (svc *HTTPService) handlers() []httputil.IHttpHandler {
	r := &svc.registry
	return []httputil.IHttpHandler{
		NewQuoteHandler(r.quote.Client(), svc.aggConf.DefaultSlippageBps),
		NewSwapHandler(r.swap, svc.aggConf.DefaultSlippageBps),
		NewExactOutHandler(r.payment.Payments()),
		NewMarketHandler(r.price.Oracle(), r.price.Chart(), r.tokens.Registry(), r.portfolio.Watcher()),
		NewTransactionHandler(r.recorder.Recorder()),
		NewSolanaPayHandler(r.payment.Payments()),
	}
}

// NewRouter wires the middleware chain and mounts handlers under /api.
func NewRouter(env string, rateLimiter *middlewares.RateLimiter, adminToken string, handlers ...httputil.IHttpHandler) *gin.Engine {
	if env == config.ProdEnv {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AddAllowHeaders("Authorization", "X-Wallet-Address")
	r.Use(cors.New(corsConf))

	r.Use(middlewares.MetricsMiddleware())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(gohttp.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("api")
	if rateLimiter != nil {
		api.Use(rateLimiter.RateLimitMiddleware())
	}
	httputil.Mount(api, middlewares.AdminAuth(adminToken), handlers...)
	return r
}

func (svc *HTTPService) Start() error {
	r := NewRouter(svc.conf.Env, svc.rateLimiter, svc.conf.AdminToken, svc.handlers()...)

	svc.server = &gohttp.Server{
		Addr:              svc.conf.HTTPHost + ":" + svc.conf.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("host", svc.conf.HTTPHost).Str("port", svc.conf.HTTPPort).Msg("http server started")

	if err := svc.server.ListenAndServe(); err != nil && err != gohttp.ErrServerClosed {
		return err
	}

	return nil
}

func (svc *HTTPService) Stop() error {
	if svc.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
		return err
	}
	log.Info().Msg("http server stopped gracefully")
	return nil
}
