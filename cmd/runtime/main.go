package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/http"
	"github.com/hxuan190/swap-engine/internal/repository"
	"github.com/hxuan190/swap-engine/internal/services/builder"
	"github.com/hxuan190/swap-engine/internal/services/payment"
	"github.com/hxuan190/swap-engine/internal/services/portfolio"
	"github.com/hxuan190/swap-engine/internal/services/price"
	"github.com/hxuan190/swap-engine/internal/services/quote"
	"github.com/hxuan190/swap-engine/internal/services/recorder"
	"github.com/hxuan190/swap-engine/internal/services/submission"
	"github.com/hxuan190/swap-engine/internal/services/swap"
	"github.com/hxuan190/swap-engine/internal/services/tokens"
)

// @title Swap Engine API
// @version 1.0
// @description Wallet-side swap pipeline for Solana: quotes from the liquidity aggregator,
// @description unsigned swap transactions, Solana Pay transfer requests and transaction history.
// @description
// @description ## - Usage Tips
// @description - Use smallest token units (lamports for SOL, base units for SPL tokens)
// @description - SOL has 9 decimals: 1 SOL = 1,000,000,000 lamports
// @description - USDC has 6 decimals: 1 USDC = 1,000,000 base units
// @description - Default slippage is 50 bps (0.5%)
// @description - Transactions expire after ~60 seconds (based on lastValidBlockHeight)
// @BasePath /
// @schemes https http
// @securityDefinitions.apikey AdminToken
// @in header
// @name Authorization
// @tag.name quote
// @tag.description Swap quotes from the liquidity aggregator
// @tag.name swap
// @tag.description Unsigned swap transactions ready for signing
// @tag.name price
// @tag.description Token prices and chart data
// @tag.name tokens
// @tag.description Token list search
// @tag.name portfolio
// @tag.description Wallet balances
// @tag.name transactions
// @tag.description Transaction history
// @tag.name payments
// @tag.description Solana Pay transfer and transaction requests

func main() {
	common.InitRuntime()

	// load env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file, using process environment")
	}

	general := &config.GeneralConfig{}
	if err := general.Load(); err != nil {
		log.Error().Err(err).Msg("invalid general config")
		return
	}
	common.SetGlobalLevel(general.LogLevel)

	// di container config
	conf := container.NewConf(
		general,
		&config.DatabaseConfig{},
		&config.RPCConfig{},
		&config.AggregatorConfig{},
		&config.TokenListConfig{},
		&config.PriceConfig{},
		&config.ChartConfig{},
		&config.PortfolioConfig{},
		&config.PaymentConfig{},
	)

	// di container
	dic, err := container.New(
		// config
		conf,

		// services
		// core (repository)
		&repository.Repository{},
		&blockchain.RPCService{},

		&tokens.TokenService{},
		&price.PriceService{},
		&quote.QuoteService{},
		&builder.BuilderService{},
		&submission.SubmissionService{},
		&recorder.RecorderService{},
		&portfolio.PortfolioService{},
		&payment.PaymentService{},
		&swap.SwapService{},

		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	// Run blocks until SIGINT/SIGTERM
	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}
