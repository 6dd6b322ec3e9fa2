package main

import (
	"context"
	"errors"
	"time"

	"github.com/briandowns/spinner"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/adapters/aggregator"
	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/adapters/persistence"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/repository"
	"github.com/hxuan190/swap-engine/internal/services/builder"
	"github.com/hxuan190/swap-engine/internal/services/quote"
	"github.com/hxuan190/swap-engine/internal/services/recorder"
	"github.com/hxuan190/swap-engine/internal/services/submission"
	"github.com/hxuan190/swap-engine/internal/services/swap"
	"github.com/hxuan190/swap-engine/internal/services/tokens"
)

const tokenListTimeout = 10 * time.Second

// pipeline is the set of components a one-shot command needs, built
// without the service container.
type pipeline struct {
	aggConf *config.AggregatorConfig
	pool    *blockchain.Pool
	quoter  *quote.Client
	builder *builder.Builder
	engine  *submission.Engine
}

func newPipeline() (*pipeline, error) {
	aggConf := &config.AggregatorConfig{}
	if err := aggConf.Load(); err != nil {
		return nil, err
	}
	rpcConf := &config.RPCConfig{}
	if err := rpcConf.Load(); err != nil {
		return nil, err
	}

	pool, err := blockchain.NewPool(rpcConf.RPCUrls, rpcConf.SendConcurrency, rpcConf.Commitment)
	if err != nil {
		return nil, err
	}
	agg := aggregator.NewClient(aggConf.BaseURL, aggConf.APIKey, aggConf.QuoteTimeout, aggConf.SwapTimeout)

	return &pipeline{
		aggConf: aggConf,
		pool:    pool,
		quoter:  quote.NewClient(agg, aggConf.QuoteTimeout, nil),
		builder: builder.NewBuilder(agg, pool, builder.Options{
			QuoteValidity: aggConf.QuoteValidity,
			FeeAccount:    aggConf.FeeAccount,
			Simulate:      aggConf.SimulateBeforeSubmit,
		}, nil),
		engine: submission.NewEngine(pool, submission.Options{
			PollInterval: rpcConf.ConfirmPollInterval,
			Timeout:      rpcConf.ConfirmTimeout,
		}, nil),
	}, nil
}

func (p *pipeline) settings() swap.Settings {
	return swap.Settings{
		SlippageBps:    p.aggConf.DefaultSlippageBps,
		PlatformFeeBps: p.aggConf.PlatformFeeBps,
		FeeAccount:     p.aggConf.FeeAccount,
		WrapUnwrapSOL:  p.aggConf.WrapUnwrapSOL,
	}
}

func (p *pipeline) session(settings swap.Settings, rec swap.Recorder) *swap.Orchestrator {
	return swap.New(swap.Deps{
		Quoter:    p.quoter,
		Builder:   p.builder,
		Submitter: p.engine,
		Recorder:  rec,
	}, settings)
}

// loadRegistry restores the last token snapshot and refreshes it from the
// configured lists.
func loadRegistry(ctx context.Context) (*tokens.Registry, func(), error) {
	conf := &config.TokenListConfig{}
	if err := conf.Load(); err != nil {
		return nil, nil, err
	}

	var providers []tokens.Provider
	if conf.PrimaryURL != "" {
		providers = append(providers, tokens.NewHTTPProvider("primary", conf.PrimaryURL, tokenListTimeout, true))
	}
	if conf.FallbackURL != "" {
		providers = append(providers, tokens.NewHTTPProvider("fallback", conf.FallbackURL, tokenListTimeout, false))
	}

	closeFn := func() {}
	var store tokens.SnapshotStore
	if conf.SnapshotEnabled {
		storage, err := persistence.NewStorage(conf.SnapshotPath)
		if err != nil {
			log.Warn().Err(err).Msg("[swapcli] token snapshot unavailable")
		} else {
			store = storage
			closeFn = func() { _ = storage.Close() }
		}
	}

	reg := tokens.NewRegistry(providers, store, conf.TTL, nil)
	if err := reg.Restore(); err != nil && !errors.Is(err, persistence.ErrNoSnapshot) {
		log.Warn().Err(err).Msg("[swapcli] failed to restore token snapshot")
	}

	s := startSpinner(" Loading token list...")
	err := reg.Refresh(ctx)
	s.Stop()
	if err != nil {
		if reg.Size() == 0 {
			closeFn()
			return nil, nil, err
		}
		log.Warn().Err(err).Int("tokens", reg.Size()).Msg("[swapcli] token refresh failed, using snapshot")
	}
	return reg, closeFn, nil
}

func openRecorder() (*recorder.Recorder, *repository.DB, error) {
	conf := &config.DatabaseConfig{}
	if err := conf.Load(); err != nil {
		return nil, nil, err
	}
	db, err := repository.Open(conf)
	if err != nil {
		return nil, nil, err
	}
	return recorder.New(db, nil), db, nil
}

// startSpinner returns a running spinner, or an idle one in JSON mode.
func startSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if jsonOutput() {
		return s
	}
	s.Suffix = suffix
	s.Start()
	return s
}
