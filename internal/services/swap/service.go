package swap

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/services/builder"
	"github.com/hxuan190/swap-engine/internal/services/portfolio"
	"github.com/hxuan190/swap-engine/internal/services/quote"
	"github.com/hxuan190/swap-engine/internal/services/recorder"
	"github.com/hxuan190/swap-engine/internal/services/submission"
)

const SWAP_SERVICE = "swap-svc"

// SwapService hands out orchestrator sessions wired to the shared
// pipeline components.
type SwapService struct {
	container.BaseDIInstance

	conf          *config.AggregatorConfig
	quoteSvc      *quote.QuoteService
	builderSvc    *builder.BuilderService
	submissionSvc *submission.SubmissionService
	recorderSvc   *recorder.RecorderService
	portfolioSvc  *portfolio.PortfolioService
	logger        *common.ServiceLogger
}

func (svc *SwapService) ID() string {
	return SWAP_SERVICE
}

func (svc *SwapService) Configure(c container.IContainer) error {
	conf, ok := c.GetConfig(config.AGGREGATOR_CONFIG_KEY).(*config.AggregatorConfig)
	if !ok || conf == nil {
		return errors.New("invalid aggregator config")
	}
	quoteSvc, ok := c.Instance(quote.QUOTE_SERVICE).(*quote.QuoteService)
	if !ok {
		return errors.New("quote service not registered")
	}
	builderSvc, ok := c.Instance(builder.BUILDER_SERVICE).(*builder.BuilderService)
	if !ok {
		return errors.New("builder service not registered")
	}
	submissionSvc, ok := c.Instance(submission.SUBMISSION_SERVICE).(*submission.SubmissionService)
	if !ok {
		return errors.New("submission service not registered")
	}
	svc.conf = conf
	svc.quoteSvc = quoteSvc
	svc.builderSvc = builderSvc
	svc.submissionSvc = submissionSvc
	svc.recorderSvc, _ = c.Instance(recorder.RECORDER_SERVICE).(*recorder.RecorderService)
	svc.portfolioSvc, _ = c.Instance(portfolio.PORTFOLIO_SERVICE).(*portfolio.PortfolioService)
	svc.logger = common.NewServiceLogger(svc)
	return nil
}

func (svc *SwapService) Start() error {
	svc.logger.Info().
		Uint16("slippageBps", svc.conf.DefaultSlippageBps).
		Uint16("platformFeeBps", svc.conf.PlatformFeeBps).
		Bool("recorder", svc.recorderSvc != nil).
		Msg("swap sessions ready")
	return nil
}

func (svc *SwapService) Stop() error {
	return nil
}

func (svc *SwapService) DefaultSettings() Settings {
	return Settings{
		SlippageBps:    svc.conf.DefaultSlippageBps,
		PlatformFeeBps: svc.conf.PlatformFeeBps,
		FeeAccount:     svc.conf.FeeAccount,
		WrapUnwrapSOL:  svc.conf.WrapUnwrapSOL,
		Debounce:       svc.conf.Debounce,
	}
}

// NewSession creates an orchestrator for one user. Close it when the user
// goes away.
func (svc *SwapService) NewSession(settings Settings) *Orchestrator {
	deps := Deps{
		Quoter:    svc.quoteSvc.Client(),
		Builder:   svc.builderSvc.Builder(),
		Submitter: svc.submissionSvc.Engine(),
	}
	if svc.recorderSvc != nil {
		deps.Recorder = svc
	}
	if svc.portfolioSvc != nil && svc.portfolioSvc.Watcher() != nil {
		deps.Balances = svc.portfolioSvc.Watcher()
	}
	return New(deps, settings)
}

func (svc *SwapService) recorder() (*recorder.Recorder, error) {
	if svc.recorderSvc == nil || svc.recorderSvc.Recorder() == nil {
		return nil, domain.NewError(domain.KindPersistenceError, "recorder unavailable", nil)
	}
	return svc.recorderSvc.Recorder(), nil
}

func (svc *SwapService) Record(ctx context.Context, outcome domain.SwapOutcome) (*domain.TransactionRecord, error) {
	r, err := svc.recorder()
	if err != nil {
		return nil, err
	}
	return r.Record(ctx, outcome)
}

func (svc *SwapService) UpdateStatus(ctx context.Context, sig string, status domain.TxStatus, reason string) error {
	r, err := svc.recorder()
	if err != nil {
		return err
	}
	return r.UpdateStatus(ctx, sig, status, reason)
}

// PrepareRequest asks for an unsigned swap for a wallet that signs
// elsewhere.
type PrepareRequest struct {
	Intent domain.SwapIntent
	// SlippageBps overrides the intent's slippage; nil falls back to
	// the settings, an explicit zero is kept.
	SlippageBps *uint16
	Payer       string
	Recipient   string
}

type PreparedSwap struct {
	Transaction          string        `json:"transaction"`
	LastValidBlockHeight uint64        `json:"lastValidBlockHeight"`
	Terms                domain.Terms  `json:"terms"`
	Quote                *domain.Quote `json:"quote"`
}

// Prepare quotes the intent and assembles the transaction without signing
// it. Settings fill in what the intent leaves unset.
func (svc *SwapService) Prepare(ctx context.Context, req PrepareRequest) (*PreparedSwap, error) {
	return prepare(ctx, svc.quoteSvc.Client(), svc.builderSvc.Builder(), svc.DefaultSettings(), req)
}

func prepare(ctx context.Context, quoter quote.Quoter, b TxBuilder, settings Settings, req PrepareRequest) (*PreparedSwap, error) {
	payer, err := solana.PublicKeyFromBase58(req.Payer)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidAddress, fmt.Sprintf("invalid wallet address %q", req.Payer), err)
	}
	var recipient *solana.PublicKey
	if req.Recipient != "" {
		pk, err := solana.PublicKeyFromBase58(req.Recipient)
		if err != nil {
			return nil, domain.NewError(domain.KindInvalidRecipient, fmt.Sprintf("invalid recipient %q", req.Recipient), err)
		}
		recipient = &pk
	}

	intent := req.Intent
	if intent.Mode == "" {
		intent.Mode = domain.SwapModeExactIn
	}
	intent.SlippageBps = settings.SlippageBps
	if req.SlippageBps != nil {
		intent.SlippageBps = *req.SlippageBps
	}
	if intent.PlatformFeeBps == 0 && settings.PlatformFeeBps > 0 {
		intent.PlatformFeeBps = settings.PlatformFeeBps
		intent.FeeAccount = settings.FeeAccount
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	q, err := quoter.GetQuote(ctx, intent)
	if err != nil {
		return nil, err
	}
	pending, err := b.Build(ctx, builder.BuildRequest{
		Quote:               q,
		Payer:               payer,
		WrapUnwrapSOL:       settings.WrapUnwrapSOL,
		DestinationOverride: recipient,
		FeeAccount:          intent.FeeAccount,
	})
	if err != nil {
		return nil, err
	}
	return &PreparedSwap{
		Transaction:          base64.StdEncoding.EncodeToString(pending.Payload),
		LastValidBlockHeight: pending.LastValidBlockHeight,
		Terms:                q.Terms(pending.Recipient.String()),
		Quote:                q,
	}, nil
}
