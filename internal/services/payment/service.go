package payment

import (
	"context"
	"errors"

	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/repository"
	"github.com/hxuan190/swap-engine/internal/services/builder"
	"github.com/hxuan190/swap-engine/internal/services/quote"
	"github.com/hxuan190/swap-engine/internal/services/recorder"
	"github.com/hxuan190/swap-engine/internal/services/tokens"
)

const PAYMENT_SERVICE = "payment-svc"

type PaymentService struct {
	container.BaseDIInstance

	conf        *config.PaymentConfig
	repo        *repository.Repository
	rpc         *blockchain.RPCService
	quoteSvc    *quote.QuoteService
	builderSvc  *builder.BuilderService
	tokenSvc    *tokens.TokenService
	recorderSvc *recorder.RecorderService

	service *Service
	logger  *common.ServiceLogger
}

func (svc *PaymentService) ID() string {
	return PAYMENT_SERVICE
}

func (svc *PaymentService) Configure(c container.IContainer) error {
	conf, ok := c.GetConfig(config.PAYMENT_CONFIG_KEY).(*config.PaymentConfig)
	if !ok || conf == nil {
		return errors.New("invalid payment config")
	}
	repo, ok := c.Instance(repository.REPOSITORY_SERVICE).(*repository.Repository)
	if !ok {
		return errors.New("repository not registered")
	}
	rpcSvc, ok := c.Instance(blockchain.RPC_SERVICE).(*blockchain.RPCService)
	if !ok {
		return errors.New("rpc service not registered")
	}
	svc.conf = conf
	svc.repo = repo
	svc.rpc = rpcSvc
	svc.quoteSvc, _ = c.Instance(quote.QUOTE_SERVICE).(*quote.QuoteService)
	svc.builderSvc, _ = c.Instance(builder.BUILDER_SERVICE).(*builder.BuilderService)
	svc.tokenSvc, _ = c.Instance(tokens.TOKEN_SERVICE).(*tokens.TokenService)
	svc.recorderSvc, _ = c.Instance(recorder.RECORDER_SERVICE).(*recorder.RecorderService)
	svc.logger = common.NewServiceLogger(svc)
	return nil
}

func (svc *PaymentService) Start() error {
	svc.service = New(svc.repo.DB(), svc.rpc, svc.rpc.Blockhash(), svc, Options{
		Label:       svc.conf.Label,
		IconURL:     svc.conf.IconURL,
		PriorityFee: svc.conf.PriorityFee,
	}, nil)

	if svc.quoteSvc != nil && svc.builderSvc != nil && svc.tokenSvc != nil {
		svc.service.WithSwaps(svc.quoteSvc.Client(), svc.builderSvc.Builder(), svc.tokenSvc.Registry())
	} else {
		svc.logger.Warn().Msg("exact-out payments disabled: quote, builder or token service missing")
	}
	svc.logger.Info().Str("label", svc.conf.Label).Bool("priorityFee", svc.conf.PriorityFee).Msg("payment service ready")
	return nil
}

func (svc *PaymentService) Stop() error {
	return nil
}

func (svc *PaymentService) Payments() *Service {
	return svc.service
}

// Record forwards settled payments to the recorder once it has started.
func (svc *PaymentService) Record(ctx context.Context, outcome domain.SwapOutcome) (*domain.TransactionRecord, error) {
	if svc.recorderSvc == nil || svc.recorderSvc.Recorder() == nil {
		return nil, domain.NewError(domain.KindPersistenceError, "recorder unavailable", nil)
	}
	return svc.recorderSvc.Recorder().Record(ctx, outcome)
}
