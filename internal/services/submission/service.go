package submission

import (
	"errors"

	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/config"
)

const SUBMISSION_SERVICE = "submission-svc"

type SubmissionService struct {
	container.BaseDIInstance

	engine *Engine
}

func (svc *SubmissionService) ID() string {
	return SUBMISSION_SERVICE
}

func (svc *SubmissionService) Configure(c container.IContainer) error {
	conf, ok := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	if !ok || conf == nil {
		return errors.New("invalid rpc config")
	}
	rpcSvc, ok := c.Instance(blockchain.RPC_SERVICE).(*blockchain.RPCService)
	if !ok {
		return errors.New("rpc service not registered")
	}
	svc.engine = NewEngine(rpcSvc, Options{
		PollInterval: conf.ConfirmPollInterval,
		Timeout:      conf.ConfirmTimeout,
	}, nil)
	return nil
}

func (svc *SubmissionService) Start() error {
	return nil
}

func (svc *SubmissionService) Stop() error {
	return nil
}

func (svc *SubmissionService) Engine() *Engine {
	return svc.engine
}
