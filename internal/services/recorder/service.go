package recorder

import (
	"context"
	"errors"
	"sync"
	"time"

	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/repository"
)

const (
	RECORDER_SERVICE = "recorder-svc"

	reconcileInterval = 5 * time.Minute
)

type RecorderService struct {
	container.BaseDIInstance

	repo     *repository.Repository
	rpc      *blockchain.RPCService
	recorder *Recorder
	logger   *common.ServiceLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (svc *RecorderService) ID() string {
	return RECORDER_SERVICE
}

func (svc *RecorderService) Configure(c container.IContainer) error {
	repo, ok := c.Instance(repository.REPOSITORY_SERVICE).(*repository.Repository)
	if !ok {
		return errors.New("repository not registered")
	}
	rpcSvc, ok := c.Instance(blockchain.RPC_SERVICE).(*blockchain.RPCService)
	if !ok {
		return errors.New("rpc service not registered")
	}
	svc.repo = repo
	svc.rpc = rpcSvc
	svc.logger = common.NewServiceLogger(svc)
	return nil
}

func (svc *RecorderService) Start() error {
	svc.recorder = New(svc.repo.DB(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	svc.cancel = cancel
	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		svc.recorder.Run(ctx, svc.rpc, reconcileInterval, DefaultReconcileOptions())
	}()
	svc.logger.Info().Dur("reconcileInterval", reconcileInterval).Msg("recorder started")
	return nil
}

func (svc *RecorderService) Stop() error {
	if svc.cancel != nil {
		svc.cancel()
	}
	svc.wg.Wait()
	return nil
}

func (svc *RecorderService) Recorder() *Recorder {
	return svc.recorder
}
