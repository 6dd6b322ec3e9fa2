package blockchain

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/config"
)

const RPC_SERVICE = "rpc-svc"

// RPCService owns the endpoint pool and blockhash cache and runs their
// background refresh loops.
type RPCService struct {
	container.BaseDIInstance

	pool      *Pool
	blockhash *BlockhashCache
	conf      *config.RPCConfig
	logger    *common.ServiceLogger

	cancel context.CancelFunc
	done   chan struct{}
}

func (svc *RPCService) ID() string {
	return RPC_SERVICE
}

func (svc *RPCService) Configure(c container.IContainer) error {
	conf, ok := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	if !ok || conf == nil {
		return errors.New("invalid rpc config")
	}
	svc.conf = conf

	pool, err := NewPool(conf.RPCUrls, conf.SendConcurrency, conf.Commitment)
	if err != nil {
		return err
	}
	svc.pool = pool
	svc.blockhash = NewBlockhashCache(pool, nil)
	svc.logger = common.NewServiceLogger(svc)
	return nil
}

func (svc *RPCService) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	svc.cancel = cancel
	svc.done = make(chan struct{})

	svc.pool.CheckHealth(ctx)
	svc.logger.Info().Int("endpoints", len(svc.conf.RPCUrls)).Msg("rpc pool ready")

	go func() {
		defer close(svc.done)
		go svc.blockhash.Run(ctx, blockhashFreshness)

		ticker := time.NewTicker(svc.conf.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				svc.pool.CheckHealth(ctx)
			}
		}
	}()
	return nil
}

func (svc *RPCService) Stop() error {
	if svc.cancel != nil {
		svc.cancel()
		<-svc.done
	}
	return nil
}

func (svc *RPCService) Pool() *Pool {
	return svc.pool
}

func (svc *RPCService) Blockhash() *BlockhashCache {
	return svc.blockhash
}

// Client returns the preferred endpoint's client. Safe to hand to consumers
// configured before this service.
func (svc *RPCService) Client() *rpc.Client {
	return svc.pool.Client()
}

func (svc *RPCService) Commitment() rpc.CommitmentType {
	return svc.pool.Commitment()
}

func (svc *RPCService) SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	return svc.pool.SendTransaction(ctx, tx, opts)
}
