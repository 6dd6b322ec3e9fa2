package tokens

import (
	"context"
	"errors"
	"time"

	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/adapters/persistence"
	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/config"
)

const TOKEN_SERVICE = "token-svc"

const providerTimeout = 10 * time.Second

type TokenService struct {
	container.BaseDIInstance

	registry *Registry

	storage *persistence.Storage
	logger  *common.ServiceLogger
	cancel  context.CancelFunc
}

func (svc *TokenService) ID() string {
	return TOKEN_SERVICE
}

func (svc *TokenService) Configure(c container.IContainer) error {
	conf, ok := c.GetConfig(config.TOKEN_LIST_CONFIG_KEY).(*config.TokenListConfig)
	if !ok || conf == nil {
		return errors.New("invalid token list config")
	}

	var providers []Provider
	if conf.PrimaryURL != "" {
		providers = append(providers, NewHTTPProvider("primary", conf.PrimaryURL, providerTimeout, true))
	}
	if conf.FallbackURL != "" {
		providers = append(providers, NewHTTPProvider("fallback", conf.FallbackURL, providerTimeout, false))
	}

	var store SnapshotStore
	if conf.SnapshotEnabled {
		storage, err := persistence.NewStorage(conf.SnapshotPath)
		if err != nil {
			return err
		}
		svc.storage = storage
		store = storage
	}

	svc.registry = NewRegistry(providers, store, conf.TTL, nil)
	svc.logger = common.NewServiceLogger(svc)
	return nil
}

func (svc *TokenService) Start() error {
	if err := svc.registry.Restore(); err != nil && !errors.Is(err, persistence.ErrNoSnapshot) {
		svc.logger.Warn().Err(err).Msg("failed to restore token snapshot")
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc.cancel = cancel

	if err := svc.registry.Refresh(ctx); err != nil {
		svc.logger.Warn().Err(err).Int("tokens", svc.registry.Size()).Msg("initial token refresh failed, serving snapshot")
	} else {
		svc.logger.Info().Int("tokens", svc.registry.Size()).Msg("token registry loaded")
	}

	go svc.registry.Run(ctx)
	return nil
}

func (svc *TokenService) Registry() *Registry {
	return svc.registry
}

func (svc *TokenService) Stop() error {
	if svc.cancel != nil {
		svc.cancel()
	}
	if svc.storage != nil {
		return svc.storage.Close()
	}
	return nil
}
