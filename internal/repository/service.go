package repository

import (
	"errors"

	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/config"
)

const REPOSITORY_SERVICE = "repository"

// Repository owns the relational store for the process lifetime.
type Repository struct {
	container.BaseDIInstance

	db     *DB
	logger *common.ServiceLogger
}

func (svc *Repository) ID() string {
	return REPOSITORY_SERVICE
}

func (svc *Repository) Configure(c container.IContainer) error {
	conf, ok := c.GetConfig(config.DATABASE_CONFIG_KEY).(*config.DatabaseConfig)
	if !ok || conf == nil {
		return errors.New("invalid database config")
	}
	svc.logger = common.NewServiceLogger(svc)

	db, err := Open(conf)
	if err != nil {
		return err
	}
	svc.db = db
	return nil
}

func (svc *Repository) Start() error {
	svc.logger.Info().Str("driver", svc.db.driver).Msg("repository ready")
	return nil
}

func (svc *Repository) Stop() error {
	if svc.db == nil {
		return nil
	}
	return svc.db.Close()
}

func (svc *Repository) DB() *DB {
	return svc.db
}
