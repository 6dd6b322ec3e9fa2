package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerEnv = string

var (
	DevEnv     ServerEnv = "dev"
	StagingEnv ServerEnv = "staging"
	ProdEnv    ServerEnv = "prod"
)

const (
	DATABASE_CONFIG_KEY   = "database-config"
	GENERAL_CONFIG_KEY    = "general-config"
	RPC_CONFIG_KEY        = "rpc-config"
	AGGREGATOR_CONFIG_KEY = "aggregator-config"
	TOKEN_LIST_CONFIG_KEY = "token-list-config"
	PRICE_CONFIG_KEY      = "price-config"
	CHART_CONFIG_KEY      = "chart-config"
	PORTFOLIO_CONFIG_KEY  = "portfolio-config"
	PAYMENT_CONFIG_KEY    = "payment-config"
)

// newEnv returns a viper instance bound to the process environment. Values
// from .env are already in the environment once godotenv has run.
func newEnv() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationOrDefault(v *viper.Viper, key string, def time.Duration) time.Duration {
	v.SetDefault(key, def.String())
	d := v.GetDuration(key)
	if d <= 0 {
		return def
	}
	return d
}

type GeneralConfig struct {
	HTTPPort  string
	HTTPHost  string
	Env       string
	LogLevel  string
	RateLimit int
	RateBurst int
	// AdminToken guards /api/admin; admin routes are disabled when empty.
	AdminToken string
}

func (gc *GeneralConfig) Key() string {
	return GENERAL_CONFIG_KEY
}

func (gc *GeneralConfig) Load() error {
	v := newEnv()
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("HTTP_HOST", "localhost")
	v.SetDefault("ENV", DevEnv)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("RATE_LIMIT", 10)
	v.SetDefault("RATE_BURST", 20)

	gc.HTTPPort = v.GetString("HTTP_PORT")
	gc.HTTPHost = v.GetString("HTTP_HOST")
	gc.Env = v.GetString("ENV")
	gc.LogLevel = v.GetString("LOG_LEVEL")
	gc.RateLimit = v.GetInt("RATE_LIMIT")
	gc.RateBurst = v.GetInt("RATE_BURST")
	gc.AdminToken = v.GetString("ADMIN_TOKEN")
	return gc.Validate()
}

func (gc *GeneralConfig) Validate() error {
	if gc.HTTPPort == "" || gc.HTTPHost == "" || gc.Env == "" {
		return errors.New("invalid server config")
	}
	if gc.RateLimit <= 0 || gc.RateBurst < gc.RateLimit {
		return errors.New("invalid rate limit config: burst must be >= rate > 0")
	}
	return nil
}
