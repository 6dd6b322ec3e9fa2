package config

import (
	"errors"
	"time"
)

type TokenListConfig struct {
	// PrimaryURL and FallbackURL are tried in order; the first success wins.
	PrimaryURL  string
	FallbackURL string

	TTL time.Duration

	// SnapshotPath is the bolt file holding the last good token list.
	SnapshotPath    string
	SnapshotEnabled bool
}

func (c *TokenListConfig) Key() string {
	return TOKEN_LIST_CONFIG_KEY
}

func (c *TokenListConfig) Load() error {
	v := newEnv()
	v.SetDefault("TOKEN_LIST_PRIMARY_URL", "https://tokens.jup.ag/tokens?tags=verified")
	v.SetDefault("TOKEN_LIST_FALLBACK_URL", "https://cdn.jsdelivr.net/gh/solana-labs/token-list@main/src/tokens/solana.tokenlist.json")
	v.SetDefault("TOKEN_SNAPSHOT_PATH", "./data/tokens.db")
	v.SetDefault("TOKEN_SNAPSHOT_ENABLED", true)

	c.PrimaryURL = v.GetString("TOKEN_LIST_PRIMARY_URL")
	c.FallbackURL = v.GetString("TOKEN_LIST_FALLBACK_URL")
	c.TTL = durationOrDefault(v, "TOKEN_LIST_TTL", 5*time.Minute)
	c.SnapshotPath = v.GetString("TOKEN_SNAPSHOT_PATH")
	c.SnapshotEnabled = v.GetBool("TOKEN_SNAPSHOT_ENABLED")
	return c.Validate()
}

func (c *TokenListConfig) Validate() error {
	if c.PrimaryURL == "" && c.FallbackURL == "" {
		return errors.New("invalid token list config: at least one provider url is required")
	}
	return nil
}
