package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hxuan190/swap-engine/internal/domain"
)

func upsertUser(ctx context.Context, q querier, wallet string, seen time.Time) error {
	_, err := q.ExecContext(ctx, `INSERT INTO users (wallet_address, created_at, last_seen_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (wallet_address) DO UPDATE SET last_seen_at = excluded.last_seen_at`,
		wallet, toMicros(seen))
	return err
}

// TouchUser creates the wallet's user row or bumps its last-seen time.
func (db *DB) TouchUser(ctx context.Context, wallet string, seen time.Time) error {
	return upsertUser(ctx, db, wallet, seen)
}

func (db *DB) GetUser(ctx context.Context, wallet string) (*domain.User, error) {
	var (
		u                 domain.User
		created, lastSeen int64
	)
	err := db.QueryRowContext(ctx, `SELECT wallet_address, created_at, last_seen_at
		FROM users WHERE wallet_address = $1`, wallet).Scan(&u.WalletAddress, &created, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMicros(created)
	u.LastSeenAt = fromMicros(lastSeen)
	return &u, nil
}
