package blockchain

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/metrics"
)

const blockhashFreshness = 2 * time.Second

type CachedBlockhash struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	Slot                 uint64
	UpdatedAt            time.Time
}

// BlockhashCache keeps the latest blockhash warm so transfer and payment
// transactions can be assembled without an RPC round trip.
type BlockhashCache struct {
	mu      sync.RWMutex
	current *CachedBlockhash

	pool  *Pool
	clock clock.Clock
}

func NewBlockhashCache(pool *Pool, clk clock.Clock) *BlockhashCache {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &BlockhashCache{pool: pool, clock: clk}
}

func (c *BlockhashCache) Refresh(ctx context.Context) (*CachedBlockhash, error) {
	res, err := c.pool.Client().GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		metrics.BlockhashRefreshes.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.BlockhashRefreshes.WithLabelValues("ok").Inc()

	cached := &CachedBlockhash{
		Blockhash:            res.Value.Blockhash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
		Slot:                 res.Context.Slot,
		UpdatedAt:            c.clock.Now(),
	}

	c.mu.Lock()
	c.current = cached
	c.mu.Unlock()
	return cached, nil
}

// Run refreshes the cache every interval until ctx is done.
func (c *BlockhashCache) Run(ctx context.Context, interval time.Duration) {
	if _, err := c.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("[blockhashCache] failed to fetch initial blockhash, will retry on first request")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
				log.Debug().Err(err).Msg("[blockhashCache] refresh failed")
			}
		}
	}
}

// GetBlockhash returns the cached blockhash when it is fresher than 2s and
// otherwise fetches a new one, falling back to the stale value on error.
func (c *BlockhashCache) GetBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	c.mu.RLock()
	cached := c.current
	c.mu.RUnlock()

	if cached != nil && c.clock.Now().Sub(cached.UpdatedAt) < blockhashFreshness {
		return cached.Blockhash, cached.LastValidBlockHeight, nil
	}

	fresh, err := c.Refresh(ctx)
	if err != nil {
		if cached != nil {
			return cached.Blockhash, cached.LastValidBlockHeight, nil
		}
		return solana.Hash{}, 0, err
	}
	return fresh.Blockhash, fresh.LastValidBlockHeight, nil
}
