package portfolio

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/metrics"
)

type Fetcher interface {
	Fetch(ctx context.Context, owner solana.PublicKey) (*domain.Portfolio, error)
}

// Watcher keeps the latest portfolio of every watched wallet. It refreshes on
// a fixed interval and immediately on Poke.
type Watcher struct {
	fetcher  Fetcher
	interval time.Duration
	clock    clock.Clock
	onUpdate func(*domain.Portfolio)

	mu      sync.RWMutex
	watched map[string]solana.PublicKey
	latest  map[string]*domain.Portfolio

	pokes chan string
}

func NewWatcher(fetcher Fetcher, interval time.Duration, clk clock.Clock, onUpdate func(*domain.Portfolio)) *Watcher {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Watcher{
		fetcher:  fetcher,
		interval: interval,
		clock:    clk,
		onUpdate: onUpdate,
		watched:  make(map[string]solana.PublicKey),
		latest:   make(map[string]*domain.Portfolio),
		pokes:    make(chan string, 64),
	}
}

func (w *Watcher) Watch(owner solana.PublicKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watched[owner.String()] = owner
}

func (w *Watcher) Unwatch(owner solana.PublicKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watched, owner.String())
	delete(w.latest, owner.String())
}

// Poke schedules an immediate refresh of wallet and starts watching it.
// It never blocks; a burst of pokes may collapse into one refresh.
func (w *Watcher) Poke(wallet string) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		log.Debug().Str("wallet", wallet).Msg("[portfolio] ignoring poke for invalid wallet")
		return
	}
	w.Watch(owner)
	select {
	case w.pokes <- wallet:
	default:
	}
}

// Latest returns the last fetched portfolio, or nil before the first fetch.
func (w *Watcher) Latest(wallet string) *domain.Portfolio {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest[wallet]
}

// Get returns the cached portfolio or fetches it now.
func (w *Watcher) Get(ctx context.Context, owner solana.PublicKey) (*domain.Portfolio, error) {
	if p := w.Latest(owner.String()); p != nil {
		return p, nil
	}
	w.Watch(owner)
	return w.refresh(ctx, owner, "request")
}

func (w *Watcher) refresh(ctx context.Context, owner solana.PublicKey, trigger string) (*domain.Portfolio, error) {
	p, err := w.fetcher.Fetch(ctx, owner)
	if err != nil {
		metrics.PortfolioRefreshes.WithLabelValues(trigger, "error").Inc()
		return nil, err
	}
	metrics.PortfolioRefreshes.WithLabelValues(trigger, "ok").Inc()

	w.mu.Lock()
	if _, ok := w.watched[owner.String()]; ok {
		w.latest[owner.String()] = p
	}
	w.mu.Unlock()

	if w.onUpdate != nil {
		w.onUpdate(p)
	}
	return p, nil
}

func (w *Watcher) owners() []solana.PublicKey {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]solana.PublicKey, 0, len(w.watched))
	for _, pk := range w.watched {
		out = append(out, pk)
	}
	return out
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	tick := w.clock.TickAfter(w.interval)
	for {
		select {
		case <-ctx.Done():
			return

		case wallet := <-w.pokes:
			owner, err := solana.PublicKeyFromBase58(wallet)
			if err != nil {
				continue
			}
			if _, err := w.refresh(ctx, owner, "poke"); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Str("wallet", wallet).Msg("[portfolio] refresh failed")
			}

		case <-tick:
			for _, owner := range w.owners() {
				if _, err := w.refresh(ctx, owner, "timer"); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Str("wallet", owner.String()).Msg("[portfolio] refresh failed")
				}
			}
			tick = w.clock.TickAfter(w.interval)
		}
	}
}
