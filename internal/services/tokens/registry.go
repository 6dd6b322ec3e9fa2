package tokens

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/adapters/persistence"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/metrics"
)

var ErrAllProvidersFailed = errors.New("all token list providers failed")

// builtin tokens are always resolvable, even before the first refresh.
var builtin = []domain.TokenDescriptor{
	{Address: domain.WrappedSOLMint, Symbol: "SOL", Name: "Wrapped SOL", Decimals: 9, Verified: true},
	{Address: domain.USDCMint, Symbol: "USDC", Name: "USD Coin", Decimals: 6, Verified: true},
}

// SnapshotStore persists the last good token list.
type SnapshotStore interface {
	SaveSnapshot(persistence.TokenSnapshot) error
	LoadSnapshot() (*persistence.TokenSnapshot, error)
}

// snapshot is immutable once published.
type snapshot struct {
	byAddress map[string]domain.TokenDescriptor
	bySymbol  map[string]domain.TokenDescriptor
	list      []domain.TokenDescriptor
	provider  string
	fetchedAt time.Time
}

func newSnapshot(tokens []domain.TokenDescriptor, provider string, fetchedAt time.Time) *snapshot {
	s := &snapshot{
		byAddress: make(map[string]domain.TokenDescriptor, len(tokens)+len(builtin)),
		bySymbol:  make(map[string]domain.TokenDescriptor, len(tokens)+len(builtin)),
		provider:  provider,
		fetchedAt: fetchedAt,
	}
	add := func(t domain.TokenDescriptor) {
		if _, dup := s.byAddress[t.Address]; dup {
			return
		}
		s.byAddress[t.Address] = t
		s.list = append(s.list, t)

		sym := strings.ToUpper(t.Symbol)
		// Verified tokens win symbol collisions.
		if prev, ok := s.bySymbol[sym]; !ok || (!prev.Verified && t.Verified) {
			s.bySymbol[sym] = t
		}
	}
	for _, t := range builtin {
		add(t)
	}
	for _, t := range tokens {
		add(t)
	}
	return s
}

// Registry resolves token metadata. Refreshes build a new snapshot and swap
// it in atomically so readers never observe a partial list.
type Registry struct {
	providers []Provider
	store     SnapshotStore
	ttl       time.Duration
	clock     clock.Clock

	current atomic.Pointer[snapshot]
}

func NewRegistry(providers []Provider, store SnapshotStore, ttl time.Duration, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	r := &Registry{
		providers: providers,
		store:     store,
		ttl:       ttl,
		clock:     clk,
	}
	r.current.Store(newSnapshot(nil, "builtin", time.Time{}))
	return r
}

// Restore loads the persisted snapshot, if any.
func (r *Registry) Restore() error {
	if r.store == nil {
		return nil
	}
	snap, err := r.store.LoadSnapshot()
	if err != nil {
		return err
	}
	r.publish(newSnapshot(snap.Tokens, snap.Provider, snap.FetchedAt))
	log.Info().Int("count", len(snap.Tokens)).Time("fetchedAt", snap.FetchedAt).Msg("[tokenRegistry] restored snapshot")
	return nil
}

// Refresh tries each provider in order; the first success replaces the
// registry contents.
func (r *Registry) Refresh(ctx context.Context) error {
	var errs []error
	for _, p := range r.providers {
		tokens, err := p.Fetch(ctx)
		if err != nil {
			metrics.TokenListRefreshes.WithLabelValues(p.Name(), "error").Inc()
			log.Warn().Err(err).Str("provider", p.Name()).Msg("[tokenRegistry] provider failed")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}

		metrics.TokenListRefreshes.WithLabelValues(p.Name(), "ok").Inc()
		now := r.clock.Now()
		r.publish(newSnapshot(tokens, p.Name(), now))

		if r.store != nil {
			if err := r.store.SaveSnapshot(persistence.TokenSnapshot{Provider: p.Name(), FetchedAt: now, Tokens: tokens}); err != nil {
				log.Warn().Err(err).Msg("[tokenRegistry] failed to persist snapshot")
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

func (r *Registry) publish(s *snapshot) {
	r.current.Store(s)
	metrics.TokenListSize.Set(float64(len(s.list)))
}

// Stale reports whether the registry is older than its TTL.
func (r *Registry) Stale() bool {
	s := r.current.Load()
	return s.fetchedAt.IsZero() || !r.clock.Now().Before(s.fetchedAt.Add(r.ttl))
}

// EnsureFresh refreshes when the TTL has elapsed. A failed refresh keeps the
// current list.
func (r *Registry) EnsureFresh(ctx context.Context) {
	if !r.Stale() {
		return
	}
	if err := r.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("[tokenRegistry] refresh failed, serving previous list")
	}
}

// Lookup resolves a mint address or a symbol.
func (r *Registry) Lookup(id string) (domain.TokenDescriptor, error) {
	s := r.current.Load()
	if t, ok := s.byAddress[id]; ok {
		return t, nil
	}
	if t, ok := s.bySymbol[strings.ToUpper(id)]; ok {
		return t, nil
	}
	return domain.TokenDescriptor{}, domain.NewError(domain.KindUnknownToken, fmt.Sprintf("unknown token %q", id), nil)
}

func (r *Registry) Decimals(id string) (uint8, error) {
	t, err := r.Lookup(id)
	if err != nil {
		return 0, err
	}
	return t.Decimals, nil
}

// List returns tokens, verified first, optionally filtered by a
// case-insensitive match on symbol, name or address.
func (r *Registry) List(query string, verifiedOnly bool, limit int) []domain.TokenDescriptor {
	s := r.current.Load()
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]domain.TokenDescriptor, 0, min(len(s.list), max(limit, 0)))
	for _, t := range s.list {
		if verifiedOnly && !t.Verified {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(t.Symbol), q) &&
			!strings.Contains(strings.ToLower(t.Name), q) &&
			t.Address != query {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Verified != out[j].Verified {
			return out[i].Verified
		}
		if q != "" {
			ei, ej := strings.EqualFold(out[i].Symbol, q), strings.EqualFold(out[j].Symbol, q)
			if ei != ej {
				return ei
			}
		}
		return false
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *Registry) Size() int {
	return len(r.current.Load().list)
}

// Run refreshes the registry every TTL until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := r.clock.TickAfter(r.ttl)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker:
			if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("[tokenRegistry] periodic refresh failed")
			}
			ticker = r.clock.TickAfter(r.ttl)
		}
	}
}
