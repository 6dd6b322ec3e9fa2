package blockchain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/metrics"
)

var ErrNoEndpoints = errors.New("no rpc endpoints configured")

// Endpoint is one RPC node with its last health-check result.
type Endpoint struct {
	URL     string
	Client  *rpc.Client
	Latency time.Duration
	Healthy bool
}

// Pool load-balances reads across RPC endpoints ordered by health-check
// latency and fans writes out to every healthy endpoint.
type Pool struct {
	mu        sync.RWMutex
	endpoints []*Endpoint

	clock           clock.Clock
	sendConcurrency int64
	commitment      rpc.CommitmentType
}

func NewPool(urls []string, sendConcurrency int, commitment rpc.CommitmentType) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	if sendConcurrency <= 0 {
		sendConcurrency = len(urls)
	}
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}

	endpoints := make([]*Endpoint, 0, len(urls))
	for _, u := range urls {
		// Unchecked endpoints are assumed healthy until the first health check.
		endpoints = append(endpoints, &Endpoint{URL: u, Client: rpc.New(u), Healthy: true})
	}

	return &Pool{
		endpoints:       endpoints,
		clock:           clock.NewDefaultClock(),
		sendConcurrency: int64(sendConcurrency),
		commitment:      commitment,
	}, nil
}

func (p *Pool) Commitment() rpc.CommitmentType {
	return p.commitment
}

// Client returns the fastest healthy endpoint, or the first configured one
// when none are healthy.
func (p *Pool) Client() *rpc.Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ep := range p.endpoints {
		if ep.Healthy {
			return ep.Client
		}
	}
	return p.endpoints[0].Client
}

// Endpoints returns a copy of the current ranking.
func (p *Pool) Endpoints() []Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Endpoint, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		out = append(out, *ep)
	}
	return out
}

func (p *Pool) healthy() []*Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Endpoint, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		if ep.Healthy {
			out = append(out, ep)
		}
	}
	if len(out) == 0 {
		out = append(out, p.endpoints...)
	}
	return out
}

// CheckHealth checks every endpoint concurrently and re-ranks them by
// latency. Unhealthy endpoints sort last.
func (p *Pool) CheckHealth(ctx context.Context) {
	p.mu.RLock()
	targets := make([]*Endpoint, len(p.endpoints))
	copy(targets, p.endpoints)
	p.mu.RUnlock()

	type health struct {
		latency time.Duration
		healthy bool
	}
	results := make([]health, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range targets {
		g.Go(func() error {
			start := p.clock.Now()
			_, err := ep.Client.GetHealth(gctx)
			results[i] = health{latency: p.clock.Now().Sub(start), healthy: err == nil}
			if err != nil {
				log.Warn().Err(err).Str("endpoint", ep.URL).Msg("[rpcPool] health check failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	for i, ep := range targets {
		ep.Latency = results[i].latency
		ep.Healthy = results[i].healthy

		healthy := 0.0
		if ep.Healthy {
			healthy = 1
		}
		metrics.RPCEndpointHealthy.WithLabelValues(ep.URL).Set(healthy)
		metrics.RPCEndpointLatency.WithLabelValues(ep.URL).Set(ep.Latency.Seconds())
	}
	sort.SliceStable(p.endpoints, func(i, j int) bool {
		a, b := p.endpoints[i], p.endpoints[j]
		if a.Healthy != b.Healthy {
			return a.Healthy
		}
		return a.Latency < b.Latency
	})
	p.mu.Unlock()
}

// SendTransaction broadcasts tx to every healthy endpoint with bounded
// concurrency. The first accepted submission wins; the rest are cancelled.
// Resubmitting the same signed transaction is harmless.
func (p *Pool) SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	endpoints := p.healthy()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		url string
		sig solana.Signature
		err error
	}
	results := make(chan result, len(endpoints))
	sem := semaphore.NewWeighted(p.sendConcurrency)

	var g errgroup.Group
	for _, ep := range endpoints {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- result{url: ep.URL, err: err}
				return nil
			}
			defer sem.Release(1)

			sig, err := ep.Client.SendTransactionWithOpts(ctx, tx, opts)
			results <- result{url: ep.URL, sig: sig, err: err}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	var errs []error
	for r := range results {
		if r.err == nil {
			log.Debug().Str("endpoint", r.url).Str("signature", r.sig.String()).Msg("[rpcPool] transaction accepted")
			return r.sig, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", r.url, r.err))
	}
	return solana.Signature{}, errors.Join(errs...)
}

// ClassifySendError converts a broadcast failure into the error taxonomy.
// Preflight failures mean the network would execute and revert the
// transaction; an unknown blockhash means it can never land.
func ClassifySendError(err error) error {
	if err == nil {
		return nil
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		switch {
		case containsFold(rpcErr.Message, "blockhash not found"):
			return domain.NewError(domain.KindTransactionExpired, "", err)
		case rpcErr.Code == -32002 || containsFold(rpcErr.Message, "simulation failed"):
			return domain.NewError(domain.KindTransactionRejectedOnChain, readableFailure(rpcErr.Message), err)
		}
	}
	return domain.NewError(domain.KindNetworkError, "", err)
}
