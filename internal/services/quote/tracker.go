package quote

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/metrics"
)

// Quoter produces a quote for an intent.
type Quoter interface {
	GetQuote(ctx context.Context, intent domain.SwapIntent) (*domain.Quote, error)
}

// Result is a quote outcome tagged with the generation of the input that
// produced it.
type Result struct {
	Generation uint64
	Intent     domain.SwapIntent
	Quote      *domain.Quote
	Err        error
}

// Tracker debounces intent changes and applies last-write-wins: a result is
// delivered only if no newer intent was submitted since its request began.
type Tracker struct {
	quoter   Quoter
	debounce time.Duration
	clock    clock.Clock
	onResult func(Result)

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	closed     bool

	deliverMu sync.Mutex
	wg        sync.WaitGroup
}

func NewTracker(quoter Quoter, debounce time.Duration, clk clock.Clock, onResult func(Result)) *Tracker {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Tracker{
		quoter:   quoter,
		debounce: debounce,
		clock:    clk,
		onResult: onResult,
	}
}

// Update supersedes any pending or in-flight request with intent and returns
// its generation. A superseded request still waiting on the debounce timer
// never reaches the aggregator.
func (t *Tracker) Update(ctx context.Context, intent domain.SwapIntent) uint64 {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0
	}
	t.generation++
	gen := t.generation
	if t.cancel != nil {
		t.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer cancel()

		if t.debounce > 0 {
			select {
			case <-reqCtx.Done():
				return
			case <-t.clock.TickAfter(t.debounce):
			}
		}
		if !t.IsCurrent(gen) {
			return
		}

		q, err := t.quoter.GetQuote(reqCtx, intent)

		t.deliverMu.Lock()
		defer t.deliverMu.Unlock()
		if !t.IsCurrent(gen) {
			metrics.QuotesSuperseded.Inc()
			return
		}
		if t.onResult != nil {
			t.onResult(Result{Generation: gen, Intent: intent, Quote: q, Err: err})
		}
	}()
	return gen
}

// Invalidate discards whatever is pending without starting a new request.
func (t *Tracker) Invalidate() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	return t.generation
}

func (t *Tracker) IsCurrent(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && gen == t.generation
}

// Close cancels pending work and waits for background goroutines to exit.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
}
