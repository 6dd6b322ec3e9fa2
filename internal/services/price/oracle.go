package price

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/swap-engine/internal/adapters/restclient"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/metrics"
)

// MaxIDsPerRequest bounds the ids query parameter.
const MaxIDsPerRequest = 100

type priceResponse struct {
	Data map[string]struct {
		ID    string          `json:"id"`
		Price decimal.Decimal `json:"price"`
	} `json:"data"`
}

type cachedPrice struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// Oracle fetches USD-denominated prices. The cache map is copy-on-write and
// swapped atomically, so lookups never see a half-applied update.
type Oracle struct {
	client  *restclient.Client
	vsToken string
	ttl     time.Duration
	clock   clock.Clock

	writeMu sync.Mutex
	cache   atomic.Pointer[map[string]cachedPrice]
}

func NewOracle(client *restclient.Client, vsToken string, ttl time.Duration, clk clock.Clock) *Oracle {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	o := &Oracle{client: client, vsToken: vsToken, ttl: ttl, clock: clk}
	empty := map[string]cachedPrice{}
	o.cache.Store(&empty)
	return o
}

// GetPrices returns prices for ids against vsToken (the configured default
// when empty). Ids the oracle does not know are absent from the result.
func (o *Oracle) GetPrices(ctx context.Context, ids []string, vsToken string) (map[string]decimal.Decimal, error) {
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return nil, domain.NewError(domain.KindInvalidAddress, "at least one id is required", nil)
	}
	if len(ids) > MaxIDsPerRequest {
		return nil, domain.NewError(domain.KindInvalidAmount, fmt.Sprintf("at most %d ids per request", MaxIDsPerRequest), nil)
	}
	if vsToken == "" {
		vsToken = o.vsToken
	}
	useCache := strings.EqualFold(vsToken, o.vsToken)

	out := make(map[string]decimal.Decimal, len(ids))
	missing := ids
	if useCache {
		missing = missing[:0:0]
		now := o.clock.Now()
		cache := *o.cache.Load()
		for _, id := range ids {
			if c, ok := cache[id]; ok && now.Sub(c.fetchedAt) < o.ttl {
				out[id] = c.price
				metrics.PriceCacheHits.Inc()
				continue
			}
			metrics.PriceCacheMisses.Inc()
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(missing, ","))
	q.Set("vsToken", vsToken)
	resp, _, err := restclient.Do[priceResponse](ctx, o.client, http.MethodGet, "/price", q, nil)
	if err != nil {
		return nil, upstreamError("price", err)
	}

	fetched := make(map[string]decimal.Decimal, len(resp.Data))
	for key, entry := range resp.Data {
		id := entry.ID
		if id == "" {
			id = key
		}
		if entry.Price.IsNegative() {
			continue
		}
		fetched[id] = entry.Price
		out[id] = entry.Price
	}
	if useCache {
		o.store(fetched)
	}
	return out, nil
}

// GetPrice returns the price of a single id.
func (o *Oracle) GetPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	prices, err := o.GetPrices(ctx, []string{id}, "")
	if err != nil {
		return decimal.Zero, err
	}
	p, ok := prices[id]
	if !ok {
		return decimal.Zero, domain.NewError(domain.KindNotFound, fmt.Sprintf("no price for %s", id), nil)
	}
	return p, nil
}

func (o *Oracle) store(fetched map[string]decimal.Decimal) {
	if len(fetched) == 0 {
		return
	}
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	now := o.clock.Now()
	prev := *o.cache.Load()
	next := make(map[string]cachedPrice, len(prev)+len(fetched))
	for k, v := range prev {
		next[k] = v
	}
	for k, v := range fetched {
		next[k] = cachedPrice{price: v, fetchedAt: now}
	}
	o.cache.Store(&next)
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
