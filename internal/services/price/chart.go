package price

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/swap-engine/internal/adapters/restclient"
	"github.com/hxuan190/swap-engine/internal/domain"
)

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1H":  time.Hour,
	"4H":  4 * time.Hour,
	"1D":  24 * time.Hour,
	"1W":  7 * 24 * time.Hour,
}

// maxPoints caps the number of samples a single chart request may span.
const maxPoints = 1000

type historyResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []struct {
			UnixTime int64           `json:"unixTime"`
			Value    decimal.Decimal `json:"value"`
		} `json:"items"`
	} `json:"data"`
}

type ChartRequest struct {
	Mint     string
	Interval string
	From     time.Time
	To       time.Time
}

func (r ChartRequest) Validate() error {
	if r.Mint == "" {
		return domain.NewError(domain.KindInvalidAddress, "address is required", nil)
	}
	step, ok := intervals[r.Interval]
	if !ok {
		return domain.NewError(domain.KindInvalidAmount, fmt.Sprintf("unsupported interval %q", r.Interval), nil)
	}
	if !r.From.Before(r.To) {
		return domain.NewError(domain.KindInvalidAmount, "time_from must be before time_to", nil)
	}
	if r.To.Sub(r.From)/step > maxPoints {
		return domain.NewError(domain.KindInvalidAmount, fmt.Sprintf("range spans more than %d points", maxPoints), nil)
	}
	return nil
}

type chartEntry struct {
	points    []domain.PricePoint
	fetchedAt time.Time
}

// Chart proxies historical price series from the market-data API.
type Chart struct {
	client *restclient.Client
	ttl    time.Duration
	clock  clock.Clock

	mu    sync.RWMutex
	cache map[ChartRequest]chartEntry
}

func NewChart(client *restclient.Client, ttl time.Duration, clk clock.Clock) *Chart {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Chart{client: client, ttl: ttl, clock: clk, cache: make(map[ChartRequest]chartEntry)}
}

func (c *Chart) GetChartData(ctx context.Context, req ChartRequest) ([]domain.PricePoint, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := ChartRequest{Mint: req.Mint, Interval: req.Interval, From: req.From.UTC(), To: req.To.UTC()}

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && c.clock.Now().Sub(entry.fetchedAt) < c.ttl {
		return entry.points, nil
	}

	q := url.Values{}
	q.Set("address", req.Mint)
	q.Set("address_type", "token")
	q.Set("type", req.Interval)
	q.Set("time_from", strconv.FormatInt(req.From.Unix(), 10))
	q.Set("time_to", strconv.FormatInt(req.To.Unix(), 10))

	resp, _, err := restclient.Do[historyResponse](ctx, c.client, http.MethodGet, "/defi/history_price", q, nil)
	if err != nil {
		return nil, upstreamError("chart", err)
	}
	if !resp.Success {
		return nil, domain.NewError(domain.KindNetworkError, "market data provider reported failure", nil)
	}

	points := make([]domain.PricePoint, 0, len(resp.Data.Items))
	for _, it := range resp.Data.Items {
		points = append(points, domain.PricePoint{UnixTime: it.UnixTime, Value: it.Value})
	}

	c.mu.Lock()
	now := c.clock.Now()
	for k, v := range c.cache {
		if now.Sub(v.fetchedAt) >= c.ttl {
			delete(c.cache, k)
		}
	}
	c.cache[key] = chartEntry{points: points, fetchedAt: now}
	c.mu.Unlock()

	return points, nil
}

// upstreamError converts a restclient failure into the taxonomy.
func upstreamError(op string, err error) error {
	var se *restclient.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			e := domain.NewError(domain.KindRateLimited, "", err)
			e.RetryAfter = se.RetryAfter
			return e
		case se.StatusCode == http.StatusNotFound:
			return domain.NewError(domain.KindNotFound, "", err)
		}
	}
	return domain.NewError(domain.KindNetworkError, fmt.Sprintf("%s provider unavailable", op), err)
}
