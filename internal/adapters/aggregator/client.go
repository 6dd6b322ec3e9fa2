// Package aggregator is the HTTP client for the external quote aggregator
// (GET /quote, POST /swap). Transport and status failures are translated into
// the domain error taxonomy here so callers never see raw transport errors.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/adapters/restclient"
	"github.com/hxuan190/swap-engine/internal/domain"
)

// Error codes the aggregator uses when it has no path between the mints.
var noRouteCodes = []string{
	"COULD_NOT_FIND_ANY_ROUTE",
	"NO_ROUTES_FOUND",
	"TOKEN_NOT_TRADABLE",
	"CIRCULAR_ARBITRAGE_IS_DISABLED",
}

type Client struct {
	quotes *restclient.Client
	swaps  *restclient.Client
}

func NewClient(baseURL, apiKey string, quoteTimeout, swapTimeout time.Duration) *Client {
	return &Client{
		quotes: restclient.New(baseURL, quoteTimeout, restclient.WithHeader("x-api-key", apiKey)),
		swaps:  restclient.New(baseURL, swapTimeout, restclient.WithHeader("x-api-key", apiKey)),
	}
}

// Quote fetches a quote and returns both the parsed payload and the raw
// bytes, which must be echoed back to Swap.
func (c *Client) Quote(ctx context.Context, p QuoteParams) (*QuoteResponse, []byte, error) {
	q := url.Values{}
	q.Set("inputMint", p.InputMint)
	q.Set("outputMint", p.OutputMint)
	q.Set("amount", strconv.FormatUint(p.Amount, 10))
	q.Set("slippageBps", strconv.FormatUint(uint64(p.SlippageBps), 10))
	q.Set("swapMode", p.SwapMode)
	if p.PlatformFeeBps > 0 {
		q.Set("platformFeeBps", strconv.FormatUint(uint64(p.PlatformFeeBps), 10))
	}

	resp, raw, err := restclient.Do[QuoteResponse](ctx, c.quotes, http.MethodGet, "/quote", q, nil)
	if err != nil {
		return nil, nil, classify("quote", err)
	}
	if len(resp.RoutePlan) == 0 {
		return nil, nil, domain.NewError(domain.KindNoRoute, "", nil)
	}
	return resp, raw, nil
}

func (c *Client) Swap(ctx context.Context, req SwapRequest) (*SwapResponse, error) {
	resp, _, err := restclient.Do[SwapResponse](ctx, c.swaps, http.MethodPost, "/swap", nil, req)
	if err != nil {
		return nil, classify("swap", err)
	}
	if resp.SwapTransaction == "" {
		return nil, domain.NewError(domain.KindNetworkError, "aggregator returned an empty transaction", nil)
	}
	return resp, nil
}

// classify maps transport and status failures onto the error taxonomy:
// 429 is RateLimited, other 4xx are NoRoute, 5xx and transport failures are
// NetworkError.
func classify(op string, err error) error {
	var se *restclient.StatusError
	switch {
	case errors.As(err, &se):
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			e := domain.NewError(domain.KindRateLimited, "", err)
			e.RetryAfter = se.RetryAfter
			return e
		case se.StatusCode >= 400 && se.StatusCode < 500:
			log.Debug().Str("op", op).Int("status", se.StatusCode).Str("code", errorCode(se.Body)).Msg("[aggregator] no route")
			return domain.NewError(domain.KindNoRoute, "", err)
		default:
			return domain.NewError(domain.KindNetworkError, fmt.Sprintf("aggregator %s failed with status %d", op, se.StatusCode), err)
		}
	case errors.Is(err, restclient.ErrDecode):
		return domain.NewError(domain.KindNetworkError, fmt.Sprintf("aggregator %s returned a malformed response", op), err)
	default:
		return domain.NewError(domain.KindNetworkError, "", err)
	}
}

func errorCode(body []byte) string {
	var e errorResponse
	if err := sonic.Unmarshal(body, &e); err != nil {
		return ""
	}
	if e.ErrorCode != "" {
		return e.ErrorCode
	}
	for _, code := range noRouteCodes {
		if strings.Contains(strings.ToUpper(e.Error), code) {
			return code
		}
	}
	return ""
}
