package tokens

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/hxuan190/swap-engine/internal/adapters/restclient"
	"github.com/hxuan190/swap-engine/internal/domain"
)

// Provider is a source of token metadata.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.TokenDescriptor, error)
}

// listToken covers both the aggregator's flat token array and the
// community tokenlist format.
type listToken struct {
	Address    string   `json:"address"`
	ChainID    int      `json:"chainId"`
	Symbol     string   `json:"symbol"`
	Name       string   `json:"name"`
	Decimals   *int     `json:"decimals"`
	LogoURI    string   `json:"logoURI"`
	Tags       []string `json:"tags"`
	Extensions struct {
		CoingeckoID string `json:"coingeckoId"`
	} `json:"extensions"`
}

type tokenList struct {
	Tokens []listToken `json:"tokens"`
}

// mainnetChainID is the tokenlist chain id of Solana mainnet-beta.
const mainnetChainID = 101

type HTTPProvider struct {
	name     string
	client   *restclient.Client
	verified bool
}

// NewHTTPProvider fetches a token list from a full URL. Tokens from a
// verified list are flagged Verified.
func NewHTTPProvider(name, rawURL string, timeout time.Duration, verified bool) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		client:   restclient.New(rawURL, timeout),
		verified: verified,
	}
}

func (p *HTTPProvider) Name() string {
	return p.name
}

func (p *HTTPProvider) Fetch(ctx context.Context) ([]domain.TokenDescriptor, error) {
	raw, err := p.client.Raw(ctx, http.MethodGet, "", nil, nil)
	if err != nil {
		return nil, err
	}
	return parseTokenList(raw, p.verified)
}

func parseTokenList(raw []byte, verified bool) ([]domain.TokenDescriptor, error) {
	var items []listToken
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
		return nil, fmt.Errorf("%w: empty token list", restclient.ErrDecode)
	case trimmed[0] == '[':
		if err := sonic.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %w", restclient.ErrDecode, err)
		}
	default:
		var list tokenList
		if err := sonic.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: %w", restclient.ErrDecode, err)
		}
		items = list.Tokens
	}

	out := make([]domain.TokenDescriptor, 0, len(items))
	for _, it := range items {
		if it.ChainID != 0 && it.ChainID != mainnetChainID {
			continue
		}
		// Entries without an address or decimals cannot be converted safely.
		if it.Address == "" || it.Decimals == nil || *it.Decimals < 0 || *it.Decimals > 255 {
			continue
		}
		out = append(out, domain.TokenDescriptor{
			Address:  it.Address,
			Symbol:   strings.TrimSpace(it.Symbol),
			Name:     strings.TrimSpace(it.Name),
			Decimals: uint8(*it.Decimals),
			LogoURI:  it.LogoURI,
			Tags:     it.Tags,
			Verified: verified || hasVerifiedTag(it.Tags),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: token list has no usable entries", restclient.ErrDecode)
	}
	return out, nil
}

func hasVerifiedTag(tags []string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, "verified") || strings.EqualFold(t, "strict") {
			return true
		}
	}
	return false
}
