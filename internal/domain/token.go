package domain

import (
	"github.com/shopspring/decimal"
)

// Well-known mints.
const (
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
	USDCMint       = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// TokenDescriptor identifies a tradable asset. Descriptors handed out by the
// registry are never mutated; WithPrice returns a copy.
type TokenDescriptor struct {
	Address  string           `json:"address"`
	Symbol   string           `json:"symbol"`
	Name     string           `json:"name"`
	Decimals uint8            `json:"decimals"`
	LogoURI  string           `json:"logoURI,omitempty"`
	Tags     []string         `json:"tags,omitempty"`
	Verified bool             `json:"verified"`
	PriceUSD *decimal.Decimal `json:"priceUsd,omitempty"`
}

func (t TokenDescriptor) WithPrice(price decimal.Decimal) TokenDescriptor {
	t.PriceUSD = &price
	return t
}

// TokenBalance is one line of a wallet portfolio.
type TokenBalance struct {
	Mint     string           `json:"mint"`
	Account  string           `json:"account,omitempty"`
	Amount   string           `json:"amount"`
	Decimals uint8            `json:"decimals"`
	UIAmount decimal.Decimal  `json:"uiAmount"`
	Symbol   string           `json:"symbol,omitempty"`
	ValueUSD *decimal.Decimal `json:"valueUsd,omitempty"`
}

type Portfolio struct {
	Owner     string         `json:"owner"`
	Lamports  uint64         `json:"lamports"`
	Tokens    []TokenBalance `json:"tokens"`
	UpdatedAt int64          `json:"updatedAt"`
}

// PricePoint is a single sample of a chart series.
type PricePoint struct {
	UnixTime int64           `json:"unixTime"`
	Value    decimal.Decimal `json:"value"`
}
