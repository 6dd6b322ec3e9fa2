package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type SwapMode string

const (
	SwapModeExactIn  SwapMode = "ExactIn"
	SwapModeExactOut SwapMode = "ExactOut"
)

func ParseSwapMode(s string) (SwapMode, error) {
	switch SwapMode(s) {
	case SwapModeExactIn, "":
		return SwapModeExactIn, nil
	case SwapModeExactOut:
		return SwapModeExactOut, nil
	default:
		return "", NewError(KindInvalidMode, fmt.Sprintf("invalid swap mode %q: must be ExactIn or ExactOut", s), nil)
	}
}

// MaxSlippageBps is 100%.
const MaxSlippageBps = 10000

// SwapIntent is the user-authored trade request. Amount is in base units; for
// ExactIn it is the input amount, for ExactOut the amount the receiver must get.
type SwapIntent struct {
	InputMint      string
	OutputMint     string
	Amount         uint64
	Mode           SwapMode
	SlippageBps    uint16
	PlatformFeeBps uint16
	FeeAccount     string
}

func (i SwapIntent) Validate() error {
	if i.InputMint == "" || i.OutputMint == "" {
		return NewError(KindUnknownToken, "input and output tokens are required", nil)
	}
	if i.InputMint == i.OutputMint {
		return NewError(KindInvalidAmount, "input and output tokens must differ", nil)
	}
	if i.Amount == 0 {
		return NewError(KindInvalidAmount, "amount must be greater than zero", nil)
	}
	if i.SlippageBps > MaxSlippageBps {
		return NewError(KindInvalidSlippage, fmt.Sprintf("slippage %d bps is outside [0, %d]", i.SlippageBps, MaxSlippageBps), nil)
	}
	if i.PlatformFeeBps > MaxSlippageBps {
		return NewError(KindInvalidAmount, fmt.Sprintf("platform fee %d bps is outside [0, %d]", i.PlatformFeeBps, MaxSlippageBps), nil)
	}
	if i.PlatformFeeBps > 0 && i.FeeAccount == "" {
		return NewError(KindInvalidAddress, "a fee account is required when a platform fee is set", nil)
	}
	if i.Mode != SwapModeExactIn && i.Mode != SwapModeExactOut {
		return NewError(KindInvalidMode, fmt.Sprintf("invalid swap mode %q", i.Mode), nil)
	}
	return nil
}

// RouteLeg is one hop through a liquidity venue.
type RouteLeg struct {
	Venue      string `json:"venue"`
	AmmKey     string `json:"ammKey"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   uint64 `json:"inAmount,string"`
	OutAmount  uint64 `json:"outAmount,string"`
	FeeAmount  uint64 `json:"feeAmount,string"`
	FeeMint    string `json:"feeMint,omitempty"`
	Percent    uint8  `json:"percent"`
}

type PlatformFee struct {
	Amount uint64 `json:"amount,string"`
	FeeBps uint16 `json:"feeBps"`
}

// Quote is the aggregator's answer for a SwapIntent.
//
// ExactIn: InAmount is the supplied amount and OutAmountWithSlippage is the
// minimum received. ExactOut: OutAmount is fixed, InAmount is the maximum the
// payer must supply (slippage headroom included) and EstimatedInAmount is the
// aggregator's mid estimate.
type Quote struct {
	InputMint             string          `json:"inputMint"`
	OutputMint            string          `json:"outputMint"`
	InAmount              uint64          `json:"inAmount,string"`
	EstimatedInAmount     uint64          `json:"estimatedInAmount,string"`
	OutAmount             uint64          `json:"outAmount,string"`
	OutAmountWithSlippage uint64          `json:"outAmountWithSlippage,string"`
	PriceImpactPct        decimal.Decimal `json:"priceImpactPct"`
	Route                 []RouteLeg      `json:"route"`
	PlatformFee           *PlatformFee    `json:"platformFee,omitempty"`
	Mode                  SwapMode        `json:"swapMode"`
	SlippageBps           uint16          `json:"slippageBps"`
	ContextSlot           uint64          `json:"contextSlot,omitempty"`
	FetchedAt             time.Time       `json:"fetchedAt"`

	// Raw is the aggregator payload, echoed back verbatim when assembling
	// the transaction.
	Raw []byte `json:"-"`
}

func (q *Quote) ExpiresAt(validity time.Duration) time.Time {
	return q.FetchedAt.Add(validity)
}

func (q *Quote) IsStale(now time.Time, validity time.Duration) bool {
	return !now.Before(q.ExpiresAt(validity))
}

// TotalLegFees sums fees across legs whose fee is charged in mint.
func (q *Quote) TotalLegFees(mint string) uint64 {
	var total uint64
	for _, leg := range q.Route {
		if leg.FeeMint == mint {
			total += leg.FeeAmount
		}
	}
	return total
}

// Terms is what the user must see and accept before anything is signed.
type Terms struct {
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       uint64          `json:"inAmount,string"`
	OutAmount      uint64          `json:"outAmount,string"`
	MinimumOut     uint64          `json:"minimumOut,string"`
	MaximumIn      uint64          `json:"maximumIn,string"`
	PriceImpactPct decimal.Decimal `json:"priceImpactPct"`
	PlatformFee    uint64          `json:"platformFee,string"`
	RouteVenues    []string        `json:"routeVenues"`
	Recipient      string          `json:"recipient,omitempty"`
}

func (q *Quote) Terms(recipient string) Terms {
	t := Terms{
		InputMint:      q.InputMint,
		OutputMint:     q.OutputMint,
		InAmount:       q.InAmount,
		OutAmount:      q.OutAmount,
		MinimumOut:     q.OutAmountWithSlippage,
		MaximumIn:      q.InAmount,
		PriceImpactPct: q.PriceImpactPct,
		Recipient:      recipient,
	}
	if q.PlatformFee != nil {
		t.PlatformFee = q.PlatformFee.Amount
	}
	for _, leg := range q.Route {
		t.RouteVenues = append(t.RouteVenues, leg.Venue)
	}
	return t
}
