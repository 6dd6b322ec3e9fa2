package payment

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/services/builder"
	"github.com/hxuan190/swap-engine/internal/units"
)

type Quoter interface {
	GetQuote(ctx context.Context, intent domain.SwapIntent) (*domain.Quote, error)
}

type SwapBuilder interface {
	Build(ctx context.Context, req builder.BuildRequest) (*domain.PendingTransaction, error)
}

type DecimalsLookup interface {
	Decimals(id string) (uint8, error)
}

// ExactOutRequest pays the merchant exactly Amount of OutputMint, funded by
// whatever InputMint amount the route needs.
type ExactOutRequest struct {
	Payer       string `json:"payer"`
	Merchant    string `json:"merchant"`
	InputMint   string `json:"inputMint"`
	OutputMint  string `json:"outputMint"`
	Amount      string `json:"amount"`
	SlippageBps uint16 `json:"slippageBps"`
}

type ExactOutResponse struct {
	// Transaction is the unsigned, base64 encoded swap.
	Transaction          string       `json:"transaction"`
	LastValidBlockHeight uint64       `json:"lastValidBlockHeight"`
	Quote                domain.Terms `json:"quote"`
}

// WithSwaps enables exact-out merchant payments.
func (s *Service) WithSwaps(quoter Quoter, b SwapBuilder, decimals DecimalsLookup) *Service {
	s.quoter = quoter
	s.builder = b
	s.decimals = decimals
	return s
}

// ExactOutPayment quotes an ExactOut swap and assembles it with the
// merchant's token account as destination.
func (s *Service) ExactOutPayment(ctx context.Context, req ExactOutRequest) (*ExactOutResponse, error) {
	if s.quoter == nil || s.builder == nil {
		return nil, domain.NewError(domain.KindInternal, "swaps are not enabled for payments", nil)
	}
	payer, err := solana.PublicKeyFromBase58(req.Payer)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidAddress, fmt.Sprintf("invalid payer %q", req.Payer), err)
	}
	merchant, err := solana.PublicKeyFromBase58(req.Merchant)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidRecipient, fmt.Sprintf("invalid merchant %q", req.Merchant), err)
	}
	if merchant.Equals(payer) {
		return nil, domain.NewError(domain.KindInvalidRecipient, "payer must differ from the merchant", nil)
	}
	outputMint := req.OutputMint
	if outputMint == "" {
		outputMint = domain.USDCMint
	}
	if s.decimals == nil {
		return nil, domain.NewError(domain.KindInternal, "token registry unavailable", nil)
	}
	decimals, err := s.decimals.Decimals(outputMint)
	if err != nil {
		return nil, err
	}
	amount, err := units.ParseToBaseUnits(req.Amount, decimals)
	if err != nil {
		return nil, err
	}

	intent := domain.SwapIntent{
		InputMint:   req.InputMint,
		OutputMint:  outputMint,
		Amount:      amount,
		Mode:        domain.SwapModeExactOut,
		SlippageBps: req.SlippageBps,
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	q, err := s.quoter.GetQuote(ctx, intent)
	if err != nil {
		return nil, err
	}

	pending, err := s.builder.Build(ctx, builder.BuildRequest{
		Quote:               q,
		Payer:               payer,
		WrapUnwrapSOL:       true,
		DestinationOverride: &merchant,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("payer", payer.String()).
		Str("merchant", merchant.String()).
		Uint64("outAmount", q.OutAmount).
		Uint64("inAmount", q.InAmount).
		Msg("[payment] exact-out payment assembled")

	return &ExactOutResponse{
		Transaction:          base64.StdEncoding.EncodeToString(pending.Payload),
		LastValidBlockHeight: pending.LastValidBlockHeight,
		Quote:                q.Terms(merchant.String()),
	}, nil
}
