package builder

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/adapters/aggregator"
	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/metrics"
)

// SwapAssembler turns an aggregator quote into a serialized transaction.
type SwapAssembler interface {
	Swap(ctx context.Context, req aggregator.SwapRequest) (*aggregator.SwapResponse, error)
}

// RPCProvider hands out the RPC client to use for reads.
type RPCProvider interface {
	Client() *rpc.Client
}

type Options struct {
	// QuoteValidity is how long after fetching a quote may still be built,
	// signed or submitted.
	QuoteValidity time.Duration
	// FeeAccount receives the platform fee when the quote carries one and
	// the request names no account of its own.
	FeeAccount string
	Simulate   bool
}

type BuildRequest struct {
	Quote         *domain.Quote
	Payer         solana.PublicKey
	WrapUnwrapSOL bool
	// DestinationOverride is the wallet that must receive the output
	// instead of the payer (merchant payments).
	DestinationOverride *solana.PublicKey
	// FeeAccount overrides Options.FeeAccount for this build.
	FeeAccount string
}

type Builder struct {
	agg   SwapAssembler
	rpc   RPCProvider
	opts  Options
	clock clock.Clock
}

func NewBuilder(agg SwapAssembler, rpcProvider RPCProvider, opts Options, clk clock.Clock) *Builder {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Builder{agg: agg, rpc: rpcProvider, opts: opts, clock: clk}
}

// CheckFresh fails with QuoteExpired once the quote's validity window has
// elapsed.
func (b *Builder) CheckFresh(q *domain.Quote) error {
	if q == nil {
		return domain.NewError(domain.KindInternal, "no quote to build from", nil)
	}
	if b.opts.QuoteValidity > 0 && q.IsStale(b.clock.Now(), b.opts.QuoteValidity) {
		return domain.NewError(domain.KindQuoteExpired, "", nil)
	}
	return nil
}

// Build asks the aggregator to assemble the swap for req.Payer and decodes
// the result into a PendingTransaction.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*domain.PendingTransaction, error) {
	start := b.clock.Now()
	pending, err := b.build(ctx, req)
	metrics.BuildDuration.Observe(b.clock.Now().Sub(start).Seconds())
	if err != nil {
		metrics.BuildRequests.WithLabelValues(string(domain.KindOf(err))).Inc()
		return nil, err
	}
	metrics.BuildRequests.WithLabelValues("ok").Inc()
	return pending, nil
}

func (b *Builder) build(ctx context.Context, req BuildRequest) (*domain.PendingTransaction, error) {
	if err := b.CheckFresh(req.Quote); err != nil {
		return nil, err
	}
	if req.Payer.IsZero() {
		return nil, domain.NewError(domain.KindInvalidAddress, "payer address is required", nil)
	}
	if len(req.Quote.Raw) == 0 {
		return nil, domain.NewError(domain.KindInternal, "quote has no aggregator payload", nil)
	}

	swapReq := aggregator.SwapRequest{
		QuoteResponse:             req.Quote.Raw,
		UserPublicKey:             req.Payer.String(),
		WrapAndUnwrapSol:          req.WrapUnwrapSOL,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: "auto",
	}
	if req.Quote.PlatformFee != nil && req.Quote.PlatformFee.FeeBps > 0 {
		feeAccount := req.FeeAccount
		if feeAccount == "" {
			feeAccount = b.opts.FeeAccount
		}
		if feeAccount == "" {
			return nil, domain.NewError(domain.KindInternal, "platform fee quoted without a fee account", nil)
		}
		swapReq.FeeAccount = feeAccount
	}

	recipient := req.Payer
	if req.DestinationOverride != nil {
		dest, err := b.resolveDestination(ctx, req.Payer, *req.DestinationOverride, req.Quote.OutputMint)
		if err != nil {
			return nil, err
		}
		recipient = *req.DestinationOverride
		swapReq.DestinationTokenAccount = dest.String()
	}

	resp, err := b.agg.Swap(ctx, swapReq)
	if err != nil {
		return nil, err
	}

	payload, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, domain.NewError(domain.KindNetworkError, "aggregator returned an undecodable transaction", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(payload))
	if err != nil {
		return nil, domain.NewError(domain.KindNetworkError, "aggregator returned an undecodable transaction", err)
	}

	// The fee payer is always the first account key.
	if len(tx.Message.AccountKeys) == 0 || !tx.Message.AccountKeys[0].Equals(req.Payer) {
		return nil, domain.NewError(domain.KindNetworkError, "aggregator assembled the transaction for a different payer", nil)
	}

	log.Debug().
		Str("payer", req.Payer.String()).
		Str("recipient", recipient.String()).
		Uint64("lastValidBlockHeight", resp.LastValidBlockHeight).
		Msg("[builder] assembled swap transaction")

	return &domain.PendingTransaction{
		Tx:                   tx,
		Payload:              payload,
		Blockhash:            tx.Message.RecentBlockhash,
		LastValidBlockHeight: resp.LastValidBlockHeight,
		Payer:                req.Payer,
		Recipient:            recipient,
		Quote:                req.Quote,
		BuiltAt:              b.clock.Now(),
	}, nil
}

// resolveDestination derives the recipient's associated token account for
// mint and checks that it exists and is owned by a token program.
func (b *Builder) resolveDestination(ctx context.Context, payer, owner solana.PublicKey, mint string) (solana.PublicKey, error) {
	if owner.IsZero() {
		return solana.PublicKey{}, domain.NewError(domain.KindInvalidRecipient, "recipient address is required", nil)
	}
	if owner.Equals(payer) {
		return solana.PublicKey{}, domain.NewError(domain.KindInvalidRecipient, "recipient must differ from the payer", nil)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return solana.PublicKey{}, domain.NewError(domain.KindInvalidAddress, fmt.Sprintf("invalid output mint %q", mint), err)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mintKey)
	if err != nil {
		return solana.PublicKey{}, domain.NewError(domain.KindInvalidRecipient, "cannot derive recipient token account", err)
	}

	info, err := b.rpc.Client().GetAccountInfo(ctx, ata)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return solana.PublicKey{}, domain.NewError(domain.KindInvalidRecipient,
				fmt.Sprintf("recipient has no token account for %s", mint), err)
		}
		return solana.PublicKey{}, domain.NewError(domain.KindNetworkError, "", err)
	}
	if info == nil || info.Value == nil {
		return solana.PublicKey{}, domain.NewError(domain.KindInvalidRecipient,
			fmt.Sprintf("recipient has no token account for %s", mint), nil)
	}
	if owner := info.Value.Owner; !owner.Equals(common.TokenProgramID) && !owner.Equals(common.Token2022ID) {
		return solana.PublicKey{}, domain.NewError(domain.KindInvalidRecipient, "recipient token account is not owned by a token program", nil)
	}
	return ata, nil
}
