package submission

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/metrics"
)

// Broadcaster is the write side of the RPC pool.
type Broadcaster interface {
	Client() *rpc.Client
	Commitment() rpc.CommitmentType
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

type Options struct {
	PollInterval time.Duration
	// Timeout caps confirmation when the block height cannot be read.
	Timeout time.Duration
}

type Engine struct {
	rpc   Broadcaster
	opts  Options
	clock clock.Clock
}

func NewEngine(b Broadcaster, opts Options, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	return &Engine{rpc: b, opts: opts, clock: clk}
}

// Submit broadcasts the signed transaction to every healthy endpoint. The
// first accepted send wins.
func (e *Engine) Submit(ctx context.Context, signed *domain.SignedTransaction) (solana.Signature, error) {
	if signed == nil || signed.Tx == nil {
		return solana.Signature{}, domain.NewError(domain.KindInternal, "nothing to submit", nil)
	}

	sig, err := e.rpc.SendTransaction(ctx, signed.Tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		classified := blockchain.ClassifySendError(err)
		metrics.Submissions.WithLabelValues(string(domain.KindOf(classified))).Inc()
		log.Warn().Err(err).Str("signature", signed.Signature.String()).Msg("[submission] broadcast failed")
		return solana.Signature{}, classified
	}
	metrics.Submissions.WithLabelValues("ok").Inc()

	if !signed.Signature.IsZero() && !sig.Equals(signed.Signature) {
		log.Warn().
			Str("expected", signed.Signature.String()).
			Str("got", sig.String()).
			Msg("[submission] endpoint echoed a different signature")
		sig = signed.Signature
	}
	log.Info().Str("signature", sig.String()).Msg("[submission] transaction broadcast")
	return sig, nil
}

// Confirm polls until the signature reaches the pool's commitment, the
// network reports an execution error, or the blockhash expires.
func (e *Engine) Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error {
	start := e.clock.Now()
	err := e.confirm(ctx, sig, lastValidBlockHeight)

	status := "confirmed"
	if err != nil {
		status = string(domain.KindOf(err))
	}
	metrics.ConfirmationDuration.WithLabelValues(status).Observe(e.clock.Now().Sub(start).Seconds())
	return err
}

func (e *Engine) confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error {
	deadline := e.clock.Now().Add(e.opts.Timeout)
	target := e.rpc.Commitment()

	for {
		client := e.rpc.Client()

		done, err := e.checkStatus(ctx, client, sig, target)
		if done || err != nil {
			return err
		}

		if lastValidBlockHeight > 0 {
			height, err := client.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
			if err != nil {
				log.Debug().Err(err).Msg("[submission] block height unavailable")
			} else if height > lastValidBlockHeight {
				// One last look: it may have landed in the final valid block.
				if done, err := e.checkStatus(ctx, client, sig, target); done || err != nil {
					return err
				}
				log.Warn().
					Str("signature", sig.String()).
					Uint64("blockHeight", height).
					Uint64("lastValidBlockHeight", lastValidBlockHeight).
					Msg("[submission] blockhash expired before confirmation")
				return domain.NewError(domain.KindTransactionExpired, "", nil)
			}
		}

		if !e.clock.Now().Before(deadline) {
			log.Warn().Str("signature", sig.String()).Dur("timeout", e.opts.Timeout).Msg("[submission] confirmation timed out")
			return domain.NewError(domain.KindTransactionExpired, "", nil)
		}

		select {
		case <-ctx.Done():
			return domain.NewError(domain.KindNetworkError, "confirmation interrupted", ctx.Err())
		case <-e.clock.TickAfter(e.opts.PollInterval):
		}
	}
}

// checkStatus reports done when the signature reached target. An on-chain
// execution error is returned as TransactionRejectedOnChain.
func (e *Engine) checkStatus(ctx context.Context, client *rpc.Client, sig solana.Signature, target rpc.CommitmentType) (bool, error) {
	out, err := client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		if ctx.Err() != nil {
			return false, domain.NewError(domain.KindNetworkError, "confirmation interrupted", ctx.Err())
		}
		log.Debug().Err(err).Str("signature", sig.String()).Msg("[submission] status poll failed")
		return false, nil
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return false, nil
	}

	st := out.Value[0]
	if st.Err != nil {
		reason := blockchain.DescribeTxError(st.Err)
		log.Warn().Str("signature", sig.String()).Str("reason", reason).Msg("[submission] transaction reverted")
		return true, domain.NewError(domain.KindTransactionRejectedOnChain, reason, nil)
	}
	return reached(st.ConfirmationStatus, target), nil
}

func reached(status rpc.ConfirmationStatusType, target rpc.CommitmentType) bool {
	switch target {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return status != ""
	default:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	}
}
