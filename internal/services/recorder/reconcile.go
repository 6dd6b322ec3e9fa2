package recorder

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/domain"
)

// maxStatusBatch is the getSignatureStatuses limit.
const maxStatusBatch = 256

type RPCProvider interface {
	Client() *rpc.Client
}

type ReconcileOptions struct {
	// MinAge skips records young enough to still be confirming.
	MinAge time.Duration
	// ExpireAfter marks records the network never saw as failed.
	ExpireAfter time.Duration
	Limit       int
}

func DefaultReconcileOptions() ReconcileOptions {
	return ReconcileOptions{
		MinAge:      2 * time.Minute,
		ExpireAfter: 10 * time.Minute,
		Limit:       500,
	}
}

type ReconcileReport struct {
	Checked   int
	Confirmed int
	Failed    int
	Expired   int
	Pending   int
}

// Reconcile resolves records left pending after confirmation gave up, using
// the chain as the source of truth.
func (r *Recorder) Reconcile(ctx context.Context, chain RPCProvider, opts ReconcileOptions) (ReconcileReport, error) {
	var report ReconcileReport
	now := r.clock.Now()

	pending, err := r.store.ListPendingTransactions(ctx, now.Add(-opts.MinAge), opts.Limit)
	if err != nil {
		return report, persistenceError(err)
	}

	for start := 0; start < len(pending); start += maxStatusBatch {
		batch := pending[start:min(start+maxStatusBatch, len(pending))]

		sigs := make([]solana.Signature, 0, len(batch))
		recs := make([]*domain.TransactionRecord, 0, len(batch))
		for _, rec := range batch {
			sig, err := solana.SignatureFromBase58(rec.Signature)
			if err != nil {
				log.Warn().Str("signature", rec.Signature).Msg("[recorder] skipping malformed signature")
				continue
			}
			sigs = append(sigs, sig)
			recs = append(recs, rec)
		}
		if len(sigs) == 0 {
			continue
		}

		out, err := chain.Client().GetSignatureStatuses(ctx, true, sigs...)
		if err != nil {
			return report, domain.NewError(domain.KindNetworkError, "", err)
		}

		for i, rec := range recs {
			report.Checked++
			var st *rpc.SignatureStatusesResult
			if out != nil && i < len(out.Value) {
				st = out.Value[i]
			}

			var (
				status domain.TxStatus
				reason string
			)
			switch {
			case st != nil && st.Err != nil:
				status, reason = domain.TxStatusFailed, blockchain.DescribeTxError(st.Err)
				report.Failed++
			case st != nil && (st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				st.ConfirmationStatus == rpc.ConfirmationStatusFinalized):
				status = domain.TxStatusConfirmed
				report.Confirmed++
			case st == nil && now.Sub(rec.CreatedAt) >= opts.ExpireAfter:
				status, reason = domain.TxStatusFailed, "transaction expired before it landed"
				report.Expired++
			default:
				report.Pending++
				continue
			}

			if err := r.UpdateStatus(ctx, rec.Signature, status, reason); err != nil {
				log.Warn().Err(err).Str("signature", rec.Signature).Msg("[recorder] reconcile update failed")
			}
		}
	}

	log.Info().
		Int("checked", report.Checked).
		Int("confirmed", report.Confirmed).
		Int("failed", report.Failed).
		Int("expired", report.Expired).
		Int("pending", report.Pending).
		Msg("[recorder] reconciled pending transactions")
	return report, nil
}

// Run reconciles on every interval until ctx is done.
func (r *Recorder) Run(ctx context.Context, chain RPCProvider, interval time.Duration, opts ReconcileOptions) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.clock.TickAfter(interval):
		}
		if _, err := r.Reconcile(ctx, chain, opts); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("[recorder] reconcile failed")
		}
	}
}
