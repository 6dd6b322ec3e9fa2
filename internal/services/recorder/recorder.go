package recorder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/repository"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Store is the slice of the repository the recorder writes through.
type Store interface {
	RecordTransaction(ctx context.Context, rec *domain.TransactionRecord) error
	GetTransactionBySignature(ctx context.Context, sig string) (*domain.TransactionRecord, error)
	UpdateTransactionStatus(ctx context.Context, sig string, status domain.TxStatus, reason string, now time.Time) (bool, error)
	ListTransactions(ctx context.Context, wallet string, limit, offset int) ([]*domain.TransactionRecord, error)
	ListPendingTransactions(ctx context.Context, cutoff time.Time, limit int) ([]*domain.TransactionRecord, error)
}

type Recorder struct {
	store Store
	clock clock.Clock
}

func New(store Store, clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Recorder{store: store, clock: clk}
}

func persistenceError(err error) error {
	return domain.NewError(domain.KindPersistenceError, "", err)
}

// Record inserts the outcome of an attempt. Recording the same signature
// twice returns the existing row instead of a duplicate.
func (r *Recorder) Record(ctx context.Context, outcome domain.SwapOutcome) (*domain.TransactionRecord, error) {
	if outcome.WalletAddress == "" {
		return nil, domain.NewError(domain.KindInvalidAddress, "wallet address is required", nil)
	}
	status := outcome.Status
	if status == "" {
		status = domain.TxStatusPending
	}
	if !status.Valid() {
		return nil, domain.NewError(domain.KindInvalidAmount, fmt.Sprintf("invalid status %q", status), nil)
	}

	now := r.clock.Now()
	rec := &domain.TransactionRecord{
		ID:            uuid.New(),
		WalletAddress: outcome.WalletAddress,
		Signature:     outcome.Signature,
		Status:        status,
		Kind:          outcome.Kind,
		Recipient:     outcome.Recipient,
		PaymentMint:   outcome.PaymentMint,
		FailureReason: outcome.FailureReason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if rec.Kind == "" {
		rec.Kind = domain.TxKindSwap
	}
	if outcome.PaymentAmount > 0 {
		rec.PaymentAmount = strconv.FormatUint(outcome.PaymentAmount, 10)
	}
	if q := outcome.Quote; q != nil {
		rec.InputMint = q.InputMint
		rec.OutputMint = q.OutputMint
		rec.InputAmount = strconv.FormatUint(q.InAmount, 10)
		rec.OutputAmount = strconv.FormatUint(q.OutAmount, 10)
	}
	return r.Insert(ctx, rec)
}

// Insert stores a fully formed record.
func (r *Recorder) Insert(ctx context.Context, rec *domain.TransactionRecord) (*domain.TransactionRecord, error) {
	err := r.store.RecordTransaction(ctx, rec)
	if errors.Is(err, repository.ErrDuplicate) && rec.Signature != "" {
		existing, getErr := r.store.GetTransactionBySignature(ctx, rec.Signature)
		if getErr != nil {
			return nil, persistenceError(getErr)
		}
		log.Debug().Str("signature", rec.Signature).Msg("[recorder] transaction already recorded")
		return existing, nil
	}
	if err != nil {
		return nil, persistenceError(err)
	}
	log.Debug().
		Str("signature", rec.Signature).
		Str("wallet", rec.WalletAddress).
		Str("status", string(rec.Status)).
		Msg("[recorder] transaction recorded")
	return rec, nil
}

// UpdateStatus moves a record to status. Repeating an update is a no-op.
func (r *Recorder) UpdateStatus(ctx context.Context, sig string, status domain.TxStatus, reason string) error {
	if !status.Valid() {
		return domain.NewError(domain.KindInvalidAmount, fmt.Sprintf("invalid status %q", status), nil)
	}
	updated, err := r.store.UpdateTransactionStatus(ctx, sig, status, reason, r.clock.Now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.NewError(domain.KindNotFound, fmt.Sprintf("no transaction with signature %s", sig), err)
	case err != nil:
		return persistenceError(err)
	}
	if updated {
		log.Info().Str("signature", sig).Str("status", string(status)).Msg("[recorder] status updated")
	}
	return nil
}

// QueryHistory returns a wallet's records, newest first.
func (r *Recorder) QueryHistory(ctx context.Context, wallet string, limit, offset int) ([]*domain.TransactionRecord, error) {
	if _, err := solana.PublicKeyFromBase58(wallet); err != nil {
		return nil, domain.NewError(domain.KindInvalidAddress, fmt.Sprintf("invalid wallet address %q", wallet), err)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)
	offset = max(offset, 0)

	recs, err := r.store.ListTransactions(ctx, wallet, limit, offset)
	if err != nil {
		return nil, persistenceError(err)
	}
	if recs == nil {
		recs = []*domain.TransactionRecord{}
	}
	return recs, nil
}
