package recorder

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/adapters/blockchain/rpctest"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/repository"
)

var start = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newRecorder(t *testing.T) (*Recorder, *repository.DB, *clock.TestClock) {
	t.Helper()
	db, err := repository.Open(&config.DatabaseConfig{
		Driver: config.DriverSqlite,
		File:   filepath.Join(t.TempDir(), "swap.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clk := clock.NewTestClock(start)
	return New(db, clk), db, clk
}

func swapOutcome(wallet, sig string) domain.SwapOutcome {
	return domain.SwapOutcome{
		Kind:          domain.TxKindSwap,
		WalletAddress: wallet,
		Signature:     sig,
		Status:        domain.TxStatusPending,
		Quote: &domain.Quote{
			InputMint:  domain.WrappedSOLMint,
			OutputMint: domain.USDCMint,
			InAmount:   1_500_000_000,
			OutAmount:  225_000_000,
		},
	}
}

func randomSig() string {
	var sig solana.Signature
	copy(sig[:], solana.NewWallet().PublicKey().Bytes())
	return sig.String()
}

func TestRecordOncePerSignature(t *testing.T) {
	r, _, _ := newRecorder(t)
	ctx := context.Background()
	wallet := solana.NewWallet().PublicKey().String()
	sig := randomSig()

	first, err := r.Record(ctx, swapOutcome(wallet, sig))
	require.NoError(t, err)
	require.Equal(t, "1500000000", first.InputAmount)
	require.Equal(t, "225000000", first.OutputAmount)

	second, err := r.Record(ctx, swapOutcome(wallet, sig))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	history, err := r.QueryHistory(ctx, wallet, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestPaymentOutcome(t *testing.T) {
	r, _, _ := newRecorder(t)
	wallet := solana.NewWallet().PublicKey().String()
	merchant := solana.NewWallet().PublicKey().String()

	outcome := swapOutcome(wallet, randomSig())
	outcome.Kind = domain.TxKindPayment
	outcome.Recipient = merchant
	outcome.PaymentMint = domain.USDCMint
	outcome.PaymentAmount = 10_000_000

	rec, err := r.Record(context.Background(), outcome)
	require.NoError(t, err)
	require.Equal(t, domain.TxKindPayment, rec.Kind)
	require.Equal(t, "10000000", rec.PaymentAmount)
	require.Equal(t, merchant, rec.Recipient)
}

func TestUpdateStatusTwiceLeavesOneConfirmedRecord(t *testing.T) {
	r, _, _ := newRecorder(t)
	ctx := context.Background()
	wallet := solana.NewWallet().PublicKey().String()
	sig := randomSig()

	_, err := r.Record(ctx, swapOutcome(wallet, sig))
	require.NoError(t, err)

	require.NoError(t, r.UpdateStatus(ctx, sig, domain.TxStatusConfirmed, ""))
	require.NoError(t, r.UpdateStatus(ctx, sig, domain.TxStatusConfirmed, ""))

	history, err := r.QueryHistory(ctx, wallet, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.TxStatusConfirmed, history[0].Status)

	err = r.UpdateStatus(ctx, randomSig(), domain.TxStatusConfirmed, "")
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = r.UpdateStatus(ctx, sig, domain.TxStatus("settled"), "")
	require.Error(t, err)
}

func TestQueryHistoryOrderingAndValidation(t *testing.T) {
	r, _, clk := newRecorder(t)
	ctx := context.Background()
	wallet := solana.NewWallet().PublicKey().String()

	var sigs []string
	for i := 0; i < 3; i++ {
		sig := randomSig()
		sigs = append(sigs, sig)
		_, err := r.Record(ctx, swapOutcome(wallet, sig))
		require.NoError(t, err)
		clk.SetTime(clk.Now().Add(time.Minute))
	}

	history, err := r.QueryHistory(ctx, wallet, 2, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, sigs[2], history[0].Signature)
	require.Equal(t, sigs[1], history[1].Signature)

	empty, err := r.QueryHistory(ctx, solana.NewWallet().PublicKey().String(), 10, 0)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	_, err = r.QueryHistory(ctx, "not-a-wallet", 10, 0)
	require.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestReconcile(t *testing.T) {
	r, db, clk := newRecorder(t)
	ctx := context.Background()
	wallet := solana.NewWallet().PublicKey().String()

	landed, reverted, vanished, young := randomSig(), randomSig(), randomSig(), randomSig()
	for _, sig := range []string{landed, reverted, vanished} {
		_, err := r.Record(ctx, swapOutcome(wallet, sig))
		require.NoError(t, err)
	}
	clk.SetTime(start.Add(15 * time.Minute))
	_, err := r.Record(ctx, swapOutcome(wallet, young))
	require.NoError(t, err)

	srv := rpctest.NewServer(t)
	srv.Handle("getSignatureStatuses", func(params json.RawMessage) (any, *rpctest.Error) {
		var args []json.RawMessage
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, &rpctest.Error{Code: -32602, Message: err.Error()}
		}
		var requested []string
		if err := json.Unmarshal(args[0], &requested); err != nil {
			return nil, &rpctest.Error{Code: -32602, Message: err.Error()}
		}
		out := make([]any, 0, len(requested))
		for _, sig := range requested {
			switch sig {
			case landed:
				out = append(out, map[string]any{"slot": 5, "err": nil, "confirmationStatus": "finalized"})
			case reverted:
				out = append(out, map[string]any{"slot": 5, "err": map[string]any{"InstructionError": []any{1, map[string]any{"Custom": 6001}}}, "confirmationStatus": "confirmed"})
			default:
				out = append(out, nil)
			}
		}
		return rpctest.Context(10, out), nil
	})
	pool, err := blockchain.NewPool([]string{srv.URL}, 1, rpc.CommitmentConfirmed)
	require.NoError(t, err)

	report, err := r.Reconcile(ctx, pool, DefaultReconcileOptions())
	require.NoError(t, err)
	require.Equal(t, ReconcileReport{Checked: 3, Confirmed: 1, Failed: 1, Expired: 1}, report)

	rec, err := db.GetTransactionBySignature(ctx, landed)
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusConfirmed, rec.Status)

	rec, err = db.GetTransactionBySignature(ctx, reverted)
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusFailed, rec.Status)
	require.Contains(t, rec.FailureReason, "slippage")

	rec, err = db.GetTransactionBySignature(ctx, vanished)
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusFailed, rec.Status)

	rec, err = db.GetTransactionBySignature(ctx, young)
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusPending, rec.Status)
}
