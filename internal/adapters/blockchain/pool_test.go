package blockchain

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/swap-engine/internal/adapters/blockchain/rpctest"
	"github.com/hxuan190/swap-engine/internal/domain"
)

func signedTransfer(t *testing.T) *solana.Transaction {
	t.Helper()
	payer := solana.NewWallet()
	to := solana.NewWallet().PublicKey()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, payer.PublicKey(), to).Build()},
		solana.Hash{7},
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

func TestPoolRequiresEndpoints(t *testing.T) {
	_, err := NewPool(nil, 1, "")
	require.ErrorIs(t, err, ErrNoEndpoints)
}

func TestCheckHealthRanksHealthyFirst(t *testing.T) {
	down := rpctest.NewServer(t).Handle("getHealth", func(json.RawMessage) (any, *rpctest.Error) {
		return nil, &rpctest.Error{Code: -32005, Message: "Node is behind"}
	})
	up := rpctest.NewServer(t).Result("getHealth", "ok")

	pool, err := NewPool([]string{down.URL, up.URL}, 2, rpc.CommitmentConfirmed)
	require.NoError(t, err)

	pool.CheckHealth(context.Background())

	eps := pool.Endpoints()
	require.Equal(t, up.URL, eps[0].URL)
	require.True(t, eps[0].Healthy)
	require.False(t, eps[1].Healthy)
	require.Len(t, pool.healthy(), 1)
}

func TestSendTransactionFirstSuccessWins(t *testing.T) {
	sig := solana.Signature{9, 9, 9}
	failing := rpctest.NewServer(t).Handle("sendTransaction", func(json.RawMessage) (any, *rpctest.Error) {
		return nil, &rpctest.Error{Code: -32603, Message: "internal"}
	})
	ok := rpctest.NewServer(t).Result("sendTransaction", sig.String())

	pool, err := NewPool([]string{failing.URL, ok.URL}, 2, rpc.CommitmentConfirmed)
	require.NoError(t, err)

	got, err := pool.SendTransaction(context.Background(), signedTransfer(t), rpc.TransactionOpts{SkipPreflight: true})
	require.NoError(t, err)
	require.Equal(t, sig, got)
}

func TestSendTransactionClassification(t *testing.T) {
	tests := []struct {
		name string
		err  *rpctest.Error
		kind domain.ErrorKind
	}{
		{"preflight revert", &rpctest.Error{Code: -32002, Message: "Transaction simulation failed: Error processing Instruction 2: custom program error: 0x1771"}, domain.KindTransactionRejectedOnChain},
		{"unknown blockhash", &rpctest.Error{Code: -32002, Message: "Transaction simulation failed: Blockhash not found"}, domain.KindTransactionExpired},
		{"node error", &rpctest.Error{Code: -32603, Message: "internal"}, domain.KindNetworkError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := rpctest.NewServer(t).Handle("sendTransaction", func(json.RawMessage) (any, *rpctest.Error) {
				return nil, tc.err
			})
			pool, err := NewPool([]string{srv.URL}, 1, rpc.CommitmentConfirmed)
			require.NoError(t, err)

			_, err = pool.SendTransaction(context.Background(), signedTransfer(t), rpc.TransactionOpts{})
			require.Error(t, err)
			require.Equal(t, tc.kind, domain.KindOf(ClassifySendError(err)))
		})
	}
}

func TestReadableFailure(t *testing.T) {
	require.Equal(t, "price moved beyond the slippage tolerance", DescribeTxError(map[string]any{"InstructionError": []any{2, map[string]any{"Custom": 6001}}}))
	require.Equal(t, "insufficient funds", DescribeTxError("insufficient lamports"))
	require.Empty(t, DescribeTxError(nil))
}

func TestBlockhashCacheFreshness(t *testing.T) {
	first := solana.Hash{1}
	srv := rpctest.NewServer(t).Result("getLatestBlockhash", rpctest.LatestBlockhash(first.String(), 100))

	pool, err := NewPool([]string{srv.URL}, 1, rpc.CommitmentConfirmed)
	require.NoError(t, err)

	start := time.Unix(1_700_000_000, 0)
	clk := clock.NewTestClock(start)
	cache := NewBlockhashCache(pool, clk)

	hash, lastValid, err := cache.GetBlockhash(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, hash)
	require.Equal(t, uint64(100), lastValid)
	require.Equal(t, 1, srv.Calls("getLatestBlockhash"))

	clk.SetTime(start.Add(time.Second))
	_, _, err = cache.GetBlockhash(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, srv.Calls("getLatestBlockhash"))

	second := solana.Hash{2}
	srv.Result("getLatestBlockhash", rpctest.LatestBlockhash(second.String(), 200))
	clk.SetTime(start.Add(3 * time.Second))
	hash, lastValid, err = cache.GetBlockhash(context.Background())
	require.NoError(t, err)
	require.Equal(t, second, hash)
	require.Equal(t, uint64(200), lastValid)
}

func TestBlockhashCacheFallsBackToStale(t *testing.T) {
	first := solana.Hash{1}
	srv := rpctest.NewServer(t).Result("getLatestBlockhash", rpctest.LatestBlockhash(first.String(), 100))
	pool, err := NewPool([]string{srv.URL}, 1, rpc.CommitmentConfirmed)
	require.NoError(t, err)

	start := time.Unix(1_700_000_000, 0)
	clk := clock.NewTestClock(start)
	cache := NewBlockhashCache(pool, clk)
	_, _, err = cache.GetBlockhash(context.Background())
	require.NoError(t, err)

	srv.Handle("getLatestBlockhash", func(json.RawMessage) (any, *rpctest.Error) {
		return nil, &rpctest.Error{Code: -32603, Message: "down"}
	})
	clk.SetTime(start.Add(10 * time.Second))

	hash, _, err := cache.GetBlockhash(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, hash)
}
