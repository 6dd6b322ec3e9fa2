package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/swap-engine/internal/adapters/blockchain/rpctest"
	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/domain"
)

var start = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type staticRPC struct{ client *rpc.Client }

func (s staticRPC) Client() *rpc.Client { return s.client }

type tokenTable map[string]domain.TokenDescriptor

func (t tokenTable) Lookup(id string) (domain.TokenDescriptor, error) {
	if d, ok := t[id]; ok {
		return d, nil
	}
	return domain.TokenDescriptor{}, domain.ErrNotFound
}

type priceTable map[string]decimal.Decimal

func (p priceTable) GetPrices(_ context.Context, ids []string, _ string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, id := range ids {
		if v, ok := p[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func tokenAccount(mint, amount string, decimals uint8) map[string]any {
	return map[string]any{
		"pubkey": solana.NewWallet().PublicKey().String(),
		"account": map[string]any{
			"lamports":   2039280,
			"owner":      common.TokenProgramID.String(),
			"executable": false,
			"rentEpoch":  0,
			"data": map[string]any{
				"program": "spl-token",
				"space":   165,
				"parsed": map[string]any{
					"type": "account",
					"info": map[string]any{
						"mint":  mint,
						"owner": "ignored",
						"tokenAmount": map[string]any{
							"amount":   amount,
							"decimals": decimals,
						},
					},
				},
			},
		},
	}
}

// chainWith serves a wallet holding lamports plus the given legacy and
// Token-2022 accounts.
func chainWith(t *testing.T, lamports uint64, legacy, ext []any) *rpctest.Server {
	srv := rpctest.NewServer(t)
	srv.Result("getBalance", rpctest.Context(1, lamports))
	srv.Handle("getTokenAccountsByOwner", func(params json.RawMessage) (any, *rpctest.Error) {
		var args []json.RawMessage
		if err := json.Unmarshal(params, &args); err != nil || len(args) < 2 {
			return nil, &rpctest.Error{Code: -32602, Message: "bad params"}
		}
		var filter struct {
			ProgramID string `json:"programId"`
		}
		_ = json.Unmarshal(args[1], &filter)
		if filter.ProgramID == common.Token2022ID.String() {
			return rpctest.Context(1, ext), nil
		}
		return rpctest.Context(1, legacy), nil
	})
	return srv
}

func TestFetch(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	bonk := solana.NewWallet().PublicKey().String()
	pyusd := solana.NewWallet().PublicKey().String()

	srv := chainWith(t, 2_500_000_000,
		[]any{
			tokenAccount(domain.USDCMint, "1500000", 6),
			tokenAccount(domain.USDCMint, "500000", 6),
			tokenAccount(bonk, "0", 5),
		},
		[]any{tokenAccount(pyusd, "42000000", 6)},
	)

	reader := NewReader(
		staticRPC{rpc.New(srv.URL)},
		tokenTable{domain.USDCMint: {Address: domain.USDCMint, Symbol: "USDC", Decimals: 6}},
		priceTable{domain.WrappedSOLMint: decimal.NewFromInt(150), domain.USDCMint: decimal.NewFromInt(1)},
		clock.NewTestClock(start),
	)

	p, err := reader.Fetch(context.Background(), owner)
	require.NoError(t, err)
	require.Equal(t, owner.String(), p.Owner)
	require.Equal(t, uint64(2_500_000_000), p.Lamports)
	require.Equal(t, start.Unix(), p.UpdatedAt)

	// Native first, then one line per non-empty mint.
	require.Len(t, p.Tokens, 3)
	require.Equal(t, domain.WrappedSOLMint, p.Tokens[0].Mint)
	require.Equal(t, "SOL", p.Tokens[0].Symbol)
	require.True(t, p.Tokens[0].UIAmount.Equal(decimal.RequireFromString("2.5")))
	require.NotNil(t, p.Tokens[0].ValueUSD)
	require.True(t, p.Tokens[0].ValueUSD.Equal(decimal.NewFromInt(375)))

	byMint := map[string]domain.TokenBalance{}
	for _, b := range p.Tokens[1:] {
		byMint[b.Mint] = b
	}
	usdc := byMint[domain.USDCMint]
	require.Equal(t, "2000000", usdc.Amount)
	require.Equal(t, "USDC", usdc.Symbol)
	require.Empty(t, usdc.Account)
	require.True(t, usdc.UIAmount.Equal(decimal.NewFromInt(2)))

	ext := byMint[pyusd]
	require.Equal(t, "42000000", ext.Amount)
	require.NotEmpty(t, ext.Account)
	require.Nil(t, ext.ValueUSD)

	require.NotContains(t, byMint, bonk)
}

func TestFetchRPCFailure(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.Handle("getBalance", func(json.RawMessage) (any, *rpctest.Error) {
		return nil, &rpctest.Error{Code: -32005, Message: "node is behind"}
	})
	srv.Result("getTokenAccountsByOwner", rpctest.Context(1, []any{}))

	reader := NewReader(staticRPC{rpc.New(srv.URL)}, nil, nil, nil)
	_, err := reader.Fetch(context.Background(), solana.NewWallet().PublicKey())
	require.ErrorIs(t, err, domain.ErrNetwork)
}

func TestParseTokenAccount(t *testing.T) {
	pk := solana.NewWallet().PublicKey()

	_, ok := parseTokenAccount(pk, nil)
	require.False(t, ok)

	_, ok = parseTokenAccount(pk, json.RawMessage(`{"parsed":{"info":{"mint":"x","tokenAmount":{"amount":"abc"}}}}`))
	require.False(t, ok)

	// Amounts beyond u64 cannot exist in an SPL account.
	_, ok = parseTokenAccount(pk, json.RawMessage(`{"parsed":{"info":{"mint":"x","tokenAmount":{"amount":"18446744073709551616","decimals":0}}}}`))
	require.False(t, ok)

	b, ok := parseTokenAccount(pk, json.RawMessage(`{"parsed":{"info":{"mint":"x","tokenAmount":{"amount":"18446744073709551615","decimals":0}}}}`))
	require.True(t, ok)
	require.Equal(t, "18446744073709551615", b.Amount)
	require.Equal(t, pk.String(), b.Account)
}

func TestMergeByMintBeyondU64(t *testing.T) {
	merged := mergeByMint([]domain.TokenBalance{
		{Mint: "b", Amount: "18446744073709551615"},
		{Mint: "b", Amount: "1"},
		{Mint: "a", Amount: "7"},
	})
	require.Len(t, merged, 2)
	require.Equal(t, "a", merged[0].Mint)
	require.Equal(t, "18446744073709551616", merged[1].Amount)
}

type countingFetcher struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (f *countingFetcher) Fetch(_ context.Context, owner solana.PublicKey) (*domain.Portfolio, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, errors.New("rpc down")
	}
	return &domain.Portfolio{Owner: owner.String(), Lamports: uint64(f.calls.Load())}, nil
}

func TestWatcherPokeAndTimer(t *testing.T) {
	defer leaktest.Check(t)()

	clk := clock.NewTestClock(start)
	fetcher := &countingFetcher{}
	updates := make(chan *domain.Portfolio, 8)
	w := NewWatcher(fetcher, time.Minute, clk, func(p *domain.Portfolio) { updates <- p })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	wallet := solana.NewWallet().PublicKey()
	require.Nil(t, w.Latest(wallet.String()))

	w.Poke(wallet.String())
	select {
	case p := <-updates:
		require.Equal(t, wallet.String(), p.Owner)
	case <-time.After(5 * time.Second):
		t.Fatal("poke did not refresh")
	}
	require.Eventually(t, func() bool { return w.Latest(wallet.String()) != nil }, time.Second, 10*time.Millisecond)

	clk.SetTime(start.Add(time.Minute))
	select {
	case p := <-updates:
		require.Equal(t, wallet.String(), p.Owner)
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not refresh")
	}
	require.Equal(t, int32(2), fetcher.calls.Load())

	w.Unwatch(wallet)
	require.Nil(t, w.Latest(wallet.String()))
}

func TestWatcherKeepsLastOnFailure(t *testing.T) {
	fetcher := &countingFetcher{}
	w := NewWatcher(fetcher, time.Minute, clock.NewTestClock(start), nil)
	owner := solana.NewWallet().PublicKey()

	first, err := w.Get(context.Background(), owner)
	require.NoError(t, err)

	fetcher.fail.Store(true)
	_, err = w.refresh(context.Background(), owner, "timer")
	require.Error(t, err)
	require.Same(t, first, w.Latest(owner.String()))

	cached, err := w.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Same(t, first, cached)
	require.Equal(t, int32(2), fetcher.calls.Load())
}

func TestPokeIgnoresInvalidWallet(t *testing.T) {
	w := NewWatcher(&countingFetcher{}, time.Minute, clock.NewTestClock(start), nil)
	w.Poke("not-a-key")
	require.Empty(t, w.owners())
}
