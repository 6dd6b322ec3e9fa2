package builder

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/swap-engine/internal/adapters/aggregator"
	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/adapters/blockchain/rpctest"
	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/domain"
)

var testBlockhash = solana.Hash{7, 7, 7}

type fakeAssembler struct {
	payer    solana.PublicKey
	err      error
	requests []aggregator.SwapRequest
}

func (f *fakeAssembler) Swap(_ context.Context, req aggregator.SwapRequest) (*aggregator.SwapResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &aggregator.SwapResponse{
		SwapTransaction:      encodeTx(f.payer),
		LastValidBlockHeight: 5000,
	}, nil
}

func encodeTx(payer solana.PublicKey) string {
	tx, err := solana.NewTransaction([]solana.Instruction{
		system.NewTransferInstruction(1000, payer, solana.NewWallet().PublicKey()).Build(),
	}, testBlockhash, solana.TransactionPayer(payer))
	if err != nil {
		panic(err)
	}
	tx.Signatures = make([]solana.Signature, 1)
	b, err := tx.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}

type fixture struct {
	builder *Builder
	agg     *fakeAssembler
	rpc     *rpctest.Server
	clock   *clock.TestClock
	key     solana.PrivateKey
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	srv := rpctest.NewServer(t)
	pool, err := blockchain.NewPool([]string{srv.URL}, 1, rpc.CommitmentConfirmed)
	require.NoError(t, err)

	if opts.QuoteValidity == 0 {
		opts.QuoteValidity = 30 * time.Second
	}
	clk := clock.NewTestClock(time.Unix(1_700_000_000, 0))
	agg := &fakeAssembler{payer: key.PublicKey()}
	return &fixture{
		builder: NewBuilder(agg, pool, opts, clk),
		agg:     agg,
		rpc:     srv,
		clock:   clk,
		key:     key,
	}
}

func (f *fixture) quote() *domain.Quote {
	return &domain.Quote{
		InputMint:             domain.WrappedSOLMint,
		OutputMint:            domain.USDCMint,
		InAmount:              1_500_000_000,
		OutAmount:             225_000_000,
		OutAmountWithSlippage: 223_875_000,
		Mode:                  domain.SwapModeExactIn,
		SlippageBps:           50,
		FetchedAt:             f.clock.Now(),
		Raw:                   []byte(`{"inputMint":"So11111111111111111111111111111111111111112"}`),
	}
}

func tokenAccount(owner solana.PublicKey) map[string]any {
	return rpctest.Context(1, map[string]any{
		"data":       []string{"", "base64"},
		"executable": false,
		"lamports":   2039280,
		"owner":      owner.String(),
		"rentEpoch":  0,
		"space":      165,
	})
}

func TestBuildAssemblesTransactionForPayer(t *testing.T) {
	f := newFixture(t, Options{})
	q := f.quote()

	pending, err := f.builder.Build(context.Background(), BuildRequest{
		Quote: q, Payer: f.key.PublicKey(), WrapUnwrapSOL: true,
	})
	require.NoError(t, err)

	require.Equal(t, f.key.PublicKey(), pending.Payer)
	require.Equal(t, f.key.PublicKey(), pending.Recipient)
	require.Equal(t, testBlockhash, pending.Blockhash)
	require.EqualValues(t, 5000, pending.LastValidBlockHeight)
	require.Same(t, q, pending.Quote)
	require.NotEmpty(t, pending.Payload)

	require.Len(t, f.agg.requests, 1)
	req := f.agg.requests[0]
	require.Equal(t, f.key.PublicKey().String(), req.UserPublicKey)
	require.JSONEq(t, string(q.Raw), string(req.QuoteResponse))
	require.True(t, req.WrapAndUnwrapSol)
	require.True(t, req.DynamicComputeUnitLimit)
	require.Empty(t, req.DestinationTokenAccount)
	require.Empty(t, req.FeeAccount)
}

func TestBuildRejectsStaleQuote(t *testing.T) {
	f := newFixture(t, Options{QuoteValidity: 30 * time.Second})
	q := f.quote()
	f.clock.SetTime(q.FetchedAt.Add(31 * time.Second))

	_, err := f.builder.Build(context.Background(), BuildRequest{Quote: q, Payer: f.key.PublicKey()})
	require.ErrorIs(t, err, domain.ErrQuoteExpired)
	require.Empty(t, f.agg.requests)
}

func TestBuildRejectsForeignPayer(t *testing.T) {
	f := newFixture(t, Options{})
	f.agg.payer = solana.NewWallet().PublicKey()

	_, err := f.builder.Build(context.Background(), BuildRequest{Quote: f.quote(), Payer: f.key.PublicKey()})
	require.ErrorIs(t, err, domain.ErrNetwork)
}

func TestBuildPropagatesAggregatorError(t *testing.T) {
	f := newFixture(t, Options{})
	f.agg.err = domain.NewError(domain.KindRateLimited, "", nil)

	_, err := f.builder.Build(context.Background(), BuildRequest{Quote: f.quote(), Payer: f.key.PublicKey()})
	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestBuildPlatformFee(t *testing.T) {
	f := newFixture(t, Options{})
	q := f.quote()
	q.PlatformFee = &domain.PlatformFee{Amount: 1000, FeeBps: 20}

	_, err := f.builder.Build(context.Background(), BuildRequest{Quote: q, Payer: f.key.PublicKey()})
	require.Equal(t, domain.KindInternal, domain.KindOf(err))

	feeAccount := solana.NewWallet().PublicKey().String()
	f.builder.opts.FeeAccount = feeAccount
	_, err = f.builder.Build(context.Background(), BuildRequest{Quote: q, Payer: f.key.PublicKey()})
	require.NoError(t, err)
	require.Equal(t, feeAccount, f.agg.requests[len(f.agg.requests)-1].FeeAccount)
}

func TestBuildRequestFeeAccountWins(t *testing.T) {
	f := newFixture(t, Options{FeeAccount: solana.NewWallet().PublicKey().String()})
	q := f.quote()
	q.PlatformFee = &domain.PlatformFee{Amount: 1000, FeeBps: 20}

	session := solana.NewWallet().PublicKey().String()
	_, err := f.builder.Build(context.Background(), BuildRequest{
		Quote: q, Payer: f.key.PublicKey(), FeeAccount: session,
	})
	require.NoError(t, err)
	require.Equal(t, session, f.agg.requests[0].FeeAccount)
}

func TestBuildDestinationOverride(t *testing.T) {
	merchant := solana.NewWallet().PublicKey()
	usdc := solana.MustPublicKeyFromBase58(domain.USDCMint)
	ata, _, err := solana.FindAssociatedTokenAddress(merchant, usdc)
	require.NoError(t, err)

	t.Run("existing token account", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.rpc.Handle("getAccountInfo", func(params json.RawMessage) (any, *rpctest.Error) {
			var args []json.RawMessage
			if err := json.Unmarshal(params, &args); err != nil || len(args) == 0 {
				return nil, &rpctest.Error{Code: -32602, Message: "bad params"}
			}
			var key string
			_ = json.Unmarshal(args[0], &key)
			if key != ata.String() {
				return rpctest.Context(1, nil), nil
			}
			return tokenAccount(common.TokenProgramID), nil
		})

		pending, err := f.builder.Build(context.Background(), BuildRequest{
			Quote: f.quote(), Payer: f.key.PublicKey(), DestinationOverride: &merchant,
		})
		require.NoError(t, err)
		require.Equal(t, merchant, pending.Recipient)
		require.Equal(t, ata.String(), f.agg.requests[0].DestinationTokenAccount)
	})

	t.Run("missing token account", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.rpc.Result("getAccountInfo", rpctest.Context(1, nil))

		_, err := f.builder.Build(context.Background(), BuildRequest{
			Quote: f.quote(), Payer: f.key.PublicKey(), DestinationOverride: &merchant,
		})
		require.ErrorIs(t, err, domain.ErrInvalidRecipient)
		require.Empty(t, f.agg.requests)
	})

	t.Run("account not owned by a token program", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.rpc.Result("getAccountInfo", tokenAccount(solana.SystemProgramID))

		_, err := f.builder.Build(context.Background(), BuildRequest{
			Quote: f.quote(), Payer: f.key.PublicKey(), DestinationOverride: &merchant,
		})
		require.ErrorIs(t, err, domain.ErrInvalidRecipient)
	})

	t.Run("recipient is payer", func(t *testing.T) {
		f := newFixture(t, Options{})
		payer := f.key.PublicKey()

		_, err := f.builder.Build(context.Background(), BuildRequest{
			Quote: f.quote(), Payer: payer, DestinationOverride: &payer,
		})
		require.ErrorIs(t, err, domain.ErrInvalidRecipient)
		require.Zero(t, f.rpc.Calls("getAccountInfo"))
	})

	t.Run("rpc failure", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.rpc.Handle("getAccountInfo", func(json.RawMessage) (any, *rpctest.Error) {
			return nil, &rpctest.Error{Code: -32005, Message: "node is behind"}
		})

		_, err := f.builder.Build(context.Background(), BuildRequest{
			Quote: f.quote(), Payer: f.key.PublicKey(), DestinationOverride: &merchant,
		})
		require.ErrorIs(t, err, domain.ErrNetwork)
	})
}

func TestSignWith(t *testing.T) {
	ctx := context.Background()

	t.Run("keypair signs", func(t *testing.T) {
		f := newFixture(t, Options{})
		pending, err := f.builder.Build(ctx, BuildRequest{Quote: f.quote(), Payer: f.key.PublicKey()})
		require.NoError(t, err)

		signed, err := f.builder.SignWith(ctx, NewKeypairSigner(f.key), pending)
		require.NoError(t, err)
		require.False(t, signed.Signature.IsZero())
		require.Len(t, signed.Tx.Signatures, 1)
		require.Equal(t, signed.Signature, signed.Tx.Signatures[0])
		require.NoError(t, signed.Tx.VerifySignatures())
	})

	t.Run("user declines", func(t *testing.T) {
		f := newFixture(t, Options{})
		pending, err := f.builder.Build(ctx, BuildRequest{Quote: f.quote(), Payer: f.key.PublicKey()})
		require.NoError(t, err)

		_, err = f.builder.SignWith(ctx, DecliningSigner{Key: f.key.PublicKey()}, pending)
		require.ErrorIs(t, err, domain.ErrUserRejected)
	})

	t.Run("wrong wallet", func(t *testing.T) {
		f := newFixture(t, Options{})
		pending, err := f.builder.Build(ctx, BuildRequest{Quote: f.quote(), Payer: f.key.PublicKey()})
		require.NoError(t, err)

		other, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		_, err = f.builder.SignWith(ctx, NewKeypairSigner(other), pending)
		require.ErrorIs(t, err, domain.ErrInvalidAddress)
	})

	t.Run("quote expires before signing", func(t *testing.T) {
		f := newFixture(t, Options{})
		q := f.quote()
		pending, err := f.builder.Build(ctx, BuildRequest{Quote: q, Payer: f.key.PublicKey()})
		require.NoError(t, err)

		f.clock.SetTime(q.FetchedAt.Add(time.Minute))
		_, err = f.builder.SignWith(ctx, NewKeypairSigner(f.key), pending)
		require.ErrorIs(t, err, domain.ErrQuoteExpired)
	})

	t.Run("wallet error", func(t *testing.T) {
		f := newFixture(t, Options{})
		pending, err := f.builder.Build(ctx, BuildRequest{Quote: f.quote(), Payer: f.key.PublicKey()})
		require.NoError(t, err)

		_, err = f.builder.SignWith(ctx, failingSigner{key: f.key.PublicKey()}, pending)
		require.Equal(t, domain.KindInternal, domain.KindOf(err))
	})
}

type failingSigner struct{ key solana.PublicKey }

func (s failingSigner) PublicKey() solana.PublicKey { return s.key }

func (s failingSigner) Sign(context.Context, *solana.Transaction) (*solana.Transaction, error) {
	return nil, errors.New("hardware wallet disconnected")
}

func TestPreflight(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, Options{})
		pending, err := f.builder.Build(ctx, BuildRequest{Quote: f.quote(), Payer: f.key.PublicKey()})
		require.NoError(t, err)
		require.NoError(t, f.builder.Preflight(ctx, pending))
		require.Zero(t, f.rpc.Calls("simulateTransaction"))
	})

	t.Run("slippage failure", func(t *testing.T) {
		f := newFixture(t, Options{Simulate: true})
		f.rpc.Result("simulateTransaction", rpctest.Context(1, map[string]any{
			"err":           map[string]any{"InstructionError": []any{2, map[string]any{"Custom": 6001}}},
			"logs":          []string{"Program log: Error: SlippageToleranceExceeded"},
			"unitsConsumed": 120000,
		}))
		pending, err := f.builder.Build(ctx, BuildRequest{Quote: f.quote(), Payer: f.key.PublicKey()})
		require.NoError(t, err)

		err = f.builder.Preflight(ctx, pending)
		require.ErrorIs(t, err, domain.ErrTransactionRejectedOnChain)
		require.Contains(t, domain.UserMessage(err), "slippage")
	})

	t.Run("success", func(t *testing.T) {
		f := newFixture(t, Options{Simulate: true})
		f.rpc.Result("simulateTransaction", rpctest.Context(1, map[string]any{
			"err":           nil,
			"logs":          []string{"Program log: ok"},
			"unitsConsumed": 80000,
		}))
		pending, err := f.builder.Build(ctx, BuildRequest{Quote: f.quote(), Payer: f.key.PublicKey()})
		require.NoError(t, err)

		sim, err := f.builder.Simulate(ctx, pending)
		require.NoError(t, err)
		require.True(t, sim.Success)
		require.EqualValues(t, 80000, sim.ComputeUnitsConsumed)
		require.NoError(t, f.builder.Preflight(ctx, pending))
	})

	t.Run("rpc unavailable", func(t *testing.T) {
		f := newFixture(t, Options{Simulate: true})
		pending, err := f.builder.Build(ctx, BuildRequest{Quote: f.quote(), Payer: f.key.PublicKey()})
		require.NoError(t, err)
		require.NoError(t, f.builder.Preflight(ctx, pending))
	})
}
