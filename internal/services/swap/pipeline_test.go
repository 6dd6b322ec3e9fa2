package swap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/swap-engine/internal/adapters/aggregator"
	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/adapters/blockchain/rpctest"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/services/builder"
	"github.com/hxuan190/swap-engine/internal/services/quote"
	"github.com/hxuan190/swap-engine/internal/services/submission"
)

type stubAggregator struct{}

func (stubAggregator) Quote(_ context.Context, p aggregator.QuoteParams) (*aggregator.QuoteResponse, []byte, error) {
	resp := &aggregator.QuoteResponse{
		InputMint:            p.InputMint,
		InAmount:             "1500000000",
		OutputMint:           p.OutputMint,
		OutAmount:            "225000000",
		OtherAmountThreshold: "223875000",
		SwapMode:             p.SwapMode,
		SlippageBps:          int(p.SlippageBps),
		PriceImpactPct:       "0.001",
		RoutePlan: []aggregator.RoutePlanStep{{
			SwapInfo: aggregator.SwapInfo{
				AmmKey: "amm", Label: "Whirlpool",
				InputMint: p.InputMint, OutputMint: p.OutputMint,
				InAmount: "1500000000", OutAmount: "225000000",
				FeeAmount: "0", FeeMint: p.InputMint,
			},
			Percent: 100,
		}},
	}
	raw, err := json.Marshal(resp)
	return resp, raw, err
}

type stubAssembler struct{}

func (stubAssembler) Swap(_ context.Context, req aggregator.SwapRequest) (*aggregator.SwapResponse, error) {
	payer := solana.MustPublicKeyFromBase58(req.UserPublicKey)
	tx, err := solana.NewTransaction([]solana.Instruction{
		system.NewTransferInstruction(1, payer, solana.NewWallet().PublicKey()).Build(),
	}, solana.Hash{3}, solana.TransactionPayer(payer))
	if err != nil {
		return nil, err
	}
	tx.Signatures = make([]solana.Signature, 1)
	b, err := tx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &aggregator.SwapResponse{
		SwapTransaction:      base64.StdEncoding.EncodeToString(b),
		LastValidBlockHeight: 1000,
	}, nil
}

// TestPipelineWithKeypairSigner runs quote, build, sign, submit and confirm
// through the real components against an in-process RPC node.
func TestPipelineWithKeypairSigner(t *testing.T) {
	srv := rpctest.NewServer(t)
	srv.Handle("sendTransaction", func(params json.RawMessage) (any, *rpctest.Error) {
		var args []json.RawMessage
		var encoded string
		if err := json.Unmarshal(params, &args); err != nil || len(args) == 0 {
			return nil, &rpctest.Error{Code: -32602, Message: "bad params"}
		}
		if err := json.Unmarshal(args[0], &encoded); err != nil {
			return nil, &rpctest.Error{Code: -32602, Message: "bad params"}
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, &rpctest.Error{Code: -32602, Message: "bad encoding"}
		}
		tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
		if err != nil || tx.VerifySignatures() != nil {
			return nil, &rpctest.Error{Code: -32003, Message: "Transaction signature verification failure"}
		}
		return tx.Signatures[0].String(), nil
	})
	srv.Result("getSignatureStatuses", rpctest.SignatureStatus("confirmed", nil))
	srv.Result("getBlockHeight", 990)

	pool, err := blockchain.NewPool([]string{srv.URL}, 2, rpc.CommitmentConfirmed)
	require.NoError(t, err)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	recorder := &fakeRecorder{}

	orch := New(Deps{
		Quoter:    quote.NewClient(stubAggregator{}, time.Second, nil),
		Builder:   builder.NewBuilder(stubAssembler{}, pool, builder.Options{QuoteValidity: 30 * time.Second}, nil),
		Submitter: submission.NewEngine(pool, submission.Options{PollInterval: 5 * time.Millisecond, Timeout: 5 * time.Second}, nil),
		Recorder:  recorder,
	}, Settings{SlippageBps: 50, WrapUnwrapSOL: true})
	defer orch.Close()

	q, err := orch.Quote(context.Background(), solToUsdc())
	require.NoError(t, err)
	// 225 USDC less 0.5%.
	require.EqualValues(t, 223_875_000, q.OutAmountWithSlippage)

	res, err := orch.Execute(context.Background(), Request{
		Signer:    builder.NewKeypairSigner(key),
		Confirmer: &autoConfirmer{accept: true},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.Signature)

	require.Len(t, recorder.records, 1)
	require.Equal(t, key.PublicKey().String(), recorder.records[0].WalletAddress)
	require.Equal(t, res.Signature, recorder.records[0].Signature)
	require.Equal(t, 1, srv.Calls("sendTransaction"))
}
