package swap

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/swap-engine/internal/domain"
)

func TestPrepare(t *testing.T) {
	h := newHarness(t)
	payer := solana.NewWallet().PublicKey()
	settings := Settings{SlippageBps: 75, WrapUnwrapSOL: true}

	prepared, err := prepare(context.Background(), h.quoter, h.builder, settings, PrepareRequest{
		Intent: solToUsdc(),
		Payer:  payer.String(),
	})
	require.NoError(t, err)

	require.Len(t, h.quoter.seen, 1)
	require.Equal(t, uint16(75), h.quoter.seen[0].SlippageBps)
	require.Equal(t, domain.SwapModeExactIn, h.quoter.seen[0].Mode)

	require.Len(t, h.builder.requests, 1)
	require.Equal(t, payer, h.builder.requests[0].Payer)
	require.Nil(t, h.builder.requests[0].DestinationOverride)
	require.Equal(t, payer.String(), prepared.Terms.Recipient)
	require.Equal(t, uint64(900), prepared.LastValidBlockHeight)
	require.Zero(t, h.builder.signed)
}

func TestPrepareWithRecipient(t *testing.T) {
	h := newHarness(t)
	payer := solana.NewWallet().PublicKey()
	merchant := solana.NewWallet().PublicKey()

	prepared, err := prepare(context.Background(), h.quoter, h.builder, Settings{SlippageBps: 50}, PrepareRequest{
		Intent:    solToUsdc(),
		Payer:     payer.String(),
		Recipient: merchant.String(),
	})
	require.NoError(t, err)
	require.Equal(t, merchant, *h.builder.requests[0].DestinationOverride)
	require.Equal(t, merchant.String(), prepared.Terms.Recipient)
}

func TestPrepareKeepsExplicitZeroSlippage(t *testing.T) {
	h := newHarness(t)
	zero := uint16(0)

	_, err := prepare(context.Background(), h.quoter, h.builder, Settings{SlippageBps: 75}, PrepareRequest{
		Intent:      solToUsdc(),
		SlippageBps: &zero,
		Payer:       solana.NewWallet().PublicKey().String(),
	})
	require.NoError(t, err)
	require.Zero(t, h.quoter.seen[0].SlippageBps)
}

func TestPrepareFeeAccountFromSettings(t *testing.T) {
	h := newHarness(t)
	feeAccount := solana.NewWallet().PublicKey().String()
	settings := Settings{SlippageBps: 50, PlatformFeeBps: 20, FeeAccount: feeAccount}

	_, err := prepare(context.Background(), h.quoter, h.builder, settings, PrepareRequest{
		Intent: solToUsdc(),
		Payer:  solana.NewWallet().PublicKey().String(),
	})
	require.NoError(t, err)
	require.Equal(t, feeAccount, h.quoter.seen[0].FeeAccount)
	require.Equal(t, feeAccount, h.builder.requests[0].FeeAccount)

	_, err = prepare(context.Background(), h.quoter, h.builder, Settings{SlippageBps: 50, PlatformFeeBps: 20}, PrepareRequest{
		Intent: solToUsdc(),
		Payer:  solana.NewWallet().PublicKey().String(),
	})
	require.ErrorIs(t, err, domain.ErrInvalidAddress)
	require.Len(t, h.quoter.seen, 1)
}

func TestPrepareValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	payer := solana.NewWallet().PublicKey().String()

	_, err := prepare(ctx, h.quoter, h.builder, Settings{}, PrepareRequest{Intent: solToUsdc(), Payer: "bad"})
	require.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = prepare(ctx, h.quoter, h.builder, Settings{}, PrepareRequest{Intent: solToUsdc(), Payer: payer, Recipient: "bad"})
	require.ErrorIs(t, err, domain.ErrInvalidRecipient)

	zero := solToUsdc()
	zero.Amount = 0
	_, err = prepare(ctx, h.quoter, h.builder, Settings{}, PrepareRequest{Intent: zero, Payer: payer})
	require.Equal(t, domain.KindInvalidAmount, domain.KindOf(err))
	require.Empty(t, h.quoter.seen)

	h.quoter.err = domain.NewError(domain.KindNoRoute, "", nil)
	_, err = prepare(ctx, h.quoter, h.builder, Settings{}, PrepareRequest{Intent: solToUsdc(), Payer: payer})
	require.ErrorIs(t, err, domain.ErrNoRoute)
	require.Empty(t, h.builder.requests)
}
