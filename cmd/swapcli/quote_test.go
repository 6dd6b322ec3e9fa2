package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/services/tokens"
)

func TestResolveIntent(t *testing.T) {
	reg := tokens.NewRegistry(nil, nil, time.Minute, nil)
	t.Cleanup(func() { exactOut, slippageBps = false, 0 })

	t.Run("exact in uses input decimals", func(t *testing.T) {
		exactOut, slippageBps = false, 75
		pr, err := resolveIntent(reg, []string{"1.5", domain.WrappedSOLMint, "usdc"})
		require.NoError(t, err)
		require.Equal(t, uint64(1_500_000_000), pr.intent.Amount)
		require.Equal(t, domain.USDCMint, pr.intent.OutputMint)
		require.Equal(t, domain.SwapModeExactIn, pr.intent.Mode)
		require.Equal(t, uint16(75), pr.intent.SlippageBps)
	})

	t.Run("exact out uses output decimals", func(t *testing.T) {
		exactOut, slippageBps = true, 0
		pr, err := resolveIntent(reg, []string{"2.5", domain.WrappedSOLMint, "usdc"})
		require.NoError(t, err)
		require.Equal(t, uint64(2_500_000), pr.intent.Amount)
		require.Equal(t, domain.SwapModeExactOut, pr.intent.Mode)
	})

	t.Run("unknown token", func(t *testing.T) {
		exactOut = false
		_, err := resolveIntent(reg, []string{"1", "nope", "usdc"})
		require.ErrorIs(t, err, domain.ErrUnknownToken)
	})

	t.Run("bad amount", func(t *testing.T) {
		_, err := resolveIntent(reg, []string{"one", domain.WrappedSOLMint, "usdc"})
		require.Equal(t, domain.KindInvalidAmount, domain.KindOf(err))
	})
}
