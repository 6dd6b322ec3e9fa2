package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hxuan190/swap-engine/internal/domain"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s, err := NewStorage(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.LoadSnapshot()
	require.ErrorIs(t, err, ErrNoSnapshot)

	fetched := time.Unix(1_700_000_000, 0)
	first := TokenSnapshot{
		Provider:  "primary",
		FetchedAt: fetched,
		Tokens: []domain.TokenDescriptor{
			{Address: domain.USDCMint, Symbol: "USDC", Decimals: 6, Verified: true},
			{Address: domain.WrappedSOLMint, Symbol: "SOL", Decimals: 9, Verified: true},
		},
	}
	require.NoError(t, s.SaveSnapshot(first))

	second := TokenSnapshot{
		Provider:  "fallback",
		FetchedAt: fetched.Add(time.Minute),
		Tokens: []domain.TokenDescriptor{
			{Address: domain.USDCMint, Symbol: "USDC", Decimals: 6},
		},
	}
	require.NoError(t, s.SaveSnapshot(second))

	got, err := s.LoadSnapshot()
	require.NoError(t, err)
	require.Equal(t, "fallback", got.Provider)
	require.Equal(t, second.FetchedAt.Unix(), got.FetchedAt.Unix())
	require.Len(t, got.Tokens, 1)
	require.Equal(t, "USDC", got.Tokens[0].Symbol)
}
