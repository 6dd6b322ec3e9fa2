package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/holiman/uint256"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/units"
)

const nativeDecimals = 9

type RPCProvider interface {
	Client() *rpc.Client
}

type TokenLookup interface {
	Lookup(id string) (domain.TokenDescriptor, error)
}

type PriceSource interface {
	GetPrices(ctx context.Context, ids []string, vsToken string) (map[string]decimal.Decimal, error)
}

// parsedTokenAccount is the jsonParsed shape of an SPL token account.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			Owner       string `json:"owner"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals uint8  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
		Type string `json:"type"`
	} `json:"parsed"`
	Program string `json:"program"`
}

// Reader assembles a wallet's balances from RPC reads.
type Reader struct {
	rpc    RPCProvider
	tokens TokenLookup
	prices PriceSource
	clock  clock.Clock
}

// NewReader builds a Reader. tokens and prices are optional enrichments.
func NewReader(rpcProvider RPCProvider, tokens TokenLookup, prices PriceSource, clk clock.Clock) *Reader {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Reader{rpc: rpcProvider, tokens: tokens, prices: prices, clock: clk}
}

func (r *Reader) Fetch(ctx context.Context, owner solana.PublicKey) (*domain.Portfolio, error) {
	client := r.rpc.Client()

	var (
		lamports uint64
		legacy   []domain.TokenBalance
		ext      []domain.TokenBalance
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := client.GetBalance(gctx, owner, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		lamports = out.Value
		return nil
	})
	g.Go(func() (err error) {
		legacy, err = r.tokenAccounts(gctx, client, owner, common.TokenProgramID)
		return err
	})
	g.Go(func() (err error) {
		ext, err = r.tokenAccounts(gctx, client, owner, common.Token2022ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.NewError(domain.KindNetworkError, "", err)
	}

	balances := mergeByMint(append(legacy, ext...))
	native := domain.TokenBalance{
		Mint:     domain.WrappedSOLMint,
		Amount:   fmt.Sprintf("%d", lamports),
		Decimals: nativeDecimals,
		UIAmount: units.FromBaseUnits(lamports, nativeDecimals),
		Symbol:   "SOL",
	}
	balances = append([]domain.TokenBalance{native}, balances...)

	r.enrich(ctx, balances)

	return &domain.Portfolio{
		Owner:     owner.String(),
		Lamports:  lamports,
		Tokens:    balances,
		UpdatedAt: r.clock.Now().Unix(),
	}, nil
}

func (r *Reader) tokenAccounts(ctx context.Context, client *rpc.Client, owner, program solana.PublicKey) ([]domain.TokenBalance, error) {
	programID := program
	out, err := client.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{ProgramId: &programID},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed, Commitment: rpc.CommitmentConfirmed},
	)
	if err != nil {
		return nil, err
	}

	balances := make([]domain.TokenBalance, 0, len(out.Value))
	for _, acc := range out.Value {
		if acc == nil || acc.Account == nil || acc.Account.Data == nil {
			continue
		}
		b, ok := parseTokenAccount(acc.Pubkey, acc.Account.Data.GetRawJSON())
		if !ok {
			log.Debug().Str("account", acc.Pubkey.String()).Msg("[portfolio] skipping unparsable token account")
			continue
		}
		balances = append(balances, b)
	}
	return balances, nil
}

func parseTokenAccount(pubkey solana.PublicKey, raw json.RawMessage) (domain.TokenBalance, bool) {
	if len(raw) == 0 {
		return domain.TokenBalance{}, false
	}
	var parsed parsedTokenAccount
	if err := sonic.Unmarshal(raw, &parsed); err != nil {
		return domain.TokenBalance{}, false
	}
	info := parsed.Parsed.Info
	if info.Mint == "" {
		return domain.TokenBalance{}, false
	}
	amount, err := uint256.FromDecimal(info.TokenAmount.Amount)
	if err != nil || !amount.IsUint64() {
		return domain.TokenBalance{}, false
	}
	return domain.TokenBalance{
		Mint:     info.Mint,
		Account:  pubkey.String(),
		Amount:   amount.Dec(),
		Decimals: info.TokenAmount.Decimals,
		UIAmount: units.FromBaseUnits(amount.Uint64(), info.TokenAmount.Decimals),
	}, true
}

// mergeByMint sums accounts of the same mint and drops empty ones. The
// result is sorted by mint.
func mergeByMint(in []domain.TokenBalance) []domain.TokenBalance {
	byMint := make(map[string]*domain.TokenBalance, len(in))
	totals := make(map[string]*uint256.Int, len(in))
	for _, b := range in {
		amt, err := uint256.FromDecimal(b.Amount)
		if err != nil || amt.IsZero() {
			continue
		}
		if cur, ok := totals[b.Mint]; ok {
			cur.Add(cur, amt)
			byMint[b.Mint].Account = ""
			continue
		}
		totals[b.Mint] = amt
		cp := b
		byMint[b.Mint] = &cp
	}

	out := make([]domain.TokenBalance, 0, len(byMint))
	for mint, b := range byMint {
		total := totals[mint]
		b.Amount = total.Dec()
		if total.IsUint64() {
			b.UIAmount = units.FromBaseUnits(total.Uint64(), b.Decimals)
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	return out
}

// enrich fills symbols and USD values. Failures leave the fields empty.
func (r *Reader) enrich(ctx context.Context, balances []domain.TokenBalance) {
	mints := make([]string, 0, len(balances))
	for i := range balances {
		mints = append(mints, balances[i].Mint)
		if r.tokens != nil && balances[i].Symbol == "" {
			if t, err := r.tokens.Lookup(balances[i].Mint); err == nil {
				balances[i].Symbol = t.Symbol
			}
		}
	}
	if r.prices == nil || len(mints) == 0 {
		return
	}
	prices, err := r.prices.GetPrices(ctx, mints[:min(len(mints), 100)], "")
	if err != nil {
		log.Debug().Err(err).Msg("[portfolio] price enrichment skipped")
		return
	}
	for i := range balances {
		if p, ok := prices[balances[i].Mint]; ok {
			v := balances[i].UIAmount.Mul(p)
			balances[i].ValueUSD = &v
		}
	}
}
