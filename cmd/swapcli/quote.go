package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/services/tokens"
	"github.com/hxuan190/swap-engine/internal/units"
)

var (
	exactOut    bool
	slippageBps uint16
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <input-token> <output-token>",
	Short: "Fetch the best route for a swap",
	Long: `Fetch a quote without building a transaction. Tokens are symbols or mint
addresses; the amount is in display units of the input token, or of the
output token with --exact-out.

Examples:
  swapcli quote 1.5 SOL USDC
  swapcli quote 100 USDC SOL --exact-out --slippage 100`,
	Args: cobra.ExactArgs(3),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	addIntentFlags(quoteCmd)
}

func addIntentFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&exactOut, "exact-out", false, "Treat the amount as the exact output")
	cmd.Flags().Uint16Var(&slippageBps, "slippage", 0, "Slippage tolerance in bps (default from AGGREGATOR_DEFAULT_SLIPPAGE_BPS)")
}

// pair is a resolved intent with the descriptors needed to display it.
type pair struct {
	intent      domain.SwapIntent
	input       domain.TokenDescriptor
	output      domain.TokenDescriptor
	amountToken domain.TokenDescriptor
}

func resolveIntent(reg *tokens.Registry, args []string) (*pair, error) {
	in, err := reg.Lookup(args[1])
	if err != nil {
		return nil, err
	}
	out, err := reg.Lookup(args[2])
	if err != nil {
		return nil, err
	}

	p := &pair{input: in, output: out, amountToken: in}
	p.intent = domain.SwapIntent{
		InputMint:   in.Address,
		OutputMint:  out.Address,
		Mode:        domain.SwapModeExactIn,
		SlippageBps: slippageBps,
	}
	if exactOut {
		p.intent.Mode = domain.SwapModeExactOut
		p.amountToken = out
	}
	p.intent.Amount, err = units.ParseToBaseUnits(args[0], p.amountToken.Decimals)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidAmount, fmt.Sprintf("invalid amount %q", args[0]), err)
	}
	return p, nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := newPipeline()
	if err != nil {
		printError(err)
		return err
	}
	reg, closeReg, err := loadRegistry(ctx)
	if err != nil {
		printError(err)
		return err
	}
	defer closeReg()

	pr, err := resolveIntent(reg, args)
	if err != nil {
		printError(err)
		return err
	}
	if pr.intent.SlippageBps == 0 {
		pr.intent.SlippageBps = p.aggConf.DefaultSlippageBps
	}

	q, err := fetchQuote(ctx, p.quoter.GetQuote, pr.intent)
	if err != nil {
		printError(fmt.Errorf("%s", domain.UserMessage(err)))
		return err
	}

	if jsonOutput() {
		return printJSON(q.Terms(""))
	}
	printTerms(pr, q.Terms(""))
	return nil
}

type quoteFunc func(ctx context.Context, intent domain.SwapIntent) (*domain.Quote, error)

func fetchQuote(ctx context.Context, fn quoteFunc, intent domain.SwapIntent) (*domain.Quote, error) {
	s := startSpinner(" Fetching quote...")
	defer s.Stop()
	return fn(ctx, intent)
}

func printTerms(pr *pair, t domain.Terms) {
	in := units.FormatDisplay(t.InAmount, pr.input.Decimals, int32(pr.input.Decimals))
	out := units.FormatDisplay(t.OutAmount, pr.output.Decimals, int32(pr.output.Decimals))

	fmt.Println()
	color.Cyan("Swap %s %s for %s %s", in, pr.input.Symbol, out, pr.output.Symbol)
	if pr.intent.Mode == domain.SwapModeExactOut {
		fmt.Printf("  Maximum in:    %s %s\n", units.FormatDisplay(t.MaximumIn, pr.input.Decimals, int32(pr.input.Decimals)), pr.input.Symbol)
	} else {
		fmt.Printf("  Minimum out:   %s %s\n", units.FormatDisplay(t.MinimumOut, pr.output.Decimals, int32(pr.output.Decimals)), pr.output.Symbol)
	}

	impact := t.PriceImpactPct.StringFixed(4) + "%"
	switch {
	case t.PriceImpactPct.GreaterThanOrEqual(highImpactPct):
		impact = color.RedString(impact)
	case t.PriceImpactPct.GreaterThanOrEqual(mediumImpactPct):
		impact = color.YellowString(impact)
	}
	fmt.Printf("  Price impact:  %s\n", impact)
	fmt.Printf("  Slippage:      %d bps\n", pr.intent.SlippageBps)
	if t.PlatformFee > 0 {
		fmt.Printf("  Platform fee:  %s %s\n", units.FormatDisplay(t.PlatformFee, pr.output.Decimals, int32(pr.output.Decimals)), pr.output.Symbol)
	}
	if len(t.RouteVenues) > 0 {
		fmt.Printf("  Route:         %s\n", strings.Join(t.RouteVenues, " -> "))
	}
	if t.Recipient != "" {
		fmt.Printf("  Recipient:     %s\n", t.Recipient)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
