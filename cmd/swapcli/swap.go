package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/services/builder"
	"github.com/hxuan190/swap-engine/internal/services/swap"
)

var (
	mediumImpactPct = decimal.NewFromInt(1)
	highImpactPct   = decimal.NewFromInt(5)
)

var (
	recipientAddr string
	noConfirm     bool
	noRecord      bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <input-token> <output-token>",
	Short: "Quote, sign and submit a swap",
	Long: `Quote a swap, show its terms, and after confirmation sign it with the
keypair and submit it. The command waits until the transaction is confirmed
or its blockhash expires.

Examples:
  swapcli swap 1 SOL USDC --keypair ~/.config/solana/id.json
  swapcli swap 25 USDC SOL --exact-out --recipient <wallet> --yes`,
	Args: cobra.ExactArgs(3),
	RunE: runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)
	addIntentFlags(swapCmd)
	swapCmd.Flags().StringVar(&recipientAddr, "recipient", "", "Send the output to this wallet instead of the signer")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not write the swap to the transaction history")
}

// terminalConfirmer prints the terms and reads y/N from stdin.
type terminalConfirmer struct {
	pair   *pair
	assume bool
}

func (c terminalConfirmer) ConfirmTerms(_ context.Context, terms domain.Terms) (bool, error) {
	if !jsonOutput() {
		printTerms(c.pair, terms)
	}
	if c.assume {
		return true, nil
	}
	if terms.PriceImpactPct.GreaterThanOrEqual(highImpactPct) {
		color.Red("\nWarning: price impact is above %s%%", highImpactPct)
	}
	return confirm("\nProceed with swap? (y/N): "), nil
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print(prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func loadSigner() (*builder.KeypairSigner, error) {
	path := viper.GetString("keypair")
	if path == "" {
		return nil, errors.New("no keypair: pass --keypair or set SWAPCLI_KEYPAIR")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return builder.NewKeypairSigner(key), nil
}

func runSwap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	signer, err := loadSigner()
	if err != nil {
		printError(err)
		return err
	}
	var recipient *solana.PublicKey
	if recipientAddr != "" {
		pk, err := solana.PublicKeyFromBase58(recipientAddr)
		if err != nil {
			err = domain.NewError(domain.KindInvalidRecipient, fmt.Sprintf("invalid recipient %q", recipientAddr), err)
			printError(err)
			return err
		}
		recipient = &pk
	}

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

	var rec swap.Recorder
	if !noRecord {
		r, db, err := openRecorder()
		if err != nil {
			color.Yellow("History disabled: %v", err)
		} else {
			defer db.Close()
			rec = r
		}
	}

	settings := p.settings()
	if pr.intent.SlippageBps != 0 {
		settings.SlippageBps = pr.intent.SlippageBps
	}
	session := p.session(settings, rec)
	defer session.Close()
	if viper.GetBool("verbose") {
		session.Subscribe(swap.ObserverFunc(func(n swap.Notification) {
			fmt.Fprintf(os.Stderr, "  %s -> %s\n", n.Previous, n.Snapshot.State)
		}))
	}

	if _, err := fetchQuote(ctx, session.Quote, pr.intent); err != nil {
		printError(fmt.Errorf("%s", domain.UserMessage(err)))
		return err
	}
	pr.intent = session.Snapshot().Intent

	res, err := session.Execute(ctx, swap.Request{
		Signer:    signer,
		Confirmer: terminalConfirmer{pair: pr, assume: noConfirm || jsonOutput()},
		Recipient: recipient,
	})
	if jsonOutput() && res != nil {
		_ = printJSON(struct {
			Success   bool   `json:"success"`
			Signature string `json:"signature,omitempty"`
			Error     string `json:"error,omitempty"`
		}{res.Success, res.Signature, domain.UserMessage(res.Err)})
	}
	switch {
	case err == nil:
		if !jsonOutput() {
			color.Green("\nSwap confirmed: %s", res.Signature)
		}
		return nil
	case errors.Is(err, domain.ErrUserRejected):
		fmt.Println("\nSwap cancelled.")
		return nil
	default:
		printError(fmt.Errorf("%s", domain.UserMessage(err)))
		if res != nil && res.Signature != "" {
			color.Yellow("Signature %s is pending; run `swapcli reconcile` later.", res.Signature)
		}
		return err
	}
}
