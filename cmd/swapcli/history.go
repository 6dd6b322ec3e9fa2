package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/hxuan190/swap-engine/internal/domain"
)

var (
	historyLimit  int
	historyOffset int
)

var historyCmd = &cobra.Command{
	Use:   "history [wallet]",
	Short: "Show recorded transactions for a wallet",
	Long: `Show the transaction history of a wallet, newest first. Without an
argument the wallet of --keypair is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of records")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "Records to skip")
}

func runHistory(cmd *cobra.Command, args []string) error {
	var wallet string
	if len(args) == 1 {
		if _, err := solana.PublicKeyFromBase58(args[0]); err != nil {
			err = domain.NewError(domain.KindInvalidAddress, fmt.Sprintf("invalid wallet %q", args[0]), err)
			printError(err)
			return err
		}
		wallet = args[0]
	} else {
		signer, err := loadSigner()
		if err != nil {
			printError(err)
			return err
		}
		wallet = signer.PublicKey().String()
	}

	rec, db, err := openRecorder()
	if err != nil {
		printError(err)
		return err
	}
	defer db.Close()

	records, err := rec.QueryHistory(cmd.Context(), wallet, historyLimit, historyOffset)
	if err != nil {
		printError(err)
		return err
	}
	if jsonOutput() {
		return printJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("No transactions recorded.")
		return nil
	}

	for _, r := range records {
		fmt.Printf("%s  %-8s %s  %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Kind, statusLabel(r.Status), r.Signature)
		switch r.Kind {
		case domain.TxKindPayment:
			fmt.Printf("    paid %s of %s to %s\n", r.PaymentAmount, r.PaymentMint, r.Recipient)
		default:
			if r.InputMint != "" {
				fmt.Printf("    %s %s -> %s %s\n", r.InputAmount, r.InputMint, r.OutputAmount, r.OutputMint)
			}
		}
		if r.FailureReason != "" {
			color.Red("    %s", r.FailureReason)
		}
	}
	return nil
}

func statusLabel(s domain.TxStatus) string {
	label := fmt.Sprintf("%-9s", s)
	switch s {
	case domain.TxStatusConfirmed:
		return color.GreenString(label)
	case domain.TxStatusFailed:
		return color.RedString(label)
	default:
		return color.YellowString(label)
	}
}
