package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	tokensVerified bool
	tokensLimit    int
)

var tokensCmd = &cobra.Command{
	Use:     "tokens [query]",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "Search the token list",
	Long: `List tokens from the configured token lists, verified first. The query
matches symbol, name or mint address.

Examples:
  swapcli tokens
  swapcli tokens usd --verified`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.Flags().BoolVar(&tokensVerified, "verified", false, "Only verified tokens")
	tokensCmd.Flags().IntVar(&tokensLimit, "limit", 25, "Maximum number of tokens")
}

func runTokens(cmd *cobra.Command, args []string) error {
	reg, closeReg, err := loadRegistry(cmd.Context())
	if err != nil {
		printError(err)
		return err
	}
	defer closeReg()

	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	list := reg.List(query, tokensVerified, tokensLimit)
	if jsonOutput() {
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No tokens found.")
		return nil
	}

	for _, t := range list {
		symbol := fmt.Sprintf("%-10s", t.Symbol)
		if t.Verified {
			symbol = color.GreenString(symbol)
		}
		fmt.Printf("%s %-44s %2d  %s\n", symbol, t.Address, t.Decimals, t.Name)
	}
	fmt.Printf("\n%d of %d tokens\n", len(list), reg.Size())
	return nil
}
