package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "swapcli",
	Short: "Quote and execute Solana token swaps",
	Long: `swapcli quotes swaps through the liquidity aggregator, signs them with a
local keypair and tracks them until they land.

Examples:
  swapcli quote 1.5 SOL USDC
  swapcli swap 10 USDC SOL --keypair ~/.config/solana/id.json
  swapcli history <wallet>
  swapcli tokens bonk`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.swapcli.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("keypair", "", "Path to a solana-keygen keypair file")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("keypair", rootCmd.PersistentFlags().Lookup("keypair"))
}

// initConfig layers flags over SWAPCLI_* variables over the optional config
// file.
func initConfig(cmd *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".swapcli")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("SWAPCLI")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if viper.GetBool("verbose") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
	return nil
}

func jsonOutput() bool {
	return viper.GetBool("json")
}

func printError(err error) {
	color.Red("\nError: %v\n", err)
}
