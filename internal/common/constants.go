// Package common contains common constants and variables used across services
package common

import "github.com/gagliardetto/solana-go"

var (
	TokenProgramID  = solana.TokenProgramID
	Token2022ID     = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	MemoProgramID   = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
	ATAProgramID    = solana.SPLAssociatedTokenAccountProgramID
	SystemProgramID = solana.SystemProgramID
	WrappedSOLMint  = solana.WrappedSol
)

const (
	// LamportsPerSOL is 10^9.
	LamportsPerSOL = 1_000_000_000

	SOLDecimals = 9

	// BlockhashValidBlocks is how many blocks a blockhash stays usable.
	BlockhashValidBlocks = 150
)
