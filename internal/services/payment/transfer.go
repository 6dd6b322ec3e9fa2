package payment

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/domain"
)

// transfer describes one Solana Pay transfer. A nil Mint pays native SOL.
type transfer struct {
	Payer     solana.PublicKey
	Merchant  solana.PublicKey
	Mint      *solana.PublicKey
	Program   solana.PublicKey
	Decimals  uint8
	Amount    uint64
	Reference solana.PublicKey
	Memo      string
	// FeePerCU adds compute budget instructions when non-zero.
	FeePerCU uint64
	// ComputeUnits is the budget limit, transferComputeUnits when zero.
	ComputeUnits uint32
}

// mintInfo is what a transfer needs to know about an SPL mint.
type mintInfo struct {
	Program  solana.PublicKey
	Decimals uint8
}

// associatedTokenAddress derives the ATA of owner for mint under the given
// token program. Token-2022 accounts use their own program in the seeds.
func associatedTokenAddress(owner, mint, program solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		owner[:],
		program[:],
		mint[:],
	}, common.ATAProgramID)
	return addr, err
}

func lookupMint(ctx context.Context, client *rpc.Client, mint solana.PublicKey) (mintInfo, error) {
	out, err := client.GetAccountInfo(ctx, mint)
	if errors.Is(err, rpc.ErrNotFound) {
		return mintInfo{}, domain.NewError(domain.KindUnknownToken, fmt.Sprintf("mint %s does not exist", mint), err)
	}
	if err != nil {
		return mintInfo{}, domain.NewError(domain.KindNetworkError, "", err)
	}
	owner := out.Value.Owner
	if !owner.Equals(common.TokenProgramID) && !owner.Equals(common.Token2022ID) {
		return mintInfo{}, domain.NewError(domain.KindUnknownToken, fmt.Sprintf("%s is not a token mint", mint), nil)
	}

	var m token.Mint
	if err := bin.NewBinDecoder(out.Value.Data.GetBinary()).Decode(&m); err != nil {
		return mintInfo{}, domain.NewError(domain.KindUnknownToken, fmt.Sprintf("cannot decode mint %s", mint), err)
	}
	return mintInfo{Program: owner, Decimals: m.Decimals}, nil
}

// checkMerchantAccount fails with InvalidRecipient when the merchant cannot
// receive mint.
func checkMerchantAccount(ctx context.Context, client *rpc.Client, ata solana.PublicKey, program solana.PublicKey) error {
	out, err := client.GetAccountInfo(ctx, ata)
	if errors.Is(err, rpc.ErrNotFound) {
		return domain.NewError(domain.KindInvalidRecipient, "merchant has no token account for this mint", err)
	}
	if err != nil {
		return domain.NewError(domain.KindNetworkError, "", err)
	}
	if !out.Value.Owner.Equals(program) {
		return domain.NewError(domain.KindInvalidRecipient, "merchant token account is not owned by the token program", nil)
	}
	return nil
}

// instructions returns the budget, memo and transfer instructions. The
// reference is attached to the transfer as a read-only account so the
// payment can be found with getSignaturesForAddress.
func (t transfer) instructions() ([]solana.Instruction, error) {
	var ixs []solana.Instruction
	if t.FeePerCU > 0 {
		units := t.ComputeUnits
		if units == 0 {
			units = transferComputeUnits
		}
		ixs = append(ixs, computeBudgetInstructions(units, t.FeePerCU)...)
	}
	if t.Memo != "" {
		ixs = append(ixs, solana.NewInstruction(common.MemoProgramID, solana.AccountMetaSlice{}, []byte(t.Memo)))
	}

	var (
		programID solana.PublicKey
		accounts  solana.AccountMetaSlice
		data      []byte
		err       error
	)
	if t.Mint == nil {
		ix := system.NewTransferInstruction(t.Amount, t.Payer, t.Merchant).Build()
		programID = common.SystemProgramID
		accounts = ix.Accounts()
		data, err = ix.Data()
	} else {
		source, serr := associatedTokenAddress(t.Payer, *t.Mint, t.Program)
		if serr != nil {
			return nil, serr
		}
		dest, derr := associatedTokenAddress(t.Merchant, *t.Mint, t.Program)
		if derr != nil {
			return nil, derr
		}
		ix := token.NewTransferCheckedInstruction(t.Amount, t.Decimals, source, *t.Mint, dest, t.Payer, nil).Build()
		programID = t.Program
		accounts = ix.Accounts()
		data, err = ix.Data()
	}
	if err != nil {
		return nil, err
	}

	metas := make(solana.AccountMetaSlice, 0, len(accounts)+1)
	metas = append(metas, accounts...)
	metas = append(metas, solana.Meta(t.Reference))
	return append(ixs, solana.NewInstruction(programID, metas, data)), nil
}

// unsignedTransaction assembles the transfer with zeroed signature slots,
// ready for a wallet to sign.
func (t transfer) unsignedTransaction(blockhash solana.Hash) (*solana.Transaction, error) {
	ixs, err := t.instructions()
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(t.Payer))
	if err != nil {
		return nil, err
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	return tx, nil
}
