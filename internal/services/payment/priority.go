package payment

import (
	"context"
	"encoding/binary"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"
)

// ComputeBudgetProgramID is the compute budget program address
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

const (
	// transferComputeUnits covers a transfer, a memo and the budget
	// instructions themselves.
	transferComputeUnits uint32 = 40_000

	// MinPriorityFee is the floor in microLamports per CU.
	MinPriorityFee uint64 = 100

	// DefaultPriorityFee is used when the RPC has no recent samples.
	DefaultPriorityFee uint64 = 10_000

	feePercentile = 75

	// MaxComputeUnits is the per-transaction ceiling enforced by the runtime.
	MaxComputeUnits uint32 = 1_400_000

	computeUnitBuffer = 1.1
)

// FeeEstimator picks a priority fee from recent network samples.
type FeeEstimator struct {
	rpc RPCProvider
}

func NewFeeEstimator(rpcProvider RPCProvider) *FeeEstimator {
	return &FeeEstimator{rpc: rpcProvider}
}

// FeePerCU returns the p75 of recent non-zero prioritization fees for the
// given writable accounts, floored at MinPriorityFee.
func (f *FeeEstimator) FeePerCU(ctx context.Context, accounts []solana.PublicKey) uint64 {
	recent, err := f.rpc.Client().GetRecentPrioritizationFees(ctx, accounts)
	if err != nil {
		log.Debug().Err(err).Msg("[payment] prioritization fee lookup failed, using default")
		return DefaultPriorityFee
	}

	fees := make([]uint64, 0, len(recent))
	for _, fee := range recent {
		if fee.PrioritizationFee > 0 {
			fees = append(fees, fee.PrioritizationFee)
		}
	}
	if len(fees) == 0 {
		return DefaultPriorityFee
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i] < fees[j] })

	fee := percentile(fees, feePercentile)
	if fee < MinPriorityFee {
		fee = MinPriorityFee
	}
	return fee
}

// EstimateUnits simulates tx and returns the units it consumed plus a 10%
// buffer. Any simulation failure falls back to transferComputeUnits; the
// wallet's own simulation reports the real error to the payer.
func (f *FeeEstimator) EstimateUnits(ctx context.Context, tx *solana.Transaction) uint32 {
	res, err := f.rpc.Client().SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		Commitment:             rpc.CommitmentProcessed,
		ReplaceRecentBlockhash: true,
	})
	switch {
	case err != nil:
		log.Debug().Err(err).Msg("[payment] simulation failed, using default compute units")
		return transferComputeUnits
	case res == nil || res.Value == nil || res.Value.Err != nil:
		return transferComputeUnits
	case res.Value.UnitsConsumed == nil || *res.Value.UnitsConsumed == 0:
		return transferComputeUnits
	}

	units := uint64(float64(*res.Value.UnitsConsumed) * computeUnitBuffer)
	if units > uint64(MaxComputeUnits) {
		return MaxComputeUnits
	}
	return uint32(units)
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []uint64, p int) uint64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	k := float64(p) / 100.0 * float64(len(sorted)-1)
	f := int(k)
	c := f + 1
	if c >= len(sorted) {
		c = len(sorted) - 1
	}
	d := k - float64(f)
	return uint64(float64(sorted[f])*(1-d) + float64(sorted[c])*d)
}

// computeBudgetInstructions returns SetComputeUnitLimit and
// SetComputeUnitPrice instructions.
func computeBudgetInstructions(units uint32, microLamports uint64) []solana.Instruction {
	limit := make([]byte, 5)
	limit[0] = 2
	binary.LittleEndian.PutUint32(limit[1:], units)

	price := make([]byte, 9)
	price[0] = 3
	binary.LittleEndian.PutUint64(price[1:], microLamports)

	return []solana.Instruction{
		solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, limit),
		solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, price),
	}
}
