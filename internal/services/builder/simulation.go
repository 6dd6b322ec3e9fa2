package builder

import (
	"context"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/adapters/blockchain"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/metrics"
)

type SimulationResult struct {
	Success              bool
	Logs                 []string
	ComputeUnitsConsumed uint64
	Reason               string
}

// Simulate dry-runs the pending transaction against the current bank. The
// blockhash is replaced server side so simulation works before signing.
func (b *Builder) Simulate(ctx context.Context, pending *domain.PendingTransaction) (*SimulationResult, error) {
	if pending == nil || pending.Tx == nil {
		return nil, domain.NewError(domain.KindInternal, "nothing to simulate", nil)
	}
	metrics.SimulationRequests.Inc()

	result, err := b.rpc.Client().SimulateTransactionWithOpts(ctx, pending.Tx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		ReplaceRecentBlockhash: true,
	})
	if err != nil {
		metrics.SimulationFailures.WithLabelValues("rpc").Inc()
		return nil, domain.NewError(domain.KindNetworkError, "", err)
	}
	if result == nil || result.Value == nil {
		metrics.SimulationFailures.WithLabelValues("rpc").Inc()
		return nil, domain.NewError(domain.KindNetworkError, "empty simulation result", nil)
	}

	sim := &SimulationResult{
		Success: result.Value.Err == nil,
		Logs:    result.Value.Logs,
	}
	if result.Value.UnitsConsumed != nil {
		sim.ComputeUnitsConsumed = *result.Value.UnitsConsumed
		metrics.ComputeUnits.Observe(float64(sim.ComputeUnitsConsumed))
	}
	if !sim.Success {
		sim.Reason = blockchain.DescribeSimulation(result.Value.Err, result.Value.Logs)
		metrics.SimulationFailures.WithLabelValues("program").Inc()
	}
	return sim, nil
}

// Preflight simulates when enabled and turns a failing simulation into
// TransactionRejectedOnChain so nothing is sent to the wallet.
func (b *Builder) Preflight(ctx context.Context, pending *domain.PendingTransaction) error {
	if !b.opts.Simulate {
		return nil
	}
	sim, err := b.Simulate(ctx, pending)
	if err != nil {
		// Simulation is advisory.
		log.Warn().Err(err).Msg("[builder] simulation unavailable, continuing without preflight")
		return nil
	}
	if !sim.Success {
		return domain.NewError(domain.KindTransactionRejectedOnChain, sim.Reason, nil)
	}
	log.Debug().Uint64("computeUnits", sim.ComputeUnitsConsumed).Msg("[builder] simulation succeeded")
	return nil
}
