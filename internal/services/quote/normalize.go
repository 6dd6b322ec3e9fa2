package quote

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hxuan190/swap-engine/internal/adapters/aggregator"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/units"
)

func malformed(format string, args ...any) error {
	return domain.NewError(domain.KindNetworkError, "aggregator returned a malformed quote", fmt.Errorf(format, args...))
}

func parseAmount(field, v string) (uint64, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, malformed("%s %q: %w", field, v, err)
	}
	return n, nil
}

// normalize validates the aggregator payload against the intent that produced
// it and builds a domain Quote. Nothing from the payload reaches the domain
// without a schema check.
func normalize(resp *aggregator.QuoteResponse, raw []byte, intent domain.SwapIntent, now time.Time) (*domain.Quote, error) {
	if resp.InputMint != intent.InputMint || resp.OutputMint != intent.OutputMint {
		return nil, malformed("mint mismatch: got %s->%s", resp.InputMint, resp.OutputMint)
	}
	if resp.SwapMode != "" && domain.SwapMode(resp.SwapMode) != intent.Mode {
		return nil, malformed("swap mode mismatch: got %s", resp.SwapMode)
	}

	inAmount, err := parseAmount("inAmount", resp.InAmount)
	if err != nil {
		return nil, err
	}
	outAmount, err := parseAmount("outAmount", resp.OutAmount)
	if err != nil {
		return nil, err
	}
	var threshold uint64
	if resp.OtherAmountThreshold != "" {
		if threshold, err = parseAmount("otherAmountThreshold", resp.OtherAmountThreshold); err != nil {
			return nil, err
		}
	}
	if inAmount == 0 || outAmount == 0 {
		return nil, domain.NewError(domain.KindNoRoute, "", nil)
	}

	q := &domain.Quote{
		InputMint:   intent.InputMint,
		OutputMint:  intent.OutputMint,
		OutAmount:   outAmount,
		Mode:        intent.Mode,
		SlippageBps: intent.SlippageBps,
		ContextSlot: resp.ContextSlot,
		FetchedAt:   now,
		Raw:         raw,
	}

	switch intent.Mode {
	case domain.SwapModeExactIn:
		if inAmount != intent.Amount {
			return nil, malformed("inAmount %d does not match requested %d", inAmount, intent.Amount)
		}
		if threshold > outAmount {
			return nil, malformed("minimum out %d exceeds out amount %d", threshold, outAmount)
		}
		q.InAmount = inAmount
		q.EstimatedInAmount = inAmount
		q.OutAmountWithSlippage = units.ApplySlippageDown(outAmount, intent.SlippageBps)
	case domain.SwapModeExactOut:
		if outAmount != intent.Amount {
			return nil, malformed("outAmount %d does not match requested %d", outAmount, intent.Amount)
		}
		maxIn := threshold
		if maxIn == 0 {
			maxIn = units.ApplySlippageUp(inAmount, intent.SlippageBps)
		}
		if maxIn < inAmount {
			return nil, malformed("maximum in %d is below estimate %d", maxIn, inAmount)
		}
		q.InAmount = maxIn
		q.EstimatedInAmount = inAmount
		q.OutAmountWithSlippage = outAmount
	default:
		return nil, domain.NewError(domain.KindInvalidMode, fmt.Sprintf("invalid swap mode %q", intent.Mode), nil)
	}

	if resp.PriceImpactPct != "" {
		impact, err := decimal.NewFromString(resp.PriceImpactPct)
		if err != nil {
			return nil, malformed("priceImpactPct %q: %w", resp.PriceImpactPct, err)
		}
		q.PriceImpactPct = impact
	}

	if resp.PlatformFee != nil && resp.PlatformFee.Amount != "" {
		amount, err := parseAmount("platformFee.amount", resp.PlatformFee.Amount)
		if err != nil {
			return nil, err
		}
		if resp.PlatformFee.FeeBps < 0 || resp.PlatformFee.FeeBps > domain.MaxSlippageBps {
			return nil, malformed("platformFee.feeBps %d", resp.PlatformFee.FeeBps)
		}
		q.PlatformFee = &domain.PlatformFee{Amount: amount, FeeBps: uint16(resp.PlatformFee.FeeBps)}
	}

	q.Route = make([]domain.RouteLeg, 0, len(resp.RoutePlan))
	for i, step := range resp.RoutePlan {
		leg, err := normalizeLeg(i, step)
		if err != nil {
			return nil, err
		}
		q.Route = append(q.Route, leg)
	}
	return q, nil
}

func normalizeLeg(i int, step aggregator.RoutePlanStep) (domain.RouteLeg, error) {
	info := step.SwapInfo
	if info.InputMint == "" || info.OutputMint == "" {
		return domain.RouteLeg{}, malformed("route leg %d has no mints", i)
	}
	if step.Percent < 0 || step.Percent > 100 {
		return domain.RouteLeg{}, malformed("route leg %d percent %d", i, step.Percent)
	}
	in, err := parseAmount(fmt.Sprintf("routePlan[%d].inAmount", i), info.InAmount)
	if err != nil {
		return domain.RouteLeg{}, err
	}
	out, err := parseAmount(fmt.Sprintf("routePlan[%d].outAmount", i), info.OutAmount)
	if err != nil {
		return domain.RouteLeg{}, err
	}
	var fee uint64
	if info.FeeAmount != "" {
		if fee, err = parseAmount(fmt.Sprintf("routePlan[%d].feeAmount", i), info.FeeAmount); err != nil {
			return domain.RouteLeg{}, err
		}
	}
	venue := info.Label
	if venue == "" {
		venue = info.AmmKey
	}
	return domain.RouteLeg{
		Venue:      venue,
		AmmKey:     info.AmmKey,
		InputMint:  info.InputMint,
		OutputMint: info.OutputMint,
		InAmount:   in,
		OutAmount:  out,
		FeeAmount:  fee,
		FeeMint:    info.FeeMint,
		Percent:    uint8(step.Percent),
	}, nil
}
