// Package units converts between human-readable token amounts and integer
// base units. Anything sent to the aggregator or the chain goes through the
// integer path; floats are only produced for display.
package units

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/swap-engine/internal/domain"
)

const bpsDenominator = 10000

// MaxDecimals bounds the precision we accept from token lists.
const MaxDecimals = 19

// ToBaseUnits returns floor(amount * 10^decimals).
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if decimals > MaxDecimals {
		return 0, domain.NewError(domain.KindInvalidAmount, fmt.Sprintf("unsupported decimals %d", decimals), nil)
	}
	if amount.IsNegative() {
		return 0, domain.NewError(domain.KindInvalidAmount, "amount must not be negative", nil)
	}
	base := amount.Shift(int32(decimals)).Floor().BigInt()
	if !base.IsUint64() {
		return 0, domain.NewError(domain.KindInvalidAmount, fmt.Sprintf("amount %s overflows base units", amount), nil)
	}
	return base.Uint64(), nil
}

// ParseToBaseUnits parses a decimal string such as "1.5" and converts it.
func ParseToBaseUnits(s string, decimals uint8) (uint64, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return 0, domain.NewError(domain.KindInvalidAmount, fmt.Sprintf("invalid amount %q", s), err)
	}
	return ToBaseUnits(amount, decimals)
}

// FromBaseUnits returns base / 10^decimals exactly.
func FromBaseUnits(base uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromUint64(base).Shift(-int32(decimals))
}

// FormatDisplay renders a base-unit amount with at most places fractional
// digits, truncating rather than rounding up.
func FormatDisplay(base uint64, decimals uint8, places int32) string {
	return FromBaseUnits(base, decimals).Truncate(places).String()
}

// ApplySlippageDown returns floor(amount * (10000 - bps) / 10000), the minimum
// received for an ExactIn quote.
func ApplySlippageDown(amount uint64, bps uint16) uint64 {
	if bps >= bpsDenominator {
		return 0
	}
	return mulDiv(amount, bpsDenominator-uint64(bps), bpsDenominator)
}

// ApplySlippageUp returns ceil(amount * 10000 / (10000 - bps)), the maximum
// input for an ExactOut quote. Degenerate slippage (>= 100%) returns amount.
func ApplySlippageUp(amount uint64, bps uint16) uint64 {
	if bps >= bpsDenominator {
		return amount
	}
	divisor := bpsDenominator - uint64(bps)
	n := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(bpsDenominator))
	n.AddUint64(n, divisor-1)
	n.Div(n, uint256.NewInt(divisor))
	if !n.IsUint64() {
		return ^uint64(0)
	}
	return n.Uint64()
}

// BpsOf returns floor(amount * bps / 10000).
func BpsOf(amount uint64, bps uint16) uint64 {
	return mulDiv(amount, uint64(bps), bpsDenominator)
}

func mulDiv(a, b, d uint64) uint64 {
	n := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	n.Div(n, uint256.NewInt(d))
	return n.Uint64()
}

// ConvertByPrice values amount of a token (base units) in another token using
// a unit price, returning base units of the target.
func ConvertByPrice(base uint64, fromDecimals uint8, price decimal.Decimal, toDecimals uint8) (uint64, error) {
	return ToBaseUnits(FromBaseUnits(base, fromDecimals).Mul(price), toDecimals)
}
