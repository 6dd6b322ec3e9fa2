package blockchain

import (
	"fmt"
	"strings"
)

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// readableFailure turns a program error string into a user-facing reason.
func readableFailure(raw string) string {
	switch {
	case containsFold(raw, "slippage"), containsFold(raw, "0x1771"), containsFold(raw, "Custom:6001"):
		return "price moved beyond the slippage tolerance"
	case containsFold(raw, "insufficient"), containsFold(raw, "not enough"), containsFold(raw, "Custom:1]"):
		return "insufficient funds"
	case containsFold(raw, "AccountNotFound"):
		return "a required account does not exist"
	case raw == "":
		return "transaction failed on chain"
	default:
		return fmt.Sprintf("transaction failed on chain: %s", raw)
	}
}

// DescribeTxError renders the err field of a signature status or simulation.
func DescribeTxError(txErr any) string {
	if txErr == nil {
		return ""
	}
	return readableFailure(fmt.Sprintf("%v", txErr))
}

// DescribeSimulation prefers a recognizable program log line over the raw
// error when explaining a failed simulation.
func DescribeSimulation(txErr any, logs []string) string {
	for _, line := range logs {
		if containsFold(line, "SlippageToleranceExceeded") || containsFold(line, "slippage tolerance exceeded") {
			return readableFailure("slippage")
		}
		if containsFold(line, "insufficient lamports") || containsFold(line, "insufficient funds") {
			return readableFailure("insufficient")
		}
	}
	return DescribeTxError(txErr)
}
