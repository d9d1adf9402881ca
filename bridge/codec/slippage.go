package codec

import (
	"fmt"
	"math/big"
)

// MaxSlippageBps is 100%.
const MaxSlippageBps uint32 = 10000

// CalculateMinAmount calculates the minimum acceptable amount with slippage tolerance.
// slippageBps is basis points (e.g., 50 = 0.5%)
// minAmount = amount * (10000 - slippageBps) / 10000
func CalculateMinAmount(amount *big.Int, slippageBps uint32) (*big.Int, error) {
	if amount == nil {
		return nil, fmt.Errorf("amount is nil")
	}
	if slippageBps > MaxSlippageBps {
		return nil, fmt.Errorf("slippage %d bps exceeds %d bps", slippageBps, MaxSlippageBps)
	}

	minAmount := new(big.Int).Mul(amount, big.NewInt(int64(MaxSlippageBps-slippageBps)))
	return minAmount.Quo(minAmount, big.NewInt(int64(MaxSlippageBps))), nil
}

// WithinTolerance reports whether received is at least the slippage-adjusted floor of expected.
func WithinTolerance(expected, received *big.Int, slippageBps uint32) bool {
	floor, err := CalculateMinAmount(expected, slippageBps)
	if err != nil || received == nil {
		return false
	}
	return received.Cmp(floor) >= 0
}
