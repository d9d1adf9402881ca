// Package codec converts between human decimal amounts and integer base units and encodes the
// small byte layouts the LayerZero contracts expect (bytes32 recipients, executor options,
// V1 adapter params).
package codec

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyAmount    = errors.New("amount is empty")
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// HumanToBaseUnits converts a decimal string such as "1.25" into base units for a token with
// the given number of decimals. Digits beyond the token precision are truncated, never rounded up.
func HumanToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, ErrEmptyAmount
	}

	if strings.ContainsAny(trimmed, "eE") {
		return nil, fmt.Errorf("invalid amount %q: exponent notation is not accepted", amount)
	}

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}

	return value.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// BaseUnitsToHuman formats base units as a decimal string without trailing zeros.
func BaseUnitsToHuman(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ConvertDecimals rescales an amount between two decimal precisions, truncating when the
// destination precision is lower.
func ConvertDecimals(amount *big.Int, fromDecimals, toDecimals uint8) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	out := new(big.Int).Set(amount)
	switch {
	case toDecimals > fromDecimals:
		out.Mul(out, pow10(toDecimals-fromDecimals))
	case toDecimals < fromDecimals:
		out.Quo(out, pow10(fromDecimals-toDecimals))
	}
	return out
}

// RemoveDust truncates an amount in local decimals to the precision an OFT can carry across
// chains (its shared decimals). A zero sharedDecimals or one not lower than decimals is a no-op.
func RemoveDust(amount *big.Int, decimals, sharedDecimals uint8) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	if sharedDecimals == 0 || sharedDecimals >= decimals {
		return new(big.Int).Set(amount)
	}
	rate := pow10(decimals - sharedDecimals)
	out := new(big.Int).Quo(amount, rate)
	return out.Mul(out, rate)
}

// ApplyBuffer adds percent% on top of fee, rounding the buffer down.
func ApplyBuffer(fee *big.Int, percent int64) *big.Int {
	if fee == nil {
		return new(big.Int)
	}
	extra := new(big.Int).Mul(fee, big.NewInt(percent))
	extra.Quo(extra, big.NewInt(100))
	return extra.Add(extra, fee)
}

// NativeUnits scales a whole number of native-currency units to wei.
func NativeUnits(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), pow10(18))
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
