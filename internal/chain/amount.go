package chain

import (
	"math/big"
	"strings"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// NativeDecimals is the decimal precision of the native token.
const NativeDecimals = 9

// LamportsPerNative is 10^NativeDecimals.
const LamportsPerNative uint64 = 1_000_000_000

// ParseAmount parses a non-negative decimal string into base units with the
// given decimal places. Extra fractional digits are truncated. For example,
// "1.5" with 9 decimals returns 1500000000.
//
//nolint:gocognit,gocyclo // Decimal parsing requires sequential validation steps
func ParseAmount(amount string, decimals uint8) (uint64, error) {
	invalid := walleterr.WithDetails(walleterr.ErrInvalidAmount, map[string]string{"amount": amount})
	if amount == "" || strings.HasPrefix(amount, "-") {
		return 0, invalid
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return 0, invalid
	}

	intPart := parts[0]
	decPart := ""
	if len(parts) == 2 {
		decPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, c := range intPart + decPart {
		if c < '0' || c > '9' {
			return 0, invalid
		}
	}

	intVal, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return 0, invalid
	}
	multiplier := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	result := new(big.Int).Mul(intVal, multiplier)

	if decPart != "" {
		for len(decPart) < int(decimals) {
			decPart += "0"
		}
		decPart = decPart[:decimals]
		if decPart != "" {
			decVal, ok := new(big.Int).SetString(decPart, 10)
			if !ok {
				return 0, invalid
			}
			result.Add(result, decVal)
		}
	}

	if !result.IsUint64() {
		return 0, walleterr.WithDetails(walleterr.ErrInvalidAmount, map[string]string{"amount": amount, "reason": "overflows u64"})
	}
	return result.Uint64(), nil
}

// FormatAmount renders base units with the given decimal places, trimming
// trailing zeros. For example, 1500000000 with 9 decimals returns "1.5".
func FormatAmount(amount uint64, decimals uint8) string {
	str := new(big.Int).SetUint64(amount).String()
	if decimals == 0 {
		return str
	}

	for len(str) <= int(decimals) {
		str = "0" + str
	}
	pos := len(str) - int(decimals)
	result := str[:pos] + "." + str[pos:]

	result = strings.TrimRight(result, "0")
	return strings.TrimSuffix(result, ".")
}
