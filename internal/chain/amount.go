// Package chain provides amount conversion, retry, and rate limiting helpers
// shared by the ledger client and the contract gateway.
package chain

import (
	"math/big"
	"strings"
)

// NativeDecimals is the number of decimals of the ledger's native unit (wei per ether).
const NativeDecimals = 18

// DisplayPlaces is the number of fractional digits shown for balances.
const DisplayPlaces = 4

// ParseDecimalAmount parses a decimal amount string to big.Int with the given decimal places.
// For example, "1.5" with 18 decimals returns 1500000000000000000.
// Negative values, exponents, surrounding whitespace, and more fractional
// digits than decimalPlaces are rejected with invalidAmountErr.
//
//nolint:gocognit,gocyclo // Decimal parsing requires sequential validation steps
func ParseDecimalAmount(amount string, decimalPlaces int, invalidAmountErr error) (*big.Int, error) {
	if amount == "" || amount == "." {
		return nil, invalidAmountErr
	}

	// Check for negative amounts
	if strings.HasPrefix(amount, "-") {
		return nil, invalidAmountErr
	}

	// Split by decimal point
	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, invalidAmountErr
	}

	intPart := parts[0]
	decPart := ""
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if !isDigits(intPart) || !isDigits(decPart) {
		return nil, invalidAmountErr
	}
	if len(decPart) > decimalPlaces {
		return nil, invalidAmountErr
	}

	if intPart == "" {
		intPart = "0"
	}
	intVal, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, invalidAmountErr
	}

	// Scale integer part
	multiplier := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimalPlaces)), nil)
	result := new(big.Int).Mul(intVal, multiplier)

	if decPart != "" {
		// Pad decimal part
		decPart += strings.Repeat("0", decimalPlaces-len(decPart))

		decVal, ok := new(big.Int).SetString(decPart, 10)
		if !ok {
			return nil, invalidAmountErr
		}

		result = result.Add(result, decVal)
	}

	return result, nil
}

// ParseNativeAmount parses a human decimal string into the ledger's smallest unit.
func ParseNativeAmount(amount string, invalidAmountErr error) (*big.Int, error) {
	return ParseDecimalAmount(amount, NativeDecimals, invalidAmountErr)
}

// FormatDecimalAmount converts a big.Int to a human-readable string with the given decimal places.
// Trailing zeros after the decimal point are removed.
// For example, 1500000000000000000 with 18 decimals returns "1.5".
func FormatDecimalAmount(amount *big.Int, decimalPlaces int) string {
	if amount == nil {
		return "0"
	}

	str := padAmount(amount, decimalPlaces)

	// Insert decimal point
	decimalPos := len(str) - decimalPlaces

	result := str[:decimalPos] + "." + str[decimalPos:]

	// Remove unnecessary trailing zeros
	for len(result) > 1 && result[len(result)-1] == '0' && result[len(result)-2] != '.' {
		result = result[:len(result)-1]
	}

	return result
}

// FormatFixed formats a non-negative amount with exactly places fractional digits.
// Digits beyond places are truncated, never rounded.
// For example, 1500000000000000000 with 18 decimals and 4 places returns "1.5000".
func FormatFixed(amount *big.Int, decimalPlaces, places int) string {
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return "-" + FormatFixed(new(big.Int).Abs(amount), decimalPlaces, places)
	}

	str := padAmount(amount, decimalPlaces)
	decimalPos := len(str) - decimalPlaces
	whole, frac := str[:decimalPos], str[decimalPos:]

	if len(frac) >= places {
		frac = frac[:places]
	} else {
		frac += strings.Repeat("0", places-len(frac))
	}

	if places == 0 {
		return whole
	}
	return whole + "." + frac
}

// FormatNativeBalance formats a smallest-unit value for display with DisplayPlaces digits.
func FormatNativeBalance(amount *big.Int) string {
	return FormatFixed(amount, NativeDecimals, DisplayPlaces)
}

// padAmount renders amount with enough leading zeros to hold decimalPlaces
// fractional digits and at least one whole digit.
func padAmount(amount *big.Int, decimalPlaces int) string {
	str := amount.String()
	if len(str) <= decimalPlaces {
		str = strings.Repeat("0", decimalPlaces-len(str)+1) + str
	}
	return str
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
