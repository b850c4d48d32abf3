package utils

import (
	"math/big"
	"strings"
)

// FormatUnits renders a base-unit amount as a decimal string with the given
// number of fractional digits.
func FormatUnits(amount *big.Int, decimals int, fracDigits int) string {
	if amount == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	value := new(big.Float).SetInt(amount)
	value.Quo(value, new(big.Float).SetInt(scale))
	return value.Text('f', fracDigits)
}

// FormatEther renders an 18-decimal base-unit amount with trailing zeros
// trimmed, the way explorers display native amounts.
func FormatEther(wei *big.Int) string {
	text := FormatUnits(wei, 18, 18)
	text = strings.TrimRight(text, "0")
	return strings.TrimSuffix(text, ".")
}
