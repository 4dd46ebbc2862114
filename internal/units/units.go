// Package units converts token amounts between base units and decimal strings.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// TokenDecimals is the precision of SPAY and the ETF token.
const TokenDecimals = 18

var ErrInvalidAmount = errors.New("invalid amount")

// Format renders value with the given number of decimals, trimming trailing
// zeros but keeping at least one fractional digit: 1500000000000000000 -> "1.5".
func Format(value *big.Int, decimals int) string {
	if value == nil {
		return "0.0"
	}
	neg := value.Sign() < 0
	digits := new(big.Int).Abs(value).String()
	if len(digits) <= decimals {
		digits = strings.Repeat("0", decimals-len(digits)+1) + digits
	}
	whole := digits[:len(digits)-decimals]
	frac := strings.TrimRight(digits[len(digits)-decimals:], "0")
	if frac == "" {
		frac = "0"
	}
	out := whole + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// Parse converts a decimal string into base units. It rejects negative
// values and more fractional digits than decimals allows.
func Parse(raw string, decimals int) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	whole, frac, _ := strings.Cut(raw, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, raw, decimals)
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
			}
		}
	}
	v, ok := new(big.Int).SetString(whole+frac+strings.Repeat("0", decimals-len(frac)), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return v, nil
}

// FormatToken formats an 18-decimal token amount.
func FormatToken(value *big.Int) string { return Format(value, TokenDecimals) }

// ParseToken parses an 18-decimal token amount.
func ParseToken(raw string) (*big.Int, error) { return Parse(raw, TokenDecimals) }
