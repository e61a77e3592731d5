package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
)

// AmountAll is the amount keyword meaning the full position or balance.
const AmountAll = "all"

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// IsAll reports whether amount is the "all" keyword.
func IsAll(amount string) bool {
	return strings.EqualFold(strings.TrimSpace(amount), AmountAll)
}

// ParseAmount validates an amount that is either "all" or a non-negative
// decimal and returns its normalized form.
func ParseAmount(amount string) (string, error) {
	raw := strings.TrimSpace(amount)
	if raw == "" {
		return "", clierr.New(clierr.CodeInvalidInput, "amount is required")
	}
	if IsAll(raw) {
		return AmountAll, nil
	}
	if !decimalPattern.MatchString(raw) {
		return "", clierr.New(clierr.CodeInvalidInput, fmt.Sprintf("invalid amount format: %s", amount))
	}
	return normalizeDecimal(raw), nil
}

// ParseRat parses a decimal string into an exact rational.
func ParseRat(amount string) (*big.Rat, bool) {
	raw := strings.TrimSpace(amount)
	if !decimalPattern.MatchString(raw) {
		return nil, false
	}
	r, ok := new(big.Rat).SetString(raw)
	return r, ok
}

// FormatRat renders r as a decimal string with at most 18 fractional digits
// and no trailing zeros.
func FormatRat(r *big.Rat) string {
	if r == nil {
		return ""
	}
	return normalizeDecimal(r.FloatString(18))
}

// DecimalToBaseUnits converts a decimal amount to integer base units.
// Precision beyond the token decimals is truncated.
func DecimalToBaseUnits(decimal string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, clierr.New(clierr.CodeInvalidInput, "decimals must be >= 0")
	}
	raw := strings.TrimSpace(decimal)
	if !decimalPattern.MatchString(raw) {
		return nil, clierr.New(clierr.CodeInvalidInput, fmt.Sprintf("invalid decimal amount: %s", decimal))
	}
	parts := strings.SplitN(raw, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	}
	fracPart += strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeInvalidInput, "invalid decimal amount")
	}
	return out, nil
}

func normalizeDecimal(v string) string {
	if !strings.Contains(v, ".") {
		out := strings.TrimLeft(v, "0")
		if out == "" {
			return "0"
		}
		return out
	}
	parts := strings.SplitN(v, ".", 2)
	intPart := strings.TrimLeft(parts[0], "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart := strings.TrimRight(parts[1], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}
