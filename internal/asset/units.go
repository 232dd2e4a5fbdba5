package asset

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimalToBigInt converts a decimal string into base units with the
// given number of decimals. Extra fractional digits are rejected.
func ParseDecimalToBigInt(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("asset: invalid decimal string %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrTooManyDecimals
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// FormatWeiToDecimalString renders an 18-decimal amount.
func FormatWeiToDecimalString(wei *big.Int) string {
	return FormatUnits(wei, TorusDecimals)
}

// ToRems converts a TORUS decimal string into its 18-decimal base unit.
func ToRems(s string) (*big.Int, error) {
	return ParseDecimalToBigInt(s, TorusDecimals)
}

// WeiToFixed renders wei as ETH with a fixed number of places.
func WeiToFixed(wei *big.Int, places int32) string {
	if wei == nil {
		return decimal.Zero.StringFixed(places)
	}
	return decimal.NewFromBigInt(wei, -18).StringFixed(places)
}
