package types

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount is an unsigned token quantity in the ledger's smallest unit
// (e8s-style). It is carried as an arbitrary-precision integer so
// comparisons and fee arithmetic never lose precision.
type Amount struct {
	i big.Int
}

// NewAmount returns an Amount from a uint64 of smallest units.
func NewAmount(v uint64) Amount {
	var a Amount
	a.i.SetUint64(v)
	return a
}

// AmountFromBig returns an Amount from a big integer of smallest units.
// Negative values are rejected.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, fmt.Errorf("amount is nil")
	}
	if b.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount cannot be negative: %s", b.String())
	}
	var a Amount
	a.i.Set(b)
	return a, nil
}

// AmountFromString parses a base-10 integer of smallest units.
func AmountFromString(s string) (Amount, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return AmountFromBig(b)
}

// ParseTokens converts a display-unit decimal string (e.g. "2.5") into
// smallest units for a token with the given number of decimals. Values
// with more precision than the smallest unit are rejected rather than
// silently truncated.
func ParseTokens(s string, decimals int32) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid token amount %q: %w", s, err)
	}
	return amountFromDecimal(d, decimals)
}

// AmountFromDecimal converts a display-unit decimal into smallest units.
func AmountFromDecimal(d decimal.Decimal, decimals int32) (Amount, error) {
	return amountFromDecimal(d, decimals)
}

func amountFromDecimal(d decimal.Decimal, decimals int32) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("token amount cannot be negative: %s", d.String())
	}
	shifted := d.Shift(decimals)
	if !shifted.IsInteger() {
		return Amount{}, fmt.Errorf("token amount %s exceeds %d-decimal precision", d.String(), decimals)
	}
	return AmountFromBig(shifted.BigInt())
}

// Format renders the amount in display units for a token with the given
// number of decimals. The conversion is exact: Format round-trips with
// ParseTokens down to the smallest representable unit.
func (a Amount) Format(decimals int32) string {
	return a.Decimal(decimals).String()
}

// Decimal returns the amount in display units as a decimal value.
func (a Amount) Decimal(decimals int32) decimal.Decimal {
	var i big.Int
	i.Set(&a.i)
	return decimal.NewFromBigInt(&i, -decimals)
}

// BigInt returns a copy of the raw smallest-unit value.
func (a Amount) BigInt() *big.Int {
	return new(big.Int).Set(&a.i)
}

// Uint64 returns the raw value; ok is false on overflow.
func (a Amount) Uint64() (v uint64, ok bool) {
	if !a.i.IsUint64() {
		return 0, false
	}
	return a.i.Uint64(), true
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	var out Amount
	out.i.Add(&a.i, &b.i)
	return out
}

// Sub returns a - b, or an error if the result would be negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	out.i.Sub(&a.i, &b.i)
	if out.i.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount underflow: %s - %s", a.String(), b.String())
	}
	return out, nil
}

// Cmp compares a and b: -1 if a < b, 0 if equal, 1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.i.Cmp(&b.i)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.i.Sign() == 0
}

// String returns the raw smallest-unit value in base 10.
func (a Amount) String() string {
	return a.i.String()
}

// MarshalJSON encodes the amount as a decimal string to survive
// JSON number precision limits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.i.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted or bare base-10 integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := AmountFromString(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
