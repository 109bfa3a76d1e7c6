package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokens(t *testing.T) {
	t.Run("exact conversion to smallest units", func(t *testing.T) {
		a, err := ParseTokens("2.5", 8)
		require.NoError(t, err)
		assert.Equal(t, "250000000", a.String())
	})

	t.Run("whole tokens", func(t *testing.T) {
		a, err := ParseTokens("7", 8)
		require.NoError(t, err)
		assert.Equal(t, "700000000", a.String())
	})

	t.Run("smallest representable unit", func(t *testing.T) {
		a, err := ParseTokens("0.00000001", 8)
		require.NoError(t, err)
		assert.Equal(t, "1", a.String())
	})

	t.Run("rejects precision below the smallest unit", func(t *testing.T) {
		_, err := ParseTokens("0.000000001", 8)
		assert.Error(t, err)
	})

	t.Run("rejects negative amounts", func(t *testing.T) {
		_, err := ParseTokens("-1", 8)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseTokens("1.2.3", 8)
		assert.Error(t, err)
	})
}

func TestFormatRoundTrip(t *testing.T) {
	cases := []string{"0", "1", "100000000", "250000000", "123456789012345678901234567890"}
	for _, raw := range cases {
		a, err := AmountFromString(raw)
		require.NoError(t, err)

		back, err := ParseTokens(a.Format(8), 8)
		require.NoError(t, err)
		assert.Equal(t, 0, a.Cmp(back), "round trip changed %s", raw)
	}
}

func TestAmountExceedsUint64(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 80)
	a, err := AmountFromBig(huge)
	require.NoError(t, err)

	_, ok := a.Uint64()
	assert.False(t, ok)
	assert.Equal(t, huge.String(), a.String())
}

func TestAmountArithmetic(t *testing.T) {
	a := NewAmount(100)
	b := NewAmount(40)

	assert.Equal(t, "140", a.Add(b).String())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "60", diff.String())

	_, err = b.Sub(a)
	assert.Error(t, err, "underflow must be rejected")

	assert.Equal(t, 1, a.Cmp(b))
	assert.True(t, NewAmount(0).IsZero())
}

func TestAmountFromBigRejectsNegative(t *testing.T) {
	_, err := AmountFromBig(big.NewInt(-5))
	assert.Error(t, err)
}

func TestAmountDecimalConversion(t *testing.T) {
	a := NewAmount(150_000_000)
	assert.True(t, a.Decimal(8).Equal(decimal.RequireFromString("1.5")))

	back, err := AmountFromDecimal(decimal.RequireFromString("1.5"), 8)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Cmp(back))
}

func TestAmountJSON(t *testing.T) {
	a, err := AmountFromString("18446744073709551616") // 2^64
	require.NoError(t, err)

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"18446744073709551616"`, string(raw))

	var decoded Amount
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 0, a.Cmp(decoded))
}
