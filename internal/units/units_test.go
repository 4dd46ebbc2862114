package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}

func TestFormat(t *testing.T) {
	cases := map[string]string{
		"0":                       "0.0",
		"1":                       "0.000000000000000001",
		"1000000000000000000":     "1.0",
		"1500000000000000000":     "1.5",
		"123456789000000000000":   "123.456789",
		"-2500000000000000000":    "-2.5",
		"10000000000000000000000": "10000.0",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatToken(mustBig(t, in)), in)
	}
	assert.Equal(t, "0.0", FormatToken(nil))
	assert.Equal(t, "1.05", Format(big.NewInt(105), 2))
}

func TestParse(t *testing.T) {
	cases := map[string]string{
		"1":                    "1000000000000000000",
		"1.5":                  "1500000000000000000",
		".25":                  "250000000000000000",
		"0.000000000000000001": "1",
		" 42 ":                 "42000000000000000000",
	}
	for in, want := range cases {
		got, err := ParseToken(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}

	for _, bad := range []string{"", "-1", "1.2.3", "abc", "1e18", "0.0000000000000000001"} {
		_, err := ParseToken(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"0.1", "7.0", "1234.000001"} {
		v, err := ParseToken(s)
		require.NoError(t, err)
		assert.Equal(t, s, FormatToken(v))
	}
}
