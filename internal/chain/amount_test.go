package chain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBadAmount = errors.New("bad amount")

func wei(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("not a base-10 integer: " + s)
	}
	return n
}

func TestParseDecimalAmount(t *testing.T) {
	t.Parallel()

	accepted := map[string]struct {
		in       string
		decimals int
		want     string
	}{
		"deposit of two and a half": {"2.5", 18, "2500000000000000000"},
		"whole number":              {"100", 18, "100000000000000000000"},
		"leading point":             {".5", 18, "500000000000000000"},
		"trailing point":            {"5.", 18, "5000000000000000000"},
		"zero":                      {"0", 18, "0"},
		"zero with fraction":        {"0.0", 8, "0"},
		"every place used":          {"1.123456789012345678", 18, "1123456789012345678"},
		"one wei":                   {"0.000000000000000001", 18, "1"},
		"short fraction padded":     {"1.1", 8, "110000000"},
	}
	for name, tc := range accepted {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDecimalAmount(tc.in, tc.decimals, errBadAmount)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}

	rejected := map[string]struct {
		in       string
		decimals int
	}{
		"empty":             {"", 18},
		"lone point":        {".", 18},
		"negative":          {"-1", 18},
		"explicit plus":     {"+1", 18},
		"two points":        {"1.2.3", 18},
		"word":              {"abc", 18},
		"word fraction":     {"1.abc", 18},
		"word integer":      {"abc.1", 18},
		"padded":            {" 1.5", 18},
		"exponent":          {"1e18", 18},
		"below one wei":     {"1.1234567890123456789", 18},
		"below token units": {"0.123456789", 8},
	}
	for name, tc := range rejected {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseDecimalAmount(tc.in, tc.decimals, errBadAmount)
			require.ErrorIs(t, err, errBadAmount)
		})
	}
}

func TestParseNativeAmount(t *testing.T) {
	t.Parallel()
	got, err := ParseNativeAmount("0.25", errBadAmount)
	require.NoError(t, err)
	assert.Equal(t, "250000000000000000", got.String())
}

func TestFormatDecimalAmount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.5", FormatDecimalAmount(wei("1500000000000000000"), 18))
	assert.Equal(t, "0.1", FormatDecimalAmount(big.NewInt(10000000), 8))
	assert.Equal(t, "0", FormatDecimalAmount(nil, 18))
	assert.Equal(t, "0.0", FormatDecimalAmount(big.NewInt(0), 8))
	assert.Equal(t, "0.000000000000000001", FormatDecimalAmount(big.NewInt(1), 18))
	assert.Equal(t, "123456789012.34567890123456789", FormatDecimalAmount(wei("123456789012345678901234567890"), 18))
	assert.Equal(t, "100.", FormatDecimalAmount(big.NewInt(100), 0))
}

func TestFormatFixed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		amount   *big.Int
		decimals int
		places   int
		want     string
	}{
		{"pads to four places", wei("1500000000000000000"), 18, 4, "1.5000"},
		{"dust shows as zero", big.NewInt(1), 18, 4, "0.0000"},
		{"truncates instead of rounding", wei("999999999999999999"), 18, 4, "0.9999"},
		{"zero", big.NewInt(0), 18, 4, "0.0000"},
		{"nil", nil, 18, 4, "0.0000"},
		{"large", wei("123456789000000000000000"), 18, 4, "123456.7890"},
		{"fewer decimals than places", big.NewInt(15), 1, 4, "1.5000"},
		{"integer only", wei("2500000000000000000"), 18, 0, "2"},
		{"negative", wei("-1500000000000000000"), 18, 4, "-1.5000"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, FormatFixed(tc.amount, tc.decimals, tc.places))
		})
	}
}

func TestFormatNativeBalance(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "3.5000", FormatNativeBalance(wei("3500000000000000000")))
	assert.Equal(t, "0.0001", FormatNativeBalance(wei("100099999999999")))
	assert.Equal(t, "0.0000", FormatNativeBalance(big.NewInt(1)))
}

// Balances shown with four places parse back to the same value when the
// input had no more than four places.
func TestFormatNativeBalance_Reparses(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"0", "1", "2.5", "0.0001", "1234.5678"} {
		v, err := ParseNativeAmount(in, errBadAmount)
		require.NoError(t, err)

		back, err := ParseNativeAmount(FormatNativeBalance(v), errBadAmount)
		require.NoError(t, err)
		assert.Zero(t, back.Cmp(v), in)
	}
}
