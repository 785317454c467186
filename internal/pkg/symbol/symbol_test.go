package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"btcusdt", "BTCUSDT"},
		{"BTCUSDT", "BTCUSDT"},
		{"BINANCE:BTCUSDT", "BTCUSDT"},
		{"BINANCE:BTCUSDT.P", "BTCUSDT"},
		{"BTC/USDT", "BTCUSDT"},
		{" eth/usdc ", "ETHUSDC"},
		{"SOLBTC", "SOLBTC"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}

func TestParseUnknownQuote(t *testing.T) {
	sym := Parse("FOOBARBAZ")
	assert.Equal(t, "FOOBARBAZ", sym.Base)
	assert.Empty(t, sym.Quote)
	assert.False(t, IsValid("FOOBARBAZ"))
	assert.True(t, IsValid("BINANCE:ETHUSDT"))
}
