package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleContracts = `
contracts:
  btcusdt:
    exchange_symbol: BTCUSDT
    name: Bitcoin
    price_precision: 1
    size_precision: 3
    min_size: "0.001"
    size_increment: "0.001"
    default_quantity: "0.01"
    stop_loss_percentage: 5
  ethusdt:
    default_quantity: "0.1"
    price_precision: 2
    size_precision: 3
  dogeusdt:
    default_quantity: "100"
    active: false
`

func writeContracts(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contracts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestContractLoaderSnapshot(t *testing.T) {
	l, err := NewContractLoader(writeContracts(t, sampleContracts))
	require.NoError(t, err)

	snap := l.Snapshot()
	require.Len(t, snap.Contracts, 3)

	btc, ok := snap.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", btc.ExchangeSymbol)
	assert.Equal(t, int32(1), btc.PricePrecision)
	assert.Equal(t, "0.01", btc.DefaultQuantity.String())
	assert.Equal(t, "5", btc.StopLossPercentage.String())
	assert.True(t, btc.Active)

	// 未显式配置的字段回退到默认值。
	eth, ok := snap.Get("ethusdt")
	require.True(t, ok)
	assert.Equal(t, "ETHUSDT", eth.ExchangeSymbol)
	assert.Equal(t, "10", eth.StopLossPercentage.String())
}

func TestContractLoaderLookupSkipsInactive(t *testing.T) {
	l, err := NewContractLoader(writeContracts(t, sampleContracts))
	require.NoError(t, err)

	_, ok := l.Lookup("DOGEUSDT")
	assert.False(t, ok)

	_, ok = l.Lookup("BTCUSDT")
	assert.True(t, ok)

	_, ok = l.Lookup("UNKNOWN")
	assert.False(t, ok)
}

func TestContractLoaderRejectsMissingQuantity(t *testing.T) {
	_, err := NewContractLoader(writeContracts(t, `
contracts:
  btcusdt:
    price_precision: 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_quantity")
}

func TestContractLoaderRejectsBadDecimal(t *testing.T) {
	_, err := NewContractLoader(writeContracts(t, `
contracts:
  btcusdt:
    default_quantity: "abc"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_quantity")
}
