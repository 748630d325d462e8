package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want Currency
		ok   bool
	}{
		{"bitcoin", Bitcoin, true},
		{"Bitcoin", Bitcoin, true},
		{"Binance Coin", BinanceCoin, true},
		{" binance-coin ", BinanceCoin, true},
		{"DOGECOIN", Dogecoin, true},
		{"litecoin", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, err := ParseCurrency(tt.in)
		if !tt.ok {
			assert.ErrorIs(t, err, ErrUnsupportedCurrency, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestCurrencySymbols(t *testing.T) {
	assert.Len(t, Currencies, 9)
	for _, c := range Currencies {
		assert.NotEmpty(t, c.Symbol())
	}
	assert.Equal(t, "USDT", Tether.Symbol())
	assert.Equal(t, "FOO", Currency("foo").Symbol())
}

func TestShortCodes(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	tx := Transaction{ID: id}
	sw := Swap{ID: id}
	assert.Equal(t, "TX4FD430C8", tx.Code())
	assert.Equal(t, "SW4FD430C8", sw.Code())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestMetadataScan(t *testing.T) {
	var m Metadata
	require.NoError(t, m.Scan([]byte(`{"swap_id":"abc","rate":1}`)))
	assert.Equal(t, "abc", m["swap_id"])

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)
}

func TestPagination(t *testing.T) {
	p := Page{Page: 3, Limit: 20}
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, Pagination{Page: 3, Limit: 20, Total: 41, Pages: 3}, NewPagination(p, 41))
	assert.Equal(t, 0, Page{}.Offset())
}
