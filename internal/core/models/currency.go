package models

import (
	"errors"
	"fmt"
	"strings"
)

// Currency - идентификатор поддерживаемой криптовалюты
type Currency string

const (
	Bitcoin     Currency = "bitcoin"
	Ethereum    Currency = "ethereum"
	Tether      Currency = "tether"
	BinanceCoin Currency = "binance-coin"
	Solana      Currency = "solana"
	Ripple      Currency = "ripple"
	Stellar     Currency = "stellar"
	Dogecoin    Currency = "dogecoin"
	Tron        Currency = "tron"
)

// Currencies is the closed set of supported identifiers, in display order.
var Currencies = []Currency{
	Bitcoin,
	Ethereum,
	Tether,
	BinanceCoin,
	Solana,
	Ripple,
	Stellar,
	Dogecoin,
	Tron,
}

var currencySymbols = map[Currency]string{
	Bitcoin:     "BTC",
	Ethereum:    "ETH",
	Tether:      "USDT",
	BinanceCoin: "BNB",
	Solana:      "SOL",
	Ripple:      "XRP",
	Stellar:     "XLM",
	Dogecoin:    "DOGE",
	Tron:        "TRX",
}

var ErrUnsupportedCurrency = errors.New("unsupported cryptocurrency")

// NormalizeCurrency lower-cases the identifier and replaces spaces with hyphens.
func NormalizeCurrency(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(NormalizeCurrency(s))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCurrency, s)
	}
	return c, nil
}

func (c Currency) Valid() bool {
	_, ok := currencySymbols[c]
	return ok
}

func (c Currency) Symbol() string {
	if s, ok := currencySymbols[c]; ok {
		return s
	}
	return strings.ToUpper(string(c))
}

func (c Currency) String() string {
	return string(c)
}
