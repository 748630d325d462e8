// Package ledger holds the balance rules of a wallet. Functions here operate on
// an explicit wallet value; persisting the result is the caller's job.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedCurrency = models.ErrUnsupportedCurrency
	ErrInsufficientFunds   = errors.New("insufficient funds")
)

// Balance is the lenient read path: unknown currencies read as zero.
func Balance(w *models.Wallet, currency string) decimal.Decimal {
	c := models.Currency(models.NormalizeCurrency(currency))
	if b, ok := w.Balances[c]; ok {
		return b
	}
	return decimal.Zero
}

// Adjust applies a signed delta to one balance. On failure the wallet is left
// untouched; on success TotalValue and LastActivity are refreshed.
func Adjust(w *models.Wallet, currency models.Currency, delta decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	c, err := models.ParseCurrency(string(currency))
	if err != nil {
		return decimal.Zero, err
	}

	newBalance := Balance(w, string(c)).Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: insufficient %s balance", ErrInsufficientFunds, c)
	}

	if w.Balances == nil {
		w.Balances = make(map[models.Currency]decimal.Decimal, len(models.Currencies))
	}
	w.Balances[c] = newBalance
	w.TotalValue = Total(w.Balances)
	w.LastActivity = now
	w.UpdatedAt = now

	return newBalance, nil
}

func Total(balances map[models.Currency]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, c := range models.Currencies {
		total = total.Add(balances[c])
	}
	return total
}

// Snapshot copies every supported balance and the total.
func Snapshot(w *models.Wallet) models.BalanceSnapshot {
	balances := make(map[models.Currency]decimal.Decimal, len(models.Currencies))
	for _, c := range models.Currencies {
		balances[c] = Balance(w, string(c))
	}
	return models.BalanceSnapshot{Balances: balances, Total: Total(balances)}
}

func Lines(w *models.Wallet) []models.BalanceLine {
	lines := make([]models.BalanceLine, 0, len(models.Currencies))
	for _, c := range models.Currencies {
		lines = append(lines, models.BalanceLine{
			Cryptocurrency: string(c),
			Symbol:         c.Symbol(),
			Balance:        Balance(w, string(c)),
		})
	}
	return lines
}
