package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SwapStatus string

const (
	SwapCompleted SwapStatus = "completed"
	// SwapFailed is reserved; no swap path produces it.
	SwapFailed SwapStatus = "failed"
)

// BalanceSnapshot is a point-in-time copy of every balance plus the total.
type BalanceSnapshot struct {
	Balances map[Currency]decimal.Decimal `json:"balances"`
	Total    decimal.Decimal              `json:"total"`
}

func (s BalanceSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *BalanceSnapshot) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = BalanceSnapshot{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("balance snapshot: unsupported type %T", src)
	}
	return json.Unmarshal(data, s)
}

type Swap struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	FromCurrency   Currency        `json:"fromCrypto" db:"from_currency"`
	ToCurrency     Currency        `json:"toCrypto" db:"to_currency"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Rate           decimal.Decimal `json:"rate" db:"rate"`
	AmountReceived decimal.Decimal `json:"amountReceived" db:"amount_received"`
	Status         SwapStatus      `json:"status" db:"status"`
	BalancesBefore BalanceSnapshot `json:"balancesBefore" db:"balances_before"`
	BalancesAfter  BalanceSnapshot `json:"balancesAfter" db:"balances_after"`
	Fee            decimal.Decimal `json:"fee" db:"fee"`
	Metadata       Metadata        `json:"metadata,omitempty" db:"metadata"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
}

func (s *Swap) Code() string {
	return shortCode("SW", s.ID)
}

type SwapView struct {
	ID             uuid.UUID       `json:"id"`
	SwapID         string          `json:"swapId"`
	FromCrypto     Currency        `json:"fromCrypto"`
	ToCrypto       Currency        `json:"toCrypto"`
	Amount         decimal.Decimal `json:"amount"`
	AmountReceived decimal.Decimal `json:"amountReceived"`
	Rate           decimal.Decimal `json:"rate"`
	Fee            decimal.Decimal `json:"fee"`
	Status         SwapStatus      `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (s *Swap) View() SwapView {
	return SwapView{
		ID:             s.ID,
		SwapID:         s.Code(),
		FromCrypto:     s.FromCurrency,
		ToCrypto:       s.ToCurrency,
		Amount:         s.Amount,
		AmountReceived: s.AmountReceived,
		Rate:           s.Rate,
		Fee:            s.Fee,
		Status:         s.Status,
		CreatedAt:      s.CreatedAt,
	}
}

type SwapFilter struct {
	UserID       uuid.UUID
	FromCurrency Currency
	ToCurrency   Currency
	Page         Page
}

type CurrencyVolume struct {
	Currency Currency        `json:"currency" db:"currency"`
	Count    int             `json:"count" db:"count"`
	Volume   decimal.Decimal `json:"volume" db:"volume"`
}

type SwapStatistics struct {
	TotalSwaps      int             `json:"totalSwaps"`
	TotalVolume     decimal.Decimal `json:"totalVolume"`
	MostSwappedFrom *CurrencyVolume `json:"mostSwappedFrom"`
	MostSwappedTo   *CurrencyVolume `json:"mostSwappedTo"`
	RecentSwaps     []SwapView      `json:"recentSwaps"`
}
