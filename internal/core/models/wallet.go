package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet представляет модель кошелька пользователя.
// Балансы хранятся в долларовом эквиваленте, по одному на каждую валюту.
type Wallet struct {
	ID           uuid.UUID                    `json:"id" db:"id"`
	UserID       uuid.UUID                    `json:"user_id" db:"user_id"`
	Balances     map[Currency]decimal.Decimal `json:"balances" db:"-"`
	TotalValue   decimal.Decimal              `json:"total_value" db:"total_value"`
	IsActive     bool                         `json:"is_active" db:"is_active"`
	LastActivity time.Time                    `json:"last_activity" db:"last_activity"`
	CreatedAt    time.Time                    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time                    `json:"updated_at" db:"updated_at"`
}

// NewWallet returns an empty wallet with every supported currency at zero.
func NewWallet(userID uuid.UUID, now time.Time) *Wallet {
	balances := make(map[Currency]decimal.Decimal, len(Currencies))
	for _, c := range Currencies {
		balances[c] = decimal.Zero
	}
	return &Wallet{
		ID:           uuid.New(),
		UserID:       userID,
		Balances:     balances,
		TotalValue:   decimal.Zero,
		IsActive:     true,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (w *Wallet) Clone() *Wallet {
	cp := *w
	cp.Balances = make(map[Currency]decimal.Decimal, len(w.Balances))
	for c, b := range w.Balances {
		cp.Balances[c] = b
	}
	return &cp
}

// BalanceLine is one row of a wallet's balance listing.
type BalanceLine struct {
	Cryptocurrency string          `json:"cryptocurrency"`
	Symbol         string          `json:"symbol"`
	Balance        decimal.Decimal `json:"balance"`
}

type WalletSummary struct {
	WalletID     uuid.UUID       `json:"walletId"`
	TotalValue   decimal.Decimal `json:"totalValue"`
	Balances     []BalanceLine   `json:"balances"`
	LastActivity time.Time       `json:"lastActivity"`
}

// FundingResult describes an admin top-up of a user's balance.
type FundingResult struct {
	Cryptocurrency  Currency        `json:"cryptocurrency"`
	Amount          decimal.Decimal `json:"amount"`
	PreviousBalance decimal.Decimal `json:"previousBalance"`
	NewBalance      decimal.Decimal `json:"newBalance"`
	TotalValue      decimal.Decimal `json:"totalValue"`
}
