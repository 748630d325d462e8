package models

import (
	"time"

	"github.com/google/uuid"
)

// DepositAddress - адрес, на который пользователи отправляют депозиты
type DepositAddress struct {
	Currency  Currency  `json:"cryptocurrency" db:"currency"`
	Address   string    `json:"address" db:"address"`
	Network   string    `json:"network,omitempty" db:"network"`
	IsActive  bool      `json:"isActive" db:"is_active"`
	AddedBy   uuid.UUID `json:"addedBy" db:"added_by"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

func (a *DepositAddress) Symbol() string {
	return a.Currency.Symbol()
}
