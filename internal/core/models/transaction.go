package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType определяет тип операции
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionSwap       TransactionType = "swap"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeposit, TransactionWithdrawal, TransactionSwap:
		return true
	}
	return false
}

// TransactionStatus - pending is the only non-terminal status.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Transaction struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	UserID      uuid.UUID         `json:"user_id" db:"user_id"`
	Type        TransactionType   `json:"type" db:"type"`
	Currency    Currency          `json:"cryptocurrency" db:"currency"`
	Amount      decimal.Decimal   `json:"amount" db:"amount"`
	Status      TransactionStatus `json:"status" db:"status"`
	TxHash      string            `json:"tx_hash,omitempty" db:"tx_hash"`
	ToAddress   string            `json:"to_address,omitempty" db:"to_address"`
	ProcessedBy *uuid.UUID        `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty" db:"processed_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
	Metadata    Metadata          `json:"metadata,omitempty" db:"metadata"`
	AdminNotes  string            `json:"admin_notes,omitempty" db:"admin_notes"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// Code is the short human readable reference, e.g. TX1A2B3C4D.
func (t *Transaction) Code() string {
	return shortCode("TX", t.ID)
}

func (t *Transaction) IsPending() bool {
	return t.Status == StatusPending
}

func (t *Transaction) Clone() *Transaction {
	cp := *t
	cp.Metadata = t.Metadata.Clone()
	return &cp
}

// TransactionView is what a user sees in history and receipts.
type TransactionView struct {
	ID             uuid.UUID         `json:"id"`
	TransactionID  string            `json:"transactionId"`
	Type           TransactionType   `json:"type"`
	Cryptocurrency Currency          `json:"cryptocurrency"`
	Amount         decimal.Decimal   `json:"amount"`
	Status         TransactionStatus `json:"status"`
	ToAddress      string            `json:"toAddress,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
}

func (t *Transaction) View() TransactionView {
	return TransactionView{
		ID:             t.ID,
		TransactionID:  t.Code(),
		Type:           t.Type,
		Cryptocurrency: t.Currency,
		Amount:         t.Amount,
		Status:         t.Status,
		ToAddress:      t.ToAddress,
		CreatedAt:      t.CreatedAt,
		CompletedAt:    t.CompletedAt,
	}
}

// AdminTransactionView adds the processing details an operator reviews.
type AdminTransactionView struct {
	TransactionView
	UserID      uuid.UUID  `json:"userId"`
	TxHash      string     `json:"txHash,omitempty"`
	ProcessedBy *uuid.UUID `json:"processedBy,omitempty"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	AdminNotes  string     `json:"adminNotes,omitempty"`
	Metadata    Metadata   `json:"metadata,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (t *Transaction) AdminView() AdminTransactionView {
	return AdminTransactionView{
		TransactionView: t.View(),
		UserID:          t.UserID,
		TxHash:          t.TxHash,
		ProcessedBy:     t.ProcessedBy,
		ProcessedAt:     t.ProcessedAt,
		AdminNotes:      t.AdminNotes,
		Metadata:        t.Metadata,
		UpdatedAt:       t.UpdatedAt,
	}
}

type TransactionFilter struct {
	UserID   *uuid.UUID
	Type     TransactionType
	Currency Currency
	Status   TransactionStatus
	Page     Page
}

type Page struct {
	Page  int
	Limit int
}

// Offset возвращает смещение; Limit == 0 означает "без ограничения"
func (p Page) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPagination(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

// Metadata is a free-form JSON object stored in a jsonb column.
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported type %T", src)
	}
	out := Metadata{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	*m = out
	return nil
}

func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	cp := make(Metadata, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func shortCode(prefix string, id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return prefix + strings.ToUpper(hex[len(hex)-8:])
}
