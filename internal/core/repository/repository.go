package repository

import (
	"context"
	"errors"

	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Store is the persistence port of the ledger. Every balance mutation goes
// through ExecuteTx so that balances, totals and records commit together.
type Store interface {
	Reader
	ExecuteTx(ctx context.Context, fn func(tx Tx) error) error
}

// Reader methods must not be called from inside an ExecuteTx callback.
type Reader interface {
	GetWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error)
	GetSwap(ctx context.Context, id uuid.UUID) (*models.Swap, error)
	FindSwapByCode(ctx context.Context, userID uuid.UUID, code string) (*models.Swap, error)
	ListSwaps(ctx context.Context, filter models.SwapFilter) ([]models.Swap, int, error)
	SwapStatistics(ctx context.Context, userID uuid.UUID) (*models.SwapStatistics, error)
	GetDepositAddress(ctx context.Context, currency models.Currency) (*models.DepositAddress, error)
	ListDepositAddresses(ctx context.Context, activeOnly bool) ([]models.DepositAddress, error)
}

// Tx is a unit of work. Lock* methods hold the row until the unit commits.
type Tx interface {
	CreateWallet(ctx context.Context, w *models.Wallet) error
	LockWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	// SaveWallet persists all balances together with the total.
	SaveWallet(ctx context.Context, w *models.Wallet) error

	CreateTransaction(ctx context.Context, t *models.Transaction) error
	LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, t *models.Transaction) error

	CreateSwap(ctx context.Context, s *models.Swap) error

	LockDepositAddress(ctx context.Context, currency models.Currency) (*models.DepositAddress, error)
	SaveDepositAddress(ctx context.Context, a *models.DepositAddress) error
}
