package usecase

import (
	"errors"
	"fmt"

	"github.com/Nzyazin/cryptovault/internal/core/ledger"
	"github.com/Nzyazin/cryptovault/internal/core/models"
)

// Определение ошибок сервиса
var (
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrUnsupportedCurrency    = models.ErrUnsupportedCurrency
	ErrSameCurrency           = errors.New("cannot swap to the same cryptocurrency")
	ErrInsufficientFunds      = ledger.ErrInsufficientFunds
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrWalletExists           = errors.New("wallet already exists")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrSwapNotFound           = errors.New("swap not found")
	ErrDepositAddressNotFound = errors.New("deposit address not configured")
	ErrAddressRequired        = errors.New("address is required")
	ErrWrongTransactionType   = errors.New("wrong transaction type")
	ErrAlreadyProcessed       = errors.New("transaction already processed")
	ErrInvalidFilter          = errors.New("invalid filter")
)

// StateError is returned when a decision targets a transaction that has
// already left pending.
type StateError struct {
	Status models.TransactionStatus
	Cancel bool
}

func (e *StateError) Error() string {
	if e.Cancel {
		return fmt.Sprintf("Cannot cancel transaction that is %s", e.Status)
	}
	return fmt.Sprintf("Transaction is already %s", e.Status)
}

func (e *StateError) Is(target error) bool {
	return target == ErrAlreadyProcessed
}

// TypeError is returned when a decision does not apply to the transaction type.
type TypeError struct {
	Want   models.TransactionType
	Action string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("Only %s transactions can be %s", e.Want, e.Action)
}

func (e *TypeError) Is(target error) bool {
	return target == ErrWrongTransactionType
}
