package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nzyazin/cryptovault/internal/core/events"
	"github.com/Nzyazin/cryptovault/internal/core/ledger"
	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/metrics"
	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/Nzyazin/cryptovault/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type TransactionUsecase interface {
	RequestDeposit(ctx context.Context, userID uuid.UUID, currency string, amount decimal.Decimal, txHash string) (*DepositResult, error)
	RequestWithdrawal(ctx context.Context, userID uuid.UUID, currency string, amount decimal.Decimal, toAddress string) (*WithdrawalResult, error)

	ConfirmDeposit(ctx context.Context, adminID, txID uuid.UUID, notes string) (*DecisionResult, error)
	RejectDeposit(ctx context.Context, adminID, txID uuid.UUID, notes string) (*DecisionResult, error)
	ApproveWithdrawal(ctx context.Context, adminID, txID uuid.UUID, notes string) (*DecisionResult, error)
	RejectWithdrawal(ctx context.Context, adminID, txID uuid.UUID, notes string) (*DecisionResult, error)
	Cancel(ctx context.Context, adminID, txID uuid.UUID, notes string) (*DecisionResult, error)

	Get(ctx context.Context, userID, txID uuid.UUID) (*models.Transaction, error)
	History(ctx context.Context, userID uuid.UUID, q TransactionQuery) (*TransactionPage, error)
	ListPending(ctx context.Context, txType models.TransactionType) ([]models.Transaction, error)
}

type DepositResult struct {
	Transaction    *models.Transaction
	DepositAddress string
}

type WithdrawalResult struct {
	Transaction *models.Transaction
	NewBalance  decimal.Decimal
}

// DecisionResult is the outcome of an admin decision. Balance and TotalValue
// are set only when the wallet was touched.
type DecisionResult struct {
	Transaction *models.Transaction
	Balance     *decimal.Decimal
	TotalValue  *decimal.Decimal
	Refunded    bool
}

// TransactionQuery holds raw filter values as they arrive from a request.
type TransactionQuery struct {
	Type     string
	Currency string
	Status   string
	Page     int
	Limit    int
}

type TransactionPage struct {
	Transactions []models.TransactionView `json:"transactions"`
	Pagination   models.Pagination        `json:"pagination"`
}

type transactionUsecase struct {
	service
}

func NewTransactionUsecase(store repository.Store, pub events.Publisher, log logger.Logger, opts ...Option) TransactionUsecase {
	return &transactionUsecase{service: newService(store, pub, log, opts...)}
}

// RequestDeposit records a pending deposit. The balance moves only when an
// admin confirms it.
func (uc *transactionUsecase) RequestDeposit(ctx context.Context, userID uuid.UUID, currency string, amount decimal.Decimal, txHash string) (*DepositResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	c, err := models.ParseCurrency(currency)
	if err != nil {
		return nil, err
	}

	var result DepositResult
	err = uc.store.ExecuteTx(ctx, func(tx repository.Tx) error {
		address, err := tx.LockDepositAddress(ctx, c)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("get deposit address: %w", err)
		}
		if address == nil || !address.IsActive {
			return fmt.Errorf("%w for %s", ErrDepositAddressNotFound, c)
		}

		if _, err := uc.lockWallet(ctx, tx, userID); err != nil {
			return err
		}

		now := uc.now()
		t := &models.Transaction{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      models.TransactionDeposit,
			Currency:  c,
			Amount:    amount,
			Status:    models.StatusPending,
			TxHash:    strings.TrimSpace(txHash),
			CreatedAt: now,
			UpdatedAt: now,
			Metadata: models.Metadata{
				"requestedBy":    userID.String(),
				"requestedAt":    now.Format(time.RFC3339),
				"depositAddress": address.Address,
			},
		}
		if err := tx.CreateTransaction(ctx, t); err != nil {
			return err
		}

		result = DepositResult{Transaction: t, DepositAddress: address.Address}
		return nil
	})
	if err != nil {
		uc.rejected("deposit_request", err)
		return nil, err
	}

	t := result.Transaction
	metrics.ObserveTransaction(string(t.Type), string(t.Status))
	uc.log.Info("Deposit requested",
		logger.StringField("transaction", t.Code()),
		logger.UUIDField("user_id", userID),
		logger.StringField("currency", string(c)),
		logger.DecimalField("amount", amount))
	uc.publish(ctx, transactionEvent(events.DepositRequested, t, nil))

	return &result, nil
}

// RequestWithdrawal debits the balance immediately and records a pending
// withdrawal holding the pre and post balances.
func (uc *transactionUsecase) RequestWithdrawal(ctx context.Context, userID uuid.UUID, currency string, amount decimal.Decimal, toAddress string) (*WithdrawalResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	c, err := models.ParseCurrency(currency)
	if err != nil {
		return nil, err
	}
	toAddress = strings.TrimSpace(toAddress)
	if toAddress == "" {
		return nil, ErrAddressRequired
	}

	var result WithdrawalResult
	err = uc.store.ExecuteTx(ctx, func(tx repository.Tx) error {
		wallet, err := uc.lockWallet(ctx, tx, userID)
		if err != nil {
			return err
		}

		now := uc.now()
		original := ledger.Balance(wallet, string(c))
		newBalance, err := uc.adjustBalance(ctx, tx, wallet, c, amount.Neg(), now)
		if err != nil {
			return err
		}

		t := &models.Transaction{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      models.TransactionWithdrawal,
			Currency:  c,
			Amount:    amount,
			Status:    models.StatusPending,
			ToAddress: toAddress,
			CreatedAt: now,
			UpdatedAt: now,
			Metadata: models.Metadata{
				"requestedBy":     userID.String(),
				"requestedAt":     now.Format(time.RFC3339),
				"originalBalance": original.String(),
				"newBalance":      newBalance.String(),
			},
		}
		if err := tx.CreateTransaction(ctx, t); err != nil {
			return err
		}

		result = WithdrawalResult{Transaction: t, NewBalance: newBalance}
		return nil
	})
	if err != nil {
		uc.rejected("withdrawal_request", err)
		return nil, err
	}

	t := result.Transaction
	metrics.ObserveAdjustment(string(c), amount.Neg())
	metrics.ObserveTransaction(string(t.Type), string(t.Status))
	uc.log.Info("Withdrawal requested",
		logger.StringField("transaction", t.Code()),
		logger.UUIDField("user_id", userID),
		logger.StringField("currency", string(c)),
		logger.DecimalField("amount", amount),
		logger.DecimalField("new_balance", result.NewBalance))
	uc.publish(ctx, transactionEvent(events.WithdrawalRequested, t, &result.NewBalance))

	return &result, nil
}

func (uc *transactionUsecase) ConfirmDeposit(ctx context.Context, adminID, txID uuid.UUID, notes string) (*DecisionResult, error) {
	return uc.decide(ctx, adminID, txID, notes, decision{
		name:   "confirm_deposit",
		want:   models.TransactionDeposit,
		action: "confirmed",
		status: models.StatusCompleted,
		event:  events.DepositConfirmed,
		delta:  func(t *models.Transaction) decimal.Decimal { return t.Amount },
	})
}

func (uc *transactionUsecase) RejectDeposit(ctx context.Context, adminID, txID uuid.UUID, notes string) (*DecisionResult, error) {
	return uc.decide(ctx, adminID, txID, notes, decision{
		name:   "reject_deposit",
		want:   models.TransactionDeposit,
		action: "rejected",
		status: models.StatusFailed,
		event:  events.DepositRejected,
	})
}

// ApproveWithdrawal completes a withdrawal whose amount was already debited.
// The guard only re-checks that the balance is not negative.
func (uc *transactionUsecase) ApproveWithdrawal(ctx context.Context, adminID, txID uuid.UUID, notes string) (*DecisionResult, error) {
	return uc.decide(ctx, adminID, txID, notes, decision{
		name:   "approve_withdrawal",
		want:   models.TransactionWithdrawal,
		action: "approved",
		status: models.StatusCompleted,
		event:  events.WithdrawalApproved,
		guard:  true,
	})
}

func (uc *transactionUsecase) RejectWithdrawal(ctx context.Context, adminID, txID uuid.UUID, notes string) (*DecisionResult, error) {
	return uc.decide(ctx, adminID, txID, notes, decision{
		name:   "reject_withdrawal",
		want:   models.TransactionWithdrawal,
		action: "rejected",
		status: models.StatusFailed,
		event:  events.WithdrawalRejected,
		delta:  refund,
	})
}

// Cancel applies to a pending transaction of any type and refunds withdrawals.
func (uc *transactionUsecase) Cancel(ctx context.Context, adminID, txID uuid.UUID, notes string) (*DecisionResult, error) {
	return uc.decide(ctx, adminID, txID, notes, decision{
		name:   "cancel",
		cancel: true,
		status: models.StatusCancelled,
		event:  events.TransactionCanceled,
		delta: func(t *models.Transaction) decimal.Decimal {
			if t.Type == models.TransactionWithdrawal {
				return t.Amount
			}
			return decimal.Zero
		},
	})
}

func refund(t *models.Transaction) decimal.Decimal {
	return t.Amount
}

type decision struct {
	name   string
	want   models.TransactionType
	action string
	cancel bool
	status models.TransactionStatus
	event  string
	guard  bool
	// delta is the ledger effect on the transaction's currency; nil or zero
	// leaves the balance untouched.
	delta func(t *models.Transaction) decimal.Decimal
}

// decide moves a pending transaction to a terminal status. The transaction
// and the wallet are locked for the whole unit of work, so a concurrent
// second decision observes the first one's status and fails.
func (uc *transactionUsecase) decide(ctx context.Context, adminID, txID uuid.UUID, notes string, d decision) (*DecisionResult, error) {
	var (
		result DecisionResult
		delta  decimal.Decimal
	)

	err := uc.store.ExecuteTx(ctx, func(tx repository.Tx) error {
		result = DecisionResult{}
		delta = decimal.Zero

		t, err := uc.lockTransaction(ctx, tx, txID)
		if err != nil {
			return err
		}
		if d.want != "" && t.Type != d.want {
			return &TypeError{Want: d.want, Action: d.action}
		}
		if !t.IsPending() {
			return &StateError{Status: t.Status, Cancel: d.cancel}
		}

		now := uc.now()
		if d.delta != nil {
			delta = d.delta(t)
		}

		if d.guard || !delta.IsZero() {
			wallet, err := uc.lockWallet(ctx, tx, t.UserID)
			if err != nil {
				return err
			}
			if d.guard && ledger.Balance(wallet, string(t.Currency)).IsNegative() {
				return fmt.Errorf("%w: insufficient %s balance", ErrInsufficientFunds, t.Currency)
			}
			if !delta.IsZero() {
				balance, err := uc.adjustBalance(ctx, tx, wallet, t.Currency, delta, now)
				if err != nil {
					return err
				}
				total := wallet.TotalValue
				result.Balance = &balance
				result.TotalValue = &total
				result.Refunded = t.Type == models.TransactionWithdrawal
			}
		}

		t.Status = d.status
		t.ProcessedBy = &adminID
		t.ProcessedAt = &now
		t.UpdatedAt = now
		if d.status == models.StatusCompleted {
			t.CompletedAt = &now
		}
		if notes = strings.TrimSpace(notes); notes != "" {
			t.AdminNotes = notes
		}
		if result.Refunded {
			if t.Metadata == nil {
				t.Metadata = models.Metadata{}
			}
			t.Metadata["refunded"] = true
			t.Metadata["refundAmount"] = delta.String()
			t.Metadata["refundedAt"] = now.Format(time.RFC3339)
		}

		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}

		result.Transaction = t
		return nil
	})
	if err != nil {
		uc.rejected(d.name, err)
		uc.log.Warn("Decision refused",
			logger.StringField("decision", d.name),
			logger.UUIDField("transaction_id", txID),
			logger.UUIDField("admin_id", adminID),
			logger.ErrorField("error", err))
		return nil, err
	}

	t := result.Transaction
	if !delta.IsZero() {
		metrics.ObserveAdjustment(string(t.Currency), delta)
	}
	metrics.ObserveTransaction(string(t.Type), string(t.Status))
	uc.log.Info("Transaction processed",
		logger.StringField("decision", d.name),
		logger.StringField("transaction", t.Code()),
		logger.StringField("status", string(t.Status)),
		logger.UUIDField("admin_id", adminID),
		logger.AnyField("refunded", result.Refunded))
	uc.publish(ctx, transactionEvent(d.event, t, result.Balance))

	return &result, nil
}

// Get returns the transaction only to its owner.
func (uc *transactionUsecase) Get(ctx context.Context, userID, txID uuid.UUID) (*models.Transaction, error) {
	t, err := uc.store.GetTransaction(ctx, txID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txID)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if t.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txID)
	}
	return t, nil
}

func (uc *transactionUsecase) History(ctx context.Context, userID uuid.UUID, q TransactionQuery) (*TransactionPage, error) {
	filter := models.TransactionFilter{UserID: &userID, Page: normalizePage(q.Page, q.Limit)}

	if q.Type != "" {
		filter.Type = models.TransactionType(strings.ToLower(q.Type))
		if !filter.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidFilter, q.Type)
		}
	}
	if q.Status != "" {
		filter.Status = models.TransactionStatus(strings.ToLower(q.Status))
		if !filter.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, q.Status)
		}
	}
	if q.Currency != "" {
		c, err := models.ParseCurrency(q.Currency)
		if err != nil {
			return nil, err
		}
		filter.Currency = c
	}

	transactions, total, err := uc.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	views := make([]models.TransactionView, 0, len(transactions))
	for i := range transactions {
		views = append(views, transactions[i].View())
	}

	return &TransactionPage{
		Transactions: views,
		Pagination:   models.NewPagination(filter.Page, total),
	}, nil
}

func (uc *transactionUsecase) ListPending(ctx context.Context, txType models.TransactionType) ([]models.Transaction, error) {
	transactions, _, err := uc.store.ListTransactions(ctx, models.TransactionFilter{
		Type:   txType,
		Status: models.StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	return transactions, nil
}

func normalizePage(page, limit int) models.Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return models.Page{Page: page, Limit: limit}
}
