package usecase

import (
	"context"
	"errors"
	"fmt"
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

const amountPlaces = 2

type Option func(*service)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// service carries what every usecase needs: the store, the event sink,
// the logger and a clock.
type service struct {
	store repository.Store
	pub   events.Publisher
	log   logger.Logger
	now   func() time.Time
}

func newService(store repository.Store, pub events.Publisher, log logger.Logger, opts ...Option) service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	s := service{
		store: store,
		pub:   pub,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s *service) lockWallet(ctx context.Context, tx repository.Tx, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := tx.LockWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrWalletNotFound, userID)
		}
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return wallet, nil
}

// adjustBalance applies delta through the ledger and persists the wallet in
// the same unit of work.
func (s *service) adjustBalance(ctx context.Context, tx repository.Tx, w *models.Wallet, currency models.Currency, delta decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	newBalance, err := ledger.Adjust(w, currency, delta, now)
	if err != nil {
		return decimal.Zero, err
	}
	if err := tx.SaveWallet(ctx, w); err != nil {
		return decimal.Zero, fmt.Errorf("save wallet: %w", err)
	}
	return newBalance, nil
}

func (s *service) lockTransaction(ctx context.Context, tx repository.Tx, id uuid.UUID) (*models.Transaction, error) {
	t, err := tx.LockTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
		}
		return nil, fmt.Errorf("lock transaction: %w", err)
	}
	return t, nil
}

// publish runs after commit; a lost event never fails the operation.
func (s *service) publish(ctx context.Context, ev events.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Warn("Failed to publish event",
			logger.StringField("type", ev.Type),
			logger.StringField("reference", ev.Reference),
			logger.ErrorField("error", err))
	}
}

func (s *service) rejected(operation string, err error) {
	var reason string
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		reason = "insufficient_funds"
	case errors.Is(err, ErrAlreadyProcessed):
		reason = "already_processed"
	case errors.Is(err, ErrWrongTransactionType):
		reason = "wrong_type"
	case errors.Is(err, ErrDepositAddressNotFound):
		reason = "no_deposit_address"
	case errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrTransactionNotFound):
		reason = "not_found"
	default:
		return
	}
	metrics.ObserveRejection(operation, reason)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(amountPlaces)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, amountPlaces)
	}
	return nil
}

func transactionEvent(kind string, t *models.Transaction, balance *decimal.Decimal) events.Event {
	ev := events.Event{
		Type:          kind,
		UserID:        t.UserID.String(),
		Reference:     t.Code(),
		TransactionID: t.ID.String(),
		Status:        string(t.Status),
		Currency:      string(t.Currency),
		Amount:        t.Amount,
		BalanceAfter:  balance,
	}
	if t.ProcessedBy != nil {
		ev.ProcessedBy = t.ProcessedBy.String()
	}
	return ev
}
