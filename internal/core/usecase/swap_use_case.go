package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Nzyazin/cryptovault/internal/core/events"
	"github.com/Nzyazin/cryptovault/internal/core/ledger"
	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/metrics"
	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/Nzyazin/cryptovault/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// swapRate is fixed: balances are USD-denominated, so a swap moves the same
// USD amount from one currency to another.
var swapRate = decimal.NewFromInt(1)

type SwapUsecase interface {
	ExecuteSwap(ctx context.Context, userID uuid.UUID, from, to string, amount decimal.Decimal) (*SwapResult, error)
	Get(ctx context.Context, userID uuid.UUID, ref string) (*models.Swap, error)
	History(ctx context.Context, userID uuid.UUID, q SwapQuery) (*SwapPage, error)
	Statistics(ctx context.Context, userID uuid.UUID) (*models.SwapStatistics, error)
}

type SwapResult struct {
	Swap        *models.Swap
	Transaction *models.Transaction
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
	TotalValue  decimal.Decimal
}

type SwapQuery struct {
	From  string
	To    string
	Page  int
	Limit int
}

type SwapPage struct {
	Swaps      []models.SwapView `json:"swaps"`
	Pagination models.Pagination `json:"pagination"`
}

type swapUsecase struct {
	service
}

func NewSwapUsecase(store repository.Store, pub events.Publisher, log logger.Logger, opts ...Option) SwapUsecase {
	return &swapUsecase{service: newService(store, pub, log, opts...)}
}

// ExecuteSwap debits from, credits to and records the swap together with its
// paired transaction in a single unit of work.
func (uc *swapUsecase) ExecuteSwap(ctx context.Context, userID uuid.UUID, from, to string, amount decimal.Decimal) (*SwapResult, error) {
	fromC, err := models.ParseCurrency(from)
	if err != nil {
		return nil, err
	}
	toC, err := models.ParseCurrency(to)
	if err != nil {
		return nil, err
	}
	if fromC == toC {
		return nil, ErrSameCurrency
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var result SwapResult
	err = uc.store.ExecuteTx(ctx, func(tx repository.Tx) error {
		wallet, err := uc.lockWallet(ctx, tx, userID)
		if err != nil {
			return err
		}

		now := uc.now()
		before := ledger.Snapshot(wallet)

		fromBalance, err := ledger.Adjust(wallet, fromC, amount.Neg(), now)
		if err != nil {
			return err
		}
		received := amount.Mul(swapRate)
		toBalance, err := ledger.Adjust(wallet, toC, received, now)
		if err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return fmt.Errorf("save wallet: %w", err)
		}

		sw := &models.Swap{
			ID:             uuid.New(),
			UserID:         userID,
			FromCurrency:   fromC,
			ToCurrency:     toC,
			Amount:         amount,
			Rate:           swapRate,
			AmountReceived: received,
			Status:         models.SwapCompleted,
			BalancesBefore: before,
			BalancesAfter:  ledger.Snapshot(wallet),
			Fee:            decimal.Zero,
			CreatedAt:      now,
		}

		t := &models.Transaction{
			ID:          uuid.New(),
			UserID:      userID,
			Type:        models.TransactionSwap,
			Currency:    fromC,
			Amount:      amount,
			Status:      models.StatusCompleted,
			CompletedAt: &now,
			CreatedAt:   now,
			UpdatedAt:   now,
			Metadata: models.Metadata{
				"swapId":         sw.ID.String(),
				"fromCrypto":     string(fromC),
				"toCrypto":       string(toC),
				"amountReceived": received.String(),
				"rate":           swapRate.String(),
			},
		}
		sw.Metadata = models.Metadata{"transactionId": t.ID.String()}

		if err := tx.CreateSwap(ctx, sw); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, t); err != nil {
			return err
		}

		result = SwapResult{
			Swap:        sw,
			Transaction: t,
			FromBalance: fromBalance,
			ToBalance:   toBalance,
			TotalValue:  wallet.TotalValue,
		}
		return nil
	})
	if err != nil {
		uc.rejected("swap", err)
		uc.log.Warn("Swap failed",
			logger.UUIDField("user_id", userID),
			logger.StringField("from", string(fromC)),
			logger.StringField("to", string(toC)),
			logger.DecimalField("amount", amount),
			logger.ErrorField("error", err))
		return nil, err
	}

	sw := result.Swap
	metrics.ObserveAdjustment(string(fromC), amount.Neg())
	metrics.ObserveAdjustment(string(toC), sw.AmountReceived)
	metrics.ObserveSwap(string(fromC), string(toC), amount)
	metrics.ObserveTransaction(string(models.TransactionSwap), string(models.StatusCompleted))
	uc.log.Info("Swap executed",
		logger.StringField("swap", sw.Code()),
		logger.UUIDField("user_id", userID),
		logger.StringField("from", string(fromC)),
		logger.StringField("to", string(toC)),
		logger.DecimalField("amount", amount))

	uc.publish(ctx, events.Event{
		Type:          events.SwapCompleted,
		UserID:        userID.String(),
		Reference:     sw.Code(),
		TransactionID: result.Transaction.ID.String(),
		Status:        string(sw.Status),
		Currency:      string(fromC),
		Amount:        amount,
		Metadata: map[string]interface{}{
			"toCrypto":    string(toC),
			"fromBalance": result.FromBalance.String(),
			"toBalance":   result.ToBalance.String(),
		},
	})

	return &result, nil
}

// Get accepts either the swap id or its SW display code.
func (uc *swapUsecase) Get(ctx context.Context, userID uuid.UUID, ref string) (*models.Swap, error) {
	ref = strings.TrimSpace(ref)

	var (
		sw  *models.Swap
		err error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		sw, err = uc.store.GetSwap(ctx, id)
	} else if strings.HasPrefix(strings.ToUpper(ref), "SW") && len(ref) == 10 {
		sw, err = uc.store.FindSwapByCode(ctx, userID, ref)
	} else {
		return nil, fmt.Errorf("%w: %s", ErrSwapNotFound, ref)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSwapNotFound, ref)
		}
		return nil, fmt.Errorf("get swap: %w", err)
	}
	if sw.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrSwapNotFound, ref)
	}
	return sw, nil
}

func (uc *swapUsecase) History(ctx context.Context, userID uuid.UUID, q SwapQuery) (*SwapPage, error) {
	filter := models.SwapFilter{UserID: userID, Page: normalizePage(q.Page, q.Limit)}
	if q.From != "" {
		c, err := models.ParseCurrency(q.From)
		if err != nil {
			return nil, err
		}
		filter.FromCurrency = c
	}
	if q.To != "" {
		c, err := models.ParseCurrency(q.To)
		if err != nil {
			return nil, err
		}
		filter.ToCurrency = c
	}

	swaps, total, err := uc.store.ListSwaps(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list swaps: %w", err)
	}

	views := make([]models.SwapView, 0, len(swaps))
	for i := range swaps {
		views = append(views, swaps[i].View())
	}

	return &SwapPage{
		Swaps:      views,
		Pagination: models.NewPagination(filter.Page, total),
	}, nil
}

func (uc *swapUsecase) Statistics(ctx context.Context, userID uuid.UUID) (*models.SwapStatistics, error) {
	stats, err := uc.store.SwapStatistics(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("swap statistics: %w", err)
	}
	return stats, nil
}
