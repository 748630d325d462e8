package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nzyazin/cryptovault/internal/core/events"
	"github.com/Nzyazin/cryptovault/internal/core/ledger"
	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/metrics"
	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/Nzyazin/cryptovault/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletUsecase interface {
	OpenWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetBalance(ctx context.Context, userID uuid.UUID, currency string) (*models.BalanceLine, error)
	GetAllBalances(ctx context.Context, userID uuid.UUID) (*models.WalletSummary, error)
	FundAccount(ctx context.Context, adminID, userID uuid.UUID, currency string, amount decimal.Decimal) (*models.FundingResult, error)
}

type walletUsecase struct {
	service
}

func NewWalletUsecase(store repository.Store, pub events.Publisher, log logger.Logger, opts ...Option) WalletUsecase {
	return &walletUsecase{service: newService(store, pub, log, opts...)}
}

// OpenWallet creates the empty wallet of a newly registered user.
func (uc *walletUsecase) OpenWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet := models.NewWallet(userID, uc.now())

	err := uc.store.ExecuteTx(ctx, func(tx repository.Tx) error {
		return tx.CreateWallet(ctx, wallet)
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: user %s", ErrWalletExists, userID)
		}
		uc.log.Error("Failed to open wallet",
			logger.UUIDField("user_id", userID),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("open wallet: %w", err)
	}

	uc.log.Info("Wallet opened",
		logger.UUIDField("user_id", userID),
		logger.UUIDField("wallet_id", wallet.ID))
	return wallet, nil
}

func (uc *walletUsecase) GetBalance(ctx context.Context, userID uuid.UUID, currency string) (*models.BalanceLine, error) {
	wallet, err := uc.getWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	c := models.Currency(models.NormalizeCurrency(currency))
	return &models.BalanceLine{
		Cryptocurrency: string(c),
		Symbol:         c.Symbol(),
		Balance:        ledger.Balance(wallet, currency),
	}, nil
}

func (uc *walletUsecase) GetAllBalances(ctx context.Context, userID uuid.UUID) (*models.WalletSummary, error) {
	wallet, err := uc.getWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.WalletSummary{
		WalletID:     wallet.ID,
		TotalValue:   wallet.TotalValue,
		Balances:     ledger.Lines(wallet),
		LastActivity: wallet.LastActivity,
	}, nil
}

// FundAccount credits a user's balance directly. No transaction record is
// written for an admin top-up.
func (uc *walletUsecase) FundAccount(ctx context.Context, adminID, userID uuid.UUID, currency string, amount decimal.Decimal) (*models.FundingResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	c, err := models.ParseCurrency(currency)
	if err != nil {
		return nil, err
	}

	var result models.FundingResult
	err = uc.store.ExecuteTx(ctx, func(tx repository.Tx) error {
		wallet, err := uc.lockWallet(ctx, tx, userID)
		if err != nil {
			return err
		}

		previous := ledger.Balance(wallet, string(c))
		newBalance, err := uc.adjustBalance(ctx, tx, wallet, c, amount, uc.now())
		if err != nil {
			return err
		}

		result = models.FundingResult{
			Cryptocurrency:  c,
			Amount:          amount,
			PreviousBalance: previous,
			NewBalance:      newBalance,
			TotalValue:      wallet.TotalValue,
		}
		return nil
	})
	if err != nil {
		uc.log.Warn("Funding failed",
			logger.UUIDField("user_id", userID),
			logger.StringField("currency", string(c)),
			logger.ErrorField("error", err))
		return nil, err
	}

	metrics.ObserveAdjustment(string(c), amount)
	uc.log.Info("Account funded",
		logger.UUIDField("admin_id", adminID),
		logger.UUIDField("user_id", userID),
		logger.StringField("currency", string(c)),
		logger.DecimalField("amount", amount),
		logger.DecimalField("new_balance", result.NewBalance))

	uc.publish(ctx, events.Event{
		Type:         events.AccountFunded,
		UserID:       userID.String(),
		Currency:     string(c),
		Amount:       amount,
		BalanceAfter: &result.NewBalance,
		ProcessedBy:  adminID.String(),
	})

	return &result, nil
}

func (uc *walletUsecase) getWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := uc.store.GetWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrWalletNotFound, userID)
		}
		uc.log.Error("Wallet lookup failed",
			logger.UUIDField("user_id", userID),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return wallet, nil
}
