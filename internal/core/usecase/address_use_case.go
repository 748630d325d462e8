package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Nzyazin/cryptovault/internal/core/events"
	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/Nzyazin/cryptovault/internal/core/repository"
	"github.com/google/uuid"
)

// AddressUsecase manages the registry of custodial deposit addresses, one per
// currency.
type AddressUsecase interface {
	Upsert(ctx context.Context, adminID uuid.UUID, currency, address, network string) (*models.DepositAddress, error)
	List(ctx context.Context) ([]models.DepositAddress, error)
	Get(ctx context.Context, currency string) (*models.DepositAddress, error)
	ToggleStatus(ctx context.Context, adminID uuid.UUID, currency string) (*models.DepositAddress, error)
	ListActive(ctx context.Context) ([]models.DepositAddress, error)
	GetActive(ctx context.Context, currency string) (*models.DepositAddress, error)
}

type addressUsecase struct {
	service
}

func NewAddressUsecase(store repository.Store, log logger.Logger, opts ...Option) AddressUsecase {
	return &addressUsecase{service: newService(store, events.NopPublisher{}, log, opts...)}
}

// Upsert saves the address for a currency and re-activates it. An empty
// network keeps the stored one.
func (uc *addressUsecase) Upsert(ctx context.Context, adminID uuid.UUID, currency, address, network string) (*models.DepositAddress, error) {
	c, err := models.ParseCurrency(currency)
	if err != nil {
		return nil, err
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrAddressRequired
	}
	network = strings.TrimSpace(network)

	var saved models.DepositAddress
	err = uc.store.ExecuteTx(ctx, func(tx repository.Tx) error {
		now := uc.now()
		existing, err := tx.LockDepositAddress(ctx, c)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("get deposit address: %w", err)
		}

		a := existing
		if a == nil {
			a = &models.DepositAddress{Currency: c, CreatedAt: now}
		}
		a.Address = address
		if network != "" {
			a.Network = network
		}
		a.IsActive = true
		a.AddedBy = adminID
		a.UpdatedAt = now

		if err := tx.SaveDepositAddress(ctx, a); err != nil {
			return err
		}
		saved = *a
		return nil
	})
	if err != nil {
		uc.log.Error("Failed to save deposit address",
			logger.StringField("currency", string(c)),
			logger.ErrorField("error", err))
		return nil, err
	}

	uc.log.Info("Deposit address saved",
		logger.StringField("currency", string(c)),
		logger.StringField("network", saved.Network),
		logger.UUIDField("admin_id", adminID))
	return &saved, nil
}

func (uc *addressUsecase) List(ctx context.Context) ([]models.DepositAddress, error) {
	return uc.list(ctx, false)
}

func (uc *addressUsecase) ListActive(ctx context.Context) ([]models.DepositAddress, error) {
	return uc.list(ctx, true)
}

func (uc *addressUsecase) Get(ctx context.Context, currency string) (*models.DepositAddress, error) {
	return uc.get(ctx, currency, false)
}

func (uc *addressUsecase) GetActive(ctx context.Context, currency string) (*models.DepositAddress, error) {
	return uc.get(ctx, currency, true)
}

func (uc *addressUsecase) ToggleStatus(ctx context.Context, adminID uuid.UUID, currency string) (*models.DepositAddress, error) {
	c, err := models.ParseCurrency(currency)
	if err != nil {
		return nil, err
	}

	var saved models.DepositAddress
	err = uc.store.ExecuteTx(ctx, func(tx repository.Tx) error {
		a, err := tx.LockDepositAddress(ctx, c)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w for %s", ErrDepositAddressNotFound, c)
			}
			return fmt.Errorf("get deposit address: %w", err)
		}
		a.IsActive = !a.IsActive
		a.UpdatedAt = uc.now()
		if err := tx.SaveDepositAddress(ctx, a); err != nil {
			return err
		}
		saved = *a
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info("Deposit address status changed",
		logger.StringField("currency", string(c)),
		logger.AnyField("active", saved.IsActive),
		logger.UUIDField("admin_id", adminID))
	return &saved, nil
}

func (uc *addressUsecase) list(ctx context.Context, activeOnly bool) ([]models.DepositAddress, error) {
	addresses, err := uc.store.ListDepositAddresses(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list deposit addresses: %w", err)
	}
	return addresses, nil
}

func (uc *addressUsecase) get(ctx context.Context, currency string, activeOnly bool) (*models.DepositAddress, error) {
	c, err := models.ParseCurrency(currency)
	if err != nil {
		return nil, err
	}

	a, err := uc.store.GetDepositAddress(ctx, c)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w for %s", ErrDepositAddressNotFound, c)
		}
		return nil, fmt.Errorf("get deposit address: %w", err)
	}
	if activeOnly && !a.IsActive {
		return nil, fmt.Errorf("%w for %s", ErrDepositAddressNotFound, c)
	}
	return a, nil
}
