package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/Nzyazin/cryptovault/internal/core/repository"
)

const addressColumns = `currency, address, network, is_active, added_by, created_at, updated_at`

func (s *Store) GetDepositAddress(ctx context.Context, currency models.Currency) (*models.DepositAddress, error) {
	return getDepositAddress(ctx, s.db, currency, false)
}

func (s *Store) ListDepositAddresses(ctx context.Context, activeOnly bool) ([]models.DepositAddress, error) {
	query := `SELECT ` + addressColumns + ` FROM deposit_addresses`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY currency`

	addresses := []models.DepositAddress{}
	if err := s.db.SelectContext(ctx, &addresses, query); err != nil {
		return nil, fmt.Errorf("list deposit addresses: %w", err)
	}
	return addresses, nil
}

func (t *pgTx) LockDepositAddress(ctx context.Context, currency models.Currency) (*models.DepositAddress, error) {
	return getDepositAddress(ctx, t.tx, currency, true)
}

func (t *pgTx) SaveDepositAddress(ctx context.Context, a *models.DepositAddress) error {
	const query = `INSERT INTO deposit_addresses (` + addressColumns + `)
		VALUES (:currency, :address, :network, :is_active, :added_by, :created_at, :updated_at)
		ON CONFLICT (currency) DO UPDATE SET
			address = EXCLUDED.address,
			network = EXCLUDED.network,
			is_active = EXCLUDED.is_active,
			added_by = EXCLUDED.added_by,
			updated_at = EXCLUDED.updated_at`

	if _, err := t.tx.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("save deposit address: %w", err)
	}
	return nil
}

func getDepositAddress(ctx context.Context, q querier, currency models.Currency, forUpdate bool) (*models.DepositAddress, error) {
	query := `SELECT ` + addressColumns + ` FROM deposit_addresses WHERE currency = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var a models.DepositAddress
	if err := q.GetContext(ctx, &a, query, currency); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: deposit address for %s", repository.ErrNotFound, currency)
		}
		return nil, fmt.Errorf("error getting deposit address: %w", err)
	}
	return &a, nil
}
