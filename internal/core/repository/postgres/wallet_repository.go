package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/Nzyazin/cryptovault/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, user_id, total_value, is_active, last_activity, created_at, updated_at`

type balanceRow struct {
	Currency models.Currency `db:"currency"`
	Balance  decimal.Decimal `db:"balance"`
}

func (s *Store) GetWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return getWallet(ctx, s.db, userID, false)
}

func (t *pgTx) CreateWallet(ctx context.Context, w *models.Wallet) error {
	query := `INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := t.tx.ExecContext(ctx, query,
		w.ID,
		w.UserID,
		w.TotalValue,
		w.IsActive,
		w.LastActivity,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: wallet for user %s", repository.ErrAlreadyExists, w.UserID)
		}
		return fmt.Errorf("create wallet: %w", err)
	}

	return saveBalances(ctx, t.tx, w)
}

func (t *pgTx) LockWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return getWallet(ctx, t.tx, userID, true)
}

func (t *pgTx) SaveWallet(ctx context.Context, w *models.Wallet) error {
	if err := saveBalances(ctx, t.tx, w); err != nil {
		return err
	}

	const query = `
		UPDATE wallets
		SET total_value = $2, last_activity = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := t.tx.ExecContext(ctx, query, w.ID, w.TotalValue, w.LastActivity, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update wallet total: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: wallet %s", repository.ErrNotFound, w.ID)
	}

	return nil
}

func getWallet(ctx context.Context, q querier, userID uuid.UUID, forUpdate bool) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var wallet models.Wallet
	if err := q.GetContext(ctx, &wallet, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet for user %s", repository.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("error getting wallet: %w", err)
	}

	var rows []balanceRow
	err := q.SelectContext(ctx, &rows, `SELECT currency, balance FROM wallet_balances WHERE wallet_id = $1`, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting balances: %w", err)
	}

	wallet.Balances = make(map[models.Currency]decimal.Decimal, len(models.Currencies))
	for _, c := range models.Currencies {
		wallet.Balances[c] = decimal.Zero
	}
	for _, r := range rows {
		wallet.Balances[r.Currency] = r.Balance
	}

	return &wallet, nil
}

func saveBalances(ctx context.Context, q querier, w *models.Wallet) error {
	const query = `
		INSERT INTO wallet_balances (wallet_id, currency, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_id, currency) DO UPDATE SET balance = EXCLUDED.balance
	`
	for _, c := range models.Currencies {
		balance, ok := w.Balances[c]
		if !ok {
			balance = decimal.Zero
		}
		if _, err := q.ExecContext(ctx, query, w.ID, c, balance); err != nil {
			return fmt.Errorf("save %s balance: %w", c, err)
		}
	}
	return nil
}
