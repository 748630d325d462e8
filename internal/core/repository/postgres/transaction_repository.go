package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/Nzyazin/cryptovault/internal/core/repository"
	"github.com/google/uuid"
)

const transactionColumns = `id, user_id, type, currency, amount, status, tx_hash, to_address,
	processed_by, processed_at, completed_at, metadata, admin_notes, created_at, updated_at`

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return getTransaction(ctx, s.db, id, false)
}

func (s *Store) ListTransactions(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, int, error) {
	where, args := transactionFilter(f)

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + where + ` ORDER BY created_at DESC, id DESC`
	query, args = withPage(query, args, f.Page)

	transactions := []models.Transaction{}
	if err := s.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	return transactions, total, nil
}

func (t *pgTx) CreateTransaction(ctx context.Context, tr *models.Transaction) error {
	const query = `INSERT INTO transactions
		(id, user_id, type, currency, amount, status, tx_hash, to_address,
		 processed_by, processed_at, completed_at, metadata, admin_notes, created_at, updated_at)
		VALUES
		(:id, :user_id, :type, :currency, :amount, :status, :tx_hash, :to_address,
		 :processed_by, :processed_at, :completed_at, :metadata, :admin_notes, :created_at, :updated_at)`

	if _, err := t.tx.NamedExecContext(ctx, query, tr); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transaction %s", repository.ErrAlreadyExists, tr.ID)
		}
		return fmt.Errorf("create transaction: %w", err)
	}

	return nil
}

func (t *pgTx) LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return getTransaction(ctx, t.tx, id, true)
}

func (t *pgTx) UpdateTransaction(ctx context.Context, tr *models.Transaction) error {
	const query = `UPDATE transactions SET
		status = :status,
		processed_by = :processed_by,
		processed_at = :processed_at,
		completed_at = :completed_at,
		metadata = :metadata,
		admin_notes = :admin_notes,
		updated_at = :updated_at
		WHERE id = :id`

	res, err := t.tx.NamedExecContext(ctx, query, tr)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: transaction %s", repository.ErrNotFound, tr.ID)
	}

	return nil
}

func getTransaction(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var tr models.Transaction
	if err := q.GetContext(ctx, &tr, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("error getting transaction: %w", err)
	}

	return &tr, nil
}

func transactionFilter(f models.TransactionFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Currency != "" {
		add("currency = $%d", f.Currency)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func withPage(query string, args []interface{}, p models.Page) (string, []interface{}) {
	if p.Limit <= 0 {
		return query, args
	}
	args = append(args, p.Limit, p.Offset())
	return query + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}
