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
	"github.com/shopspring/decimal"
)

const swapColumns = `id, user_id, from_currency, to_currency, amount, rate, amount_received, status,
	balances_before, balances_after, fee, metadata, created_at`

func (t *pgTx) CreateSwap(ctx context.Context, sw *models.Swap) error {
	const query = `INSERT INTO swaps
		(id, user_id, from_currency, to_currency, amount, rate, amount_received, status,
		 balances_before, balances_after, fee, metadata, created_at)
		VALUES
		(:id, :user_id, :from_currency, :to_currency, :amount, :rate, :amount_received, :status,
		 :balances_before, :balances_after, :fee, :metadata, :created_at)`

	if _, err := t.tx.NamedExecContext(ctx, query, sw); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: swap %s", repository.ErrAlreadyExists, sw.ID)
		}
		return fmt.Errorf("create swap: %w", err)
	}
	return nil
}

func (s *Store) GetSwap(ctx context.Context, id uuid.UUID) (*models.Swap, error) {
	var sw models.Swap
	err := s.db.GetContext(ctx, &sw, `SELECT `+swapColumns+` FROM swaps WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: swap %s", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("error getting swap: %w", err)
	}
	return &sw, nil
}

// FindSwapByCode looks a swap up by its SWxxxxxxxx display code.
func (s *Store) FindSwapByCode(ctx context.Context, userID uuid.UUID, code string) (*models.Swap, error) {
	suffix := strings.TrimPrefix(strings.ToUpper(code), "SW")

	query := `SELECT ` + swapColumns + ` FROM swaps
		WHERE user_id = $1 AND upper(right(replace(id::text, '-', ''), 8)) = $2
		ORDER BY created_at DESC, id DESC LIMIT 1`

	var sw models.Swap
	if err := s.db.GetContext(ctx, &sw, query, userID, suffix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: swap %s", repository.ErrNotFound, code)
		}
		return nil, fmt.Errorf("error getting swap: %w", err)
	}
	return &sw, nil
}

func (s *Store) ListSwaps(ctx context.Context, f models.SwapFilter) ([]models.Swap, int, error) {
	conds := []string{"user_id = $1"}
	args := []interface{}{f.UserID}
	if f.FromCurrency != "" {
		args = append(args, f.FromCurrency)
		conds = append(conds, fmt.Sprintf("from_currency = $%d", len(args)))
	}
	if f.ToCurrency != "" {
		args = append(args, f.ToCurrency)
		conds = append(conds, fmt.Sprintf("to_currency = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM swaps`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count swaps: %w", err)
	}

	query, args := withPage(`SELECT `+swapColumns+` FROM swaps`+where+` ORDER BY created_at DESC, id DESC`, args, f.Page)

	swaps := []models.Swap{}
	if err := s.db.SelectContext(ctx, &swaps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list swaps: %w", err)
	}
	return swaps, total, nil
}

func (s *Store) SwapStatistics(ctx context.Context, userID uuid.UUID) (*models.SwapStatistics, error) {
	var totals struct {
		Count  int             `db:"count"`
		Volume decimal.Decimal `db:"volume"`
	}
	err := s.db.GetContext(ctx, &totals,
		`SELECT COUNT(*) AS count, COALESCE(SUM(amount), 0) AS volume FROM swaps WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("swap totals: %w", err)
	}

	from, err := s.mostSwapped(ctx, userID, "from_currency")
	if err != nil {
		return nil, err
	}
	to, err := s.mostSwapped(ctx, userID, "to_currency")
	if err != nil {
		return nil, err
	}

	recent, _, err := s.ListSwaps(ctx, models.SwapFilter{UserID: userID, Page: models.Page{Page: 1, Limit: 5}})
	if err != nil {
		return nil, err
	}
	views := make([]models.SwapView, 0, len(recent))
	for i := range recent {
		views = append(views, recent[i].View())
	}

	return &models.SwapStatistics{
		TotalSwaps:      totals.Count,
		TotalVolume:     totals.Volume,
		MostSwappedFrom: from,
		MostSwappedTo:   to,
		RecentSwaps:     views,
	}, nil
}

// column is one of the two fixed currency columns, never user input.
func (s *Store) mostSwapped(ctx context.Context, userID uuid.UUID, column string) (*models.CurrencyVolume, error) {
	query := fmt.Sprintf(`
		SELECT %[1]s AS currency, COUNT(*) AS count, SUM(amount) AS volume
		FROM swaps
		WHERE user_id = $1
		GROUP BY %[1]s
		ORDER BY count DESC, volume DESC, currency ASC
		LIMIT 1`, column)

	var cv models.CurrencyVolume
	if err := s.db.GetContext(ctx, &cv, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("most swapped %s: %w", column, err)
	}
	return &cv, nil
}
