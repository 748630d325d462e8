package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/repository"
	"github.com/avast/retry-go"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = 20 * time.Millisecond
	maxRetryDelay      = 500 * time.Millisecond
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type Store struct {
	db          *sqlx.DB
	log         logger.Logger
	maxAttempts uint
	retryDelay  time.Duration
}

var _ repository.Store = (*Store)(nil)

type Option func(*Store)

func WithRetry(attempts uint, delay time.Duration) Option {
	return func(s *Store) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
		if delay > 0 {
			s.retryDelay = delay
		}
	}
}

func NewStore(db *sqlx.DB, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		db:          db,
		log:         log,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExecuteTx runs fn in a SERIALIZABLE transaction and retries it on
// serialization failures and deadlocks. fn must rebuild its state from the
// rows it locks, since it may run more than once.
func (s *Store) ExecuteTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	var opErr, lastErr error

	err := retry.Do(
		func() error {
			err := s.executeTx(ctx, fn)
			if err != nil && isRetryableError(err) && ctx.Err() == nil {
				lastErr = err
				return err
			}
			opErr = err
			return nil
		},
		retry.Attempts(s.maxAttempts),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warn("Retrying transaction",
				logger.Int64Field("attempt", int64(n)+1),
				logger.ErrorField("error", err))
		}),
	)
	if err != nil {
		s.log.Error("Transaction failed after retries", logger.ErrorField("error", lastErr))
		return fmt.Errorf("transaction failed after %d attempts: %w", s.maxAttempts, lastErr)
	}

	return opErr
}

func (s *Store) executeTx(ctx context.Context, fn func(tx repository.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		s.log.Error("Error beginning transaction",
			logger.ErrorField("error", err))
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error("Transaction rollback after panic failed",
					logger.ErrorField("error", rbErr))
			}
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error("Transaction rollback failed",
					logger.ErrorField("error", rbErr))
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			} else {
				s.log.Debug("Transaction rolled back due to error",
					logger.ErrorField("error", err))
			}
		}
	}()

	if err = fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		s.log.Error("Error committing transaction",
			logger.ErrorField("error", err))
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

// 40001 - serialization failure, 40P01 - deadlock detected
func isRetryableError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type pgTx struct {
	tx *sqlx.Tx
}

var _ repository.Tx = (*pgTx)(nil)
