//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Nzyazin/cryptovault/internal/core/events"
	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/Nzyazin/cryptovault/internal/core/repository"
	"github.com/Nzyazin/cryptovault/internal/core/repository/postgres"
	"github.com/Nzyazin/cryptovault/internal/core/usecase"
	"github.com/Nzyazin/cryptovault/pkg/config"
	"github.com/Nzyazin/cryptovault/pkg/postgresdb"
	"github.com/avast/retry-go"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const containerName = "cryptovault_test_db"

var testDB *postgresdb.Database

// TestMain поднимает postgres в docker на порту 5433 и накатывает миграции.
func TestMain(m *testing.M) {
	log := logger.NewNop()

	teardown, err := startPostgres(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	teardown()
	os.Exit(code)
}

func startPostgres(log logger.Logger) (func(), error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	ctx := context.Background()
	_ = cli.ContainerRemove(ctx, containerName, container.RemoveOptions{Force: true})

	containerConfig := &container.Config{
		Image: "postgres:13",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test_db",
		},
		ExposedPorts: nat.PortSet{"5432/tcp": struct{}{}},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			"5432/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "5433"}},
		},
	}

	resp, err := cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	stop := func() {
		timeout := 5
		if err := cli.ContainerStop(ctx, resp.ID, container.StopOptions{Timeout: &timeout}); err != nil {
			log.Error("Failed to stop container", logger.ErrorField("error", err))
		}
		if err := cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); err != nil {
			log.Error("Failed to remove container", logger.ErrorField("error", err))
		}
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		stop()
		return nil, fmt.Errorf("start container: %w", err)
	}

	cfg := config.DBConfig{
		Host:         "127.0.0.1",
		Port:         5433,
		User:         "test",
		Password:     "test",
		Name:         "test_db",
		SSLMode:      "disable",
		MaxOpenConns: 50,
		MaxIdleConns: 50,
	}

	err = retry.Do(
		func() error {
			db, err := postgresdb.NewPostgresDB(cfg, log)
			if err != nil {
				return err
			}
			testDB = db
			return nil
		},
		retry.Attempts(30),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
	)
	if err != nil {
		stop()
		return nil, fmt.Errorf("wait for postgres: %w", err)
	}

	if err := testDB.Migrate(); err != nil {
		testDB.Close()
		stop()
		return nil, err
	}

	return stop, nil
}

type fixture struct {
	store   *postgres.Store
	wallets usecase.WalletUsecase
	txs     usecase.TransactionUsecase
	swaps   usecase.SwapUsecase
	addrs   usecase.AddressUsecase
	admin   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	store := postgres.NewStore(testDB.DB, log, postgres.WithRetry(60, 2*time.Millisecond))
	pub := events.NopPublisher{}

	return &fixture{
		store:   store,
		wallets: usecase.NewWalletUsecase(store, pub, log),
		txs:     usecase.NewTransactionUsecase(store, pub, log),
		swaps:   usecase.NewSwapUsecase(store, pub, log),
		addrs:   usecase.NewAddressUsecase(store, log),
		admin:   uuid.New(),
	}
}

func (f *fixture) user(t *testing.T, currency string, amount int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	userID := uuid.New()
	_, err := f.wallets.OpenWallet(ctx, userID)
	require.NoError(t, err)
	if amount > 0 {
		_, err = f.wallets.FundAccount(ctx, f.admin, userID, currency, decimal.NewFromInt(amount))
		require.NoError(t, err)
	}
	return userID
}

func TestCreateWalletTwice(t *testing.T) {
	f := newFixture(t)
	userID := f.user(t, "", 0)

	_, err := f.wallets.OpenWallet(context.Background(), userID)
	assert.ErrorIs(t, err, usecase.ErrWalletExists)
}

func TestConcurrentWithdrawals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t, "bitcoin", 20)

	const goroutines = 30
	var wg sync.WaitGroup
	wg.Add(goroutines)

	errCh := make(chan error, goroutines)
	start := time.Now()

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := f.txs.RequestWithdrawal(ctx, userID, "bitcoin", decimal.NewFromInt(1), "bc1qdest")
			errCh <- err
		}()
	}

	wg.Wait()
	close(errCh)

	var succeeded, insufficient int
	for err := range errCh {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, usecase.ErrInsufficientFunds):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 20, succeeded)
	assert.Equal(t, goroutines-20, insufficient)

	line, err := f.wallets.GetBalance(ctx, userID, "bitcoin")
	require.NoError(t, err)
	assert.True(t, line.Balance.IsZero(), line.Balance.String())

	var pending int
	err = testDB.Get(&pending,
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND type = 'withdrawal' AND status = 'pending'`, userID)
	require.NoError(t, err)
	assert.Equal(t, 20, pending)

	t.Logf("Completed in %s", time.Since(start))
}

func TestConcurrentConfirmCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t, "", 0)

	_, err := f.addrs.Upsert(ctx, f.admin, "ripple", "rVault", "XRP")
	require.NoError(t, err)

	deposit, err := f.txs.RequestDeposit(ctx, userID, "ripple", decimal.NewFromInt(7), "")
	require.NoError(t, err)

	const goroutines = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	confirmed := 0

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.txs.ConfirmDeposit(ctx, f.admin, deposit.Transaction.ID, ""); err == nil {
				mu.Lock()
				confirmed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, confirmed)

	line, err := f.wallets.GetBalance(ctx, userID, "ripple")
	require.NoError(t, err)
	assert.Equal(t, "7", line.Balance.String())
}

func TestRejectWithdrawalRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t, "solana", 40)

	w, err := f.txs.RequestWithdrawal(ctx, userID, "solana", decimal.RequireFromString("12.5"), "So1dest")
	require.NoError(t, err)

	res, err := f.txs.RejectWithdrawal(ctx, f.admin, w.Transaction.ID, "suspicious")
	require.NoError(t, err)
	assert.True(t, res.Refunded)

	stored, err := f.store.GetTransaction(ctx, w.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Equal(t, "suspicious", stored.AdminNotes)

	line, err := f.wallets.GetBalance(ctx, userID, "solana")
	require.NoError(t, err)
	assert.Equal(t, "40", line.Balance.String())
}

func TestBalanceCheckConstraint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t, "tron", 5)

	err := f.store.ExecuteTx(ctx, func(tx repository.Tx) error {
		w, err := tx.LockWallet(ctx, userID)
		if err != nil {
			return err
		}
		w.Balances[models.Tron] = decimal.NewFromInt(-1)
		return tx.SaveWallet(ctx, w)
	})
	require.Error(t, err)

	line, err := f.wallets.GetBalance(ctx, userID, "tron")
	require.NoError(t, err)
	assert.Equal(t, "5", line.Balance.String())
}

func TestExecuteTxRollsBackOnPanic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t, "bitcoin", 100)

	assert.PanicsWithValue(t, "boom", func() {
		_ = f.store.ExecuteTx(ctx, func(tx repository.Tx) error {
			w, err := tx.LockWallet(ctx, userID)
			require.NoError(t, err)
			w.Balances[models.Bitcoin] = decimal.NewFromInt(60)
			require.NoError(t, tx.SaveWallet(ctx, w))
			panic("boom")
		})
	})

	line, err := f.wallets.GetBalance(ctx, userID, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "100", line.Balance.String())

	// the row lock must be released by the rollback, not by a timeout
	lockCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err = f.store.ExecuteTx(lockCtx, func(tx repository.Tx) error {
		_, err := tx.LockWallet(lockCtx, userID)
		return err
	})
	assert.NoError(t, err)
}

func TestSwapStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t, "ethereum", 100)

	for _, step := range []struct {
		from, to string
		amount   int64
	}{
		{"ethereum", "bitcoin", 10},
		{"ethereum", "bitcoin", 5},
		{"ethereum", "solana", 20},
		{"bitcoin", "solana", 3},
	} {
		_, err := f.swaps.ExecuteSwap(ctx, userID, step.from, step.to, decimal.NewFromInt(step.amount))
		require.NoError(t, err)
	}

	stats, err := f.swaps.Statistics(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalSwaps)
	assert.Equal(t, "38", stats.TotalVolume.String())
	require.NotNil(t, stats.MostSwappedFrom)
	assert.Equal(t, models.Ethereum, stats.MostSwappedFrom.Currency)
	require.NotNil(t, stats.MostSwappedTo)
	assert.Equal(t, models.Solana, stats.MostSwappedTo.Currency)
	assert.Len(t, stats.RecentSwaps, 4)

	page, err := f.swaps.History(ctx, userID, usecase.SwapQuery{From: "ethereum", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Len(t, page.Swaps, 2)

	code := page.Swaps[0].SwapID
	byCode, err := f.swaps.Get(ctx, userID, code)
	require.NoError(t, err)
	assert.Equal(t, page.Swaps[0].ID, byCode.ID)

	summary, err := f.wallets.GetAllBalances(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "100", summary.TotalValue.String())
}
