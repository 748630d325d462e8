package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Nzyazin/cryptovault/internal/core/events"
	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/repository/memory"
	"github.com/Nzyazin/cryptovault/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type suite struct {
	store   *memory.Store
	pub     *recorder
	wallets usecase.WalletUsecase
	txs     usecase.TransactionUsecase
	swaps   usecase.SwapUsecase
	addrs   usecase.AddressUsecase
	admin   uuid.UUID
}

func newSuite(t *testing.T) *suite {
	t.Helper()
	store := memory.NewStore()
	pub := &recorder{}
	log := logger.NewNop()
	clock := usecase.WithClock(func() time.Time { return fixedNow })

	return &suite{
		store:   store,
		pub:     pub,
		wallets: usecase.NewWalletUsecase(store, pub, log, clock),
		txs:     usecase.NewTransactionUsecase(store, pub, log, clock),
		swaps:   usecase.NewSwapUsecase(store, pub, log, clock),
		addrs:   usecase.NewAddressUsecase(store, log, clock),
		admin:   uuid.New(),
	}
}

// user opens a wallet and funds it with the given USD amount per currency.
func (s *suite) user(t *testing.T, funds map[string]int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	userID := uuid.New()
	_, err := s.wallets.OpenWallet(ctx, userID)
	require.NoError(t, err)
	for c, amount := range funds {
		_, err := s.wallets.FundAccount(ctx, s.admin, userID, c, decimal.NewFromInt(amount))
		require.NoError(t, err)
	}
	return userID
}

func (s *suite) balance(t *testing.T, userID uuid.UUID, currency string) decimal.Decimal {
	t.Helper()
	line, err := s.wallets.GetBalance(context.Background(), userID, currency)
	require.NoError(t, err)
	return line.Balance
}

func (s *suite) address(t *testing.T, currency string) {
	t.Helper()
	_, err := s.addrs.Upsert(context.Background(), s.admin, currency, "addr-"+currency, "mainnet")
	require.NoError(t, err)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
