package usecase_test

import (
	"context"
	"testing"

	"github.com/Nzyazin/cryptovault/internal/core/events"
	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/Nzyazin/cryptovault/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteSwap(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	userID := s.user(t, map[string]int64{"bitcoin": 100})

	res, err := s.swaps.ExecuteSwap(ctx, userID, "bitcoin", "ethereum", dec("60"))
	require.NoError(t, err)

	assert.True(t, res.FromBalance.Equal(dec("40")))
	assert.True(t, res.ToBalance.Equal(dec("60")))
	assert.True(t, res.TotalValue.Equal(dec("100")))
	assert.True(t, s.balance(t, userID, "bitcoin").Equal(dec("40")))
	assert.True(t, s.balance(t, userID, "ethereum").Equal(dec("60")))

	sw := res.Swap
	assert.Equal(t, models.SwapCompleted, sw.Status)
	assert.True(t, sw.Rate.Equal(dec("1")))
	assert.True(t, sw.AmountReceived.Equal(dec("60")))
	assert.True(t, sw.Fee.IsZero())
	assert.True(t, sw.BalancesBefore.Balances[models.Bitcoin].Equal(dec("100")))
	assert.True(t, sw.BalancesBefore.Total.Equal(dec("100")))
	assert.True(t, sw.BalancesAfter.Balances[models.Bitcoin].Equal(dec("40")))
	assert.True(t, sw.BalancesAfter.Balances[models.Ethereum].Equal(dec("60")))
	assert.True(t, sw.BalancesAfter.Total.Equal(sw.BalancesBefore.Total))

	tr := res.Transaction
	assert.Equal(t, models.TransactionSwap, tr.Type)
	assert.Equal(t, models.StatusCompleted, tr.Status)
	assert.Equal(t, models.Bitcoin, tr.Currency)
	assert.Equal(t, sw.ID.String(), tr.Metadata["swapId"])
	assert.Equal(t, "ethereum", tr.Metadata["toCrypto"])

	assert.Contains(t, s.pub.types(), events.SwapCompleted)
}

func TestExecuteSwapRejections(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	userID := s.user(t, map[string]int64{"bitcoin": 50})

	tests := []struct {
		name    string
		user    uuid.UUID
		from    string
		to      string
		amount  string
		wantErr error
	}{
		{"same currency", userID, "bitcoin", "Bitcoin", "10", usecase.ErrSameCurrency},
		{"unknown from", userID, "cardano", "bitcoin", "10", usecase.ErrUnsupportedCurrency},
		{"unknown to", userID, "bitcoin", "cardano", "10", usecase.ErrUnsupportedCurrency},
		{"zero amount", userID, "bitcoin", "tron", "0", usecase.ErrInvalidAmount},
		{"insufficient", userID, "bitcoin", "tron", "50.01", usecase.ErrInsufficientFunds},
		{"no wallet", uuid.New(), "bitcoin", "tron", "1", usecase.ErrWalletNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.swaps.ExecuteSwap(ctx, tt.user, tt.from, tt.to, dec(tt.amount))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// nothing moved and nothing was recorded
	assert.True(t, s.balance(t, userID, "bitcoin").Equal(dec("50")))
	assert.True(t, s.balance(t, userID, "tron").IsZero())
	page, err := s.swaps.History(ctx, userID, usecase.SwapQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Swaps)
	txs, err := s.txs.History(ctx, userID, usecase.TransactionQuery{})
	require.NoError(t, err)
	assert.Empty(t, txs.Transactions)
}

func TestGetSwapByIDAndCode(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	userID := s.user(t, map[string]int64{"solana": 10})
	other := s.user(t, nil)

	res, err := s.swaps.ExecuteSwap(ctx, userID, "solana", "tether", dec("4"))
	require.NoError(t, err)

	got, err := s.swaps.Get(ctx, userID, res.Swap.ID.String())
	require.NoError(t, err)
	assert.Equal(t, res.Swap.ID, got.ID)

	got, err = s.swaps.Get(ctx, userID, res.Swap.Code())
	require.NoError(t, err)
	assert.Equal(t, res.Swap.ID, got.ID)

	_, err = s.swaps.Get(ctx, other, res.Swap.ID.String())
	assert.ErrorIs(t, err, usecase.ErrSwapNotFound)
	_, err = s.swaps.Get(ctx, other, res.Swap.Code())
	assert.ErrorIs(t, err, usecase.ErrSwapNotFound)
	_, err = s.swaps.Get(ctx, userID, "not-a-swap")
	assert.ErrorIs(t, err, usecase.ErrSwapNotFound)
}

func TestSwapHistoryAndStatistics(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	userID := s.user(t, map[string]int64{"bitcoin": 100, "ethereum": 100})

	swaps := []struct{ from, to, amount string }{
		{"bitcoin", "tron", "10"},
		{"bitcoin", "tron", "5"},
		{"bitcoin", "solana", "1"},
		{"ethereum", "tron", "20"},
	}
	for _, sw := range swaps {
		_, err := s.swaps.ExecuteSwap(ctx, userID, sw.from, sw.to, dec(sw.amount))
		require.NoError(t, err)
	}

	page, err := s.swaps.History(ctx, userID, usecase.SwapQuery{From: "bitcoin"})
	require.NoError(t, err)
	assert.Len(t, page.Swaps, 3)
	assert.Equal(t, 3, page.Pagination.Total)

	page, err = s.swaps.History(ctx, userID, usecase.SwapQuery{To: "tron", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Swaps, 2)
	assert.Equal(t, 3, page.Pagination.Total)

	stats, err := s.swaps.Statistics(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalSwaps)
	assert.True(t, stats.TotalVolume.Equal(dec("36")))
	require.NotNil(t, stats.MostSwappedFrom)
	assert.Equal(t, models.Bitcoin, stats.MostSwappedFrom.Currency)
	assert.Equal(t, 3, stats.MostSwappedFrom.Count)
	require.NotNil(t, stats.MostSwappedTo)
	assert.Equal(t, models.Tron, stats.MostSwappedTo.Currency)
	assert.Len(t, stats.RecentSwaps, 4)

	// totals are preserved by swaps
	summary, err := s.wallets.GetAllBalances(ctx, userID)
	require.NoError(t, err)
	assert.True(t, summary.TotalValue.Equal(dec("200")))
}

func TestSwapStatisticsEmpty(t *testing.T) {
	s := newSuite(t)
	userID := s.user(t, nil)

	stats, err := s.swaps.Statistics(context.Background(), userID)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalSwaps)
	assert.Nil(t, stats.MostSwappedFrom)
	assert.Empty(t, stats.RecentSwaps)
}

func TestSwapHistoryPagingWithSameTimestamp(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	userID := s.user(t, map[string]int64{"bitcoin": 100})

	const total = 5
	for i := 0; i < total; i++ {
		_, err := s.swaps.ExecuteSwap(ctx, userID, "bitcoin", "ethereum", dec("1"))
		require.NoError(t, err)
	}

	walk := func() []uuid.UUID {
		var ids []uuid.UUID
		for p := 1; p <= total; p++ {
			page, err := s.swaps.History(ctx, userID, usecase.SwapQuery{Page: p, Limit: 1})
			require.NoError(t, err)
			require.Len(t, page.Swaps, 1)
			ids = append(ids, page.Swaps[0].ID)
		}
		return ids
	}

	first := walk()
	seen := map[uuid.UUID]bool{}
	for _, id := range first {
		seen[id] = true
	}
	require.Len(t, seen, total)

	for i := 0; i < 20; i++ {
		assert.Equal(t, first, walk())
	}
}
