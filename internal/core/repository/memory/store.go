// Package memory is a process-local Store used for local runs and tests.
// Units of work are serialized by one mutex and rolled back by restoring a
// copy of the state taken when the unit started.
package memory

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/Nzyazin/cryptovault/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type state struct {
	wallets      map[uuid.UUID]*models.Wallet // by user id
	transactions map[uuid.UUID]*models.Transaction
	swaps        map[uuid.UUID]*models.Swap
	addresses    map[models.Currency]*models.DepositAddress
}

func newState() *state {
	return &state{
		wallets:      make(map[uuid.UUID]*models.Wallet),
		transactions: make(map[uuid.UUID]*models.Transaction),
		swaps:        make(map[uuid.UUID]*models.Swap),
		addresses:    make(map[models.Currency]*models.DepositAddress),
	}
}

func (s *state) clone() *state {
	cp := newState()
	for k, w := range s.wallets {
		cp.wallets[k] = w.Clone()
	}
	for k, t := range s.transactions {
		cp.transactions[k] = t.Clone()
	}
	for k, sw := range s.swaps {
		v := *sw
		cp.swaps[k] = &v
	}
	for k, a := range s.addresses {
		v := *a
		cp.addresses[k] = &v
	}
	return cp
}

type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) ExecuteTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.state.clone()
	defer func() {
		if r := recover(); r != nil {
			s.state = backup
			panic(r)
		}
	}()

	if err := fn(&memTx{st: s.state}); err != nil {
		s.state = backup
		return err
	}
	return nil
}

func (s *Store) GetWalletByUserID(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.state.wallets[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return w.Clone(), nil
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.state.transactions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *Store) ListTransactions(_ context.Context, f models.TransactionFilter) ([]models.Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Transaction
	for _, t := range s.state.transactions {
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Currency != "" && t.Currency != f.Currency {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, *t.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return paginate(out, f.Page), len(out), nil
}

func (s *Store) GetSwap(_ context.Context, id uuid.UUID) (*models.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.state.swaps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v := *sw
	return &v, nil
}

func (s *Store) FindSwapByCode(_ context.Context, userID uuid.UUID, code string) (*models.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sw := range s.state.swaps {
		if sw.UserID == userID && strings.EqualFold(sw.Code(), code) {
			v := *sw
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListSwaps(_ context.Context, f models.SwapFilter) ([]models.Swap, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.userSwaps(f.UserID)
	filtered := out[:0]
	for _, sw := range out {
		if f.FromCurrency != "" && sw.FromCurrency != f.FromCurrency {
			continue
		}
		if f.ToCurrency != "" && sw.ToCurrency != f.ToCurrency {
			continue
		}
		filtered = append(filtered, sw)
	}
	return paginate(filtered, f.Page), len(filtered), nil
}

func (s *Store) SwapStatistics(_ context.Context, userID uuid.UUID) (*models.SwapStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	swaps := s.userSwaps(userID)
	stats := &models.SwapStatistics{
		TotalSwaps:  len(swaps),
		TotalVolume: decimal.Zero,
		RecentSwaps: []models.SwapView{},
	}

	from := map[models.Currency]*models.CurrencyVolume{}
	to := map[models.Currency]*models.CurrencyVolume{}
	for i := range swaps {
		sw := &swaps[i]
		stats.TotalVolume = stats.TotalVolume.Add(sw.Amount)
		accumulate(from, sw.FromCurrency, sw.Amount)
		accumulate(to, sw.ToCurrency, sw.Amount)
		if i < 5 {
			stats.RecentSwaps = append(stats.RecentSwaps, sw.View())
		}
	}
	stats.MostSwappedFrom = top(from)
	stats.MostSwappedTo = top(to)

	return stats, nil
}

func (s *Store) GetDepositAddress(_ context.Context, currency models.Currency) (*models.DepositAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.state.addresses[currency]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v := *a
	return &v, nil
}

func (s *Store) ListDepositAddresses(_ context.Context, activeOnly bool) ([]models.DepositAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.DepositAddress{}
	for _, a := range s.state.addresses {
		if activeOnly && !a.IsActive {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

// userSwaps returns the user's swaps, newest first. Caller holds s.mu.
func (s *Store) userSwaps(userID uuid.UUID) []models.Swap {
	var out []models.Swap
	for _, sw := range s.state.swaps {
		if sw.UserID == userID {
			out = append(out, *sw)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}

// newerFirst orders by creation time descending, then by id descending, as
// the postgres store does.
func newerFirst(a, b time.Time, aID, bID uuid.UUID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return bytes.Compare(aID[:], bID[:]) > 0
}

func accumulate(m map[models.Currency]*models.CurrencyVolume, c models.Currency, amount decimal.Decimal) {
	v, ok := m[c]
	if !ok {
		v = &models.CurrencyVolume{Currency: c, Volume: decimal.Zero}
		m[c] = v
	}
	v.Count++
	v.Volume = v.Volume.Add(amount)
}

// top picks the highest count, then volume, then currency name.
func top(m map[models.Currency]*models.CurrencyVolume) *models.CurrencyVolume {
	var best *models.CurrencyVolume
	for _, v := range m {
		switch {
		case best == nil,
			v.Count > best.Count,
			v.Count == best.Count && v.Volume.GreaterThan(best.Volume),
			v.Count == best.Count && v.Volume.Equal(best.Volume) && v.Currency < best.Currency:
			best = v
		}
	}
	return best
}

func paginate[T any](items []T, p models.Page) []T {
	if p.Limit <= 0 {
		return items
	}
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type memTx struct {
	st *state
}

func (t *memTx) CreateWallet(_ context.Context, w *models.Wallet) error {
	if _, ok := t.st.wallets[w.UserID]; ok {
		return repository.ErrAlreadyExists
	}
	t.st.wallets[w.UserID] = w.Clone()
	return nil
}

func (t *memTx) LockWallet(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w, ok := t.st.wallets[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return w.Clone(), nil
}

func (t *memTx) SaveWallet(_ context.Context, w *models.Wallet) error {
	if _, ok := t.st.wallets[w.UserID]; !ok {
		return repository.ErrNotFound
	}
	t.st.wallets[w.UserID] = w.Clone()
	return nil
}

func (t *memTx) CreateTransaction(_ context.Context, tr *models.Transaction) error {
	if _, ok := t.st.transactions[tr.ID]; ok {
		return repository.ErrAlreadyExists
	}
	t.st.transactions[tr.ID] = tr.Clone()
	return nil
}

func (t *memTx) LockTransaction(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	tr, ok := t.st.transactions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return tr.Clone(), nil
}

func (t *memTx) UpdateTransaction(_ context.Context, tr *models.Transaction) error {
	if _, ok := t.st.transactions[tr.ID]; !ok {
		return repository.ErrNotFound
	}
	t.st.transactions[tr.ID] = tr.Clone()
	return nil
}

func (t *memTx) CreateSwap(_ context.Context, sw *models.Swap) error {
	if _, ok := t.st.swaps[sw.ID]; ok {
		return repository.ErrAlreadyExists
	}
	v := *sw
	t.st.swaps[sw.ID] = &v
	return nil
}

func (t *memTx) LockDepositAddress(_ context.Context, currency models.Currency) (*models.DepositAddress, error) {
	a, ok := t.st.addresses[currency]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v := *a
	return &v, nil
}

func (t *memTx) SaveDepositAddress(_ context.Context, a *models.DepositAddress) error {
	v := *a
	t.st.addresses[a.Currency] = &v
	return nil
}
