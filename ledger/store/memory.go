// Package store provides an in-memory ledger.Store for tests and local dev.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/wallet-ledger/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory keeps all rows in maps guarded by one RWMutex. A transaction holds
// the write lock for its whole duration, so transactions are serial and a
// LockWallet read can never go stale before the matching write.
type Memory struct {
	mu sync.RWMutex
	state
}

type state struct {
	wallets    map[ledger.WalletID]ledger.Wallet
	categories map[ledger.CategoryID]ledger.Category
	expenses   map[ledger.ExpenseID]ledger.Expense
}

func NewMemory() *Memory {
	return &Memory{state: state{
		wallets:    make(map[ledger.WalletID]ledger.Wallet),
		categories: make(map[ledger.CategoryID]ledger.Category),
		expenses:   make(map[ledger.ExpenseID]ledger.Expense),
	}}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.state.clone()
	if err := fn(&txView{state: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (s *state) clone() state {
	c := state{
		wallets:    make(map[ledger.WalletID]ledger.Wallet, len(s.wallets)),
		categories: make(map[ledger.CategoryID]ledger.Category, len(s.categories)),
		expenses:   make(map[ledger.ExpenseID]ledger.Expense, len(s.expenses)),
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.expenses {
		c.expenses[k] = v
	}
	return c
}

// =============================================================================
// READS (outside a transaction)
// =============================================================================

func (m *Memory) GetWallet(_ context.Context, userID ledger.UserID, id ledger.WalletID) (*ledger.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getWallet(userID, id), nil
}

func (m *Memory) FindWalletByName(_ context.Context, userID ledger.UserID, name string) (*ledger.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findWalletByName(userID, name), nil
}

func (m *Memory) ListWallets(_ context.Context, userID ledger.UserID) ([]ledger.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listWallets(userID), nil
}

func (m *Memory) GetCategory(_ context.Context, userID ledger.UserID, id ledger.CategoryID) (*ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCategory(userID, id), nil
}

func (m *Memory) FindCategoryByName(_ context.Context, userID ledger.UserID, name string) (*ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findCategoryByName(userID, name), nil
}

func (m *Memory) ListCategories(_ context.Context, userID ledger.UserID) ([]ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCategories(userID), nil
}

func (m *Memory) GetExpense(_ context.Context, userID ledger.UserID, id ledger.ExpenseID) (*ledger.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getExpense(userID, id), nil
}

func (m *Memory) ListExpenses(_ context.Context, userID ledger.UserID, q ledger.ExpenseQuery) ([]ledger.Expense, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, total := m.listExpenses(userID, q)
	return rows, total, nil
}

func (m *Memory) ExpenseTotals(_ context.Context, userID ledger.UserID, since time.Time) (ledger.Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totals(userID, since), nil
}

func (m *Memory) ExpenseGroups(_ context.Context, userID ledger.UserID, by ledger.GroupBy) ([]ledger.GroupTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.groups(userID, by), nil
}

// =============================================================================
// TRANSACTIONAL VIEW (caller holds the write lock)
// =============================================================================

type txView struct {
	*state
}

func (tv *txView) GetWallet(_ context.Context, userID ledger.UserID, id ledger.WalletID) (*ledger.Wallet, error) {
	return tv.getWallet(userID, id), nil
}

func (tv *txView) LockWallet(_ context.Context, userID ledger.UserID, id ledger.WalletID) (*ledger.Wallet, error) {
	return tv.getWallet(userID, id), nil
}

func (tv *txView) FindWalletByName(_ context.Context, userID ledger.UserID, name string) (*ledger.Wallet, error) {
	return tv.findWalletByName(userID, name), nil
}

func (tv *txView) ListWallets(_ context.Context, userID ledger.UserID) ([]ledger.Wallet, error) {
	return tv.listWallets(userID), nil
}

func (tv *txView) GetCategory(_ context.Context, userID ledger.UserID, id ledger.CategoryID) (*ledger.Category, error) {
	return tv.getCategory(userID, id), nil
}

func (tv *txView) FindCategoryByName(_ context.Context, userID ledger.UserID, name string) (*ledger.Category, error) {
	return tv.findCategoryByName(userID, name), nil
}

func (tv *txView) ListCategories(_ context.Context, userID ledger.UserID) ([]ledger.Category, error) {
	return tv.listCategories(userID), nil
}

func (tv *txView) GetExpense(_ context.Context, userID ledger.UserID, id ledger.ExpenseID) (*ledger.Expense, error) {
	return tv.getExpense(userID, id), nil
}

func (tv *txView) ListExpenses(_ context.Context, userID ledger.UserID, q ledger.ExpenseQuery) ([]ledger.Expense, int, error) {
	rows, total := tv.listExpenses(userID, q)
	return rows, total, nil
}

func (tv *txView) ExpenseTotals(_ context.Context, userID ledger.UserID, since time.Time) (ledger.Totals, error) {
	return tv.totals(userID, since), nil
}

func (tv *txView) ExpenseGroups(_ context.Context, userID ledger.UserID, by ledger.GroupBy) ([]ledger.GroupTotal, error) {
	return tv.groups(userID, by), nil
}

func (tv *txView) InsertWallet(_ context.Context, w ledger.Wallet) error {
	if tv.findWalletByName(w.UserID, w.Name) != nil {
		return &ledger.DuplicateNameError{Kind: ledger.KindWallet, Name: w.Name}
	}
	w.ExpenseCount = 0
	tv.wallets[w.ID] = w
	return nil
}

func (tv *txView) UpdateWallet(_ context.Context, w ledger.Wallet) error {
	cur, ok := tv.wallets[w.ID]
	if !ok || cur.UserID != w.UserID {
		return fmt.Errorf("update wallet %s: no such row", w.ID)
	}
	if other := tv.findWalletByName(w.UserID, w.Name); other != nil && other.ID != w.ID {
		return &ledger.DuplicateNameError{Kind: ledger.KindWallet, Name: w.Name}
	}
	cur.Name = w.Name
	cur.UpdatedAt = w.UpdatedAt
	tv.wallets[w.ID] = cur
	return nil
}

func (tv *txView) DeleteWallet(_ context.Context, userID ledger.UserID, id ledger.WalletID) error {
	for _, e := range tv.expenses {
		if e.WalletID == id {
			return fmt.Errorf("delete wallet %s: referenced by expense %s: %w", id, e.ID, ledger.ErrInUse)
		}
	}
	if w, ok := tv.wallets[id]; ok && w.UserID == userID {
		delete(tv.wallets, id)
	}
	return nil
}

func (tv *txView) AdjustWalletBalance(_ context.Context, userID ledger.UserID, id ledger.WalletID, delta decimal.Decimal, at time.Time) error {
	w, ok := tv.wallets[id]
	if !ok || w.UserID != userID {
		return fmt.Errorf("adjust wallet %s: no such row", id)
	}
	w.Balance = w.Balance.Add(delta)
	w.UpdatedAt = at
	tv.wallets[id] = w
	return nil
}

func (tv *txView) InsertCategory(_ context.Context, c ledger.Category) error {
	if tv.findCategoryByName(c.UserID, c.Name) != nil {
		return &ledger.DuplicateNameError{Kind: ledger.KindCategory, Name: c.Name}
	}
	c.ExpenseCount = 0
	tv.categories[c.ID] = c
	return nil
}

func (tv *txView) UpdateCategory(_ context.Context, c ledger.Category) error {
	cur, ok := tv.categories[c.ID]
	if !ok || cur.UserID != c.UserID {
		return fmt.Errorf("update category %s: no such row", c.ID)
	}
	if other := tv.findCategoryByName(c.UserID, c.Name); other != nil && other.ID != c.ID {
		return &ledger.DuplicateNameError{Kind: ledger.KindCategory, Name: c.Name}
	}
	cur.Name = c.Name
	cur.Description = c.Description
	cur.Color = c.Color
	cur.UpdatedAt = c.UpdatedAt
	tv.categories[c.ID] = cur
	return nil
}

func (tv *txView) DeleteCategory(_ context.Context, userID ledger.UserID, id ledger.CategoryID) error {
	for _, e := range tv.expenses {
		if e.CategoryID == id {
			return fmt.Errorf("delete category %s: referenced by expense %s: %w", id, e.ID, ledger.ErrInUse)
		}
	}
	if c, ok := tv.categories[id]; ok && c.UserID == userID {
		delete(tv.categories, id)
	}
	return nil
}

// LockExpense needs no extra locking: the transaction already holds the
// store's write lock.
func (tv *txView) LockExpense(_ context.Context, userID ledger.UserID, id ledger.ExpenseID) (*ledger.Expense, error) {
	return tv.getExpense(userID, id), nil
}

func (tv *txView) InsertExpense(_ context.Context, e ledger.Expense) error {
	if err := tv.checkRefs(e); err != nil {
		return err
	}
	e.Wallet = ledger.WalletRef{}
	e.Category = ledger.CategoryRef{}
	tv.expenses[e.ID] = e
	return nil
}

func (tv *txView) UpdateExpense(_ context.Context, e ledger.Expense) error {
	cur, ok := tv.expenses[e.ID]
	if !ok || cur.UserID != e.UserID {
		return fmt.Errorf("update expense %s: no such row", e.ID)
	}
	if err := tv.checkRefs(e); err != nil {
		return err
	}
	e.CreatedAt = cur.CreatedAt
	e.Wallet = ledger.WalletRef{}
	e.Category = ledger.CategoryRef{}
	tv.expenses[e.ID] = e
	return nil
}

func (tv *txView) DeleteExpense(_ context.Context, userID ledger.UserID, id ledger.ExpenseID) (bool, error) {
	e, ok := tv.expenses[id]
	if !ok || e.UserID != userID {
		return false, nil
	}
	delete(tv.expenses, id)
	return true, nil
}

// checkRefs stands in for the foreign keys of the SQL schema.
func (s *state) checkRefs(e ledger.Expense) error {
	if w, ok := s.wallets[e.WalletID]; !ok || w.UserID != e.UserID {
		return fmt.Errorf("expense %s: wallet %s does not exist", e.ID, e.WalletID)
	}
	if c, ok := s.categories[e.CategoryID]; !ok || c.UserID != e.UserID {
		return fmt.Errorf("expense %s: category %s does not exist", e.ID, e.CategoryID)
	}
	return nil
}

// =============================================================================
// SHARED QUERIES
// =============================================================================

func (s *state) getWallet(userID ledger.UserID, id ledger.WalletID) *ledger.Wallet {
	w, ok := s.wallets[id]
	if !ok || w.UserID != userID {
		return nil
	}
	w.ExpenseCount = s.countExpenses(func(e ledger.Expense) bool { return e.WalletID == id })
	return &w
}

func (s *state) findWalletByName(userID ledger.UserID, name string) *ledger.Wallet {
	for id, w := range s.wallets {
		if w.UserID == userID && strings.EqualFold(w.Name, name) {
			return s.getWallet(userID, id)
		}
	}
	return nil
}

func (s *state) listWallets(userID ledger.UserID) []ledger.Wallet {
	var out []ledger.Wallet
	for id, w := range s.wallets {
		if w.UserID == userID {
			out = append(out, *s.getWallet(userID, id))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *state) getCategory(userID ledger.UserID, id ledger.CategoryID) *ledger.Category {
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return nil
	}
	c.ExpenseCount = s.countExpenses(func(e ledger.Expense) bool { return e.CategoryID == id })
	return &c
}

func (s *state) findCategoryByName(userID ledger.UserID, name string) *ledger.Category {
	for id, c := range s.categories {
		if c.UserID == userID && strings.EqualFold(c.Name, name) {
			return s.getCategory(userID, id)
		}
	}
	return nil
}

func (s *state) listCategories(userID ledger.UserID) []ledger.Category {
	var out []ledger.Category
	for id, c := range s.categories {
		if c.UserID == userID {
			out = append(out, *s.getCategory(userID, id))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func (s *state) countExpenses(match func(ledger.Expense) bool) int {
	n := 0
	for _, e := range s.expenses {
		if match(e) {
			n++
		}
	}
	return n
}

// joined fills the wallet/category refs the way the SQL join does.
func (s *state) joined(e ledger.Expense) ledger.Expense {
	if w, ok := s.wallets[e.WalletID]; ok {
		e.Wallet = ledger.WalletRef{ID: w.ID, Name: w.Name, Type: w.Type}
	}
	if c, ok := s.categories[e.CategoryID]; ok {
		e.Category = ledger.CategoryRef{ID: c.ID, Name: c.Name, Color: c.Color}
	}
	return e
}

func (s *state) getExpense(userID ledger.UserID, id ledger.ExpenseID) *ledger.Expense {
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return nil
	}
	e = s.joined(e)
	return &e
}

func (s *state) listExpenses(userID ledger.UserID, q ledger.ExpenseQuery) ([]ledger.Expense, int) {
	var matched []ledger.Expense
	for _, e := range s.expenses {
		if e.UserID == userID && q.Matches(e) {
			matched = append(matched, s.joined(e))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return q.Less(matched[i], matched[j]) })

	total := len(matched)
	from := q.Offset()
	if from > total {
		from = total
	}
	to := from + q.Limit
	if to > total {
		to = total
	}
	return append([]ledger.Expense{}, matched[from:to]...), total
}

func (s *state) totals(userID ledger.UserID, since time.Time) ledger.Totals {
	t := ledger.Totals{Sum: decimal.Zero}
	var floor time.Time
	if !since.IsZero() {
		floor = ledger.DateOf(since)
	}
	for _, e := range s.expenses {
		if e.UserID != userID {
			continue
		}
		if !floor.IsZero() && e.Date.Before(floor) {
			continue
		}
		t.Count++
		t.Sum = t.Sum.Add(e.Amount)
	}
	return t
}

func (s *state) groups(userID ledger.UserID, by ledger.GroupBy) []ledger.GroupTotal {
	index := make(map[string]int)
	var out []ledger.GroupTotal
	for _, e := range s.expenses {
		if e.UserID != userID {
			continue
		}
		key := string(e.CategoryID)
		if by == ledger.GroupByWallet {
			key = string(e.WalletID)
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, s.describeGroup(userID, by, key))
		}
		out[i].Count++
		out[i].Total = out[i].Total.Add(e.Amount)
	}
	return out
}

func (s *state) describeGroup(userID ledger.UserID, by ledger.GroupBy, key string) ledger.GroupTotal {
	g := ledger.GroupTotal{ID: key, Total: decimal.Zero}
	switch by {
	case ledger.GroupByWallet:
		if w, ok := s.wallets[ledger.WalletID(key)]; ok && w.UserID == userID {
			g.Name, g.Attr, g.Resolved = w.Name, string(w.Type), true
		}
	default:
		if c, ok := s.categories[ledger.CategoryID(key)]; ok && c.UserID == userID {
			g.Name, g.Attr, g.Resolved = c.Name, c.Color, true
		}
	}
	return g
}

// FloorViolations lists non-cash wallets of any user with a negative balance.
func (m *Memory) FloorViolations(_ context.Context) ([]ledger.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Wallet
	for _, w := range m.wallets {
		if w.Type.HasFloor() && w.Balance.IsNegative() {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
