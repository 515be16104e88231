/*
catalog.go - Wallet and category management

PURPOSE:
  Plain CRUD for the two reference entities the ledger posts against.
  The catalog never changes a balance after creation: the opening balance is
  set once by CreateWallet and from then on only the Engine moves it.

RULES:
  - Names are unique per user, case-insensitive (DuplicateNameError)
  - A wallet/category that still owns expenses cannot be deleted (InUseError)
  - Opening balances cannot be negative, for every wallet type
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type Catalog struct {
	options
	store Store
}

func NewCatalog(store Store, opts ...Option) *Catalog {
	return &Catalog{options: buildOptions(opts), store: store}
}

// =============================================================================
// WALLETS
// =============================================================================

type NewWallet struct {
	Name    string
	Type    WalletType
	Balance decimal.Decimal // opening balance
}

func (c *Catalog) CreateWallet(ctx context.Context, userID UserID, in NewWallet) (*Wallet, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	if err := validateLength("name", in.Name, WalletNameMinLen, WalletNameMaxLen); err != nil {
		return nil, err
	}
	t, ok := ParseWalletType(string(in.Type))
	if !ok {
		return nil, invalid("type", "must be one of BANK, CASH, UPI, WALLET")
	}
	in.Type = t
	if in.Balance.IsNegative() {
		return nil, invalid("balance", "cannot be negative")
	}
	if !HasMinorPrecision(in.Balance) {
		return nil, invalid("balance", "must have at most %d decimal places", MinorUnits)
	}

	now := c.now().UTC()
	w := Wallet{
		ID:        WalletID(c.newID()),
		UserID:    userID,
		Name:      in.Name,
		Type:      in.Type,
		Balance:   in.Balance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := c.store.WithTx(ctx, func(tx Tx) error {
		if err := ensureWalletNameFree(ctx, tx, userID, w.Name, ""); err != nil {
			return err
		}
		return tx.InsertWallet(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "wallet created", "user_id", userID, "wallet_id", w.ID, "type", w.Type)
	return &w, nil
}

func (c *Catalog) GetWallet(ctx context.Context, userID UserID, id WalletID) (*Wallet, error) {
	return findWallet(ctx, c.store, userID, id)
}

// ListWallets orders wallets by type then creation time.
func (c *Catalog) ListWallets(ctx context.Context, userID UserID) ([]Wallet, error) {
	wallets, err := c.store.ListWallets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	if wallets == nil {
		wallets = []Wallet{}
	}
	return wallets, nil
}

// RenameWallet changes a wallet's name. Balances are not editable here.
func (c *Catalog) RenameWallet(ctx context.Context, userID UserID, id WalletID, name string) (*Wallet, error) {
	name = strings.TrimSpace(name)
	if err := validateLength("name", name, WalletNameMinLen, WalletNameMaxLen); err != nil {
		return nil, err
	}
	var out *Wallet
	err := c.store.WithTx(ctx, func(tx Tx) error {
		w, err := findWallet(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if w.Name != name {
			if err := ensureWalletNameFree(ctx, tx, userID, name, id); err != nil {
				return err
			}
		}
		w.Name = name
		w.UpdatedAt = c.now().UTC()
		if err := tx.UpdateWallet(ctx, *w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteWallet removes a wallet that owns no expenses and returns it.
func (c *Catalog) DeleteWallet(ctx context.Context, userID UserID, id WalletID) (*Wallet, error) {
	var out *Wallet
	err := c.store.WithTx(ctx, func(tx Tx) error {
		// the lock makes PostExpense wait, so the count below stays true
		if _, err := lockWallet(ctx, tx, userID, id); err != nil {
			return err
		}
		w, err := findWallet(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if w.ExpenseCount > 0 {
			return &InUseError{Kind: KindWallet, Name: w.Name, Expenses: w.ExpenseCount}
		}
		out = w
		if err := tx.DeleteWallet(ctx, userID, id); err != nil {
			return inUse(err, KindWallet, w.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ensureWalletNameFree(ctx context.Context, tx Tx, userID UserID, name string, self WalletID) error {
	existing, err := tx.FindWalletByName(ctx, userID, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return &DuplicateNameError{Kind: KindWallet, Name: name}
	}
	return nil
}

type WalletTypeSummary struct {
	Count        int
	TotalBalance decimal.Decimal
	Wallets      []Wallet
}

type WalletSummary struct {
	TotalBalance decimal.Decimal
	ByType       map[WalletType]*WalletTypeSummary
}

// WalletSummary groups the user's wallets by type with balance totals.
func (c *Catalog) WalletSummary(ctx context.Context, userID UserID) (*WalletSummary, error) {
	wallets, err := c.ListWallets(ctx, userID)
	if err != nil {
		return nil, err
	}
	s := &WalletSummary{TotalBalance: decimal.Zero, ByType: make(map[WalletType]*WalletTypeSummary)}
	for _, t := range WalletTypes {
		s.ByType[t] = &WalletTypeSummary{TotalBalance: decimal.Zero, Wallets: []Wallet{}}
	}
	for _, w := range wallets {
		group := s.ByType[w.Type]
		if group == nil {
			group = &WalletTypeSummary{TotalBalance: decimal.Zero}
			s.ByType[w.Type] = group
		}
		s.TotalBalance = s.TotalBalance.Add(w.Balance)
		group.Count++
		group.TotalBalance = group.TotalBalance.Add(w.Balance)
		group.Wallets = append(group.Wallets, w)
	}
	return s, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

type NewCategory struct {
	Name        string
	Description string
	Color       string
}

// CategoryPatch lists the fields to change; nil means unchanged.
type CategoryPatch struct {
	Name        *string
	Description *string
	Color       *string
}

func (c *Catalog) CreateCategory(ctx context.Context, userID UserID, in NewCategory) (*Category, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	desc := strings.TrimSpace(in.Description)
	if err := validateLength("name", name, CategoryNameMinLen, CategoryNameMaxLen); err != nil {
		return nil, err
	}
	if err := validateLength("description", desc, 0, CategoryDescriptionMaxLen); err != nil {
		return nil, err
	}
	color, err := normalizeColor(in.Color)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	cat := Category{
		ID:          CategoryID(c.newID()),
		UserID:      userID,
		Name:        name,
		Description: desc,
		Color:       color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = c.store.WithTx(ctx, func(tx Tx) error {
		if err := ensureCategoryNameFree(ctx, tx, userID, name, ""); err != nil {
			return err
		}
		return tx.InsertCategory(ctx, cat)
	})
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) GetCategory(ctx context.Context, userID UserID, id CategoryID) (*Category, error) {
	return findCategory(ctx, c.store, userID, id)
}

func (c *Catalog) ListCategories(ctx context.Context, userID UserID) ([]Category, error) {
	cats, err := c.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if cats == nil {
		cats = []Category{}
	}
	return cats, nil
}

func (c *Catalog) UpdateCategory(ctx context.Context, userID UserID, id CategoryID, patch CategoryPatch) (*Category, error) {
	var out *Category
	err := c.store.WithTx(ctx, func(tx Tx) error {
		cat, err := findCategory(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if err := validateLength("name", name, CategoryNameMinLen, CategoryNameMaxLen); err != nil {
				return err
			}
			if name != cat.Name {
				if err := ensureCategoryNameFree(ctx, tx, userID, name, id); err != nil {
					return err
				}
			}
			cat.Name = name
		}
		if patch.Description != nil {
			desc := strings.TrimSpace(*patch.Description)
			if err := validateLength("description", desc, 0, CategoryDescriptionMaxLen); err != nil {
				return err
			}
			cat.Description = desc
		}
		if patch.Color != nil && strings.TrimSpace(*patch.Color) != "" {
			color, err := normalizeColor(*patch.Color)
			if err != nil {
				return err
			}
			cat.Color = color
		}
		cat.UpdatedAt = c.now().UTC()
		if err := tx.UpdateCategory(ctx, *cat); err != nil {
			return err
		}
		out = cat
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCategory removes a category that owns no expenses and returns it.
func (c *Catalog) DeleteCategory(ctx context.Context, userID UserID, id CategoryID) (*Category, error) {
	var out *Category
	err := c.store.WithTx(ctx, func(tx Tx) error {
		cat, err := findCategory(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if cat.ExpenseCount > 0 {
			return &InUseError{Kind: KindCategory, Name: cat.Name, Expenses: cat.ExpenseCount}
		}
		out = cat
		if err := tx.DeleteCategory(ctx, userID, id); err != nil {
			return inUse(err, KindCategory, cat.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ensureCategoryNameFree(ctx context.Context, tx Tx, userID UserID, name string, self CategoryID) error {
	existing, err := tx.FindCategoryByName(ctx, userID, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return &DuplicateNameError{Kind: KindCategory, Name: name}
	}
	return nil
}

// TopCategoriesLimit caps CategorySummary.TopCategories.
const TopCategoriesLimit = 5

type CategoryUsage struct {
	Category     Category
	ExpenseCount int
	TotalAmount  decimal.Decimal
}

type CategorySummary struct {
	TotalCategories           int
	CategoriesWithExpenses    int
	CategoriesWithoutExpenses int
	TopCategories             []CategoryUsage
}

// CategorySummary counts categories by usage and lists the most used ones.
func (c *Catalog) CategorySummary(ctx context.Context, userID UserID) (*CategorySummary, error) {
	cats, err := c.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups, err := c.store.ExpenseGroups(ctx, userID, GroupByCategory)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	totals := make(map[string]decimal.Decimal, len(groups))
	for _, g := range groups {
		totals[g.ID] = g.Total
	}

	s := &CategorySummary{TotalCategories: len(cats), TopCategories: []CategoryUsage{}}
	var used []CategoryUsage
	for _, cat := range cats {
		if cat.ExpenseCount == 0 {
			s.CategoriesWithoutExpenses++
			continue
		}
		s.CategoriesWithExpenses++
		total, ok := totals[string(cat.ID)]
		if !ok {
			total = decimal.Zero
		}
		used = append(used, CategoryUsage{Category: cat, ExpenseCount: cat.ExpenseCount, TotalAmount: total})
	}
	sort.SliceStable(used, func(i, j int) bool {
		return used[i].ExpenseCount > used[j].ExpenseCount
	})
	if len(used) > TopCategoriesLimit {
		used = used[:TopCategoriesLimit]
	}
	s.TopCategories = append(s.TopCategories, used...)
	return s, nil
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultWallets are created for a new user.
var DefaultWallets = []NewWallet{
	{Name: "SBI", Type: WalletBank, Balance: decimal.Zero},
	{Name: "Wallet", Type: WalletCash, Balance: decimal.Zero},
	{Name: "Lite", Type: WalletUPI, Balance: decimal.Zero},
}

// DefaultCategories are created for a new user.
var DefaultCategories = []NewCategory{
	{Name: "Food", Description: "Online and Offline Food and Dining"},
	{Name: "Fuel", Description: "Petrol Cost"},
	{Name: "Clothes and Shoes", Description: "Clothes and Shoes"},
	{Name: "Entertainment", Description: "Movies and Games"},
	{Name: "Alcoholic Drinks", Description: "Beer, Whiskey etc.."},
}

// SeedResult reports what SeedDefaults created.
type SeedResult struct {
	Wallets    []Wallet
	Categories []Category
}

// SeedDefaults creates the default wallets and categories for userID,
// skipping any whose name the user already has. Safe to run repeatedly.
func (c *Catalog) SeedDefaults(ctx context.Context, userID UserID) (*SeedResult, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	res := &SeedResult{Wallets: []Wallet{}, Categories: []Category{}}
	now := c.now().UTC()

	err := c.store.WithTx(ctx, func(tx Tx) error {
		for _, nw := range DefaultWallets {
			existing, err := tx.FindWalletByName(ctx, userID, nw.Name)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			w := Wallet{
				ID: WalletID(c.newID()), UserID: userID, Name: nw.Name, Type: nw.Type,
				Balance: nw.Balance, CreatedAt: now, UpdatedAt: now,
			}
			if err := tx.InsertWallet(ctx, w); err != nil {
				return err
			}
			res.Wallets = append(res.Wallets, w)
		}
		for _, nc := range DefaultCategories {
			existing, err := tx.FindCategoryByName(ctx, userID, nc.Name)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			cat := Category{
				ID: CategoryID(c.newID()), UserID: userID, Name: nc.Name, Description: nc.Description,
				Color: DefaultCategoryColor, CreatedAt: now, UpdatedAt: now,
			}
			if err := tx.InsertCategory(ctx, cat); err != nil {
				return err
			}
			res.Categories = append(res.Categories, cat)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "defaults seeded", "user_id", userID,
		"wallets", len(res.Wallets), "categories", len(res.Categories))
	return res, nil
}

// inUse turns a store-level ErrInUse (an expense was added after the count
// was taken) into an InUseError for name.
func inUse(err error, kind, name string) error {
	if errors.Is(err, ErrInUse) {
		return &InUseError{Kind: kind, Name: name}
	}
	return err
}
