// Package ledger holds the household's raw records.
//
// Store is a plain data holder: it appends, filters and upserts, and never
// derives anything. It is not safe for concurrent use; the owning service
// serializes access. Removing a member never touches records that
// reference it.
package ledger

import (
	"errors"

	"mess/internal/core"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicateID = errors.New("record id already exists")
)

// Store is the in-memory ledger.
type Store struct {
	snap     core.Snapshot
	revision uint64
}

// New creates a store over a copy of snap.
func New(snap core.Snapshot) *Store {
	snap = snap.Clone()
	snap.Normalize()
	snap.Meals = canonicalMeals(snap.Meals)
	return &Store{snap: snap}
}

// NewSeeded creates a store holding the seed data.
func NewSeeded() *Store {
	return New(core.SeedSnapshot())
}

// Snapshot returns a detached deep copy of every collection.
func (s *Store) Snapshot() core.Snapshot {
	return s.snap.Clone()
}

// Revision increases on every mutation. It identifies a state for caching.
func (s *Store) Revision() uint64 {
	return s.revision
}

func (s *Store) touch() {
	s.revision++
}

// Members returns a copy of the roster.
func (s *Store) Members() []core.Member {
	return append([]core.Member{}, s.snap.Members...)
}

// AddMember appends m, assigning an id when none is given.
func (s *Store) AddMember(m core.Member) core.Member {
	if m.ID == "" {
		m.ID = core.NewID()
	}
	s.snap.Members = append(s.snap.Members, m)
	s.touch()
	return m
}

// RemoveMember deletes the member only; their history stays.
func (s *Store) RemoveMember(id string) (core.Member, bool) {
	var removed core.Member
	var ok bool
	s.snap.Members, removed, ok = removeByID(s.snap.Members, id, memberID)
	if ok {
		s.touch()
	}
	return removed, ok
}

// ToggleMemberStatus flips IsActive and returns the updated member.
func (s *Store) ToggleMemberStatus(id string) (core.Member, bool) {
	for i := range s.snap.Members {
		if s.snap.Members[i].ID == id {
			s.snap.Members[i].IsActive = !s.snap.Members[i].IsActive
			s.touch()
			return s.snap.Members[i], true
		}
	}
	return core.Member{}, false
}

func (s *Store) AddExpense(e core.Expense) core.Expense {
	if e.ID == "" {
		e.ID = core.NewID()
	}
	s.snap.Expenses = append(s.snap.Expenses, e)
	s.touch()
	return e
}

func (s *Store) RemoveExpense(id string) (core.Expense, bool) {
	var removed core.Expense
	var ok bool
	s.snap.Expenses, removed, ok = removeByID(s.snap.Expenses, id, expenseID)
	if ok {
		s.touch()
	}
	return removed, ok
}

func (s *Store) AddExtraExpense(e core.ExtraExpense) core.ExtraExpense {
	if e.ID == "" {
		e.ID = core.NewID()
	}
	s.snap.ExtraExpenses = append(s.snap.ExtraExpenses, e)
	s.touch()
	return e
}

func (s *Store) RemoveExtraExpense(id string) (core.ExtraExpense, bool) {
	var removed core.ExtraExpense
	var ok bool
	s.snap.ExtraExpenses, removed, ok = removeByID(s.snap.ExtraExpenses, id, extraExpenseID)
	if ok {
		s.touch()
	}
	return removed, ok
}

func (s *Store) AddDeposit(d core.Deposit) core.Deposit {
	if d.ID == "" {
		d.ID = core.NewID()
	}
	s.snap.Deposits = append(s.snap.Deposits, d)
	s.touch()
	return d
}

func (s *Store) RemoveDeposit(id string) (core.Deposit, bool) {
	var removed core.Deposit
	var ok bool
	s.snap.Deposits, removed, ok = removeByID(s.snap.Deposits, id, depositID)
	if ok {
		s.touch()
	}
	return removed, ok
}

func (s *Store) AddMaidPayment(p core.MaidPayment) core.MaidPayment {
	if p.ID == "" {
		p.ID = core.NewID()
	}
	s.snap.MaidPayments = append(s.snap.MaidPayments, p)
	s.touch()
	return p
}

func (s *Store) RemoveMaidPayment(id string) (core.MaidPayment, bool) {
	var removed core.MaidPayment
	var ok bool
	s.snap.MaidPayments, removed, ok = removeByID(s.snap.MaidPayments, id, maidPaymentID)
	if ok {
		s.touch()
	}
	return removed, ok
}

func (s *Store) AddShopTransaction(t core.ShopTransaction) core.ShopTransaction {
	if t.ID == "" {
		t.ID = core.NewID()
	}
	s.snap.ShopTransactions = append(s.snap.ShopTransactions, t)
	s.touch()
	return t
}

func (s *Store) RemoveShopTransaction(id string) (core.ShopTransaction, bool) {
	var removed core.ShopTransaction
	var ok bool
	s.snap.ShopTransactions, removed, ok = removeByID(s.snap.ShopTransactions, id, shopTransactionID)
	if ok {
		s.touch()
	}
	return removed, ok
}

// Replace swaps every collection at once.
func (s *Store) Replace(snap core.Snapshot) {
	snap = snap.Clone()
	snap.Normalize()
	snap.Meals = canonicalMeals(snap.Meals)
	s.snap = snap
	s.touch()
}

// Clear resets the ledger to the seed data.
func (s *Store) Clear() {
	s.Replace(core.SeedSnapshot())
}

// Contains reports whether table holds a record with id. Meals have no
// id and are never reported.
func (s *Store) Contains(table Table, id string) bool {
	switch table {
	case TableMembers:
		return hasID(s.snap.Members, id, memberID)
	case TableExpenses:
		return hasID(s.snap.Expenses, id, expenseID)
	case TableExtraExpenses:
		return hasID(s.snap.ExtraExpenses, id, extraExpenseID)
	case TableDeposits:
		return hasID(s.snap.Deposits, id, depositID)
	case TableMaidPayments:
		return hasID(s.snap.MaidPayments, id, maidPaymentID)
	case TableShopTransactions:
		return hasID(s.snap.ShopTransactions, id, shopTransactionID)
	default:
		return false
	}
}

func hasID[T any](items []T, id string, key func(T) string) bool {
	for _, it := range items {
		if key(it) == id {
			return true
		}
	}
	return false
}

func memberID(m core.Member) string { return m.ID }
func expenseID(e core.Expense) string { return e.ID }
func extraExpenseID(e core.ExtraExpense) string { return e.ID }
func depositID(d core.Deposit) string { return d.ID }
func maidPaymentID(p core.MaidPayment) string { return p.ID }
func shopTransactionID(t core.ShopTransaction) string { return t.ID }

// removeByID returns a new slice without the first item whose key is id.
// Order of the remaining items is preserved.
func removeByID[T any](items []T, id string, key func(T) string) ([]T, T, bool) {
	var zero T
	for i, it := range items {
		if key(it) != id {
			continue
		}
		out := make([]T, 0, len(items)-1)
		out = append(out, items[:i]...)
		out = append(out, items[i+1:]...)
		return out, it, true
	}
	return items, zero, false
}

// upsertByKey replaces the item with the same key in place, or appends it.
func upsertByKey[T any, K comparable](items []T, item T, key func(T) K) ([]T, bool) {
	k := key(item)
	for i := range items {
		if key(items[i]) == k {
			out := append([]T{}, items...)
			out[i] = item
			return out, false
		}
	}
	return append(items, item), true
}
