package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"mess/internal/core"
)

const (
	Insert ChangeType = "insert"
	Update ChangeType = "update"
	Delete ChangeType = "delete"
)

// Tables that change events can target. TableLedger carries a whole
// snapshot and is used after an import or a clear.
const (
	TableMembers          Table = "members"
	TableMeals            Table = "meals"
	TableExpenses         Table = "expenses"
	TableExtraExpenses    Table = "extraExpenses"
	TableDeposits         Table = "deposits"
	TableMaidPayments     Table = "maidPayments"
	TableShopTransactions Table = "shopTransactions"
	TableLedger           Table = "ledger"
)

var ErrUnknownTable = errors.New("unknown table")

type (
	ChangeType string
	Table      string
)

// ChangeEvent is a record-level change as delivered by a remote peer.
// New holds the record after an insert or update, Old the record before
// a delete.
type ChangeEvent struct {
	Origin string          `json:"origin,omitempty"`
	Table  Table           `json:"table"`
	Type   ChangeType      `json:"type"`
	New    json.RawMessage `json:"new,omitempty"`
	Old    json.RawMessage `json:"old,omitempty"`
}

// NewChange builds an event for a record. For deletes rec is stored as
// Old, otherwise as New.
func NewChange(table Table, typ ChangeType, rec any) (ChangeEvent, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return ChangeEvent{}, fmt.Errorf("encode %s record: %w", table, err)
	}
	ev := ChangeEvent{Table: table, Type: typ}
	if typ == Delete {
		ev.Old = body
	} else {
		ev.New = body
	}
	return ev, nil
}

// record returns the payload an event acts on.
func (e ChangeEvent) record() (json.RawMessage, error) {
	body := e.New
	if e.Type == Delete && len(e.Old) > 0 {
		body = e.Old
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%s %s event has no record", e.Table, e.Type)
	}
	return body, nil
}

// Apply reduces a remote change into the store, last write wins. Inserts
// and updates replace the record with the same key or append it; deletes
// remove it, and deleting an absent record is a no-op. Concurrent edits
// to one record are not merged and no conflict is reported.
func (s *Store) Apply(ev ChangeEvent) error {
	switch ev.Type {
	case Insert, Update, Delete:
	default:
		return fmt.Errorf("unknown change type %q", ev.Type)
	}
	body, err := ev.record()
	if err != nil {
		return err
	}

	switch ev.Table {
	case TableMeals:
		var rec core.MealRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return fmt.Errorf("decode meal: %w", err)
		}
		if ev.Type == Delete {
			s.RemoveMeal(rec.Date, rec.MemberID)
			return nil
		}
		s.UpsertMeal(rec)
		return nil
	case TableMembers:
		return applyByID(s, &s.snap.Members, ev.Type, body, memberID)
	case TableExpenses:
		return applyByID(s, &s.snap.Expenses, ev.Type, body, expenseID)
	case TableExtraExpenses:
		return applyByID(s, &s.snap.ExtraExpenses, ev.Type, body, extraExpenseID)
	case TableDeposits:
		return applyByID(s, &s.snap.Deposits, ev.Type, body, depositID)
	case TableMaidPayments:
		return applyByID(s, &s.snap.MaidPayments, ev.Type, body, maidPaymentID)
	case TableShopTransactions:
		return applyByID(s, &s.snap.ShopTransactions, ev.Type, body, shopTransactionID)
	case TableLedger:
		if ev.Type == Delete {
			return fmt.Errorf("ledger events cannot delete")
		}
		snap, err := Decode(body)
		if err != nil {
			return err
		}
		s.Replace(snap)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTable, ev.Table)
	}
}

func applyByID[T any](s *Store, items *[]T, typ ChangeType, body json.RawMessage, key func(T) string) error {
	var rec T
	if err := json.Unmarshal(body, &rec); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if key(rec) == "" {
		return fmt.Errorf("record has no id")
	}
	if typ == Delete {
		var ok bool
		*items, _, ok = removeByID(*items, key(rec), key)
		if ok {
			s.touch()
		}
		return nil
	}
	*items, _ = upsertByKey(*items, rec, key)
	s.touch()
	return nil
}
