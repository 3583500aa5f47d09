// Package settlement derives every number the household sees from the
// raw ledger: meal weights, the meal rate, member balances, the shop
// account and the day view. All functions are pure and work on detached
// snapshots.
package settlement

import (
	"mess/internal/core"
	"mess/internal/window"
)

// Weights of one lunch and one dinner unit.
const (
	LunchWeight  = 1.0
	DinnerWeight = 0.5
)

// MealTotals sums meal units over a window.
type MealTotals struct {
	LunchUnits  float64 `json:"totalLunchUnits"`
	DinnerUnits float64 `json:"totalDinnerUnits"`
	Weight      float64 `json:"totalWeight"`
}

// Weight converts canonical units into meal-weight.
func Weight(u core.MealUnits) float64 {
	return u.Lunch*LunchWeight + u.Dinner*DinnerWeight
}

// MealWeight is the weight credited for one record. Negative counts are
// not rejected here.
func MealWeight(r core.MealRecord) float64 {
	return Weight(r.Units())
}

// AggregateForWindow sums units and weight of records whose date
// matches pred.
func AggregateForWindow(records []core.MealRecord, pred window.Predicate) MealTotals {
	var t MealTotals
	for _, r := range records {
		if !pred(r.Date) {
			continue
		}
		u := r.Units()
		t.LunchUnits += u.Lunch
		t.DinnerUnits += u.Dinner
		t.Weight += Weight(u)
	}
	return t
}

// MealsForDate returns exactly one record per active member for date, in
// roster order. Members without a stored record get a zero record.
func MealsForDate(members []core.Member, records []core.MealRecord, date string) []core.MealRecord {
	byMember := make(map[string]core.MealRecord)
	for _, r := range records {
		if r.Date == date {
			byMember[r.MemberID] = r
		}
	}

	out := make([]core.MealRecord, 0, len(members))
	for _, m := range members {
		if !m.IsActive {
			continue
		}
		if r, ok := byMember[m.ID]; ok {
			out = append(out, r.Clone())
			continue
		}
		out = append(out, core.MealRecord{Date: date, MemberID: m.ID})
	}
	return out
}

// MealRate is the grocery cost per weight unit, or 0 with no meals.
func MealRate(groceryTotal, totalWeight float64) float64 {
	if totalWeight > 0 {
		return groceryTotal / totalWeight
	}
	return 0
}

func sumExpenses(items []core.Expense, pred window.Predicate) float64 {
	var total float64
	for _, e := range items {
		if pred(e.Date) {
			total += e.Amount
		}
	}
	return total
}

func sumExtraExpenses(items []core.ExtraExpense, pred window.Predicate) float64 {
	var total float64
	for _, e := range items {
		if pred(e.Date) {
			total += e.Amount
		}
	}
	return total
}

func sumMaidPayments(items []core.MaidPayment, pred window.Predicate) float64 {
	var total float64
	for _, p := range items {
		if pred(p.Date) {
			total += p.Amount
		}
	}
	return total
}
