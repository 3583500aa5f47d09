// Package report lays a settlement report out as a grid of cells for
// spreadsheet-like collaborators.
package report

import (
	"math"
	"time"

	"mess/internal/core"
)

// MemberHeader is the header row of the member table.
var MemberHeader = []any{"Member", "Lunch", "Dinner", "Meals", "Cost", "Deposit", "Balance", "Status"}

// DepositHeader starts the deposit listing, which is omitted when the
// window has no deposits.
var DepositHeader = []any{"Deposit date", "Member", "Amount"}

// TabName is the sheet tab a report for the given window is written to,
// e.g. "Report 2026-01".
func TabName(prefix, windowLabel string) string {
	return prefix + " " + windowLabel
}

// Rows renders r as rows of cells. Money and meal figures are rounded
// half-up to two places; non-finite values become the string "NaN" so
// that the grid always encodes as JSON.
func Rows(r core.Report) [][]any {
	rows := [][]any{
		{"Window", r.Window},
		{"Generated at", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{},
		{"Total meals", cell(r.Stats.TotalMeals)},
		{"Grocery", cell(r.Stats.TotalExpenses)},
		{"Extra expenses", cell(r.Stats.TotalExtraExpenses)},
		{"Maid payments", cell(r.Stats.TotalMaidPayments)},
		{"Contributions", cell(r.Stats.TotalDeposits)},
		{"Meal rate", cell(r.Stats.MealRate)},
		{"Cash in hand", cell(r.Stats.CashInHand)},
		{"Active members", r.Stats.MemberCount},
		{},
		MemberHeader,
	}
	for _, m := range r.Members {
		rows = append(rows, []any{
			m.Name,
			cell(m.TotalLunch),
			cell(m.TotalDinner),
			cell(m.TotalMeals),
			cell(m.TotalCost),
			cell(m.TotalDeposit),
			cell(m.Balance),
			string(m.Status()),
		})
	}
	if len(r.Deposits) > 0 {
		rows = append(rows, []any{}, DepositHeader)
		for _, d := range r.Deposits {
			rows = append(rows, []any{d.Date, d.Name, cell(d.Amount)})
		}
	}
	rows = append(rows,
		[]any{},
		[]any{"Shop purchases", cell(r.Shop.TotalPurchase)},
		[]any{"Shop payments", cell(r.Shop.TotalPayment)},
		[]any{"Shop balance", cell(r.Shop.Balance)},
	)
	return rows
}

func cell(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NaN"
	}
	return core.Round2(v)
}
