package settlement

import (
	"time"

	"mess/internal/core"
	"mess/internal/window"
)

// Engine computes settlements under one contribution model.
type Engine struct {
	model       ContributionModel
	contributor Contributor
}

// NewEngine returns an engine for model.
func NewEngine(model ContributionModel) (*Engine, error) {
	c, err := GetContributor(model)
	if err != nil {
		return nil, err
	}
	return &Engine{model: model, contributor: c}, nil
}

// Model reports the contribution model in use.
func (e *Engine) Model() ContributionModel {
	return e.model
}

// MemberSummaries returns one entry per active member, in roster order.
// The meal rate is computed over the same window as the member weights.
func (e *Engine) MemberSummaries(snap core.Snapshot, pred window.Predicate) []core.MemberSummary {
	totals := AggregateForWindow(snap.Meals, pred)
	rate := MealRate(sumExpenses(snap.Expenses, pred), totals.Weight)

	type units struct{ lunch, dinner, weight float64 }
	perMember := make(map[string]units)
	for _, r := range snap.Meals {
		if !pred(r.Date) {
			continue
		}
		u := r.Units()
		acc := perMember[r.MemberID]
		acc.lunch += u.Lunch
		acc.dinner += u.Dinner
		acc.weight += Weight(u)
		perMember[r.MemberID] = acc
	}

	active := snap.ActiveMembers()
	out := make([]core.MemberSummary, 0, len(active))
	for _, m := range active {
		acc := perMember[m.ID]
		cost := acc.weight * rate
		paid := e.contributor.MemberTotal(snap, m.ID, pred)
		out = append(out, core.MemberSummary{
			MemberID:     m.ID,
			Name:         m.Name,
			TotalMeals:   acc.weight,
			TotalLunch:   acc.lunch,
			TotalDinner:  acc.dinner,
			TotalCost:    cost,
			TotalDeposit: paid,
			Balance:      paid - cost,
		})
	}
	return out
}

// MonthlyStats aggregates the household for the window. Extra and maid
// spend reduce cash in hand but never the meal rate.
func (e *Engine) MonthlyStats(snap core.Snapshot, pred window.Predicate) core.MonthlyStats {
	totals := AggregateForWindow(snap.Meals, pred)
	grocery := sumExpenses(snap.Expenses, pred)
	extra := sumExtraExpenses(snap.ExtraExpenses, pred)
	maid := sumMaidPayments(snap.MaidPayments, pred)
	contributed := e.contributor.Total(snap, pred)

	return core.MonthlyStats{
		TotalMeals:         totals.Weight,
		TotalExpenses:      grocery,
		TotalExtraExpenses: extra,
		TotalDeposits:      contributed,
		TotalMaidPayments:  maid,
		MealRate:           MealRate(grocery, totals.Weight),
		CashInHand:         contributed - (grocery + extra + maid),
		MemberCount:        len(snap.ActiveMembers()),
	}
}

// TodayStats summarizes meal intake on date. Submitted counts stored
// records for the day, including those of inactive or removed members.
func TodayStats(snap core.Snapshot, date string) core.TodayStats {
	stats := core.TodayStats{Date: date, ActiveMembers: len(snap.ActiveMembers())}
	for _, r := range snap.Meals {
		if r.Date != date {
			continue
		}
		u := r.Units()
		stats.Lunch += u.Lunch
		stats.Dinner += u.Dinner
		stats.TotalWeight += Weight(u)
		stats.Submitted++
	}
	return stats
}

// ShopBalance is the all-time shop account.
func ShopBalance(txs []core.ShopTransaction) core.ShopAccount {
	return ShopBalanceIn(txs, window.ForAllTime().Match)
}

// ShopBalanceIn restricts the shop account to a window. Transactions of
// an unknown type are ignored.
func ShopBalanceIn(txs []core.ShopTransaction, pred window.Predicate) core.ShopAccount {
	var acct core.ShopAccount
	for _, t := range txs {
		if !pred(t.Date) {
			continue
		}
		switch t.Type {
		case core.ShopPurchase:
			acct.TotalPurchase += t.Amount
		case core.ShopPayment:
			acct.TotalPayment += t.Amount
		}
	}
	acct.Balance = acct.TotalPurchase - acct.TotalPayment
	return acct
}

// Report assembles a detached read model for a resolved window. The shop
// account is always all-time.
func (e *Engine) Report(snap core.Snapshot, w window.Window, generatedAt time.Time) core.Report {
	pred := w.Match
	return core.Report{
		Window:      w.Label(),
		GeneratedAt: generatedAt,
		Stats:       e.MonthlyStats(snap, pred),
		Members:     e.MemberSummaries(snap, pred),
		Deposits:    DepositLines(snap, pred),
		Shop:        ShopBalance(snap.ShopTransactions),
	}
}

// DepositLines lists the window's deposits in entry order, including
// those of removed members.
func DepositLines(snap core.Snapshot, pred window.Predicate) []core.DepositLine {
	out := []core.DepositLine{}
	for _, d := range snap.Deposits {
		if !pred(d.Date) {
			continue
		}
		out = append(out, core.DepositLine{
			Date:     d.Date,
			MemberID: d.MemberID,
			Name:     snap.MemberName(d.MemberID),
			Amount:   d.Amount,
		})
	}
	return out
}
