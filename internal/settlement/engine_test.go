package settlement

import (
	"math"
	"testing"
	"time"

	"mess/internal/core"
	"mess/internal/window"
)

const eps = 0.01

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func mustEngine(t *testing.T, model ContributionModel) *Engine {
	t.Helper()
	e, err := NewEngine(model)
	if err != nil {
		t.Fatalf("NewEngine(%q): %v", model, err)
	}
	return e
}

// scenario: A eats 20 lunches, B 10 lunches and 10 dinners, C nothing.
func scenario() core.Snapshot {
	snap := core.Snapshot{
		Members: []core.Member{
			{ID: "a", Name: "A", IsActive: true},
			{ID: "b", Name: "B", IsActive: true},
			{ID: "c", Name: "C", IsActive: true},
		},
		Expenses: []core.Expense{
			{ID: "e1", Date: "2026-01-03", Item: "চাল", Amount: 2000},
			{ID: "e2", Date: "2026-01-10", Item: "মাছ", Amount: 1000},
		},
		Deposits: []core.Deposit{
			{ID: "d1", Date: "2026-01-01", MemberID: "a", Amount: 2000},
			{ID: "d2", Date: "2026-01-01", MemberID: "c", Amount: 500},
		},
	}
	for day := 1; day <= 20; day++ {
		date := core.NewDate(2026, 1, day).String()
		snap.Meals = append(snap.Meals, core.MealRecord{Date: date, MemberID: "a", Lunch: true})
		if day <= 10 {
			snap.Meals = append(snap.Meals, core.MealRecord{Date: date, MemberID: "b", Lunch: true, Dinner: true})
		}
	}
	snap.Normalize()
	return snap
}

func byID(summaries []core.MemberSummary) map[string]core.MemberSummary {
	out := make(map[string]core.MemberSummary, len(summaries))
	for _, s := range summaries {
		out[s.MemberID] = s
	}
	return out
}

func TestSettlementScenario(t *testing.T) {
	e := mustEngine(t, DepositModel)
	snap := scenario()
	jan := window.ForMonth(2026, 1).Match

	stats := e.MonthlyStats(snap, jan)
	if stats.TotalMeals != 35 || !near(stats.MealRate, 85.71) {
		t.Fatalf("stats = %+v", stats)
	}

	got := byID(e.MemberSummaries(snap, jan))
	a, c := got["a"], got["c"]
	if a.TotalMeals != 20 || !near(a.TotalCost, 1714.29) || !near(a.Balance, 285.71) {
		t.Errorf("A = %+v", a)
	}
	if a.Status() != core.Receivable {
		t.Errorf("A status = %s", a.Status())
	}
	if c.TotalMeals != 0 || c.TotalCost != 0 || c.Balance != 500 {
		t.Errorf("C = %+v", c)
	}
	b := got["b"]
	if b.TotalLunch != 10 || b.TotalDinner != 10 || b.Balance >= 0 || b.Status() != core.Payable {
		t.Errorf("B = %+v", b)
	}
}

func TestBalanceSignLaw(t *testing.T) {
	e := mustEngine(t, DepositModel)
	snap := scenario()
	for _, s := range e.MemberSummaries(snap, window.ForAllTime().Match) {
		if s.Balance != s.TotalDeposit-s.TotalCost {
			t.Errorf("%s: balance %v != %v - %v", s.MemberID, s.Balance, s.TotalDeposit, s.TotalCost)
		}
	}
}

func TestSettlementCompleteness(t *testing.T) {
	e := mustEngine(t, DepositModel)
	snap := scenario()
	snap.Members = append(snap.Members,
		core.Member{ID: "d", Name: "D", IsActive: false},
		core.Member{ID: "e", Name: "E", IsActive: true},
	)
	// Records for a member that no longer exists.
	snap.Meals = append(snap.Meals, core.MealRecord{Date: "2026-01-05", MemberID: "ghost", Lunch: true})
	snap.Deposits = append(snap.Deposits, core.Deposit{ID: "dx", Date: "2026-01-05", MemberID: "ghost", Amount: 99})

	got := e.MemberSummaries(snap, window.ForMonth(2026, 1).Match)
	want := []string{"a", "b", "c", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %d summaries, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].MemberID != id {
			t.Errorf("summary %d = %s, want %s", i, got[i].MemberID, id)
		}
	}
}

func TestExtraAndMaidDoNotAffectRate(t *testing.T) {
	e := mustEngine(t, DepositModel)
	snap := scenario()
	jan := window.ForMonth(2026, 1).Match
	before := e.MonthlyStats(snap, jan)

	snap.ExtraExpenses = append(snap.ExtraExpenses, core.ExtraExpense{ID: "x", Date: "2026-01-02", Item: "gas", Amount: 1100})
	snap.MaidPayments = append(snap.MaidPayments, core.MaidPayment{ID: "m", Date: "2026-01-02", Amount: 3000})
	after := e.MonthlyStats(snap, jan)

	if after.MealRate != before.MealRate {
		t.Fatalf("meal rate moved from %v to %v", before.MealRate, after.MealRate)
	}
	if after.TotalExtraExpenses != 1100 || after.TotalMaidPayments != 3000 {
		t.Fatalf("stats = %+v", after)
	}
	wantCash := 2500.0 - (3000 + 1100 + 3000)
	if after.CashInHand != wantCash {
		t.Fatalf("cash in hand = %v, want %v", after.CashInHand, wantCash)
	}
	if after.MemberCount != 3 {
		t.Fatalf("member count = %d", after.MemberCount)
	}
}

func TestWindowExcludesOtherMonths(t *testing.T) {
	e := mustEngine(t, DepositModel)
	snap := scenario()
	snap.Expenses = append(snap.Expenses, core.Expense{ID: "feb", Date: "2026-02-01", Item: "ডাল", Amount: 9999})
	snap.Deposits = append(snap.Deposits, core.Deposit{ID: "feb", Date: "2026-02-01", MemberID: "c", Amount: 1})

	stats := e.MonthlyStats(snap, window.ForMonth(2026, 1).Match)
	if stats.TotalExpenses != 3000 || stats.TotalDeposits != 2500 {
		t.Fatalf("January stats leaked February records: %+v", stats)
	}
	feb := e.MonthlyStats(snap, window.ForMonth(2026, 2).Match)
	if feb.MealRate != 0 || feb.TotalMeals != 0 {
		t.Fatalf("February with no meals must have zero rate: %+v", feb)
	}
}

func TestPaidByModel(t *testing.T) {
	e := mustEngine(t, PaidByModel)
	snap := scenario()
	snap.Expenses[0].PaidBy = "a"
	snap.Expenses[1].PaidBy = "c"
	jan := window.ForMonth(2026, 1).Match

	got := byID(e.MemberSummaries(snap, jan))
	if got["a"].TotalDeposit != 2000 || got["c"].TotalDeposit != 1000 || got["b"].TotalDeposit != 0 {
		t.Fatalf("paid-by contributions = %+v", got)
	}
	if !near(got["a"].Balance, 2000-1714.29) {
		t.Fatalf("A balance = %v", got["a"].Balance)
	}
	if stats := e.MonthlyStats(snap, jan); stats.TotalDeposits != 3000 {
		t.Fatalf("paid-by total = %v", stats.TotalDeposits)
	}
	if e.Model() != PaidByModel {
		t.Fatalf("model = %s", e.Model())
	}
}

func TestParseContributionModel(t *testing.T) {
	for _, s := range []string{"deposit", "paid_by"} {
		if _, err := ParseContributionModel(s); err != nil {
			t.Errorf("ParseContributionModel(%q): %v", s, err)
		}
	}
	if _, err := ParseContributionModel("both"); err == nil {
		t.Errorf("expected error for unknown model")
	}
	if _, err := NewEngine("both"); err == nil {
		t.Errorf("expected NewEngine error for unknown model")
	}
}

func TestNaNPropagates(t *testing.T) {
	e := mustEngine(t, DepositModel)
	snap := scenario()
	snap.Deposits[0].Amount = math.NaN()
	got := byID(e.MemberSummaries(snap, window.ForAllTime().Match))
	if !math.IsNaN(got["a"].Balance) {
		t.Fatalf("expected NaN balance, got %v", got["a"].Balance)
	}
}

func TestShopBalance(t *testing.T) {
	txs := []core.ShopTransaction{
		{ID: "1", Date: "2025-12-30", Type: core.ShopPurchase, Amount: 1500},
		{ID: "2", Date: "2026-01-02", Type: core.ShopPayment, Amount: 1000},
		{ID: "3", Date: "2026-01-05", Type: core.ShopPurchase, Amount: 300},
		{ID: "4", Date: "2026-01-06", Type: core.ShopPayment, Amount: 1200},
	}
	got := ShopBalance(txs)
	if got.TotalPurchase != 1800 || got.TotalPayment != 2200 || got.Balance != -400 {
		t.Fatalf("ShopBalance = %+v", got)
	}

	reversed := make([]core.ShopTransaction, len(txs))
	for i := range txs {
		reversed[len(txs)-1-i] = txs[i]
	}
	if ShopBalance(reversed) != got {
		t.Fatalf("shop balance depends on order")
	}

	jan := ShopBalanceIn(txs, window.ForMonth(2026, 1).Match)
	if jan.TotalPurchase != 300 || jan.Balance != 300-2200 {
		t.Fatalf("windowed = %+v", jan)
	}
}

func TestTodayStats(t *testing.T) {
	snap := scenario()
	got := TodayStats(snap, "2026-01-05")
	want := core.TodayStats{Date: "2026-01-05", Lunch: 2, Dinner: 1, TotalWeight: 2.5, Submitted: 2, ActiveMembers: 3}
	if got != want {
		t.Fatalf("TodayStats = %+v, want %+v", got, want)
	}
	if empty := TodayStats(snap, "2026-03-01"); empty.Submitted != 0 || empty.TotalWeight != 0 {
		t.Fatalf("empty day = %+v", empty)
	}
}

func TestReport(t *testing.T) {
	e := mustEngine(t, DepositModel)
	snap := scenario()
	snap.ShopTransactions = []core.ShopTransaction{
		{ID: "s", Date: "2025-06-01", Type: core.ShopPurchase, Amount: 100},
	}
	at := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	r := e.Report(snap, window.ForMonth(2026, 1), at)

	if r.Window != "2026-01" || !r.GeneratedAt.Equal(at) {
		t.Fatalf("report header = %q %v", r.Window, r.GeneratedAt)
	}
	if len(r.Members) != 3 || r.Stats.TotalMeals != 35 {
		t.Fatalf("report body = %+v", r)
	}
	if r.Shop.Balance != 100 {
		t.Fatalf("shop account must be all-time: %+v", r.Shop)
	}
}

func TestDepositLines(t *testing.T) {
	snap := scenario()
	snap.Deposits = append(snap.Deposits,
		core.Deposit{ID: "d3", Date: "2026-01-05", MemberID: "gone", Amount: 300},
		core.Deposit{ID: "d4", Date: "2025-12-30", MemberID: "a", Amount: 50},
	)

	lines := DepositLines(snap, window.ForMonth(2026, 1).Match)
	if len(lines) != 3 {
		t.Fatalf("lines = %+v, want 3 January deposits", lines)
	}
	if lines[0].Name != "A" || lines[1].Name != "C" {
		t.Errorf("names = %q, %q", lines[0].Name, lines[1].Name)
	}
	if lines[2].Name != core.UnknownMemberName || lines[2].Amount != 300 {
		t.Errorf("orphan line = %+v", lines[2])
	}

	if empty := DepositLines(core.Snapshot{}, window.ForAllTime().Match); empty == nil || len(empty) != 0 {
		t.Errorf("empty = %#v, want empty non-nil slice", empty)
	}
}
