package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mess/internal/core"
	"mess/internal/ledger"
	"mess/internal/settlement"
	"mess/internal/window"
)

type fakeSaver struct {
	mu    sync.Mutex
	saved []core.Snapshot
	err   error
}

func (f *fakeSaver) Save(_ context.Context, snap core.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, snap)
	return nil
}

func (f *fakeSaver) last() core.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[len(f.saved)-1]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []ledger.ChangeEvent
	err    error
}

func (f *fakePublisher) PublishChange(_ context.Context, ev ledger.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

// clockAt returns a selector in UTC fixed at the given hour on 2026-01-15.
func clockAt(hour int) *window.Selector {
	now := time.Date(2026, 1, 15, hour, 0, 0, 0, time.UTC)
	return window.NewSelector(time.UTC, window.WithClock(func() time.Time { return now }))
}

func newService(t *testing.T, hour int, opts ...Option) *LedgerService {
	t.Helper()
	engine, err := settlement.NewEngine(settlement.DepositModel)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return NewLedgerService(ledger.NewSeeded(), engine, clockAt(hour), opts...)
}

func TestMutationsPersistAndPublish(t *testing.T) {
	saver := &fakeSaver{}
	pub := &fakePublisher{}
	svc := newService(t, 10, WithSaver(saver), WithPublisher(pub), WithOrigin("node-a"))
	ctx := context.Background()

	exp, err := svc.AddExpense(ctx, core.Expense{Date: "2026-01-15", Item: "চাল", Amount: 500})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if _, err := svc.UpdateMeal(ctx, RoleAdmin, "2026-01-15", "1", core.Lunch, true); err != nil {
		t.Fatalf("UpdateMeal: %v", err)
	}
	if _, err := svc.UpdateMeal(ctx, RoleAdmin, "2026-01-15", "1", core.Dinner, true); err != nil {
		t.Fatalf("UpdateMeal: %v", err)
	}
	if err := svc.RemoveExpense(ctx, exp.ID); err != nil {
		t.Fatalf("RemoveExpense: %v", err)
	}

	if len(saver.saved) != 4 {
		t.Fatalf("expected 4 saves, got %d", len(saver.saved))
	}
	if got := saver.last(); len(got.Expenses) != 0 || len(got.Meals) != 1 {
		t.Fatalf("last saved snapshot = %+v", got)
	}

	wantTypes := []ledger.ChangeType{ledger.Insert, ledger.Insert, ledger.Update, ledger.Delete}
	if len(pub.events) != len(wantTypes) {
		t.Fatalf("published %d events", len(pub.events))
	}
	for i, ev := range pub.events {
		if ev.Type != wantTypes[i] || ev.Origin != "node-a" {
			t.Errorf("event %d = %s from %q", i, ev.Type, ev.Origin)
		}
	}
	if pub.events[3].Old == nil || pub.events[3].Table != ledger.TableExpenses {
		t.Errorf("delete event = %+v", pub.events[3])
	}
}

func TestValidationRejectsBeforeMutation(t *testing.T) {
	saver := &fakeSaver{}
	svc := newService(t, 10, WithSaver(saver))
	ctx := context.Background()
	rev := svc.Revision()

	if _, err := svc.AddExpense(ctx, core.Expense{Date: "2026-01-15", Item: "x", Amount: -1}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("negative amount: %v", err)
	}
	if _, err := svc.AddDeposit(ctx, core.Deposit{Date: "bad", MemberID: "1", Amount: 1}); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("bad date: %v", err)
	}
	if _, err := svc.AddMember(ctx, "   "); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("empty name: %v", err)
	}
	if _, err := svc.UpdateMeal(ctx, RoleAdmin, "2026-01-15", "1", "breakfast", true); err == nil {
		t.Errorf("unknown slot accepted")
	}
	if err := svc.RemoveDeposit(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("missing deposit: %v", err)
	}
	if svc.Revision() != rev || len(saver.saved) != 0 {
		t.Fatalf("rejected input mutated or persisted the ledger")
	}
}

func TestPersistFailureKeepsMutation(t *testing.T) {
	saver := &fakeSaver{err: errors.New("disk full")}
	svc := newService(t, 10, WithSaver(saver))

	_, err := svc.AddShopTransaction(context.Background(), core.ShopTransaction{Date: "2026-01-15", Type: core.ShopPurchase, Amount: 100})
	if err == nil {
		t.Fatalf("expected persist error")
	}
	if got := svc.ShopAccount(); got.Balance != 100 {
		t.Fatalf("in-memory mutation lost: %+v", got)
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	saver := &fakeSaver{}
	svc := newService(t, 10, WithSaver(saver))
	ctx := context.Background()

	d := core.Deposit{ID: "dep-1", Date: "2026-01-15", MemberID: "1", Amount: 100}
	if _, err := svc.AddDeposit(ctx, d); err != nil {
		t.Fatalf("AddDeposit: %v", err)
	}
	d.Amount = 999
	if _, err := svc.AddDeposit(ctx, d); !errors.Is(err, ledger.ErrDuplicateID) {
		t.Fatalf("duplicate AddDeposit err = %v, want ErrDuplicateID", err)
	}
	if n := len(svc.Snapshot().Deposits); n != 1 {
		t.Fatalf("deposits = %d, want 1", n)
	}
	if len(saver.saved) != 1 {
		t.Errorf("saves = %d, rejected add must not persist", len(saver.saved))
	}

	if err := svc.RemoveDeposit(ctx, "dep-1"); err != nil {
		t.Fatalf("RemoveDeposit: %v", err)
	}
	if n := len(svc.Snapshot().Deposits); n != 0 {
		t.Errorf("deposits after remove = %d, want 0", n)
	}
}

func TestPublishFailureIsNotAnError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newService(t, 10, WithPublisher(pub))
	if _, err := svc.AddMember(context.Background(), "Guest"); err != nil {
		t.Fatalf("publish failure surfaced: %v", err)
	}
}

func TestMemberDeadlineGate(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		hour    int
		role    Role
		wantErr error
	}{
		{"member before cutoff", 21, RoleMember, nil},
		{"member at cutoff", 22, RoleMember, ErrDeadlinePassed},
		{"admin after cutoff", 23, RoleAdmin, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, tt.hour)
			_, err := svc.UpdateMealCount(ctx, tt.role, "2026-01-15", "2", 1, 1)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("UpdateMealCount err = %v, want %v", err, tt.wantErr)
			}
			_, err = svc.UpdateMeal(ctx, tt.role, "2026-01-15", "2", core.Lunch, true)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("UpdateMeal err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	if ParseRole(" Member ") != RoleMember {
		t.Errorf("member header not recognized")
	}
	if ParseRole("") != RoleAdmin || ParseRole("admin") != RoleAdmin {
		t.Errorf("default role must be admin")
	}
}

func TestMealsForDateDefaultsToToday(t *testing.T) {
	svc := newService(t, 10)
	rows, err := svc.MealsForDate("")
	if err != nil {
		t.Fatalf("MealsForDate: %v", err)
	}
	if len(rows) != len(core.DefaultMembers()) || rows[0].Date != "2026-01-15" {
		t.Fatalf("rows = %+v", rows)
	}
	if _, err := svc.MealsForDate("15/01/2026"); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestMealEditsKeyOnCalendarDay(t *testing.T) {
	svc := newService(t, 10)
	ctx := context.Background()

	if _, err := svc.UpdateMeal(ctx, RoleAdmin, "2026-01-15", "1", core.Lunch, true); err != nil {
		t.Fatalf("UpdateMeal: %v", err)
	}
	rec, err := svc.UpdateMeal(ctx, RoleAdmin, "2026-01-15T08:00:00Z", "1", core.Dinner, true)
	if err != nil {
		t.Fatalf("UpdateMeal with timestamp: %v", err)
	}
	if rec.Date != "2026-01-15" || !rec.Lunch || !rec.Dinner {
		t.Fatalf("record = %+v, want both slots on 2026-01-15", rec)
	}
	if _, err := svc.UpdateMealCount(ctx, RoleAdmin, " 2026-01-15T08:00:00Z ", "2", 2, 0); err != nil {
		t.Fatalf("UpdateMealCount: %v", err)
	}

	if n := len(svc.Snapshot().Meals); n != 2 {
		t.Fatalf("stored %d meal records, want 2", n)
	}

	rows, err := svc.MealsForDate("2026-01-15")
	if err != nil {
		t.Fatalf("MealsForDate: %v", err)
	}
	if rows[1].MemberID != "2" || rows[1].Units().Lunch != 2 {
		t.Errorf("member 2 row = %+v, want the stored count", rows[1])
	}

	today, err := svc.TodayStats("2026-01-15")
	if err != nil {
		t.Fatalf("TodayStats: %v", err)
	}
	month := svc.Report(window.ForMonth(2026, 1))
	if month.Stats.TotalMeals != today.TotalWeight || today.TotalWeight != 3.5 {
		t.Errorf("month meals = %v, today weight = %v, want 3.5 for both", month.Stats.TotalMeals, today.TotalWeight)
	}
}

func TestReportUsesResolvedWindow(t *testing.T) {
	svc := newService(t, 10)
	ctx := context.Background()
	svc.AddExpense(ctx, core.Expense{Date: "2026-01-02", Item: "চাল", Amount: 300})
	svc.AddExpense(ctx, core.Expense{Date: "2025-12-30", Item: "ডাল", Amount: 700})
	svc.UpdateMealCount(ctx, RoleAdmin, "2026-01-02", "1", 2, 0)

	r := svc.Report(svc.DefaultWindow())
	if r.Window != "2026-01" || r.Stats.TotalExpenses != 300 || r.Stats.MealRate != 150 {
		t.Fatalf("report = %+v", r)
	}
	all := svc.Report(window.ForAllTime())
	if all.Stats.TotalExpenses != 1000 {
		t.Fatalf("all-time report = %+v", all.Stats)
	}
}

func TestImportExportClear(t *testing.T) {
	saver := &fakeSaver{}
	pub := &fakePublisher{}
	svc := newService(t, 10, WithSaver(saver), WithPublisher(pub))
	ctx := context.Background()
	svc.AddDeposit(ctx, core.Deposit{Date: "2026-01-01", MemberID: "1", Amount: 1000})

	doc, err := svc.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n := len(svc.Snapshot().Deposits); n != 0 {
		t.Fatalf("clear left %d deposits", n)
	}

	before := svc.Revision()
	if err := svc.Import(ctx, []byte(`{"meals": []}`)); !errors.Is(err, ledger.ErrMissingKey) {
		t.Fatalf("bad import err = %v", err)
	}
	if svc.Revision() != before {
		t.Fatalf("failed import changed the ledger")
	}

	if err := svc.Import(ctx, doc); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n := len(svc.Snapshot().Deposits); n != 1 {
		t.Fatalf("import restored %d deposits", n)
	}
	last := pub.events[len(pub.events)-1]
	if last.Table != ledger.TableLedger || last.Type != ledger.Update {
		t.Fatalf("import event = %s %s", last.Table, last.Type)
	}
}

func TestApplyRemote(t *testing.T) {
	saver := &fakeSaver{}
	svc := newService(t, 10, WithSaver(saver), WithOrigin("self"))
	ctx := context.Background()

	ev, err := ledger.NewChange(ledger.TableDeposits, ledger.Insert, core.Deposit{ID: "r1", Date: "2026-01-01", MemberID: "2", Amount: 250})
	if err != nil {
		t.Fatalf("NewChange: %v", err)
	}

	ev.Origin = "self"
	if err := svc.ApplyRemote(ctx, ev); err != nil {
		t.Fatalf("own event: %v", err)
	}
	if len(svc.Snapshot().Deposits) != 0 || len(saver.saved) != 0 {
		t.Fatalf("own event must be ignored")
	}

	ev.Origin = "peer"
	if err := svc.ApplyRemote(ctx, ev); err != nil {
		t.Fatalf("peer event: %v", err)
	}
	if len(svc.Snapshot().Deposits) != 1 || len(saver.saved) != 1 {
		t.Fatalf("peer event not applied and persisted")
	}

	bad := ledger.ChangeEvent{Origin: "peer", Table: "bills", Type: ledger.Insert, New: []byte(`{}`)}
	if err := svc.ApplyRemote(ctx, bad); !errors.Is(err, ledger.ErrUnknownTable) {
		t.Fatalf("unknown table err = %v", err)
	}
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	svc := newService(t, 10)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.AddDeposit(ctx, core.Deposit{Date: "2026-01-15", MemberID: "1", Amount: 10})
			svc.UpdateMeal(ctx, RoleAdmin, "2026-01-15", "1", core.Lunch, true)
		}()
	}
	wg.Wait()

	snap := svc.Snapshot()
	if len(snap.Deposits) != 50 {
		t.Fatalf("lost deposits: %d", len(snap.Deposits))
	}
	if len(snap.Meals) != 1 {
		t.Fatalf("meal upsert duplicated under concurrency: %d", len(snap.Meals))
	}
}

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	started chan struct{}
	release chan struct{}
	fakePublisher
}

func (b *blockingPublisher) PublishChange(ctx context.Context, ev ledger.ChangeEvent) error {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-b.release
	return b.fakePublisher.PublishChange(ctx, ev)
}

func TestSlowPublishDoesNotHoldLedgerLock(t *testing.T) {
	pub := &blockingPublisher{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := newService(t, 10, WithPublisher(pub))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.AddDeposit(ctx, core.Deposit{Date: "2026-01-15", MemberID: "1", Amount: 10})
		done <- err
	}()

	select {
	case <-pub.started:
	case <-time.After(2 * time.Second):
		t.Fatal("publish never started")
	}

	read := make(chan int, 1)
	go func() { read <- len(svc.Snapshot().Deposits) }()
	select {
	case n := <-read:
		if n != 1 {
			t.Errorf("deposits while publishing = %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Snapshot blocked behind a pending publish")
	}

	written := make(chan error, 1)
	go func() {
		_, err := svc.AddExpense(ctx, core.Expense{Date: "2026-01-15", Item: "ডাল", Amount: 120})
		written <- err
	}()
	deadline := time.After(2 * time.Second)
	for len(svc.Snapshot().Expenses) == 0 {
		select {
		case <-deadline:
			t.Fatal("mutation blocked behind a pending publish")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(pub.release)
	if err := <-done; err != nil {
		t.Fatalf("AddDeposit: %v", err)
	}
	if err := <-written; err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 2 || pub.events[0].Table != ledger.TableDeposits || pub.events[1].Table != ledger.TableExpenses {
		t.Errorf("events = %+v, want deposit then expense", pub.events)
	}
}
