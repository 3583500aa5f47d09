package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"mess/internal/core"
	"mess/internal/ledger"
	"mess/internal/settlement"
	"mess/internal/sheets/memory"
	"mess/internal/storage"
	"mess/internal/window"
)

type failingLoader struct{}

func (failingLoader) Load(context.Context) (core.Snapshot, bool, error) {
	return core.Snapshot{}, false, errors.New("disk unreadable")
}

func newWorker(t *testing.T, loader Loader, windowing window.Windowing) (*ReportWorker, *memory.Store) {
	t.Helper()
	engine, err := settlement.NewEngine(settlement.DepositModel)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	sel := window.NewSelector(time.UTC, window.WithClock(func() time.Time { return now }))
	out := memory.New()
	return NewReportWorker(loader, engine, sel, windowing, out, "Report"), out
}

func TestPublish_CurrentMonth(t *testing.T) {
	mem := storage.NewMemoryStore()
	snap := core.SeedSnapshot()
	snap.Expenses = []core.Expense{
		{ID: "e1", Date: "2026-01-10", Item: "চাল", Amount: 900},
		{ID: "e2", Date: "2025-12-10", Item: "চাল", Amount: 100},
	}
	snap.Meals = []core.MealRecord{{Date: "2026-01-10", MemberID: "1", Lunch: true}}
	if err := mem.Save(context.Background(), snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	w, out := newWorker(t, mem, window.Monthly)
	tab, err := w.Publish(context.Background())
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if tab != "Report 2026-01" {
		t.Errorf("tab = %q, want Report 2026-01", tab)
	}
	rows, ok := out.Rows(tab)
	if !ok {
		t.Fatal("nothing written")
	}
	for _, r := range rows {
		if len(r) == 2 && r[0] == "Grocery" && r[1] != 900.0 {
			t.Errorf("grocery = %v, want 900", r[1])
		}
		if len(r) == 2 && r[0] == "Meal rate" && r[1] != 900.0 {
			t.Errorf("meal rate = %v, want 900", r[1])
		}
	}
}

func TestPublish_AllTimeAndFirstRun(t *testing.T) {
	w, out := newWorker(t, storage.NewMemoryStore(), window.Unbound)
	tab, err := w.Publish(context.Background())
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if tab != "Report all-time" {
		t.Errorf("tab = %q", tab)
	}
	if out.Writes() != 1 {
		t.Errorf("writes = %d, want 1", out.Writes())
	}
}

func TestPublish_LoadError(t *testing.T) {
	w, out := newWorker(t, failingLoader{}, window.Monthly)
	if _, err := w.Publish(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if out.Writes() != 0 {
		t.Errorf("writes = %d, want 0", out.Writes())
	}
}

func TestRun_RepublishesOnChange(t *testing.T) {
	w, out := newWorker(t, storage.NewMemoryStore(), window.Monthly)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, time.Hour) }()

	waitFor := func(n int) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for out.Writes() < n {
			if time.Now().After(deadline) {
				t.Fatalf("writes = %d, want %d", out.Writes(), n)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	waitFor(1)
	_ = w.HandleChange(ctx, ledger.ChangeEvent{Table: ledger.TableExpenses, Type: ledger.Insert})
	waitFor(2)

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestHandleChange_Coalesces(t *testing.T) {
	w, _ := newWorker(t, storage.NewMemoryStore(), window.Monthly)
	for i := 0; i < 5; i++ {
		if err := w.HandleChange(context.Background(), ledger.ChangeEvent{}); err != nil {
			t.Fatalf("HandleChange() error = %v", err)
		}
	}
	if len(w.trigger) != 1 {
		t.Errorf("pending triggers = %d, want 1", len(w.trigger))
	}
}
