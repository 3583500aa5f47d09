package storage

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"mess/internal/core"
)

func sample() core.Snapshot {
	two, half := 2.0, 0.5
	snap := core.SeedSnapshot()
	snap.Members = append(snap.Members, core.Member{ID: "9", Name: "অতিথি", IsActive: false})
	snap.Meals = []core.MealRecord{
		{Date: "2026-01-01", MemberID: "1", Lunch: true, Dinner: true},
		{Date: "2026-01-01", MemberID: "2", Lunch: true, LunchCount: &two, DinnerCount: &half, Dinner: true},
		{Date: "2026-01-02", MemberID: "removed", Lunch: true},
	}
	snap.Expenses = []core.Expense{
		{ID: "e2", Date: "2026-01-02", Item: "মাছ", Amount: 820.5},
		{ID: "e1", Date: "2026-01-01", Item: "চাল", Amount: 3500, PaidBy: "3"},
	}
	snap.ExtraExpenses = []core.ExtraExpense{{ID: "x1", Date: "2026-01-03", Item: "gas", Amount: 1100, Note: "cylinder"}}
	snap.Deposits = []core.Deposit{{ID: "d1", Date: "2026-01-01", MemberID: "1", Amount: 2000}}
	snap.MaidPayments = []core.MaidPayment{{ID: "m1", Date: "2026-01-05", Amount: 3000, PaidBy: "4", Note: "January"}}
	snap.ShopTransactions = []core.ShopTransaction{
		{ID: "s1", Date: "2026-01-04", Type: core.ShopPurchase, Amount: 700},
		{ID: "s2", Date: "2026-01-06", Type: core.ShopPayment, Amount: 500},
	}
	snap.Normalize()
	return snap
}

func testPersisters(t *testing.T) map[string]Persister {
	t.Helper()
	dir := t.TempDir()
	file, err := NewFileStore(filepath.Join(dir, "data", "mess.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	repo, err := NewSQLiteRepository(filepath.Join(dir, "mess.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return map[string]Persister{
		"memory": NewMemoryStore(),
		"file":   file,
		"sqlite": repo,
	}
}

func TestPersisterFirstRun(t *testing.T) {
	for name, p := range testPersisters(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := p.Load(context.Background())
			if err != nil || found {
				t.Fatalf("first Load = found %v, err %v", found, err)
			}
		})
	}
}

func TestPersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, p := range testPersisters(t) {
		t.Run(name, func(t *testing.T) {
			want := sample()
			if err := p.Save(ctx, want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, found, err := p.Load(ctx)
			if err != nil || !found {
				t.Fatalf("Load = found %v, err %v", found, err)
			}
			if !reflect.DeepEqual(want, got) {
				t.Fatalf("round trip mismatch:\nwant %+v\n got %+v", want, got)
			}

			// A second save replaces rather than appends.
			smaller := core.SeedSnapshot()
			if err := p.Save(ctx, smaller); err != nil {
				t.Fatalf("second Save: %v", err)
			}
			got, _, _ = p.Load(ctx)
			if len(got.Expenses) != 0 || len(got.Members) != len(smaller.Members) {
				t.Fatalf("second save did not replace: %+v", got)
			}
		})
	}
}

func TestSQLiteKeepsNaNAmounts(t *testing.T) {
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "mess.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()

	snap := core.SeedSnapshot()
	snap.Deposits = []core.Deposit{{ID: "d", Date: "2026-01-01", MemberID: "1", Amount: math.NaN()}}
	if err := repo.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !math.IsNaN(got.Deposits[0].Amount) {
		t.Fatalf("amount = %v, want NaN", got.Deposits[0].Amount)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mess.db")
	ctx := context.Background()

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := repo.Save(ctx, sample()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	repo.Close()

	reopened, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, found, err := reopened.Load(ctx)
	if err != nil || !found || len(got.Meals) != 3 {
		t.Fatalf("reopened Load = %d meals, found %v, err %v", len(got.Meals), found, err)
	}
}

func TestFileStoreWritesExportDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mess.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Save(context.Background(), sample()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		t.Fatalf("unexpected document")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mess.json")
	if err := os.WriteFile(path, []byte(`{"members": [`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, _ := NewFileStore(path)
	if _, _, err := store.Load(context.Background()); err == nil {
		t.Fatalf("expected error for corrupt data file")
	}
}

func TestFileStoreSaveRejectsNaN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mess.json")
	store, _ := NewFileStore(path)
	ctx := context.Background()
	if err := store.Save(ctx, sample()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	bad := sample()
	bad.Expenses[0].Amount = math.NaN()
	if err := store.Save(ctx, bad); err == nil {
		t.Fatalf("expected error saving NaN")
	}
	got, found, err := store.Load(ctx)
	if err != nil || !found || got.Expenses[0].Amount != 820.5 {
		t.Fatalf("previous file must survive a failed save: %+v %v", got.Expenses, err)
	}
}
