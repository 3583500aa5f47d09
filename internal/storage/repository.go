package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"mess/internal/core"

	_ "modernc.org/sqlite"
)

const savedAtKey = "saved_at"

// SQLiteRepository stores the ledger snapshot as one table per collection.
// Save rewrites every table in a single transaction.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the connection for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load reads the saved snapshot. found is false until the first Save.
func (r *SQLiteRepository) Load(ctx context.Context) (core.Snapshot, bool, error) {
	var savedAt string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key = ?`, savedAtKey).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("read ledger meta: %w", err)
	}

	snap := core.Snapshot{Version: core.SchemaVersion}
	loaders := []struct {
		name string
		load func(context.Context, *core.Snapshot) error
	}{
		{"members", r.loadMembers},
		{"meals", r.loadMeals},
		{"expenses", r.loadExpenses},
		{"extra_expenses", r.loadExtraExpenses},
		{"deposits", r.loadDeposits},
		{"maid_payments", r.loadMaidPayments},
		{"shop_transactions", r.loadShopTransactions},
	}
	for _, l := range loaders {
		if err := l.load(ctx, &snap); err != nil {
			return core.Snapshot{}, false, fmt.Errorf("load %s: %w", l.name, err)
		}
	}
	snap.Normalize()

	slog.DebugContext(ctx, "Ledger loaded from SQLite",
		"saved_at", savedAt,
		"members", len(snap.Members),
		"meals", len(snap.Meals))
	return snap, true, nil
}

// Save replaces the stored snapshot atomically.
func (r *SQLiteRepository) Save(ctx context.Context, snap core.Snapshot) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"members", "meals", "expenses", "extra_expenses", "deposits", "maid_payments", "shop_transactions"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err = insertAll(ctx, tx,
		`INSERT INTO members (id, name, is_active, position) VALUES (?, ?, ?, ?)`,
		len(snap.Members), func(i int) []any {
			m := snap.Members[i]
			return []any{m.ID, m.Name, m.IsActive, i}
		}); err != nil {
		return fmt.Errorf("save members: %w", err)
	}
	if err = insertAll(ctx, tx,
		`INSERT INTO meals (date, member_id, lunch, dinner, lunch_count, dinner_count, position) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(snap.Meals), func(i int) []any {
			m := snap.Meals[i]
			return []any{m.Date, m.MemberID, m.Lunch, m.Dinner, nullCount(m.LunchCount), nullCount(m.DinnerCount), i}
		}); err != nil {
		return fmt.Errorf("save meals: %w", err)
	}
	if err = insertAll(ctx, tx,
		`INSERT INTO expenses (id, date, item, amount, paid_by, position) VALUES (?, ?, ?, ?, ?, ?)`,
		len(snap.Expenses), func(i int) []any {
			e := snap.Expenses[i]
			return []any{e.ID, e.Date, e.Item, nullAmount(e.Amount), e.PaidBy, i}
		}); err != nil {
		return fmt.Errorf("save expenses: %w", err)
	}
	if err = insertAll(ctx, tx,
		`INSERT INTO extra_expenses (id, date, item, amount, note, position) VALUES (?, ?, ?, ?, ?, ?)`,
		len(snap.ExtraExpenses), func(i int) []any {
			e := snap.ExtraExpenses[i]
			return []any{e.ID, e.Date, e.Item, nullAmount(e.Amount), e.Note, i}
		}); err != nil {
		return fmt.Errorf("save extra expenses: %w", err)
	}
	if err = insertAll(ctx, tx,
		`INSERT INTO deposits (id, date, member_id, amount, position) VALUES (?, ?, ?, ?, ?)`,
		len(snap.Deposits), func(i int) []any {
			d := snap.Deposits[i]
			return []any{d.ID, d.Date, d.MemberID, nullAmount(d.Amount), i}
		}); err != nil {
		return fmt.Errorf("save deposits: %w", err)
	}
	if err = insertAll(ctx, tx,
		`INSERT INTO maid_payments (id, date, amount, paid_by, note, position) VALUES (?, ?, ?, ?, ?, ?)`,
		len(snap.MaidPayments), func(i int) []any {
			p := snap.MaidPayments[i]
			return []any{p.ID, p.Date, nullAmount(p.Amount), p.PaidBy, p.Note, i}
		}); err != nil {
		return fmt.Errorf("save maid payments: %w", err)
	}
	if err = insertAll(ctx, tx,
		`INSERT INTO shop_transactions (id, date, type, amount, note, position) VALUES (?, ?, ?, ?, ?, ?)`,
		len(snap.ShopTransactions), func(i int) []any {
			t := snap.ShopTransactions[i]
			return []any{t.ID, t.Date, string(t.Type), nullAmount(t.Amount), t.Note, i}
		}); err != nil {
		return fmt.Errorf("save shop transactions: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		savedAtKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("update ledger meta: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func insertAll(ctx context.Context, tx *sql.Tx, query string, n int, args func(int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// SQLite has no NaN; it is stored as NULL and read back as NaN.
func nullAmount(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func amountOf(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func nullCount(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func countOf(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	c := v.Float64
	return &c
}

func (r *SQLiteRepository) loadMembers(ctx context.Context, snap *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, is_active FROM members ORDER BY position`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var m core.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.IsActive); err != nil {
			return err
		}
		snap.Members = append(snap.Members, m)
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadMeals(ctx context.Context, snap *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, member_id, lunch, dinner, lunch_count, dinner_count FROM meals ORDER BY position`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var m core.MealRecord
		var lunchCount, dinnerCount sql.NullFloat64
		if err := rows.Scan(&m.Date, &m.MemberID, &m.Lunch, &m.Dinner, &lunchCount, &dinnerCount); err != nil {
			return err
		}
		m.LunchCount = countOf(lunchCount)
		m.DinnerCount = countOf(dinnerCount)
		snap.Meals = append(snap.Meals, m)
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadExpenses(ctx context.Context, snap *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, date, item, amount, paid_by FROM expenses ORDER BY position`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e core.Expense
		var amount sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.Date, &e.Item, &amount, &e.PaidBy); err != nil {
			return err
		}
		e.Amount = amountOf(amount)
		snap.Expenses = append(snap.Expenses, e)
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadExtraExpenses(ctx context.Context, snap *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, date, item, amount, note FROM extra_expenses ORDER BY position`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e core.ExtraExpense
		var amount sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.Date, &e.Item, &amount, &e.Note); err != nil {
			return err
		}
		e.Amount = amountOf(amount)
		snap.ExtraExpenses = append(snap.ExtraExpenses, e)
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadDeposits(ctx context.Context, snap *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, date, member_id, amount FROM deposits ORDER BY position`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var d core.Deposit
		var amount sql.NullFloat64
		if err := rows.Scan(&d.ID, &d.Date, &d.MemberID, &amount); err != nil {
			return err
		}
		d.Amount = amountOf(amount)
		snap.Deposits = append(snap.Deposits, d)
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadMaidPayments(ctx context.Context, snap *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, date, amount, paid_by, note FROM maid_payments ORDER BY position`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p core.MaidPayment
		var amount sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Date, &amount, &p.PaidBy, &p.Note); err != nil {
			return err
		}
		p.Amount = amountOf(amount)
		snap.MaidPayments = append(snap.MaidPayments, p)
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadShopTransactions(ctx context.Context, snap *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, date, type, amount, note FROM shop_transactions ORDER BY position`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var t core.ShopTransaction
		var typ string
		var amount sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.Date, &typ, &amount, &t.Note); err != nil {
			return err
		}
		t.Type = core.ShopTxType(typ)
		t.Amount = amountOf(amount)
		snap.ShopTransactions = append(snap.ShopTransactions, t)
	}
	return rows.Err()
}
