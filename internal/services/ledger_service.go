package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"mess/internal/core"
	"mess/internal/ledger"
	"mess/internal/settlement"
	"mess/internal/window"
)

// ErrDeadlinePassed rejects member meal edits after the daily cutoff.
var ErrDeadlinePassed = errors.New("meal submission deadline has passed")

// Role identifies who is making a meal edit.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ParseRole maps a header value to a Role. Anything but "member" is an
// administrator.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleMember)) {
		return RoleMember
	}
	return RoleAdmin
}

// Saver persists whole snapshots.
type Saver interface {
	Save(ctx context.Context, snap core.Snapshot) error
}

// Publisher fans out local changes to other instances.
type Publisher interface {
	PublishChange(ctx context.Context, ev ledger.ChangeEvent) error
}

// LedgerService is the single writer of the ledger. Every mutation runs
// under one lock and is persisted there; its change event is published
// after the lock is released.
type LedgerService struct {
	mu        sync.Mutex
	store     *ledger.Store
	engine    *settlement.Engine
	selector  *window.Selector
	windowing window.Windowing
	saver     Saver
	publisher Publisher
	origin    string

	publishMu sync.Mutex
	outbox    []ledger.ChangeEvent
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithSaver persists the ledger after each mutation.
func WithSaver(s Saver) Option {
	return func(svc *LedgerService) { svc.saver = s }
}

// WithPublisher publishes change events after each mutation.
func WithPublisher(p Publisher) Option {
	return func(svc *LedgerService) { svc.publisher = p }
}

// WithOrigin sets the instance id stamped on published events.
func WithOrigin(origin string) Option {
	return func(svc *LedgerService) { svc.origin = origin }
}

// WithWindowing sets the default report window.
func WithWindowing(w window.Windowing) Option {
	return func(svc *LedgerService) { svc.windowing = w }
}

func NewLedgerService(store *ledger.Store, engine *settlement.Engine, selector *window.Selector, opts ...Option) *LedgerService {
	svc := &LedgerService{
		store:     store,
		engine:    engine,
		selector:  selector,
		windowing: window.Monthly,
		origin:    core.NewID(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Origin is the id this instance stamps on its events.
func (s *LedgerService) Origin() string {
	return s.origin
}

// Revision identifies the current ledger state.
func (s *LedgerService) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Revision()
}

// Snapshot returns a detached copy of the ledger.
func (s *LedgerService) Snapshot() core.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// commit persists the current state and queues the change for
// publishing. It must be called with s.mu held; the queue is drained by
// publishPending once the lock is released.
func (s *LedgerService) commit(ctx context.Context, table ledger.Table, typ ledger.ChangeType, rec any) error {
	var persistErr error
	if s.saver != nil {
		if err := s.saver.Save(ctx, s.store.Snapshot()); err != nil {
			slog.ErrorContext(ctx, "Failed to persist ledger", "table", table, "type", typ, "error", err)
			persistErr = fmt.Errorf("persist ledger: %w", err)
		}
	}
	s.enqueue(ctx, table, typ, rec)
	return persistErr
}

func (s *LedgerService) enqueue(ctx context.Context, table ledger.Table, typ ledger.ChangeType, rec any) {
	if s.publisher == nil {
		return
	}
	ev, err := ledger.NewChange(table, typ, rec)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode change event", "table", table, "error", err)
		return
	}
	ev.Origin = s.origin
	s.outbox = append(s.outbox, ev)
}

// publishPending sends queued events in commit order. It must be called
// without s.mu held, so a slow broker never blocks ledger reads or
// writes. Publish failures are only logged.
func (s *LedgerService) publishPending(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	for {
		s.mu.Lock()
		batch := s.outbox
		s.outbox = nil
		s.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, ev := range batch {
			if err := s.publisher.PublishChange(ctx, ev); err != nil {
				slog.ErrorContext(ctx, "Failed to publish change event", "table", ev.Table, "type", ev.Type, "error", err)
			}
		}
	}
}

// Members returns the roster.
func (s *LedgerService) Members() []core.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Members()
}

// AddMember adds an active member.
func (s *LedgerService) AddMember(ctx context.Context, name string) (core.Member, error) {
	m := core.Member{Name: strings.TrimSpace(name), IsActive: true}
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	m = s.store.AddMember(m)
	slog.InfoContext(ctx, "Member added", "member_id", m.ID)
	return m, s.commit(ctx, ledger.TableMembers, ledger.Insert, m)
}

// RemoveMember deletes a member. Their records are kept.
func (s *LedgerService) RemoveMember(ctx context.Context, id string) error {
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.store.RemoveMember(id)
	if !ok {
		return fmt.Errorf("member %q: %w", id, ledger.ErrNotFound)
	}
	slog.InfoContext(ctx, "Member removed", "member_id", id)
	return s.commit(ctx, ledger.TableMembers, ledger.Delete, m)
}

// ToggleMember flips a member between active and inactive.
func (s *LedgerService) ToggleMember(ctx context.Context, id string) (core.Member, error) {
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.store.ToggleMemberStatus(id)
	if !ok {
		return core.Member{}, fmt.Errorf("member %q: %w", id, ledger.ErrNotFound)
	}
	return m, s.commit(ctx, ledger.TableMembers, ledger.Update, m)
}

// MealsForDate returns one row per active member for date. An empty date
// means the household's today.
func (s *LedgerService) MealsForDate(date string) ([]core.MealRecord, error) {
	date, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.store.Snapshot()
	return settlement.MealsForDate(snap.Members, snap.Meals, date), nil
}

// checkMealEdit validates a meal edit and returns its date as YYYY-MM-DD.
func (s *LedgerService) checkMealEdit(role Role, date, memberID string) (string, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(memberID) == "" {
		return "", core.ErrEmptyMember
	}
	if role == RoleMember && !s.selector.BeforeDeadline() {
		return "", ErrDeadlinePassed
	}
	return d.String(), nil
}

// UpdateMeal sets one slot of a member's day.
func (s *LedgerService) UpdateMeal(ctx context.Context, role Role, date, memberID string, slot core.MealSlot, value bool) (core.MealRecord, error) {
	if err := slot.Validate(); err != nil {
		return core.MealRecord{}, err
	}
	date, err := s.checkMealEdit(role, date, memberID)
	if err != nil {
		return core.MealRecord{}, err
	}
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, created := s.store.UpdateMeal(date, memberID, slot, value)
	return rec, s.commit(ctx, ledger.TableMeals, changeType(created), rec)
}

// UpdateMealCount stores explicit lunch and dinner counts.
func (s *LedgerService) UpdateMealCount(ctx context.Context, role Role, date, memberID string, lunch, dinner float64) (core.MealRecord, error) {
	date, err := s.checkMealEdit(role, date, memberID)
	if err != nil {
		return core.MealRecord{}, err
	}
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, created := s.store.UpdateMealCount(date, memberID, lunch, dinner)
	return rec, s.commit(ctx, ledger.TableMeals, changeType(created), rec)
}

// checkNewID rejects a caller-supplied id that table already holds. An
// empty id is assigned by the store. It must be called with s.mu held.
func (s *LedgerService) checkNewID(table ledger.Table, id string) error {
	if id != "" && s.store.Contains(table, id) {
		return fmt.Errorf("%s %q: %w", table, id, ledger.ErrDuplicateID)
	}
	return nil
}

func changeType(created bool) ledger.ChangeType {
	if created {
		return ledger.Insert
	}
	return ledger.Update
}

func (s *LedgerService) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkNewID(ledger.TableExpenses, e.ID); err != nil {
		return core.Expense{}, err
	}
	e = s.store.AddExpense(e)
	return e, s.commit(ctx, ledger.TableExpenses, ledger.Insert, e)
}

func (s *LedgerService) RemoveExpense(ctx context.Context, id string) error {
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.store.RemoveExpense(id)
	if !ok {
		return fmt.Errorf("expense %q: %w", id, ledger.ErrNotFound)
	}
	return s.commit(ctx, ledger.TableExpenses, ledger.Delete, e)
}

func (s *LedgerService) AddExtraExpense(ctx context.Context, e core.ExtraExpense) (core.ExtraExpense, error) {
	if err := e.Validate(); err != nil {
		return core.ExtraExpense{}, err
	}
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkNewID(ledger.TableExtraExpenses, e.ID); err != nil {
		return core.ExtraExpense{}, err
	}
	e = s.store.AddExtraExpense(e)
	return e, s.commit(ctx, ledger.TableExtraExpenses, ledger.Insert, e)
}

func (s *LedgerService) RemoveExtraExpense(ctx context.Context, id string) error {
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.store.RemoveExtraExpense(id)
	if !ok {
		return fmt.Errorf("extra expense %q: %w", id, ledger.ErrNotFound)
	}
	return s.commit(ctx, ledger.TableExtraExpenses, ledger.Delete, e)
}

func (s *LedgerService) AddDeposit(ctx context.Context, d core.Deposit) (core.Deposit, error) {
	if err := d.Validate(); err != nil {
		return core.Deposit{}, err
	}
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkNewID(ledger.TableDeposits, d.ID); err != nil {
		return core.Deposit{}, err
	}
	d = s.store.AddDeposit(d)
	return d, s.commit(ctx, ledger.TableDeposits, ledger.Insert, d)
}

func (s *LedgerService) RemoveDeposit(ctx context.Context, id string) error {
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.store.RemoveDeposit(id)
	if !ok {
		return fmt.Errorf("deposit %q: %w", id, ledger.ErrNotFound)
	}
	return s.commit(ctx, ledger.TableDeposits, ledger.Delete, d)
}

func (s *LedgerService) AddMaidPayment(ctx context.Context, p core.MaidPayment) (core.MaidPayment, error) {
	if err := p.Validate(); err != nil {
		return core.MaidPayment{}, err
	}
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkNewID(ledger.TableMaidPayments, p.ID); err != nil {
		return core.MaidPayment{}, err
	}
	p = s.store.AddMaidPayment(p)
	return p, s.commit(ctx, ledger.TableMaidPayments, ledger.Insert, p)
}

func (s *LedgerService) RemoveMaidPayment(ctx context.Context, id string) error {
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.store.RemoveMaidPayment(id)
	if !ok {
		return fmt.Errorf("maid payment %q: %w", id, ledger.ErrNotFound)
	}
	return s.commit(ctx, ledger.TableMaidPayments, ledger.Delete, p)
}

func (s *LedgerService) AddShopTransaction(ctx context.Context, t core.ShopTransaction) (core.ShopTransaction, error) {
	if err := t.Validate(); err != nil {
		return core.ShopTransaction{}, err
	}
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkNewID(ledger.TableShopTransactions, t.ID); err != nil {
		return core.ShopTransaction{}, err
	}
	t = s.store.AddShopTransaction(t)
	return t, s.commit(ctx, ledger.TableShopTransactions, ledger.Insert, t)
}

func (s *LedgerService) RemoveShopTransaction(ctx context.Context, id string) error {
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.store.RemoveShopTransaction(id)
	if !ok {
		return fmt.Errorf("shop transaction %q: %w", id, ledger.ErrNotFound)
	}
	return s.commit(ctx, ledger.TableShopTransactions, ledger.Delete, t)
}

// DefaultWindow is the window used when a caller does not pick one.
func (s *LedgerService) DefaultWindow() window.Window {
	return s.windowing.Default()
}

// ResolveWindow pins w to the household's current day.
func (s *LedgerService) ResolveWindow(w window.Window) window.Window {
	return s.selector.Resolve(w)
}

// Report computes the settlement report for w.
func (s *LedgerService) Report(w window.Window) core.Report {
	r, _ := s.RevisionedReport(w)
	return r
}

// RevisionedReport is Report plus the revision of the state it was
// computed from.
func (s *LedgerService) RevisionedReport(w window.Window) (core.Report, uint64) {
	w = s.selector.Resolve(w)
	s.mu.Lock()
	snap := s.store.Snapshot()
	rev := s.store.Revision()
	s.mu.Unlock()
	return s.engine.Report(snap, w, s.selector.Now()), rev
}

// TodayStats summarizes meal intake for date, or for today when empty.
func (s *LedgerService) TodayStats(date string) (core.TodayStats, error) {
	date, err := s.resolveDate(date)
	if err != nil {
		return core.TodayStats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return settlement.TodayStats(s.store.Snapshot(), date), nil
}

// ShopAccount returns the all-time shop balance.
func (s *LedgerService) ShopAccount() core.ShopAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return settlement.ShopBalance(s.store.Snapshot().ShopTransactions)
}

// BeforeDeadline reports whether members may still submit meals today.
func (s *LedgerService) BeforeDeadline() bool {
	return s.selector.BeforeDeadline()
}

// DeadlineHour is the household-local submission cutoff.
func (s *LedgerService) DeadlineHour() int {
	return s.selector.DeadlineHour()
}

func (s *LedgerService) resolveDate(date string) (string, error) {
	if strings.TrimSpace(date) == "" {
		return s.selector.Today().String(), nil
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// Export renders the whole ledger as a JSON document.
func (s *LedgerService) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Export()
}

// Import replaces the ledger with a document. A rejected document leaves
// the ledger untouched.
func (s *LedgerService) Import(ctx context.Context, data []byte) error {
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Import(data); err != nil {
		slog.WarnContext(ctx, "Import rejected", "error", err)
		return err
	}
	snap := s.store.Snapshot()
	slog.InfoContext(ctx, "Ledger imported", "members", len(snap.Members), "meals", len(snap.Meals))
	return s.commit(ctx, ledger.TableLedger, ledger.Update, snap)
}

// Clear resets the ledger to the seed members with no records.
func (s *LedgerService) Clear(ctx context.Context) error {
	defer s.publishPending(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Clear()
	slog.InfoContext(ctx, "Ledger cleared")
	return s.commit(ctx, ledger.TableLedger, ledger.Update, s.store.Snapshot())
}

// ApplyRemote reduces an event from another instance into the ledger and
// persists the result. Events this instance published are ignored.
func (s *LedgerService) ApplyRemote(ctx context.Context, ev ledger.ChangeEvent) error {
	if ev.Origin != "" && ev.Origin == s.origin {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Apply(ev); err != nil {
		return fmt.Errorf("apply %s %s: %w", ev.Table, ev.Type, err)
	}
	slog.DebugContext(ctx, "Remote change applied", "table", ev.Table, "type", ev.Type, "origin", ev.Origin)
	if s.saver == nil {
		return nil
	}
	if err := s.saver.Save(ctx, s.store.Snapshot()); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// Flush persists the current state, used on shutdown.
func (s *LedgerService) Flush(ctx context.Context) error {
	if s.saver == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saver.Save(ctx, s.store.Snapshot()); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}
