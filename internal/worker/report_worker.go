package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mess/internal/core"
	"mess/internal/ledger"
	"mess/internal/settlement"
	"mess/internal/sheets"
	"mess/internal/window"
)

// Loader reads the persisted ledger. found is false before the first save.
type Loader interface {
	Load(ctx context.Context) (snap core.Snapshot, found bool, err error)
}

// ReportWorker publishes the settlement report of the default window to
// a report writer, periodically and whenever a change is announced.
type ReportWorker struct {
	loader    Loader
	engine    *settlement.Engine
	selector  *window.Selector
	windowing window.Windowing
	writer    sheets.ReportWriter
	prefix    string
	trigger   chan struct{}
}

func NewReportWorker(loader Loader, engine *settlement.Engine, selector *window.Selector, windowing window.Windowing, writer sheets.ReportWriter, prefix string) *ReportWorker {
	return &ReportWorker{
		loader:    loader,
		engine:    engine,
		selector:  selector,
		windowing: windowing,
		writer:    writer,
		prefix:    prefix,
		trigger:   make(chan struct{}, 1),
	}
}

// Publish loads the latest snapshot and writes its report. It returns
// the tab written.
func (w *ReportWorker) Publish(ctx context.Context) (string, error) {
	snap, found, err := w.loader.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load ledger: %w", err)
	}
	if !found {
		snap = core.SeedSnapshot()
	}

	win := w.selector.Resolve(w.windowing.Default())
	rep := w.engine.Report(snap, win, w.selector.Now())
	tab, err := sheets.Publish(ctx, w.writer, w.prefix, rep)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Report published",
		"tab", tab,
		"window", rep.Window,
		"members", len(rep.Members),
		"meal_rate", core.FormatTaka(rep.Stats.MealRate),
		"cash_in_hand", core.FormatTaka(rep.Stats.CashInHand))
	return tab, nil
}

// HandleChange requests a republish after a remote change. Requests that
// arrive while one is pending are coalesced.
func (w *ReportWorker) HandleChange(ctx context.Context, ev ledger.ChangeEvent) error {
	select {
	case w.trigger <- struct{}{}:
		slog.DebugContext(ctx, "Report refresh scheduled", "table", ev.Table, "type", ev.Type)
	default:
	}
	return nil
}

// Run publishes on start, on every tick of interval and after each
// change, until ctx ends. Publish failures are logged and retried on the
// next occasion.
func (w *ReportWorker) Run(ctx context.Context, interval time.Duration) error {
	w.publishLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.publishLogged(ctx)
		case <-w.trigger:
			w.publishLogged(ctx)
		}
	}
}

func (w *ReportWorker) publishLogged(ctx context.Context) {
	if _, err := w.Publish(ctx); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Report publish failed", "error", err)
	}
}
