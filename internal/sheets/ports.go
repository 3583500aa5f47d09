// Package sheets defines the outbound port for report documents and the
// glue that renders a settlement report onto it.
package sheets

import (
	"context"
	"fmt"

	"mess/internal/core"
	"mess/internal/report"
)

// Ports for outbound adapters.
type (
	// ReportWriter replaces the contents of a named tab with rows,
	// creating the tab if it does not exist.
	ReportWriter interface {
		WriteReport(ctx context.Context, tab string, rows [][]any) error
	}
)

// Publish writes r to the tab "<prefix> <window label>" and returns the
// tab name.
func Publish(ctx context.Context, w ReportWriter, prefix string, r core.Report) (string, error) {
	tab := report.TabName(prefix, r.Window)
	if err := w.WriteReport(ctx, tab, report.Rows(r)); err != nil {
		return "", fmt.Errorf("write report tab %q: %w", tab, err)
	}
	return tab, nil
}
