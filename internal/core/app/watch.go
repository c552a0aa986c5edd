package app

import (
	"context"
	"fmt"
	"log/slog"

	"mwcheck/internal/core/catalog"
	"mwcheck/internal/core/config"
	"mwcheck/internal/core/scan"
	"mwcheck/internal/core/watcher"
)

// Watch runs an initial full pass, then rescans the target root whenever
// watched files change. The change catalog is aggregated once and cached;
// only the scan repeats, so edits never trigger source refetches.
func (a *App) Watch(ctx context.Context) error {
	type cached struct {
		mw      config.Middleware
		records []catalog.ChangeRecord
		covered []catalog.Version
	}

	catalogs := make([]cached, 0, len(a.Config.Middleware))
	suffixes := make([]string, 0)
	for _, mw := range a.Config.Middleware {
		records, covered, err := a.loadRecords(ctx, mw)
		if err != nil {
			return fmt.Errorf("check %s: %w", mw.Name, err)
		}
		catalogs = append(catalogs, cached{mw: mw, records: records, covered: covered})
		suffixes = append(suffixes, scan.Profile(mw.Name)...)
	}

	rescan := func() {
		for _, c := range catalogs {
			rep, err := a.scanAndReport(ctx, c.mw, c.records, c.covered)
			if err != nil {
				slog.Error("rescan failed", "middleware", c.mw.Name, "error", err)
				continue
			}
			if err := a.writeOutputs(c.mw, rep); err != nil {
				slog.Error("failed to write outputs", "middleware", c.mw.Name, "error", err)
				continue
			}
			a.recordRun(c.mw, rep)
			slog.Info("rescan complete",
				"middleware", c.mw.Name,
				"matches", rep.Summary.TotalMatches,
				"affected_files", rep.Summary.AffectedFiles)
		}
	}

	rescan()

	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Scan.Exclude.Dirs,
		a.Config.Scan.Exclude.Files,
		suffixes,
		func(paths []string) {
			slog.Info("changes detected", "files", len(paths))
			rescan()
		},
	)
	if err != nil {
		return err
	}
	a.activeWatcher = w

	if err := w.Watch(a.Config.Scan.Root); err != nil {
		return err
	}

	slog.Info("watching for changes", "root", a.Config.Scan.Root, "debounce", a.Config.Watch.Debounce)
	<-ctx.Done()
	return ctx.Err()
}
