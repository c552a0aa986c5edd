// Package app wires configuration, change sources, the scanner, renderers
// and persistence into runnable checks.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mwcheck/internal/annotate"
	"mwcheck/internal/core/catalog"
	"mwcheck/internal/core/config"
	mwerrors "mwcheck/internal/core/errors"
	"mwcheck/internal/core/ports"
	"mwcheck/internal/core/report"
	"mwcheck/internal/core/scan"
	"mwcheck/internal/core/watcher"
	"mwcheck/internal/data/history"
	"mwcheck/internal/shared/observability"
	"mwcheck/internal/shared/util"
)

type App struct {
	Config  *config.Config
	limiter *util.Limiter
	store   ports.HistoryStore
	closers []io.Closer

	activeWatcher *watcher.Watcher
}

func New(cfg *config.Config) (*App, error) {
	a := &App{
		Config:  cfg,
		limiter: util.NewLimiter(cfg.Sources.RatePerSecond, cfg.Sources.Burst),
	}

	if cfg.DB.Enabled {
		store, err := history.Open(cfg.DB.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store)
	}

	return a, nil
}

func (a *App) Close() error {
	if a.activeWatcher != nil {
		_ = a.activeWatcher.Close()
	}
	var firstErr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run executes one aggregate-and-scan pass for every configured middleware
// and writes the resulting reports.
func (a *App) Run(ctx context.Context) error {
	for _, mw := range a.Config.Middleware {
		rep, err := a.RunMiddleware(ctx, mw)
		if err != nil {
			return fmt.Errorf("check %s: %w", mw.Name, err)
		}
		if err := a.writeOutputs(mw, rep); err != nil {
			return err
		}
		a.recordRun(mw, rep)
	}
	return nil
}

// RunMiddleware aggregates the change catalog for one middleware's version
// range and scans the target root against it.
func (a *App) RunMiddleware(ctx context.Context, mw config.Middleware) (report.Report, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.RunMiddleware", trace.WithAttributes(
		attribute.String("middleware", mw.Name),
		attribute.String("from", mw.Current),
		attribute.String("to", mw.Target),
	))
	defer span.End()

	records, covered, err := a.loadRecords(ctx, mw)
	if err != nil {
		return report.Report{}, err
	}
	slog.Info("change catalog aggregated",
		"middleware", mw.Name,
		"from", mw.Current,
		"to", mw.Target,
		"versions", len(covered),
		"changes", len(records))

	return a.scanAndReport(ctx, mw, records, covered)
}

// loadRecords fetches every source's change sets across the version range
// and folds them into one deduplicated catalog.
func (a *App) loadRecords(ctx context.Context, mw config.Middleware) ([]catalog.ChangeRecord, []catalog.Version, error) {
	ordered := mw.VersionSequence()
	covered, err := catalog.VersionRange(ordered, catalog.Version(mw.Current), catalog.Version(mw.Target))
	if err != nil {
		return nil, nil, err
	}

	sources, err := a.buildSources(mw)
	if err != nil {
		return nil, nil, err
	}

	sets := make([]catalog.SourceSets, 0, len(sources))
	for _, src := range sources {
		byVersion := make(map[catalog.Version]catalog.ChangeSet, len(covered))
		for _, version := range covered {
			set, err := src.Changes(ctx, version)
			if err != nil {
				// Malformed local data is a configuration problem and stops
				// the run. A source that merely failed to fetch contributes
				// nothing for that version.
				if mwerrors.Fatal(err) {
					return nil, nil, fmt.Errorf("source %s, version %s: %w", src.ID(), version, err)
				}
				slog.Warn("source unavailable for version",
					"source", src.ID(), "version", version, "error", err)
				set = catalog.ChangeSet{}
			}
			byVersion[version] = set
		}
		sets = append(sets, catalog.SourceSets{ID: src.ID(), ByVersion: byVersion})
	}

	records, err := catalog.Aggregate(ordered, catalog.Version(mw.Current), catalog.Version(mw.Target), sets, mw.KindFilterOf())
	if err != nil {
		return nil, nil, err
	}
	observability.ChangesAggregated.Set(float64(len(records)))

	return records, covered, nil
}

// scanAndReport runs the pattern scan over the discovered file index and
// assembles the report envelope. Aggregation is skipped so watch mode can
// rescan with a cached catalog.
func (a *App) scanAndReport(ctx context.Context, mw config.Middleware, records []catalog.ChangeRecord, covered []catalog.Version) (report.Report, error) {
	files, err := scan.Discover(
		a.Config.Scan.Root,
		scan.Profile(mw.Name),
		a.Config.Scan.Exclude.Dirs,
		a.Config.Scan.Exclude.Files,
	)
	if err != nil {
		return report.Report{}, err
	}
	slog.Info("file index built", "root", a.Config.Scan.Root, "files", len(files))

	results := scan.Scan(ctx, files, records, scan.Options{
		ContextLines:   a.Config.Scan.ContextLines,
		PatternTimeout: a.Config.Scan.PatternTimeout,
		Workers:        a.Config.Scan.Workers,
	})

	a.annotateResults(ctx, results)

	return report.Assemble(report.Meta{
		Root:            a.Config.Scan.Root,
		Middleware:      mw.Name,
		From:            catalog.Version(mw.Current),
		To:              catalog.Version(mw.Target),
		VersionsCovered: covered,
	}, results), nil
}

// annotateResults decorates matched results in place. Annotation failures
// are logged and skipped; the scan result stands on its own.
func (a *App) annotateResults(ctx context.Context, results []scan.ImpactResult) {
	annotator := a.buildAnnotator()
	if annotator == nil {
		return
	}

	for i := range results {
		if results[i].MatchCount == 0 {
			continue
		}
		text, err := annotator.Annotate(ctx, results[i].Record, results[i].Matches)
		if err != nil {
			slog.Warn("annotation failed", "pattern", results[i].Record.Pattern, "error", err)
			continue
		}
		results[i].Annotation = text
	}
}

func (a *App) buildAnnotator() ports.Annotator {
	switch a.Config.AI.Mode {
	case "api":
		return annotate.NewAPIAnnotator(os.Getenv("ANTHROPIC_API_KEY"), a.Config.AI.Model, a.Config.AI.MaxSites)
	case "prompt":
		return annotate.NewPromptAnnotator(a.Config.AI.MaxSites)
	default:
		return nil
	}
}

// recordRun persists the summary when the history store is enabled.
func (a *App) recordRun(mw config.Middleware, rep report.Report) {
	if a.store == nil {
		return
	}
	run := history.Run{
		RunID:              rep.Meta.RunID,
		Middleware:         mw.Name,
		Timestamp:          rep.Meta.GeneratedAt,
		Root:               rep.Meta.Root,
		FromVersion:        mw.Current,
		ToVersion:          mw.Target,
		TotalChanges:       rep.Summary.TotalChanges,
		ChangesWithMatches: rep.Summary.ChangesWithMatches,
		AffectedFiles:      rep.Summary.AffectedFiles,
		TotalMatches:       rep.Summary.TotalMatches,
		TruncatedScans:     rep.Summary.TruncatedScans,
		InvalidPatterns:    rep.Summary.InvalidPatterns,
	}
	if err := a.store.SaveRun(run); err != nil {
		slog.Warn("failed to persist run summary", "run_id", run.RunID, "error", err)
	}
}

// Trend loads the stored run series for one middleware.
func (a *App) Trend(middleware string, since time.Time) (history.TrendReport, error) {
	if a.store == nil {
		return history.TrendReport{}, fmt.Errorf("history store is disabled")
	}
	runs, err := a.store.LoadRuns(middleware, since)
	if err != nil {
		return history.TrendReport{}, err
	}
	return history.BuildTrendReport(middleware, runs)
}
