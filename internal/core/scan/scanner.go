// Package scan locates the codebase sites a change record's search pattern
// touches. Matching is line-oriented regex over a file index built once per
// run; it is heuristic by design and never language aware.
package scan

import (
	"context"
	"log/slog"
	"regexp"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mwcheck/internal/core/catalog"
	"mwcheck/internal/core/errors"
	"mwcheck/internal/shared/observability"
)

// MatchSite is one occurrence of a pattern in the target codebase.
type MatchSite struct {
	Path    string   `json:"file_path"`
	Line    int      `json:"line_number"`
	Content string   `json:"line_content"`
	Before  []string `json:"context_before,omitempty"`
	After   []string `json:"context_after,omitempty"`
}

// Issue is a record-scoped scan failure surfaced as data instead of aborting
// the batch.
type Issue struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// ImpactResult pairs one change record with everything its pattern hit.
type ImpactResult struct {
	Record        catalog.ChangeRecord `json:"change"`
	AffectedFiles []string             `json:"affected_files"`
	Matches       []MatchSite          `json:"matches"`
	MatchCount    int                  `json:"match_count"`
	Truncated     bool                 `json:"truncated,omitempty"`
	SkippedFiles  int                  `json:"skipped_files,omitempty"`
	Issue         *Issue               `json:"issue,omitempty"`
	Annotation    string               `json:"ai_analysis,omitempty"`
}

// Options configures one scan run. ContextLines of zero keeps no surrounding
// lines; a negative value selects DefaultContextLines.
type Options struct {
	ContextLines   int
	PatternTimeout time.Duration
	Workers        int
}

const (
	DefaultContextLines   = 3
	DefaultPatternTimeout = 60 * time.Second
)

func (o Options) contextLines() int {
	if o.ContextLines < 0 {
		return DefaultContextLines
	}
	return o.ContextLines
}

func (o Options) patternTimeout() time.Duration {
	if o.PatternTimeout <= 0 {
		return DefaultPatternTimeout
	}
	return o.PatternTimeout
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// Scan applies every record's pattern against the file index and returns one
// ImpactResult per record, in record order.
//
// Each (record, index) unit runs independently on a bounded worker pool with
// its own timeout scope; cancelling one unit never cancels another. Results
// are deterministic regardless of worker count because each unit sorts its
// matches by path then line, and the result slice is indexed by record
// position rather than completion order.
func Scan(ctx context.Context, files []string, records []catalog.ChangeRecord, opts Options) []ImpactResult {
	ctx, span := observability.Tracer.Start(ctx, "scan.Scan", trace.WithAttributes(
		attribute.Int("scan.files", len(files)),
		attribute.Int("scan.records", len(records)),
	))
	defer span.End()

	observability.FilesDiscovered.Set(float64(len(files)))

	results := make([]ImpactResult, len(records))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < opts.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = scanRecord(ctx, files, records[idx], opts)
			}
		}()
	}
	for idx := range records {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return results
}

// scanRecord runs one pattern over the whole file index under its own time
// budget.
func scanRecord(parent context.Context, files []string, rec catalog.ChangeRecord, opts Options) ImpactResult {
	result := ImpactResult{
		Record:        rec,
		AffectedFiles: []string{},
		Matches:       []MatchSite{},
	}

	// Records without a code-level signature are informational only.
	if rec.Pattern == "" {
		return result
	}

	start := time.Now()
	defer func() {
		observability.PatternScanDuration.WithLabelValues(string(rec.Kind)).Observe(time.Since(start).Seconds())
	}()

	re, err := regexp.Compile(rec.Pattern)
	if err != nil {
		observability.PatternErrorsTotal.Inc()
		slog.Warn("change pattern failed to compile", "pattern", rec.Pattern, "error", err)
		result.Issue = &Issue{Code: errors.CodeInvalidPattern, Message: err.Error()}
		return result
	}

	ctx, cancel := context.WithTimeout(parent, opts.patternTimeout())
	defer cancel()

	affected := make(map[string]bool)
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		sites, err := scanFile(ctx, re, path, opts.contextLines())
		for _, site := range sites {
			if !affected[site.Path] {
				affected[site.Path] = true
				result.AffectedFiles = append(result.AffectedFiles, site.Path)
			}
		}
		result.Matches = append(result.Matches, sites...)
		if err != nil && ctx.Err() == nil {
			// Unreadable mid-scan (permissions, racing deletion): skip the
			// file for this record, keep going.
			observability.FileReadErrorsTotal.Inc()
			slog.Warn("skipping unreadable file", "path", path, "error", err)
			result.SkippedFiles++
		}
	}

	if ctx.Err() != nil {
		result.Truncated = true
		if parent.Err() != nil {
			// The whole run was cancelled; the record did not exhaust its
			// own time budget.
			slog.Debug("pattern scan interrupted by run cancellation",
				"pattern", rec.Pattern, "matches_so_far", len(result.Matches))
		} else {
			observability.PatternTimeoutsTotal.Inc()
			slog.Warn("pattern scan truncated by time budget",
				"pattern", rec.Pattern, "timeout", opts.patternTimeout(), "matches_so_far", len(result.Matches))
			result.Issue = &Issue{Code: errors.CodeScanTimeout, Message: ctx.Err().Error()}
		}
	}

	// Deterministic ordering independent of traversal and scheduling.
	sort.Slice(result.Matches, func(i, j int) bool {
		if result.Matches[i].Path != result.Matches[j].Path {
			return result.Matches[i].Path < result.Matches[j].Path
		}
		return result.Matches[i].Line < result.Matches[j].Line
	})
	sort.Strings(result.AffectedFiles)

	result.MatchCount = len(result.Matches)
	observability.MatchesTotal.Add(float64(result.MatchCount))
	return result
}
