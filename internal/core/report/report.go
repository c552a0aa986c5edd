// Package report assembles scan results into the structured envelope handed
// to renderers. Summary figures are always derived from the results, never
// stored independently, so they cannot drift.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"mwcheck/internal/core/catalog"
	"mwcheck/internal/core/errors"
	"mwcheck/internal/core/scan"
)

// Meta describes the run that produced a report.
type Meta struct {
	RunID           string            `json:"run_id"`
	GeneratedAt     time.Time         `json:"generated_at"`
	Root            string            `json:"target_root"`
	Middleware      string            `json:"middleware"`
	From            catalog.Version   `json:"from_version"`
	To              catalog.Version   `json:"to_version"`
	VersionsCovered []catalog.Version `json:"versions_covered"`
}

// Summary is the aggregate view over all impact results.
type Summary struct {
	TotalChanges       int `json:"total_changes"`
	ChangesWithMatches int `json:"changes_with_matches"`
	AffectedFiles      int `json:"affected_files"`
	TotalMatches       int `json:"total_matches"`
	TruncatedScans     int `json:"truncated_scans,omitempty"`
	InvalidPatterns    int `json:"invalid_patterns,omitempty"`
}

// Report is the full output envelope consumed by renderers.
type Report struct {
	Meta    Meta                `json:"meta"`
	Summary Summary             `json:"summary"`
	Results []scan.ImpactResult `json:"results"`
}

// Assemble pairs the results with a freshly computed summary. The same file
// may be affected by several changes; it counts once in the summary's
// affected-file figure while still appearing in each record's own list.
func Assemble(meta Meta, results []scan.ImpactResult) Report {
	if meta.RunID == "" {
		meta.RunID = uuid.NewString()
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now().UTC()
	}
	return Report{
		Meta:    meta,
		Summary: Summarize(results),
		Results: results,
	}
}

// Summarize recomputes the aggregate counters from scratch.
func Summarize(results []scan.ImpactResult) Summary {
	summary := Summary{TotalChanges: len(results)}
	union := make(map[string]bool)

	for _, res := range results {
		summary.TotalMatches += res.MatchCount
		if res.MatchCount > 0 {
			summary.ChangesWithMatches++
		}
		for _, path := range res.AffectedFiles {
			union[path] = true
		}
		if res.Truncated {
			summary.TruncatedScans++
		}
		if res.Issue != nil && res.Issue.Code == errors.CodeInvalidPattern {
			summary.InvalidPatterns++
		}
	}

	summary.AffectedFiles = len(union)
	return summary
}

// AffectedFileUnion returns the distinct affected files across all results,
// sorted, for renderers that list them.
func AffectedFileUnion(results []scan.ImpactResult) []string {
	union := make(map[string]bool)
	for _, res := range results {
		for _, path := range res.AffectedFiles {
			union[path] = true
		}
	}
	out := make([]string, 0, len(union))
	for path := range union {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}
