package history

import (
	"fmt"
	"time"
)

// TrendPoint is one run with deltas against the previous run of the same
// middleware. The first point carries zero deltas.
type TrendPoint struct {
	RunID              string    `json:"run_id"`
	Timestamp          time.Time `json:"timestamp"`
	TotalMatches       int       `json:"total_matches"`
	AffectedFiles      int       `json:"affected_files"`
	ChangesWithMatches int       `json:"changes_with_matches"`
	DeltaMatches       int       `json:"delta_matches"`
	DeltaAffectedFiles int       `json:"delta_affected_files"`
}

type TrendReport struct {
	Middleware string       `json:"middleware"`
	RunCount   int          `json:"run_count"`
	Points     []TrendPoint `json:"points"`
}

// BuildTrendReport turns chronologically ordered runs into a delta series.
// Runs from mixed roots or version ranges still compare, since the point of
// the series is progress toward zero matches for a fixed migration.
func BuildTrendReport(middleware string, runs []Run) (TrendReport, error) {
	if len(runs) == 0 {
		return TrendReport{}, fmt.Errorf("no runs recorded for %q", middleware)
	}

	report := TrendReport{
		Middleware: middleware,
		RunCount:   len(runs),
		Points:     make([]TrendPoint, 0, len(runs)),
	}

	for i, run := range runs {
		point := TrendPoint{
			RunID:              run.RunID,
			Timestamp:          run.Timestamp,
			TotalMatches:       run.TotalMatches,
			AffectedFiles:      run.AffectedFiles,
			ChangesWithMatches: run.ChangesWithMatches,
		}
		if i > 0 {
			prev := runs[i-1]
			point.DeltaMatches = run.TotalMatches - prev.TotalMatches
			point.DeltaAffectedFiles = run.AffectedFiles - prev.AffectedFiles
		}
		report.Points = append(report.Points, point)
	}

	return report, nil
}
