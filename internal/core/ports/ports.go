// Package ports declares the seams between the aggregation/scanning core and
// its collaborators: change sources, annotators, renderers, and persistence.
package ports

import (
	"context"
	"time"

	"mwcheck/internal/core/catalog"
	"mwcheck/internal/core/report"
	"mwcheck/internal/core/scan"
	"mwcheck/internal/data/history"
)

// ChangeSource loads change records for single versions. Implementations own
// the fetching and shaping; the core only ever sees fully validated records.
type ChangeSource interface {
	// ID is the stable source identifier used for priority ordering.
	ID() string
	// Changes returns the change set for one version. A source with no data
	// for the version returns an empty set and no error.
	Changes(ctx context.Context, version catalog.Version) (catalog.ChangeSet, error)
}

// Annotator decorates one impact result with free-text analysis. Failure is
// never allowed to affect scan correctness.
type Annotator interface {
	Annotate(ctx context.Context, rec catalog.ChangeRecord, matches []scan.MatchSite) (string, error)
}

// Renderer turns the report envelope into one serialized representation.
type Renderer interface {
	Render(rep report.Report) ([]byte, error)
}

// HistoryStore persists run summaries for trend inspection across repeated
// scans.
type HistoryStore interface {
	SaveRun(run history.Run) error
	LoadRuns(middleware string, since time.Time) ([]history.Run, error)
}
