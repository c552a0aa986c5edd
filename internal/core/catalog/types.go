// Package catalog holds the middleware change catalogue: the records that
// describe behavioral differences between versions, and the aggregation that
// merges them across versions and sources.
package catalog

import (
	"strings"

	"mwcheck/internal/core/errors"
)

// Version is an opaque identifier ("8.2", "8.5"). Ordering is defined by the
// externally supplied version sequence, never by parsing the string.
type Version string

// ChangeKind classifies a change record. The set is closed; unknown values
// are rejected at the source-adapter and config boundaries.
type ChangeKind string

const (
	KindDeprecation ChangeKind = "deprecation"
	KindBreaking    ChangeKind = "breaking"
	KindRemoved     ChangeKind = "removed"
	KindNew         ChangeKind = "new"
)

// Kinds lists every valid change kind in display order.
func Kinds() []ChangeKind {
	return []ChangeKind{KindBreaking, KindDeprecation, KindRemoved, KindNew}
}

// ParseKind validates a raw kind string.
func ParseKind(raw string) (ChangeKind, error) {
	kind := ChangeKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case KindDeprecation, KindBreaking, KindRemoved, KindNew:
		return kind, nil
	}
	return "", errors.Newf(errors.CodeValidationError, "unknown change kind %q", raw)
}

// ChangeRecord is one documented behavioral difference between two versions.
type ChangeRecord struct {
	IntroducedIn  Version    `json:"introduced_in" toml:"-"`
	Kind          ChangeKind `json:"kind" toml:"type"`
	Category      string     `json:"category,omitempty" toml:"category"`
	Description   string     `json:"description" toml:"description"`
	DescriptionJA string     `json:"description_ja,omitempty" toml:"description_ja"`
	Pattern       string     `json:"pattern,omitempty" toml:"pattern"`
	Replacement   string     `json:"replacement,omitempty" toml:"replacement"`
	Source        string     `json:"source,omitempty" toml:"-"`
	SourceURL     string     `json:"source_url,omitempty" toml:"-"`
}

// ChangeSet is the ordered sequence of records one source loaded for a
// single version. Immutable once loaded.
type ChangeSet []ChangeRecord

// SourceSets pairs a source identifier with the change sets it loaded, keyed
// by version. Order of SourceSets values passed to Aggregate is the source
// priority order.
type SourceSets struct {
	ID        string
	ByVersion map[Version]ChangeSet
}

// identityKey is the dedup key: two records from different sources with the
// same key describe the same change.
type identityKey struct {
	introducedIn Version
	kind         ChangeKind
	category     string
	pattern      string
	description  string
}

func keyOf(rec ChangeRecord) identityKey {
	return identityKey{
		introducedIn: rec.IntroducedIn,
		kind:         rec.Kind,
		category:     strings.ToLower(strings.TrimSpace(rec.Category)),
		pattern:      strings.TrimSpace(rec.Pattern),
		description:  normalizeDescription(rec.Description),
	}
}

// normalizeDescription lowercases and collapses interior whitespace so that
// the same sentence lifted from two sources with different wrapping compares
// equal.
func normalizeDescription(desc string) string {
	return strings.Join(strings.Fields(strings.ToLower(desc)), " ")
}
