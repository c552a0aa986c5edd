package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mwcheck/internal/core/catalog"
	"mwcheck/internal/core/errors"
)

const sampleFile = `
[[changes]]
type = "deprecation"
category = "function"
description = "Calling get_class() without arguments is deprecated"
description_ja = "引数なしの get_class() は非推奨です"
pattern = 'get_class\(\s*\)'
replacement = "Pass the object explicitly"

[[changes]]
type = "new"
category = "syntax"
description = "Typed class constants"
`

func writeDataFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestChanges(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "php-8.3-changes.toml", sampleFile)

	src := New("php", dir)
	if src.ID() != "local" {
		t.Errorf("expected id local, got %s", src.ID())
	}

	set, err := src.Changes(context.Background(), "8.3")
	if err != nil {
		t.Fatalf("Changes failed: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 records, got %d", len(set))
	}

	first := set[0]
	if first.IntroducedIn != "8.3" {
		t.Errorf("expected introduced_in 8.3, got %s", first.IntroducedIn)
	}
	if first.Kind != catalog.KindDeprecation {
		t.Errorf("expected deprecation, got %s", first.Kind)
	}
	if first.Pattern != `get_class\(\s*\)` {
		t.Errorf("unexpected pattern %q", first.Pattern)
	}
	if first.Source != "local" || first.SourceURL != "php-8.3-changes.toml" {
		t.Errorf("unexpected provenance: %q %q", first.Source, first.SourceURL)
	}

	if set[1].Kind != catalog.KindNew || set[1].Pattern != "" {
		t.Errorf("expected pattern-less new record, got %+v", set[1])
	}
}

func TestChanges_MissingFileIsEmpty(t *testing.T) {
	src := New("php", t.TempDir())
	set, err := src.Changes(context.Background(), "8.4")
	if err != nil {
		t.Fatalf("missing data file must not be an error, got %v", err)
	}
	if len(set) != 0 {
		t.Errorf("expected empty set, got %d records", len(set))
	}
}

func TestChanges_InvalidKindRejectedAtBoundary(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "php-8.3-changes.toml", `
[[changes]]
type = "behavioural"
description = "not a valid kind"
`)

	_, err := New("php", dir).Changes(context.Background(), "8.3")
	if err == nil {
		t.Fatal("expected validation error for unknown kind")
	}
	if !errors.IsCode(err, errors.CodeValidationError) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestChanges_MissingDescriptionRejected(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "php-8.3-changes.toml", `
[[changes]]
type = "breaking"
pattern = "foo"
`)

	_, err := New("php", dir).Changes(context.Background(), "8.3")
	if !errors.IsCode(err, errors.CodeValidationError) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}
