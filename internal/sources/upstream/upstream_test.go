package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mwcheck/internal/core/catalog"
	"mwcheck/internal/shared/util"
)

const sampleUpgrading = `PHP 8.3 UPGRADE NOTES

1. Backward Incompatible Changes

- Core:
- Program execution will now exit with code 255 when an uncaught
  exception reaches the top level.
- The range() function now throws on invalid boundaries.

2. New Features

- Typed class constants were introduced.

3. Deprecated Functionality

- MBString:
- Passing a negative offset to mb_strcut() is deprecated.

4. Removed Extensions and SAPIs

- imap

5. Changed Functions

- highlight_file() output no longer wraps in a table.
`

func TestParseUpgrading(t *testing.T) {
	set := ParseUpgrading(sampleUpgrading, "8.3", "http://example/UPGRADING")

	kinds := map[catalog.ChangeKind]int{}
	for _, rec := range set {
		kinds[rec.Kind]++
		if rec.IntroducedIn != "8.3" {
			t.Errorf("expected version 8.3, got %s", rec.IntroducedIn)
		}
		if rec.Source != "upstream" {
			t.Errorf("expected source upstream, got %s", rec.Source)
		}
	}

	if kinds[catalog.KindBreaking] != 3 {
		t.Errorf("expected 3 breaking records (2 incompatible + 1 changed function), got %d", kinds[catalog.KindBreaking])
	}
	if kinds[catalog.KindNew] != 1 {
		t.Errorf("expected 1 new record, got %d", kinds[catalog.KindNew])
	}
	if kinds[catalog.KindDeprecation] != 1 {
		t.Errorf("expected 1 deprecation record, got %d", kinds[catalog.KindDeprecation])
	}
	// "- imap" is shorter than the noise threshold and must be dropped.
	if kinds[catalog.KindRemoved] != 0 {
		t.Errorf("expected short removed entry to be filtered, got %d", kinds[catalog.KindRemoved])
	}

	var exitChange *catalog.ChangeRecord
	for i := range set {
		if set[i].Category == "core" && set[i].Kind == catalog.KindBreaking {
			exitChange = &set[i]
			break
		}
	}
	if exitChange == nil {
		t.Fatal("expected a core-category breaking change")
	}
	if want := "Program execution will now exit with code 255 when an uncaught exception reaches the top level."; exitChange.Description != want {
		t.Errorf("continuation lines not folded:\nwant %q\ngot  %q", want, exitChange.Description)
	}
}

func TestChanges_FetchAndParse(t *testing.T) {
	var gotPath, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(sampleUpgrading))
	}))
	defer server.Close()

	src := New(server.URL, "mw-upgrade-check/1.0", 5*time.Second, util.NewLimiter(100, 10))
	set, err := src.Changes(context.Background(), "8.3")
	if err != nil {
		t.Fatalf("Changes failed: %v", err)
	}

	if gotPath != "/PHP-8.3/UPGRADING" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if gotAgent != "mw-upgrade-check/1.0" {
		t.Errorf("unexpected user agent %q", gotAgent)
	}
	if len(set) == 0 {
		t.Error("expected parsed records from fetched notes")
	}
}

func TestChanges_MissingBranchIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	src := New(server.URL, "ua", time.Second, nil)
	set, err := src.Changes(context.Background(), "9.9")
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if len(set) != 0 {
		t.Errorf("expected empty set for missing branch, got %d", len(set))
	}
}

func TestChanges_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := New(server.URL, "ua", time.Second, nil).Changes(context.Background(), "8.3"); err == nil {
		t.Error("expected error for 500 response")
	}
}
