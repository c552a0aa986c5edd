package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mwcheck/internal/core/config"
	"mwcheck/internal/core/report"
)

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const changeData82 = `
[[changes]]
type = "deprecation"
category = "core"
description = "Dynamic properties are deprecated."
pattern = '->\w+\s*='
replacement = "Declare the property."

[[changes]]
type = "breaking"
description = "utf8_encode() was removed in a later release; plan migration."
pattern = 'utf8_encode\('
`

const changeData83 = `
[[changes]]
type = "removed"
description = "The imap extension was unbundled."
pattern = 'imap_open\('
`

// testConfig builds a full config the way Load would, pointed at temp dirs.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	tmp := t.TempDir()

	dataDir := filepath.Join(tmp, "data")
	writeFixture(t, filepath.Join(dataDir, "php-8.2-changes.toml"), changeData82)
	writeFixture(t, filepath.Join(dataDir, "php-8.3-changes.toml"), changeData83)

	root := filepath.Join(tmp, "src")
	writeFixture(t, filepath.Join(root, "user.php"), strings.Join([]string{
		"<?php",
		"class User {",
		"  function load($input) {",
		"    $this->nickname = $input;",
		"    return utf8_encode($input);",
		"  }",
		"}",
	}, "\n"))
	writeFixture(t, filepath.Join(root, "mail.php"), strings.Join([]string{
		"<?php",
		"$box = imap_open($server, $user, $pass);",
	}, "\n"))
	writeFixture(t, filepath.Join(root, "vendor", "lib.php"), "<?php\n$x->y = imap_open(1);\n")

	outDir := filepath.Join(tmp, "out")

	return &config.Config{
		Version: 1,
		Middleware: []config.Middleware{
			{
				Name:     "php",
				Current:  "8.1",
				Target:   "8.3",
				Versions: []string{"8.0", "8.1", "8.2", "8.3"},
				Sources:  []string{"local"},
			},
		},
		Scan: config.Scan{
			Root:           root,
			ContextLines:   2,
			PatternTimeout: 10 * time.Second,
			Exclude: config.Exclude{
				Dirs: []string{"vendor"},
			},
		},
		Output: config.Output{
			Markdown: filepath.Join(outDir, "impact.md"),
			JSON:     filepath.Join(outDir, "impact.json"),
		},
		AI: config.AI{Mode: "none"},
		DB: config.Database{
			Enabled: true,
			Path:    filepath.Join(tmp, "history.db"),
		},
		Sources: config.Sources{
			DataDir:       dataDir,
			RatePerSecond: 100,
			Burst:         10,
		},
	}
}

func TestApp_Run_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Run(context.Background()))

	raw, err := os.ReadFile(cfg.Output.JSON)
	require.NoError(t, err)
	var rep report.Report
	require.NoError(t, json.Unmarshal(raw, &rep))

	assert.Equal(t, 3, rep.Summary.TotalChanges)
	assert.Equal(t, 3, rep.Summary.ChangesWithMatches)
	// user.php matches two changes, mail.php one; vendor/ is excluded.
	assert.Equal(t, 2, rep.Summary.AffectedFiles)
	for _, res := range rep.Results {
		for _, path := range res.AffectedFiles {
			assert.NotContains(t, path, "vendor", "excluded vendor path leaked into results")
		}
	}

	md, err := os.ReadFile(cfg.Output.Markdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "Dynamic properties are deprecated.")

	// The run summary must land in the history store.
	runs, err := a.store.LoadRuns("php", time.Time{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.Summary.TotalMatches, runs[0].TotalMatches)
}

func TestApp_Run_PromptAnnotation(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI = config.AI{Mode: "prompt", MaxSites: 5}
	cfg.DB.Enabled = false

	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	raw, err := os.ReadFile(cfg.Output.JSON)
	if err != nil {
		t.Fatal(err)
	}
	var rep report.Report
	if err := json.Unmarshal(raw, &rep); err != nil {
		t.Fatal(err)
	}

	for _, res := range rep.Results {
		if res.MatchCount > 0 && res.Annotation == "" {
			t.Errorf("matched change %q missing prompt annotation", res.Record.Description)
		}
		if res.MatchCount == 0 && res.Annotation != "" {
			t.Errorf("unmatched change %q must not be annotated", res.Record.Description)
		}
	}
}

func TestApp_Run_InvalidRangeFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Middleware[0].Current = "8.3"
	cfg.Middleware[0].Target = "8.1"
	cfg.DB.Enabled = false

	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if err := a.Run(context.Background()); err == nil {
		t.Fatal("expected error for inverted version range")
	}
}

func TestApp_OutputPath_MultiMiddleware(t *testing.T) {
	cfg := testConfig(t)
	cfg.Middleware = append(cfg.Middleware, config.Middleware{Name: "rails"})
	a := &App{Config: cfg}

	got := a.outputPath(cfg.Middleware[1], filepath.Join("out", "impact.md"))
	want := filepath.Join("out", "rails-impact.md")
	if got != want {
		t.Errorf("outputPath = %q, want %q", got, want)
	}

	cfg.Middleware = cfg.Middleware[:1]
	if got := a.outputPath(cfg.Middleware[0], "impact.md"); got != "impact.md" {
		t.Errorf("single middleware must keep the configured path, got %q", got)
	}
}

func TestApp_Trend(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Run(context.Background()))
	require.NoError(t, a.Run(context.Background()))

	trend, err := a.Trend("php", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, trend.RunCount)
	assert.Zero(t, trend.Points[1].DeltaMatches, "identical runs must have zero delta")
}
