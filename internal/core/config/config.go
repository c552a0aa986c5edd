package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"mwcheck/internal/core/catalog"
	"mwcheck/internal/core/scan"
)

type Config struct {
	Version    int          `toml:"version"`
	Middleware []Middleware `toml:"middleware"`
	Scan       Scan         `toml:"scan"`
	Output     Output       `toml:"output"`
	AI         AI           `toml:"ai"`
	DB         Database     `toml:"db"`
	Watch      Watch        `toml:"watch"`
	Sources    Sources      `toml:"sources"`
	Telemetry  Telemetry    `toml:"telemetry"`
}

type Middleware struct {
	Name       string   `toml:"name"`
	Current    string   `toml:"current"`
	Target     string   `toml:"target"`
	Versions   []string `toml:"versions"`
	Sources    []string `toml:"sources"`
	KindFilter string   `toml:"kind_filter"`
}

type Scan struct {
	Root           string        `toml:"root"`
	ContextLines   int           `toml:"context_lines"`
	Workers        int           `toml:"workers"`
	PatternTimeout time.Duration `toml:"pattern_timeout"`
	Exclude        Exclude       `toml:"exclude"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Output struct {
	Markdown string `toml:"markdown"`
	JSON     string `toml:"json"`
}

type AI struct {
	Mode     string `toml:"mode"`
	Model    string `toml:"model"`
	MaxSites int    `toml:"max_sites"`
}

type Database struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Watch struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
}

type Sources struct {
	DataDir          string        `toml:"data_dir"`
	UserAgent        string        `toml:"user_agent"`
	RequestTimeout   time.Duration `toml:"request_timeout"`
	RatePerSecond    float64       `toml:"rate_per_second"`
	Burst            int           `toml:"burst"`
	UpstreamBaseURL  string        `toml:"upstream_base_url"`
	CommunityBaseURL string        `toml:"community_base_url"`
}

type Telemetry struct {
	OTLPEndpoint string `toml:"otlp_endpoint"`
	MetricsAddr  string `toml:"metrics_addr"`
}

// knownSources is the closed set of source identifiers a middleware entry
// may list, in the default priority order.
var knownSources = []string{"local", "upstream", "community"}

// defaultVersionSequences seeds the ordered version list for middlewares the
// tool ships data for. Anything else must declare versions explicitly.
var defaultVersionSequences = map[string][]string{
	"php": {"7.4", "8.0", "8.1", "8.2", "8.3", "8.4", "8.5"},
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, err
	}

	applyDefaults(&cfg, md)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateMiddleware(&cfg); err != nil {
		return nil, err
	}
	if err := validateScan(&cfg); err != nil {
		return nil, err
	}
	if err := validateAI(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Scan.Root) == "" {
		cfg.Scan.Root = "."
	}
	// Distinguish an absent key from an explicit zero; context_lines = 0
	// is a valid request for bare matches.
	if !md.IsDefined("scan", "context_lines") {
		cfg.Scan.ContextLines = scan.DefaultContextLines
	}
	if cfg.Scan.PatternTimeout <= 0 {
		cfg.Scan.PatternTimeout = scan.DefaultPatternTimeout
	}
	if len(cfg.Scan.Exclude.Dirs) == 0 {
		cfg.Scan.Exclude.Dirs = scan.DefaultExcludedDirs()
	}

	if strings.TrimSpace(cfg.Output.Markdown) == "" && strings.TrimSpace(cfg.Output.JSON) == "" {
		cfg.Output.Markdown = "impact_report.md"
	}

	if strings.TrimSpace(cfg.AI.Mode) == "" {
		cfg.AI.Mode = "none"
	}
	if strings.TrimSpace(cfg.AI.Model) == "" {
		cfg.AI.Model = "claude-sonnet-4-20250514"
	}
	if cfg.AI.MaxSites <= 0 {
		cfg.AI.MaxSites = 10
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "mwcheck.db"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	if strings.TrimSpace(cfg.Sources.DataDir) == "" {
		cfg.Sources.DataDir = "data"
	}
	if strings.TrimSpace(cfg.Sources.UserAgent) == "" {
		cfg.Sources.UserAgent = "mw-upgrade-check/1.0"
	}
	if cfg.Sources.RequestTimeout <= 0 {
		cfg.Sources.RequestTimeout = 30 * time.Second
	}
	if cfg.Sources.RatePerSecond <= 0 {
		cfg.Sources.RatePerSecond = 2
	}
	if cfg.Sources.Burst <= 0 {
		cfg.Sources.Burst = 1
	}
	if strings.TrimSpace(cfg.Sources.UpstreamBaseURL) == "" {
		cfg.Sources.UpstreamBaseURL = "https://raw.githubusercontent.com/php/php-src"
	}
	if strings.TrimSpace(cfg.Sources.CommunityBaseURL) == "" {
		cfg.Sources.CommunityBaseURL = "https://php.watch/versions"
	}

	for i := range cfg.Middleware {
		mw := &cfg.Middleware[i]
		if len(mw.Versions) == 0 {
			if seq, ok := defaultVersionSequences[strings.ToLower(strings.TrimSpace(mw.Name))]; ok {
				mw.Versions = append([]string(nil), seq...)
			}
		}
		if len(mw.Sources) == 0 {
			mw.Sources = append([]string(nil), knownSources...)
		}
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", cfg.Version)
	}
	if cfg.Version > 1 {
		return fmt.Errorf("unsupported config version %d; only version 1 is supported", cfg.Version)
	}
	return nil
}

func validateMiddleware(cfg *Config) error {
	if len(cfg.Middleware) == 0 {
		return fmt.Errorf("at least one [[middleware]] entry is required")
	}

	seen := make(map[string]bool, len(cfg.Middleware))
	for i, mw := range cfg.Middleware {
		ref := fmt.Sprintf("middleware[%d]", i)
		name := strings.ToLower(strings.TrimSpace(mw.Name))
		if name == "" {
			return fmt.Errorf("%s.name must not be empty", ref)
		}
		if seen[name] {
			return fmt.Errorf("duplicate middleware entry %q", name)
		}
		seen[name] = true

		if strings.TrimSpace(mw.Current) == "" || strings.TrimSpace(mw.Target) == "" {
			return fmt.Errorf("%s (%s) must set both current and target versions", ref, name)
		}
		if len(mw.Versions) == 0 {
			return fmt.Errorf("%s (%s) has no built-in version sequence; set versions explicitly", ref, name)
		}

		known := make(map[string]bool, len(mw.Versions))
		for _, v := range mw.Versions {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%s.versions must not include empty values", ref)
			}
			if known[v] {
				return fmt.Errorf("%s.versions repeats %q", ref, v)
			}
			known[v] = true
		}
		if !known[mw.Current] {
			return fmt.Errorf("%s.current %q is not in the version sequence", ref, mw.Current)
		}
		if !known[mw.Target] {
			return fmt.Errorf("%s.target %q is not in the version sequence", ref, mw.Target)
		}

		for _, src := range mw.Sources {
			if !isKnownSource(src) {
				return fmt.Errorf("%s.sources contains unknown source %q (known: %s)",
					ref, src, strings.Join(knownSources, ", "))
			}
		}

		// An unrecognized kind fails here, at load, not silently inside the
		// aggregation core.
		if strings.TrimSpace(mw.KindFilter) != "" {
			if _, err := catalog.ParseKind(mw.KindFilter); err != nil {
				return fmt.Errorf("%s.kind_filter: %w", ref, err)
			}
		}
	}
	return nil
}

func validateScan(cfg *Config) error {
	if cfg.Scan.ContextLines < 0 {
		return fmt.Errorf("scan.context_lines must be >= 0, got %d", cfg.Scan.ContextLines)
	}
	if cfg.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must be >= 0, got %d", cfg.Scan.Workers)
	}
	return nil
}

func validateAI(cfg *Config) error {
	mode := strings.ToLower(strings.TrimSpace(cfg.AI.Mode))
	switch mode {
	case "none", "api", "prompt":
		return nil
	}
	return fmt.Errorf("ai.mode must be one of: none, api, prompt")
}

func isKnownSource(id string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, known := range knownSources {
		if id == known {
			return true
		}
	}
	return false
}

// KindFilterOf returns the parsed kind filter of a middleware entry, nil when
// unset. Load already validated the value.
func (m Middleware) KindFilterOf() *catalog.ChangeKind {
	raw := strings.TrimSpace(m.KindFilter)
	if raw == "" {
		return nil
	}
	kind, err := catalog.ParseKind(raw)
	if err != nil {
		return nil
	}
	return &kind
}

// VersionSequence converts the configured version list to catalog versions.
func (m Middleware) VersionSequence() []catalog.Version {
	out := make([]catalog.Version, 0, len(m.Versions))
	for _, v := range m.Versions {
		out = append(out, catalog.Version(v))
	}
	return out
}
