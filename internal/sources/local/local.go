// Package local loads change records from the per-version TOML data files
// shipped alongside the tool (e.g. data/php-8.3-changes.toml).
package local

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"mwcheck/internal/core/catalog"
	"mwcheck/internal/core/errors"
)

const sourceID = "local"

type Source struct {
	middleware string
	dataDir    string
}

func New(middleware, dataDir string) *Source {
	return &Source{middleware: strings.ToLower(strings.TrimSpace(middleware)), dataDir: dataDir}
}

func (s *Source) ID() string { return sourceID }

type changeFile struct {
	Changes []rawChange `toml:"changes"`
}

type rawChange struct {
	Type          string `toml:"type"`
	Category      string `toml:"category"`
	Description   string `toml:"description"`
	DescriptionJA string `toml:"description_ja"`
	Pattern       string `toml:"pattern"`
	Replacement   string `toml:"replacement"`
}

// Changes reads the data file for one version. A missing file means the
// catalogue simply has no local data for that version.
func (s *Source) Changes(_ context.Context, version catalog.Version) (catalog.ChangeSet, error) {
	path := filepath.Join(s.dataDir, fmt.Sprintf("%s-%s-changes.toml", s.middleware, version))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("no local change file", "path", path)
			return catalog.ChangeSet{}, nil
		}
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeFileReadError, "read local change file"), errors.CtxPath, path)
	}

	var file changeFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "decode local change file"), errors.CtxPath, path)
	}

	// Records are validated here, at the adapter boundary; the core never
	// sees a partially shaped change.
	set := make(catalog.ChangeSet, 0, len(file.Changes))
	for i, raw := range file.Changes {
		kind, err := catalog.ParseKind(raw.Type)
		if err != nil {
			return nil, errors.Newf(errors.CodeValidationError,
				"%s: changes[%d] has invalid type %q", filepath.Base(path), i, raw.Type)
		}
		if strings.TrimSpace(raw.Description) == "" {
			return nil, errors.Newf(errors.CodeValidationError,
				"%s: changes[%d] is missing a description", filepath.Base(path), i)
		}
		set = append(set, catalog.ChangeRecord{
			IntroducedIn:  version,
			Kind:          kind,
			Category:      strings.ToLower(strings.TrimSpace(raw.Category)),
			Description:   raw.Description,
			DescriptionJA: raw.DescriptionJA,
			Pattern:       raw.Pattern,
			Replacement:   raw.Replacement,
			Source:        sourceID,
			SourceURL:     filepath.Base(path),
		})
	}
	return set, nil
}
