package upstream

import (
	"regexp"
	"strings"

	"mwcheck/internal/core/catalog"
)

// sectionKinds maps UPGRADING section headings to change kinds. Headings are
// matched by substring after lowercasing, so "2. New Features" and
// "New Functions" both land on "new".
var sectionKinds = []struct {
	needle string
	kind   catalog.ChangeKind
}{
	{"backward incompatible", catalog.KindBreaking},
	{"changed function", catalog.KindBreaking},
	{"deprecated", catalog.KindDeprecation},
	{"removed", catalog.KindRemoved},
	{"new feature", catalog.KindNew},
	{"new function", catalog.KindNew},
	{"new class", catalog.KindNew},
}

var sectionHeading = regexp.MustCompile(`^\d+\.\s*(.+)$`)

// minDescriptionLen filters list artifacts and bare separators.
const minDescriptionLen = 10

// ParseUpgrading walks the numbered sections of an UPGRADING document and
// turns each top-level bullet into a change record of the section's kind.
// Bullets ending in a colon open a sub-grouping (usually an extension name)
// that becomes the records' category; indented continuation lines are folded
// into the description.
func ParseUpgrading(content string, version catalog.Version, url string) catalog.ChangeSet {
	set := catalog.ChangeSet{}
	var (
		currentKind     catalog.ChangeKind
		haveKind        bool
		currentCategory string
	)

	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if m := sectionHeading.FindStringSubmatch(line); m != nil {
			heading := strings.ToLower(m[1])
			haveKind = false
			currentCategory = ""
			for _, sk := range sectionKinds {
				if strings.Contains(heading, sk.needle) {
					currentKind = sk.kind
					haveKind = true
					break
				}
			}
			continue
		}

		if strings.HasPrefix(line, "- ") && strings.HasSuffix(line, ":") {
			currentCategory = strings.ToLower(strings.TrimSuffix(line[2:], ":"))
			continue
		}

		if haveKind && strings.HasPrefix(line, "- ") {
			description := strings.TrimSpace(line[2:])
			for i+1 < len(lines) && strings.HasPrefix(lines[i+1], "  ") && strings.TrimSpace(lines[i+1]) != "" && !strings.HasPrefix(strings.TrimSpace(lines[i+1]), "- ") {
				i++
				description += " " + strings.TrimSpace(lines[i])
			}
			if len(description) < minDescriptionLen {
				continue
			}
			set = append(set, catalog.ChangeRecord{
				IntroducedIn: version,
				Kind:         currentKind,
				Category:     currentCategory,
				Description:  description,
				Source:       sourceID,
				SourceURL:    url,
			})
		}
	}

	return set
}
