package catalog

import (
	"mwcheck/internal/core/errors"
)

// VersionRange returns the versions strictly after from, up to and including
// to, in the order of the supplied sequence. Both boundaries must appear in
// the sequence and from must precede to.
func VersionRange(ordered []Version, from, to Version) ([]Version, error) {
	fromIdx, toIdx := -1, -1
	for i, v := range ordered {
		if v == from {
			fromIdx = i
		}
		if v == to {
			toIdx = i
		}
	}
	if fromIdx == -1 {
		return nil, errors.Newf(errors.CodeUnknownVersion, "version %q is not in the known version sequence", from)
	}
	if toIdx == -1 {
		return nil, errors.Newf(errors.CodeUnknownVersion, "version %q is not in the known version sequence", to)
	}
	if fromIdx >= toIdx {
		return nil, errors.Newf(errors.CodeInvalidRange, "from version %q must precede to version %q", from, to)
	}

	out := make([]Version, toIdx-fromIdx)
	copy(out, ordered[fromIdx+1:toIdx+1])
	return out, nil
}

// Aggregate merges the change sets of every version strictly after from up
// to and including to, visiting sources in priority order, then deduplicates
// by identity key and optionally filters by kind.
//
// Dedup is stable: the first occurrence of a key fixes its position in the
// output. Later duplicates only fill fields the first occurrence left empty;
// a populated field is never overwritten. Filtering happens after the merge
// (merge, then filter), so dedup accounting always covers the full universe.
//
// Pure function: inputs are never mutated, the result is freshly allocated.
func Aggregate(ordered []Version, from, to Version, sources []SourceSets, kindFilter *ChangeKind) ([]ChangeRecord, error) {
	versions, err := VersionRange(ordered, from, to)
	if err != nil {
		return nil, err
	}

	merged := make([]ChangeRecord, 0)
	seen := make(map[identityKey]int)

	for _, version := range versions {
		for _, source := range sources {
			for _, rec := range source.ByVersion[version] {
				// Missing data per source/version is not an error; absent map
				// entries simply contribute nothing.
				key := keyOf(rec)
				idx, dup := seen[key]
				if !dup {
					seen[key] = len(merged)
					merged = append(merged, rec)
					continue
				}
				fillEmptyFields(&merged[idx], rec)
			}
		}
	}

	if kindFilter == nil {
		return merged, nil
	}

	filtered := make([]ChangeRecord, 0, len(merged))
	for _, rec := range merged {
		if rec.Kind == *kindFilter {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// fillEmptyFields copies non-empty fields of later into empty fields of
// first. Identity fields are equal by construction, so only the remediation
// and annotation fields can differ.
func fillEmptyFields(first *ChangeRecord, later ChangeRecord) {
	if first.Replacement == "" && later.Replacement != "" {
		first.Replacement = later.Replacement
	}
	if first.DescriptionJA == "" && later.DescriptionJA != "" {
		first.DescriptionJA = later.DescriptionJA
	}
	if first.SourceURL == "" && later.SourceURL != "" {
		first.SourceURL = later.SourceURL
	}
}
