package catalog

import (
	"reflect"
	"testing"

	"mwcheck/internal/core/errors"
)

var phpVersions = []Version{"8.2", "8.3", "8.4", "8.5"}

func TestVersionRange(t *testing.T) {
	tests := []struct {
		name     string
		from, to Version
		want     []Version
		wantCode errors.ErrorCode
	}{
		{name: "strictly after from through to", from: "8.2", to: "8.4", want: []Version{"8.3", "8.4"}},
		{name: "full span", from: "8.2", to: "8.5", want: []Version{"8.3", "8.4", "8.5"}},
		{name: "adjacent", from: "8.4", to: "8.5", want: []Version{"8.5"}},
		{name: "reversed range", from: "8.4", to: "8.2", wantCode: errors.CodeInvalidRange},
		{name: "equal boundaries", from: "8.3", to: "8.3", wantCode: errors.CodeInvalidRange},
		{name: "unknown from", from: "9.9", to: "8.5", wantCode: errors.CodeUnknownVersion},
		{name: "unknown to", from: "8.2", to: "7.4", wantCode: errors.CodeUnknownVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VersionRange(phpVersions, tt.from, tt.to)
			if tt.wantCode != "" {
				if err == nil {
					t.Fatalf("expected %s error, got versions %v", tt.wantCode, got)
				}
				if !errors.IsCode(err, tt.wantCode) {
					t.Fatalf("expected code %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("VersionRange failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func rec(v Version, kind ChangeKind, desc string) ChangeRecord {
	return ChangeRecord{IntroducedIn: v, Kind: kind, Category: "function", Description: desc}
}

func TestAggregate_RangeCorrectness(t *testing.T) {
	sources := []SourceSets{{
		ID: "local",
		ByVersion: map[Version]ChangeSet{
			"8.2": {rec("8.2", KindBreaking, "too early")},
			"8.3": {rec("8.3", KindBreaking, "in range one")},
			"8.4": {rec("8.4", KindDeprecation, "in range two")},
			"8.5": {rec("8.5", KindRemoved, "past to")},
		},
	}}

	got, err := Aggregate(phpVersions, "8.2", "8.4", sources, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(got), got)
	}
	if got[0].IntroducedIn != "8.3" || got[1].IntroducedIn != "8.4" {
		t.Errorf("expected versions 8.3 then 8.4, got %s then %s", got[0].IntroducedIn, got[1].IntroducedIn)
	}
}

func TestAggregate_SourcePriorityOrderPreserved(t *testing.T) {
	sources := []SourceSets{
		{ID: "local", ByVersion: map[Version]ChangeSet{
			"8.3": {rec("8.3", KindBreaking, "from local")},
		}},
		{ID: "upstream", ByVersion: map[Version]ChangeSet{
			"8.3": {rec("8.3", KindBreaking, "from upstream")},
		}},
	}

	got, err := Aggregate(phpVersions, "8.2", "8.3", sources, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Description != "from local" || got[1].Description != "from upstream" {
		t.Errorf("source priority order not preserved: %+v", got)
	}
}

func TestAggregate_DedupFillsEmptyFields(t *testing.T) {
	a := ChangeRecord{
		IntroducedIn: "8.3",
		Kind:         KindDeprecation,
		Category:     "function",
		Description:  "create_function() has been deprecated",
		Pattern:      `\bcreate_function\b`,
		Source:       "upstream",
	}
	b := a
	b.Source = "local"
	b.Replacement = "Use anonymous functions instead"
	b.DescriptionJA = "create_function() は非推奨になりました"
	// Same identity despite different wrapping and case.
	b.Description = "create_function()  HAS been\tdeprecated"

	sources := []SourceSets{
		{ID: "upstream", ByVersion: map[Version]ChangeSet{"8.3": {a}}},
		{ID: "local", ByVersion: map[Version]ChangeSet{"8.3": {b}}},
	}

	got, err := Aggregate(phpVersions, "8.2", "8.3", sources, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 merged record, got %d", len(got))
	}
	merged := got[0]
	if merged.Description != a.Description {
		t.Errorf("identity fields must come from the first-seen record, got %q", merged.Description)
	}
	if merged.Source != "upstream" {
		t.Errorf("expected first-seen source, got %q", merged.Source)
	}
	if merged.Replacement != b.Replacement {
		t.Errorf("expected replacement filled from later source, got %q", merged.Replacement)
	}
	if merged.DescriptionJA != b.DescriptionJA {
		t.Errorf("expected localized description filled from later source, got %q", merged.DescriptionJA)
	}
}

func TestAggregate_PopulatedFieldNeverOverwritten(t *testing.T) {
	a := rec("8.3", KindDeprecation, "something deprecated")
	a.Replacement = "first replacement"
	b := a
	b.Replacement = "second replacement"

	sources := []SourceSets{
		{ID: "one", ByVersion: map[Version]ChangeSet{"8.3": {a}}},
		{ID: "two", ByVersion: map[Version]ChangeSet{"8.3": {b}}},
	}

	got, err := Aggregate(phpVersions, "8.2", "8.3", sources, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 merged record, got %d", len(got))
	}
	if got[0].Replacement != "first replacement" {
		t.Errorf("populated replacement was overwritten: %q", got[0].Replacement)
	}
}

func TestAggregate_KindFilterAfterMerge(t *testing.T) {
	set := ChangeSet{}
	for i := 0; i < 3; i++ {
		set = append(set, rec("8.3", KindDeprecation, "dep "+string(rune('a'+i))))
	}
	for i := 0; i < 5; i++ {
		set = append(set, rec("8.3", KindBreaking, "brk "+string(rune('a'+i))))
	}
	for i := 0; i < 2; i++ {
		set = append(set, rec("8.3", KindNew, "new "+string(rune('a'+i))))
	}

	sources := []SourceSets{{ID: "local", ByVersion: map[Version]ChangeSet{"8.3": set}}}

	filter := KindDeprecation
	got, err := Aggregate(phpVersions, "8.2", "8.3", sources, &filter)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected exactly 3 deprecations, got %d", len(got))
	}
	for _, r := range got {
		if r.Kind != KindDeprecation {
			t.Errorf("filter leaked kind %s", r.Kind)
		}
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	sources := []SourceSets{
		{ID: "local", ByVersion: map[Version]ChangeSet{
			"8.3": {rec("8.3", KindBreaking, "one"), rec("8.3", KindDeprecation, "two")},
			"8.4": {rec("8.4", KindRemoved, "three")},
		}},
	}

	first, err := Aggregate(phpVersions, "8.2", "8.4", sources, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	second, err := Aggregate(phpVersions, "8.2", "8.4", sources, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Aggregate is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestAggregate_DoesNotMutateInputs(t *testing.T) {
	a := rec("8.3", KindDeprecation, "something deprecated")
	b := a
	b.Replacement = "fill me"
	original := a

	sources := []SourceSets{
		{ID: "one", ByVersion: map[Version]ChangeSet{"8.3": {a}}},
		{ID: "two", ByVersion: map[Version]ChangeSet{"8.3": {b}}},
	}

	if _, err := Aggregate(phpVersions, "8.2", "8.3", sources, nil); err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if !reflect.DeepEqual(sources[0].ByVersion["8.3"][0], original) {
		t.Errorf("input change set mutated: %+v", sources[0].ByVersion["8.3"][0])
	}
}

func TestParseKind(t *testing.T) {
	for _, valid := range []string{"deprecation", "Breaking", " removed ", "NEW"} {
		if _, err := ParseKind(valid); err != nil {
			t.Errorf("ParseKind(%q) failed: %v", valid, err)
		}
	}
	if _, err := ParseKind("behavioural"); err == nil {
		t.Error("expected error for unknown kind")
	} else if !errors.IsCode(err, errors.CodeValidationError) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}
