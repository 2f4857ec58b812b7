package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"squadbot/internal/model"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		filters []model.Filter
		want    bool
	}{
		{
			name:    "no filters passes everything",
			item:    Item{Title: "A new issue for 'Camelot-Unchained'", Body: "https://github.com/csegames/cu/issues/1"},
			filters: nil,
			want:    true,
		},
		{
			name: "include word matches",
			item: Item{Title: "New commit to 'Camelot-Unchained' by tyrion", Body: "Fix crafting crash"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "crafting"},
			},
			want: true,
		},
		{
			name: "include word no match",
			item: Item{Title: "New commit to 'Camelot-Unchained' by tyrion", Body: "Update readme"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "crafting"},
			},
			want: false,
		},
		{
			name: "include is case insensitive",
			item: Item{Title: "CRAFTING overhaul"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "crafting"},
			},
			want: true,
		},
		{
			name: "exclude word blocks match",
			item: Item{Title: "An existing issue for 'cu-build' has been updated by bot", Body: ""},
			filters: []model.Filter{
				{Kind: model.FilterExclude, Scope: model.ScopeAll, Value: "cu-build"},
			},
			want: false,
		},
		{
			name: "include + exclude: both match, exclude wins",
			item: Item{Title: "crafting wip", Body: "do not merge"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "crafting"},
				{Kind: model.FilterExclude, Scope: model.ScopeAll, Value: "wip"},
			},
			want: false,
		},
		{
			name: "multiple includes OR logic: second matches",
			item: Item{Title: "Audio mixer rewrite"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "crafting"},
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "audio"},
			},
			want: true,
		},
		{
			name: "regex include matches",
			item: Item{Title: "Bump version to v0.4.12"},
			filters: []model.Filter{
				{Kind: model.FilterIncludeRe, Scope: model.ScopeTitle, Value: `v\d+\.\d+`},
			},
			want: true,
		},
		{
			name: "regex exclude blocks",
			item: Item{Title: "Merge branch 'master' into hotfix"},
			filters: []model.Filter{
				{Kind: model.FilterExcludeRe, Scope: model.ScopeTitle, Value: "^merge branch"},
			},
			want: false,
		},
		{
			name: "scope title: word only in body does not match",
			item: Item{Title: "Release notes", Body: "crafting update"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeTitle, Value: "crafting"},
			},
			want: false,
		},
		{
			name: "scope content: word in body matches",
			item: Item{Title: "Release notes", Body: "crafting update"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeContent, Value: "crafting"},
			},
			want: true,
		},
		{
			name: "exclude scope content: word in title is not excluded",
			item: Item{Title: "wip: crafting", Body: "ready for review"},
			filters: []model.Filter{
				{Kind: model.FilterExclude, Scope: model.ScopeContent, Value: "wip"},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.filters)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			got := e.Match(tt.item)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Match() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewRejectsInvalidRegex(t *testing.T) {
	_, err := New([]model.Filter{{Kind: model.FilterIncludeRe, Scope: model.ScopeAll, Value: "[invalid"}})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestNilEngineMatches(t *testing.T) {
	var e *Engine
	if !e.Match(Item{Title: "anything"}) {
		t.Error("nil engine must pass everything")
	}
}

func TestValidateRegex(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		wantErr bool
	}{
		{name: "valid simple", pattern: "hello", wantErr: false},
		{name: "valid alternation", pattern: "crafting|audio|ui", wantErr: false},
		{name: "invalid unclosed bracket", pattern: "[invalid", wantErr: true},
		{name: "invalid bad repetition", pattern: "*bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegex(tt.pattern)
			gotErr := err != nil
			if diff := cmp.Diff(tt.wantErr, gotErr); diff != "" {
				t.Errorf("ValidateRegex() error mismatch (-want +got):\n%s\nerr: %v", diff, err)
			}
		})
	}
}
