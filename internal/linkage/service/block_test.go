package service

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"concorde-service/internal/linkage/model"
)

func biblioRules() []model.FieldRule {
	return []model.FieldRule{
		{SourceField: "annee", TargetField: "year", Weight: 1, Method: model.MethodExact, Normalize: true},
		{SourceField: "auteur", TargetField: "author", Weight: 1, Method: model.MethodFuzzyRatio, Normalize: true},
	}
}

func TestBlockKeyYear(t *testing.T) {
	src := model.NewTable([]string{"annee", "auteur"}, [][]string{
		{"2020", "Dupont"},
		{"2021", "Martin"},
		{"2020-05", "Durand"}, // first 4 chars are digits
		{"n/a", "Éluard"},     // non-numeric year, no fallback before the year rule
		{"", ""},
	})
	rules := biblioRules()

	wants := []string{"y_2020", "y_2021", "y_2020", "default", "default"}
	for i, want := range wants {
		if got := blockKey(src, i, rules, true); got != want {
			t.Errorf("row %d: blockKey = %q, want %q", i, got, want)
		}
	}
}

func TestBlockKeyInitialFallback(t *testing.T) {
	// author rule comes first, so it wins as fallback when the year is unusable
	rules := []model.FieldRule{
		{SourceField: "auteur", TargetField: "author", Weight: 1, Method: model.MethodFuzzyRatio, Normalize: true},
		{SourceField: "annee", TargetField: "year", Weight: 1, Method: model.MethodExact, Normalize: true},
	}
	src := model.NewTable([]string{"annee", "auteur"}, [][]string{
		{"n/a", "Éluard"},
		{"", "dupont"},
		{"circa", ""},
	})
	wants := []string{"i_e", "i_d", "default"}
	for i, want := range wants {
		if got := blockKey(src, i, rules, true); got != want {
			t.Errorf("row %d: blockKey = %q, want %q", i, got, want)
		}
	}
}

func TestCandidatesForBlocked(t *testing.T) {
	src := model.NewTable([]string{"annee", "auteur"}, [][]string{
		{"2020", "Dupont"},
		{"2021", "Martin"},
		{"2020", "Durand"},
	})
	cfg := model.MatchConfig{Rules: biblioRules(), TopK: 5, Blocker: model.BlockerYearOrInitial}
	idx := BuildIndex(src, cfg)

	tgt := model.NewTable([]string{"year", "author"}, [][]string{
		{"2020", "Dupond"},
		{"1999", "Nobody"}, // no such block, no default bucket -> all rows
	})

	if got := idx.CandidatesFor(tgt, 0); !cmp.Equal([]int{0, 2}, got) {
		t.Errorf("year 2020 candidates = %v, want [0 2]", got)
	}
	// fail-open: blocking must never silently unmatch a target row
	if got := idx.CandidatesFor(tgt, 1); !cmp.Equal([]int{0, 1, 2}, got) {
		t.Errorf("unblocked candidates = %v, want all rows", got)
	}
}

func TestCandidatesForDefaultBucket(t *testing.T) {
	src := model.NewTable([]string{"annee", "auteur"}, [][]string{
		{"2020", "Dupont"},
		{"n/a", "x"}, // lands in the default bucket
	})
	cfg := model.MatchConfig{Rules: biblioRules(), TopK: 5, Blocker: model.BlockerYearOrInitial}
	idx := BuildIndex(src, cfg)

	tgt := model.NewTable([]string{"year"}, [][]string{{"1999"}})
	if got := idx.CandidatesFor(tgt, 0); !cmp.Equal([]int{1}, got) {
		t.Errorf("candidates = %v, want default bucket [1]", got)
	}
}

func TestCandidatesForNoBlocking(t *testing.T) {
	src := model.NewTable([]string{"annee"}, [][]string{{"2020"}, {"2021"}, {"2022"}})
	cfg := model.MatchConfig{Rules: biblioRules(), TopK: 5, Blocker: model.BlockerNone}
	idx := BuildIndex(src, cfg)

	tgt := model.NewTable([]string{"year"}, [][]string{{"2020"}})
	if got := idx.CandidatesFor(tgt, 0); !cmp.Equal([]int{0, 1, 2}, got) {
		t.Errorf("none strategy candidates = %v, want all rows", got)
	}
}
