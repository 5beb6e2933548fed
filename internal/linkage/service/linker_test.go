package service

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"concorde-service/internal/linkage/model"
)

func testConfig(rules ...model.FieldRule) model.MatchConfig {
	return model.MatchConfig{
		Rules:           rules,
		MinScore:        0,
		AutoAcceptScore: 95,
		TopK:            5,
		AmbiguityDelta:  5,
		Blocker:         model.BlockerNone,
	}
}

func runLinker(t *testing.T, cfg model.MatchConfig, source, target *model.Table) []model.MatchResult {
	t.Helper()
	results, err := NewLinker(cfg, zerolog.Nop()).Run(context.Background(), source, target)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != target.NumRows() {
		t.Fatalf("got %d results for %d target rows", len(results), target.NumRows())
	}
	return results
}

func TestLinkerAutoAccept(t *testing.T) {
	source := model.NewTable([]string{"author", "year"}, [][]string{{"Dupont", "2020"}})
	target := model.NewTable([]string{"author", "year"}, [][]string{{"Dupont", "2020"}})
	cfg := testConfig(
		model.FieldRule{SourceField: "author", TargetField: "author", Weight: 1, Method: model.MethodExact, Normalize: true},
		model.FieldRule{SourceField: "year", TargetField: "year", Weight: 1, Method: model.MethodExact, Normalize: true},
	)

	res := runLinker(t, cfg, source, target)[0]
	if res.BestScore != 100 {
		t.Errorf("best score = %g, want 100", res.BestScore)
	}
	if res.Status != model.StatusAuto {
		t.Errorf("status = %s, want auto", res.Status)
	}
	if res.ChosenSourceRowID == nil || *res.ChosenSourceRowID != 0 {
		t.Errorf("chosen = %v, want 0", res.ChosenSourceRowID)
	}
}

func TestLinkerBelowThreshold(t *testing.T) {
	source := model.NewTable([]string{"author"}, [][]string{{"Martin"}})
	target := model.NewTable([]string{"author"}, [][]string{{"Martn"}})
	cfg := testConfig(fuzzyRule("author", "author"))

	res := runLinker(t, cfg, source, target)[0]
	if res.BestScore <= 80 || res.BestScore >= 95 {
		t.Errorf("best score = %g, want in (80,95)", res.BestScore)
	}
	if res.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", res.Status)
	}
	if res.ChosenSourceRowID != nil {
		t.Errorf("pending result must not have a chosen row")
	}
	if !strings.HasPrefix(res.Explanation, "Below threshold") {
		t.Errorf("explanation = %q, want below-threshold cause", res.Explanation)
	}
}

func TestLinkerAmbiguous(t *testing.T) {
	base := strings.Repeat("a", 50)
	// scores 90 and 88 against the target: delta 2 < ambiguity_delta 5
	source := model.NewTable([]string{"title"}, [][]string{
		{strings.Repeat("a", 45) + "bbbbb"},
		{strings.Repeat("a", 44) + "bbbbbb"},
	})
	target := model.NewTable([]string{"title"}, [][]string{{base}})
	cfg := testConfig(fuzzyRule("title", "title"))

	res := runLinker(t, cfg, source, target)[0]
	if !res.IsAmbiguous {
		t.Fatalf("want ambiguous result, got %+v", res)
	}
	if res.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", res.Status)
	}
	if !strings.Contains(res.Explanation, "Δ=2.0") {
		t.Errorf("explanation = %q, want delta 2.0", res.Explanation)
	}
}

func TestLinkerRejected(t *testing.T) {
	source := model.NewTable([]string{"author"}, [][]string{{"Zebra"}})
	target := model.NewTable([]string{"author"}, [][]string{{"Martin"}})
	cfg := testConfig(fuzzyRule("author", "author"))
	cfg.MinScore = 60

	res := runLinker(t, cfg, source, target)[0]
	if res.Status != model.StatusRejected {
		t.Errorf("status = %s, want rejected", res.Status)
	}
	if len(res.Candidates) != 0 {
		t.Errorf("rejected result has %d candidates, want 0", len(res.Candidates))
	}
	if res.Explanation != "No candidates above min_score" {
		t.Errorf("explanation = %q", res.Explanation)
	}
}

func TestLinkerTopKAndTies(t *testing.T) {
	// three identical sources: ordering falls back to ascending row id
	source := model.NewTable([]string{"author"}, [][]string{{"Dupont"}, {"Dupont"}, {"Dupont"}})
	target := model.NewTable([]string{"author"}, [][]string{{"Dupont"}})
	cfg := testConfig(fuzzyRule("author", "author"))
	cfg.TopK = 2

	res := runLinker(t, cfg, source, target)[0]
	if len(res.Candidates) != 2 {
		t.Fatalf("got %d candidates, want top_k=2", len(res.Candidates))
	}
	if res.Candidates[0].SourceRowID != 0 || res.Candidates[1].SourceRowID != 1 {
		t.Errorf("tie order = [%d %d], want [0 1]", res.Candidates[0].SourceRowID, res.Candidates[1].SourceRowID)
	}
	for i := 1; i < len(res.Candidates); i++ {
		if res.Candidates[i].Score > res.Candidates[i-1].Score {
			t.Error("candidates are not sorted by descending score")
		}
	}
}

func TestLinkerTopKOneNeverAmbiguous(t *testing.T) {
	source := model.NewTable([]string{"author"}, [][]string{{"Dupont"}, {"Dupont"}})
	target := model.NewTable([]string{"author"}, [][]string{{"Dupont"}})
	cfg := testConfig(fuzzyRule("author", "author"))
	cfg.TopK = 1

	res := runLinker(t, cfg, source, target)[0]
	if res.IsAmbiguous {
		t.Error("top_k=1 must make ambiguity structurally impossible")
	}
	if res.Status != model.StatusAuto {
		t.Errorf("status = %s, want auto", res.Status)
	}
}

func TestLinkerEmptyInputs(t *testing.T) {
	cfg := testConfig(fuzzyRule("author", "author"))

	empty := model.NewTable([]string{"author"}, nil)
	target := model.NewTable([]string{"author"}, [][]string{{"Martin"}})

	res := runLinker(t, cfg, empty, target)
	if res[0].Status != model.StatusRejected {
		t.Errorf("empty source: status = %s, want rejected", res[0].Status)
	}
	if got := runLinker(t, cfg, target, empty); len(got) != 0 {
		t.Errorf("empty target: got %d results, want 0", len(got))
	}
}

func TestLinkerCancellation(t *testing.T) {
	source := model.NewTable([]string{"author"}, [][]string{{"Dupont"}})
	target := model.NewTable([]string{"author"}, [][]string{{"Dupont"}})
	cfg := testConfig(fuzzyRule("author", "author"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLinker(cfg, zerolog.Nop()).Run(ctx, source, target); err == nil {
		t.Error("cancelled context must surface an error")
	}
}

func pendingResult(targetRowID int, candidates ...model.MatchCandidate) model.MatchResult {
	best := 0.0
	if len(candidates) > 0 {
		best = candidates[0].Score
	}
	return model.MatchResult{
		TargetRowID: targetRowID,
		Candidates:  candidates,
		BestScore:   best,
		Status:      model.StatusPending,
	}
}

func TestResolve(t *testing.T) {
	seven := 7
	auto := 3
	results := []model.MatchResult{
		pendingResult(0, model.MatchCandidate{SourceRowID: 7, Score: 90}),
		pendingResult(1, model.MatchCandidate{SourceRowID: 2, Score: 85}),
		{TargetRowID: 2, Status: model.StatusAuto, ChosenSourceRowID: &auto, BestScore: 99},
		pendingResult(3),
	}

	Resolve(results, map[int]*int{
		0: &seven,
		1: nil,
		2: &seven, // not pending: must stay untouched
	})

	if results[0].Status != model.StatusAccepted || *results[0].ChosenSourceRowID != 7 {
		t.Errorf("row 0: %+v, want accepted with source 7", results[0])
	}
	if results[1].Status != model.StatusRejected || results[1].ChosenSourceRowID != nil {
		t.Errorf("row 1: %+v, want rejected without source", results[1])
	}
	if results[2].Status != model.StatusAuto || *results[2].ChosenSourceRowID != 3 {
		t.Errorf("row 2 (auto) must be untouched, got %+v", results[2])
	}
	if results[3].Status != model.StatusPending {
		t.Errorf("row 3 had no decision and must stay pending, got %s", results[3].Status)
	}
}

func TestValidateDecisions(t *testing.T) {
	two := 2
	high := 999
	neg := -1

	if err := ValidateDecisions(map[int]*int{0: &two, 1: nil}, 3); err != nil {
		t.Errorf("valid decisions rejected: %v", err)
	}
	if err := ValidateDecisions(map[int]*int{0: &high}, 3); err == nil {
		t.Error("source_row_id beyond the source table must be rejected")
	}
	if err := ValidateDecisions(map[int]*int{0: &neg}, 3); err == nil {
		t.Error("negative source_row_id must be rejected")
	}
	if err := ValidateDecisions(nil, 0); err != nil {
		t.Errorf("empty decisions: %v", err)
	}
}

func TestSkipAndUndo(t *testing.T) {
	results := []model.MatchResult{pendingResult(0, model.MatchCandidate{SourceRowID: 1, Score: 70})}

	if !Skip(results, 0) {
		t.Fatal("skip on pending row must succeed")
	}
	if results[0].Status != model.StatusSkipped {
		t.Errorf("status = %s, want skipped", results[0].Status)
	}
	if Skip(results, 0) {
		t.Error("skip on a non-pending row must be refused")
	}

	// undo back to pending
	if !Undo(results, 0, nil) {
		t.Fatal("undo must find the row")
	}
	if results[0].Status != model.StatusPending || results[0].ChosenSourceRowID != nil {
		t.Errorf("undo(nil): %+v, want pending without source", results[0])
	}

	// undo to a concrete previous choice
	five := 5
	Undo(results, 0, &five)
	if results[0].Status != model.StatusAccepted || *results[0].ChosenSourceRowID != 5 {
		t.Errorf("undo(5): %+v, want accepted with source 5", results[0])
	}
}

func TestBulkOperations(t *testing.T) {
	chosen := 1
	results := []model.MatchResult{
		pendingResult(0, model.MatchCandidate{SourceRowID: 4, Score: 92}),
		pendingResult(1, model.MatchCandidate{SourceRowID: 5, Score: 60}),
		{TargetRowID: 2, Status: model.StatusAuto, ChosenSourceRowID: &chosen, BestScore: 99},
	}
	results[0].IsAmbiguous = false

	if n := BulkAccept(results, 90); n != 1 {
		t.Errorf("BulkAccept accepted %d rows, want 1", n)
	}
	if results[0].Status != model.StatusAccepted || *results[0].ChosenSourceRowID != 4 {
		t.Errorf("row 0: %+v, want accepted with source 4", results[0])
	}
	if results[1].Status != model.StatusPending {
		t.Errorf("row 1 below bulk threshold must stay pending")
	}

	if n := AcceptAuto(results); n != 1 {
		t.Errorf("AcceptAuto converted %d rows, want 1", n)
	}
	if results[2].Status != model.StatusAccepted {
		t.Errorf("row 2: %s, want accepted", results[2].Status)
	}
}
