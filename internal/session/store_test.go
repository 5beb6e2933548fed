package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"concorde-service/internal/linkage/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testSession(t *testing.T) *Session {
	t.Helper()
	cfg, err := model.ParseMatchConfig([]byte(`{"rules":[{"source_field":"titre","target_field":"title"}]}`))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	chosen := 2
	return &Session{
		Config: cfg,
		Source: model.NewTable([]string{"titre"}, [][]string{{"a"}, {"b"}, {"c"}}),
		Target: model.NewTable([]string{"title"}, [][]string{{"a"}}),
		Results: []model.MatchResult{{
			TargetRowID: 0,
			Candidates: []model.MatchCandidate{
				{SourceRowID: 2, Score: 97.5, PerFieldScores: map[string]float64{"titre:title": 97.5}},
			},
			BestScore:         97.5,
			Status:            model.StatusAccepted,
			ChosenSourceRowID: &chosen,
			Explanation:       "Auto-accept score=97.5",
		}},
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	st := newTestStore(t)
	sess := testSession(t)
	if err := st.Create(sess); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("Create did not assign an id")
	}

	got, err := st.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(sess.Results, got.Results); diff != "" {
		t.Errorf("results:\n%s", diff)
	}
	if diff := cmp.Diff(sess.Config, got.Config); diff != "" {
		t.Errorf("config:\n%s", diff)
	}
	if v, ok := got.Source.Cell(1, "titre"); !ok || v != "b" {
		t.Errorf("source cell = %q, %v", v, ok)
	}
	if got.Target.NumRows() != 1 {
		t.Errorf("target rows = %d", got.Target.NumRows())
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at lost")
	}
}

func TestGetMissing(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.Get("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateResults(t *testing.T) {
	st := newTestStore(t)
	sess := testSession(t)
	if err := st.Create(sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated := append([]model.MatchResult(nil), sess.Results...)
	updated[0].Status = model.StatusRejected
	updated[0].ChosenSourceRowID = nil
	updated[0].Explanation = "No match (user)"
	if err := st.UpdateResults(sess.ID, updated); err != nil {
		t.Fatalf("UpdateResults: %v", err)
	}

	got, err := st.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(updated, got.Results); diff != "" {
		t.Errorf("results:\n%s", diff)
	}

	if err := st.UpdateResults("no-such-id", updated); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: err = %v, want ErrNotFound", err)
	}
}

func TestUndoLogLIFO(t *testing.T) {
	st := newTestStore(t)
	prev := 7
	if err := st.PushUndo("s1", 3, nil); err != nil {
		t.Fatalf("PushUndo: %v", err)
	}
	if err := st.PushUndo("s1", 5, &prev); err != nil {
		t.Fatalf("PushUndo: %v", err)
	}
	// записи другой сессии не мешают
	if err := st.PushUndo("s2", 9, nil); err != nil {
		t.Fatalf("PushUndo: %v", err)
	}

	row, pc, ok, err := st.PopUndo("s1")
	if err != nil || !ok {
		t.Fatalf("PopUndo: %v, ok=%v", err, ok)
	}
	if row != 5 || pc == nil || *pc != 7 {
		t.Errorf("first pop = %d, %v", row, pc)
	}

	row, pc, ok, err = st.PopUndo("s1")
	if err != nil || !ok {
		t.Fatalf("PopUndo: %v, ok=%v", err, ok)
	}
	if row != 3 || pc != nil {
		t.Errorf("second pop = %d, %v", row, pc)
	}

	_, _, ok, err = st.PopUndo("s1")
	if err != nil {
		t.Fatalf("PopUndo: %v", err)
	}
	if ok {
		t.Error("empty undo log should report ok=false")
	}

	// s2 нетронута
	row, _, ok, err = st.PopUndo("s2")
	if err != nil || !ok || row != 9 {
		t.Errorf("s2 pop = %d, ok=%v, err=%v", row, ok, err)
	}
}
