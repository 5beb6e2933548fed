package service

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"concorde-service/internal/linkage/model"
)

// Linker прогоняет каждую целевую строку против кандидатов source и
// классифицирует результат. Строки независимы, поэтому скоринг идёт
// параллельно: у каждого воркера свой диапазон индексов результатов.
type Linker struct {
	cfg model.MatchConfig
	log zerolog.Logger
}

func NewLinker(cfg model.MatchConfig, log zerolog.Logger) *Linker {
	return &Linker{cfg: cfg, log: log}
}

// Run — один MatchResult на каждую целевую строку, в порядке строк.
// Ошибки только от отмены контекста; содержимое данных ошибкой не бывает.
func (l *Linker) Run(ctx context.Context, source, target *model.Table) ([]model.MatchResult, error) {
	idx := BuildIndex(source, l.cfg)

	n := target.NumRows()
	results := make([]model.MatchResult, n)

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, n)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				// граница итерации = одна целевая строка; здесь же отмена
				if ctx.Err() != nil {
					return
				}
				results[i] = l.matchRow(source, target, idx, i)
			}
		}(start, end)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.log.Info().
		Int("target_rows", n).
		Int("source_rows", source.NumRows()).
		Int("workers", workers).
		Msg("linking done")
	return results, nil
}

func (l *Linker) matchRow(source, target *model.Table, idx *Index, targetRow int) model.MatchResult {
	var candidates []model.MatchCandidate
	for _, srcRow := range idx.CandidatesFor(target, targetRow) {
		score, details := scoreRowPair(source, target, srcRow, targetRow, l.cfg.Rules)
		if score < l.cfg.MinScore {
			continue
		}
		candidates = append(candidates, model.MatchCandidate{
			SourceRowID:    srcRow,
			Score:          score,
			PerFieldScores: details,
		})
	}

	// убывание по скору, при равенстве — возрастание source_row_id
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].SourceRowID < candidates[j].SourceRowID
	})
	if len(candidates) > l.cfg.TopK {
		candidates = candidates[:l.cfg.TopK]
	}

	best := 0.0
	if len(candidates) > 0 {
		best = candidates[0].Score
	}
	second := 0.0
	if len(candidates) > 1 {
		second = candidates[1].Score
	}
	// при top_k=1 двух кандидатов не бывает — амбигуитет структурно невозможен
	ambiguous := len(candidates) >= 2 && best-second < l.cfg.AmbiguityDelta

	res := model.MatchResult{
		TargetRowID: targetRow,
		Candidates:  candidates,
		BestScore:   best,
		IsAmbiguous: ambiguous,
	}

	switch {
	case len(candidates) == 0:
		res.Status = model.StatusRejected
		res.Explanation = "No candidates above min_score"
	case best >= l.cfg.AutoAcceptScore && !ambiguous:
		id := candidates[0].SourceRowID
		res.Status = model.StatusAuto
		res.ChosenSourceRowID = &id
		res.Explanation = fmt.Sprintf("Auto-accept score=%.1f", best)
	default:
		// pending покрывает весь остаток: и амбигуитет, и недобор порога
		res.Status = model.StatusPending
		if ambiguous {
			res.Explanation = fmt.Sprintf("Ambiguous (Δ=%.1f)", best-second)
		} else {
			res.Explanation = fmt.Sprintf("Below threshold (score=%.1f)", best)
		}
	}
	return res
}

// Decision — решение пользователя по одной целевой строке.
// nil SourceRowID означает «соответствия нет».
type Decision struct {
	SourceRowID *int
}

// ApplyDecision — единственный переход pending → accepted/rejected.
// Не-pending результаты возвращаются без изменений.
func ApplyDecision(r model.MatchResult, d Decision) model.MatchResult {
	if r.Status != model.StatusPending {
		return r
	}
	if d.SourceRowID != nil {
		id := *d.SourceRowID
		r.Status = model.StatusAccepted
		r.ChosenSourceRowID = &id
		r.Explanation = "User accepted"
	} else {
		r.Status = model.StatusRejected
		r.ChosenSourceRowID = nil
		r.Explanation = "No match (user)"
	}
	return r
}

// ValidateDecisions проверяет, что каждый выбранный source_row_id — реальная
// строка source. nil («соответствия нет») валиден всегда.
func ValidateDecisions(decisions map[int]*int, sourceRows int) error {
	for rowID, src := range decisions {
		if src != nil && (*src < 0 || *src >= sourceRows) {
			return fmt.Errorf("decision for row %d: source_row_id %d out of range [0,%d)", rowID, *src, sourceRows)
		}
	}
	return nil
}

// Resolve применяет решения к результатам, которые всё ещё pending.
// Остальные, как и строки без решения, не трогаются.
func Resolve(results []model.MatchResult, decisions map[int]*int) {
	for i := range results {
		if results[i].Status != model.StatusPending {
			continue
		}
		d, ok := decisions[results[i].TargetRowID]
		if !ok {
			continue
		}
		results[i] = ApplyDecision(results[i], Decision{SourceRowID: d})
	}
}

// Skip — pending → skipped, без выбора источника.
func Skip(results []model.MatchResult, targetRowID int) bool {
	for i := range results {
		if results[i].TargetRowID != targetRowID {
			continue
		}
		if results[i].Status != model.StatusPending {
			return false
		}
		results[i].Status = model.StatusSkipped
		results[i].ChosenSourceRowID = nil
		results[i].Explanation = "User skipped"
		return true
	}
	return false
}

// Undo восстанавливает прежний выбор: nil → снова pending, иначе accepted.
// Текст explanation перезаписывается, а не восстанавливается.
func Undo(results []model.MatchResult, targetRowID int, prevChosen *int) bool {
	for i := range results {
		if results[i].TargetRowID != targetRowID {
			continue
		}
		if prevChosen != nil {
			id := *prevChosen
			results[i].ChosenSourceRowID = &id
			results[i].Status = model.StatusAccepted
		} else {
			results[i].ChosenSourceRowID = nil
			results[i].Status = model.StatusPending
		}
		results[i].Explanation = "Undo"
		return true
	}
	return false
}

// AcceptAuto переводит auto → accepted (фиксация перед экспортом).
func AcceptAuto(results []model.MatchResult) int {
	n := 0
	for i := range results {
		if results[i].Status != model.StatusAuto {
			continue
		}
		results[i].Status = model.StatusAccepted
		results[i].Explanation = "Auto confirmed"
		n++
	}
	return n
}

// BulkAccept принимает все pending с однозначным лучшим кандидатом >= minScore.
func BulkAccept(results []model.MatchResult, minScore float64) int {
	n := 0
	for i := range results {
		r := results[i]
		if r.Status != model.StatusPending || r.IsAmbiguous || len(r.Candidates) == 0 {
			continue
		}
		if r.BestScore < minScore {
			continue
		}
		id := r.Candidates[0].SourceRowID
		results[i].Status = model.StatusAccepted
		results[i].ChosenSourceRowID = &id
		results[i].Explanation = fmt.Sprintf("Bulk accept >= %.1f", minScore)
		n++
	}
	return n
}
