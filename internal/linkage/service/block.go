package service

import (
	"strings"

	"concorde-service/internal/linkage/model"
)

const defaultBlock = "default"

// Index — блочный индекс по source: дешёвый ключ → список id строк
// (порядок строк внутри блока сохраняется).
type Index struct {
	strategy model.Blocker
	rules    []model.FieldRule
	blocks   map[string][]int
	numRows  int
}

// blockKey — ключ блока для строки: год (y_2020), иначе первая буква
// автора/названия (i_d), иначе "default". Правила сканируются в порядке
// объявления, берётся первое подходящее — эта зависимость от порядка
// сознательная, «лучшее» поле не выбирается.
func blockKey(t *model.Table, row int, rules []model.FieldRule, source bool) string {
	yearCol := ""
	fallbackCol := ""

	for _, r := range rules {
		col := r.TargetField
		if source {
			col = r.SourceField
		}
		if !t.HasColumn(col) {
			continue
		}
		lc := strings.ToLower(col)
		if strings.Contains(lc, "year") || strings.Contains(lc, "annee") || strings.Contains(lc, "année") {
			yearCol = col
			break
		}
		if fallbackCol == "" {
			if strings.Contains(lc, "auteur") || strings.Contains(lc, "author") {
				fallbackCol = col
			} else if strings.Contains(lc, "titre") || strings.Contains(lc, "title") {
				fallbackCol = col
			}
		}
	}

	if yearCol != "" {
		if v, ok := t.Cell(row, yearCol); ok {
			v = strings.TrimSpace(v)
			if v != "" {
				y := []rune(v)
				if len(y) > 4 {
					y = y[:4]
				}
				if allDigits(y) {
					return "y_" + string(y)
				}
			}
		}
	}

	if fallbackCol != "" {
		if v, ok := t.Cell(row, fallbackCol); ok && strings.TrimSpace(v) != "" {
			n := normalizeText(v, textOpts{lower: true, strip: true, stripDiacritics: true})
			if n != "" {
				return "i_" + string([]rune(n)[0])
			}
		}
	}

	return defaultBlock
}

func allDigits(rs []rune) bool {
	if len(rs) == 0 {
		return false
	}
	for _, r := range rs {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// BuildIndex строит блочный индекс по таблице source.
func BuildIndex(source *model.Table, cfg model.MatchConfig) *Index {
	idx := &Index{
		strategy: cfg.Blocker,
		rules:    cfg.Rules,
		numRows:  source.NumRows(),
	}
	if cfg.Blocker == model.BlockerNone {
		return idx
	}
	idx.blocks = make(map[string][]int)
	for i := 0; i < source.NumRows(); i++ {
		key := blockKey(source, i, cfg.Rules, true)
		idx.blocks[key] = append(idx.blocks[key], i)
	}
	return idx
}

// CandidatesFor — кандидаты source для целевой строки. Блокинг только
// сужает поиск и никогда не отсекает всё: нет блока → блок "default" →
// все строки (fail-open).
func (idx *Index) CandidatesFor(target *model.Table, row int) []int {
	if idx.strategy == model.BlockerNone {
		return idx.allRows()
	}
	key := blockKey(target, row, idx.rules, false)
	if rows, ok := idx.blocks[key]; ok {
		return rows
	}
	if rows, ok := idx.blocks[defaultBlock]; ok {
		return rows
	}
	return idx.allRows()
}

func (idx *Index) allRows() []int {
	out := make([]int, idx.numRows)
	for i := range out {
		out[i] = i
	}
	return out
}
