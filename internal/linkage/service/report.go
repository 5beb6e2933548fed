package service

import (
	"fmt"
	"strconv"
	"time"

	"concorde-service/internal/linkage/model"
)

const Version = "1.2.0"

// Summary — сводка по результатам матчинга.
type Summary struct {
	TargetRows int `json:"target_rows"`
	Auto       int `json:"auto"`
	Accepted   int `json:"accepted"`
	Rejected   int `json:"rejected"`
	Pending    int `json:"pending"`
	Ambiguous  int `json:"ambiguous"`
	Skipped    int `json:"skipped"`
}

func Summarize(results []model.MatchResult) Summary {
	s := Summary{TargetRows: len(results)}
	for _, r := range results {
		switch r.Status {
		case model.StatusAuto:
			s.Auto++
		case model.StatusAccepted:
			s.Accepted++
		case model.StatusRejected:
			s.Rejected++
		case model.StatusPending:
			s.Pending++
		case model.StatusSkipped:
			s.Skipped++
		}
		if r.IsAmbiguous {
			s.Ambiguous++
		}
	}
	return s
}

// MappingRecords — плоский отчёт соответствий с шапкой. Форма колонок
// {target_row_id, source_row_id, score, status, explanation} — стабильный
// контракт для выгрузки и внешней отчётности.
func MappingRecords(results []model.MatchResult) [][]string {
	out := make([][]string, 0, len(results)+1)
	out = append(out, []string{"target_row_id", "source_row_id", "score", "status", "explanation"})
	for _, r := range results {
		src := ""
		if r.ChosenSourceRowID != nil {
			src = strconv.Itoa(*r.ChosenSourceRowID)
		}
		out = append(out, []string{
			strconv.Itoa(r.TargetRowID),
			src,
			strconv.FormatFloat(r.BestScore, 'f', 1, 64),
			string(r.Status),
			r.Explanation,
		})
	}
	return out
}

// ReportSheet — содержимое листа REPORT для экспортируемой книги:
// счётчики, параметры, правила, отметка времени и версия.
func ReportSheet(results []model.MatchResult, cfg model.MatchConfig) [][]string {
	s := Summarize(results)
	rows := [][]string{
		{"Metric", "Value"},
		{"nb_target_rows", strconv.Itoa(s.TargetRows)},
		{"nb_auto", strconv.Itoa(s.Auto)},
		{"nb_accepted", strconv.Itoa(s.Accepted)},
		{"nb_rejected_no_match", strconv.Itoa(s.Rejected)},
		{"nb_pending", strconv.Itoa(s.Pending)},
		{"nb_ambiguous", strconv.Itoa(s.Ambiguous)},
		{"nb_skipped", strconv.Itoa(s.Skipped)},
		{"", ""},
		{"Parameters", ""},
		{"min_score", strconv.FormatFloat(cfg.MinScore, 'g', -1, 64)},
		{"auto_accept_score", strconv.FormatFloat(cfg.AutoAcceptScore, 'g', -1, 64)},
		{"top_k", strconv.Itoa(cfg.TopK)},
		{"ambiguity_delta", strconv.FormatFloat(cfg.AmbiguityDelta, 'g', -1, 64)},
		{"blocker", string(cfg.Blocker)},
		{"overwrite_mode", string(cfg.Transfer.OverwriteMode)},
		{"", ""},
		{"Rules", ""},
	}
	for i, r := range cfg.Rules {
		rows = append(rows, []string{
			fmt.Sprintf("rule_%d", i),
			fmt.Sprintf("%s->%s w=%g m=%s", r.SourceField, r.TargetField, r.Weight, r.Method),
		})
	}
	transferInfo := ""
	for i, f := range cfg.Transfer.Fields {
		if i > 0 {
			transferInfo += ", "
		}
		transferInfo += f.Source
		if f.Rename != "" {
			transferInfo += "->" + f.Rename
		}
	}
	rows = append(rows,
		[]string{"", ""},
		[]string{"Transfer columns", transferInfo},
		[]string{"", ""},
		[]string{"timestamp", time.Now().Format(time.RFC3339)},
		[]string{"version", Version},
	)
	return rows
}

// ValidateColumns — предупреждения о колонках из правил и переноса,
// которых нет в загруженных таблицах. Не фатально: правило без колонки
// просто не применяется.
func ValidateColumns(cfg model.MatchConfig, source, target *model.Table) []string {
	var missing []string
	for _, r := range cfg.Rules {
		if !source.HasColumn(r.SourceField) {
			missing = append(missing, "source."+r.SourceField)
		}
		if !target.HasColumn(r.TargetField) {
			missing = append(missing, "target."+r.TargetField)
		}
	}
	for _, f := range cfg.Transfer.Fields {
		if !source.HasColumn(f.Source) {
			missing = append(missing, "transfer."+f.Source)
		}
	}
	return missing
}
