package service

import (
	"strings"

	"concorde-service/internal/linkage/model"
)

// Transfer переносит колонки source в копию target по финальным результатам
// матчинга. Исходный target не мутируется — пишем только в клон.
func Transfer(target, source *model.Table, results []model.MatchResult, spec model.TransferSpec) *model.Table {
	out := target.Clone()

	for _, f := range spec.Fields {
		if !source.HasColumn(f.Source) {
			continue
		}
		name := f.Source
		if f.Rename != "" {
			name = f.Rename
		}
		// коллизия имён при never решается суффиксом, не ошибкой
		if out.HasColumn(name) && spec.OverwriteMode == model.OverwriteNever {
			name += spec.CollisionSuffix
		}
		if !out.HasColumn(name) {
			if !spec.CreateMissing {
				continue
			}
			out.AddColumn(name)
		}

		for _, r := range results {
			if r.ChosenSourceRowID == nil {
				continue
			}
			val, _ := source.Cell(*r.ChosenSourceRowID, f.Source)
			existing, ok := out.Cell(r.TargetRowID, name)
			if !ok {
				continue
			}
			write := false
			switch spec.OverwriteMode {
			case model.OverwriteAlways:
				write = true
			case model.OverwriteIfEmpty:
				write = strings.TrimSpace(existing) == ""
			case model.OverwriteNever:
				write = true // колонка с суффиксом свежая, пишем всегда
			}
			if write {
				out.SetCell(r.TargetRowID, name, val)
			}
		}
	}

	applyConcatTransfers(out, source, results, spec)
	return out
}

// applyConcatTransfers — склейка нескольких колонок source в одну колонку
// target (например Prénom + Nom → Auteur).
func applyConcatTransfers(out, source *model.Table, results []model.MatchResult, spec model.TransferSpec) {
	for _, ct := range spec.Concat {
		if !out.HasColumn(ct.TargetField) {
			if !spec.CreateMissing {
				continue
			}
			out.AddColumn(ct.TargetField)
		}
		joinSep := ct.Separator
		if ct.JoinWithExisting != nil {
			joinSep = *ct.JoinWithExisting
		}

		for _, r := range results {
			if r.ChosenSourceRowID == nil {
				continue
			}
			srcRow := *r.ChosenSourceRowID

			var parts []string
			for _, src := range ct.Sources {
				val, ok := source.Cell(srcRow, src.Field)
				if !ok {
					continue
				}
				if ct.SkipEmpty && strings.TrimSpace(val) == "" {
					continue
				}
				parts = append(parts, src.Prefix+val)
			}
			// нет ни одной части — строку не трогаем вовсе
			if len(parts) == 0 {
				continue
			}
			newText := strings.Join(parts, ct.Separator)

			existing, ok := out.Cell(r.TargetRowID, ct.TargetField)
			if !ok {
				continue
			}
			empty := strings.TrimSpace(existing) == ""

			switch ct.OverwriteMode {
			case model.ConcatReplace:
				out.SetCell(r.TargetRowID, ct.TargetField, newText)
			case model.ConcatIfEmpty:
				if empty {
					out.SetCell(r.TargetRowID, ct.TargetField, newText)
				}
			case model.ConcatAppend:
				if empty {
					out.SetCell(r.TargetRowID, ct.TargetField, newText)
				} else {
					out.SetCell(r.TargetRowID, ct.TargetField, existing+joinSep+newText)
				}
			case model.ConcatPrepend:
				if empty {
					out.SetCell(r.TargetRowID, ct.TargetField, newText)
				} else {
					out.SetCell(r.TargetRowID, ct.TargetField, newText+joinSep+existing)
				}
			}
		}
	}
}
