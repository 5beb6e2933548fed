package fileio

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ReadAny — выберет парсер по расширению и вернёт заголовки + строки данных.
// headerRow — номер строки заголовков (1-based). Порядок колонок сохраняется.
func ReadAny(r io.Reader, filename string, headerRow int) ([]string, [][]string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xlsx":
		return readXLSX(r, headerRow)
	case ".xls":
		return readXLS(r, headerRow)
	case ".csv":
		return readCSV(r, headerRow)
	default:
		return nil, nil, fmt.Errorf("unsupported file: %s", filename)
	}
}

// headerIndex — 1-based headerRow → индекс строки заголовков.
// Значение вне диапазона прижимается к первой строке; индекс считается
// один раз и используется и для шапки, и для тела.
func headerIndex(rows [][]string, headerRow int) int {
	idx := headerRow - 1
	if idx < 0 || idx >= len(rows) {
		idx = 0
	}
	return idx
}

// pickHeader — берёт строку заголовков и подставляет Column N для пустых.
func pickHeader(rows [][]string, headerIdx int) []string {
	h := rows[headerIdx]
	out := make([]string, len(h))
	for i, v := range h {
		v = strings.TrimSpace(v)
		if v == "" {
			v = fmt.Sprintf("Column %d", i+1)
		}
		out[i] = v
	}
	return out
}

// bodyRows — строки после заголовка, без полностью пустых, выровненные
// по ширине шапки.
func bodyRows(rows [][]string, headers []string, headerIdx int) [][]string {
	var out [][]string
	for r := headerIdx + 1; r < len(rows); r++ {
		rec := make([]string, len(headers))
		empty := true
		for c := 0; c < len(headers); c++ {
			if c < len(rows[r]) {
				rec[c] = rows[r][c]
				if strings.TrimSpace(rec[c]) != "" {
					empty = false
				}
			}
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out
}

// normalizeCell — чистка значения ячейки: неразрывные пробелы → обычные, trim.
func normalizeCell(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ' ', ' ': // NBSP, thin space, narrow NBSP
			return ' '
		default:
			return r
		}
	}, s)
	return strings.TrimSpace(s)
}
