package fileio

import (
	"bytes"
	"fmt"
	"io"

	excelize "github.com/xuri/excelize/v2"
)

func readXLSX(r io.Reader, headerRow int) ([]string, [][]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	hi := headerIndex(rows, headerRow)
	h := pickHeader(rows, hi)
	return h, bodyRows(rows, h, hi), nil
}

// Sheet — один лист книги на запись.
type Sheet struct {
	Name string
	Rows [][]string
}

// WriteXLSX собирает книгу из листов и пишет её в w.
// Первый лист заменяет дефолтный Sheet1.
func WriteXLSX(w io.Writer, sheets []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.Name); err != nil {
				return err
			}
		} else {
			if _, err := f.NewSheet(sh.Name); err != nil {
				return err
			}
		}
		for r, row := range sh.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			vals := make([]interface{}, len(row))
			for c, v := range row {
				vals[c] = v
			}
			if err := f.SetSheetRow(sh.Name, cell, &vals); err != nil {
				return fmt.Errorf("write sheet %s row %d: %w", sh.Name, r+1, err)
			}
		}
	}
	return f.Write(w)
}
