package fileio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadAnyCSV(t *testing.T) {
	in := "title,year,doi\nTristes Tropiques,1955,10.1/a\nLa Pensée sauvage,1962,\n"
	h, rows, err := ReadAny(strings.NewReader(in), "refs.csv", 1)
	if err != nil {
		t.Fatalf("ReadAny: %v", err)
	}
	if diff := cmp.Diff([]string{"title", "year", "doi"}, h); diff != "" {
		t.Errorf("headers:\n%s", diff)
	}
	want := [][]string{
		{"Tristes Tropiques", "1955", "10.1/a"},
		{"La Pensée sauvage", "1962", ""},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows:\n%s", diff)
	}
}

func TestReadAnyCSVHeaderRow(t *testing.T) {
	in := "экспорт от 2024-01-15,,\ntitle,,year\nA,x,2001\n,,\nB,y,2002\n"
	h, rows, err := ReadAny(strings.NewReader(in), "export.csv", 2)
	if err != nil {
		t.Fatalf("ReadAny: %v", err)
	}
	// пустой заголовок получает имя Column N
	if diff := cmp.Diff([]string{"title", "Column 2", "year"}, h); diff != "" {
		t.Errorf("headers:\n%s", diff)
	}
	// полностью пустая строка пропускается
	want := [][]string{{"A", "x", "2001"}, {"B", "y", "2002"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows:\n%s", diff)
	}
}

func TestReadAnyHeaderRowOutOfRange(t *testing.T) {
	in := "title,year\nA,2001\nB,2002\n"
	h, rows, err := ReadAny(strings.NewReader(in), "t.csv", 99)
	if err != nil {
		t.Fatalf("ReadAny: %v", err)
	}
	// номер за пределами файла прижимается к первой строке,
	// тело начинается сразу после неё
	if diff := cmp.Diff([]string{"title", "year"}, h); diff != "" {
		t.Errorf("headers:\n%s", diff)
	}
	want := [][]string{{"A", "2001"}, {"B", "2002"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows:\n%s", diff)
	}
}

func TestReadAnyRaggedRows(t *testing.T) {
	in := "a,b,c\n1,2\n1,2,3,4\n"
	h, rows, err := ReadAny(strings.NewReader(in), "t.csv", 1)
	if err != nil {
		t.Fatalf("ReadAny: %v", err)
	}
	if len(h) != 3 {
		t.Fatalf("headers = %v", h)
	}
	// строки выравниваются по ширине шапки
	want := [][]string{{"1", "2", ""}, {"1", "2", "3"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows:\n%s", diff)
	}
}

func TestReadAnyUnsupported(t *testing.T) {
	_, _, err := ReadAny(strings.NewReader("x"), "notes.txt", 1)
	if err == nil || !strings.Contains(err.Error(), "unsupported file") {
		t.Fatalf("err = %v", err)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, [][]string{
		{"target_row_id", "score"},
		{"0", "97.5"},
		{"1", ""},
	})
	if err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "target_row_id,score\n0,97.5\n1,\n"
	if buf.String() != want {
		t.Errorf("csv = %q, want %q", buf.String(), want)
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXLSX(&buf, []Sheet{
		{Name: "Target", Rows: [][]string{
			{"title", "year"},
			{"Anti-Oedipus", "1972"},
			{"Mille plateaux", "1980"},
		}},
		{Name: "REPORT", Rows: [][]string{{"Metric", "Value"}, {"total_rows", "2"}}},
	})
	if err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	h, rows, err := ReadAny(bytes.NewReader(buf.Bytes()), "out.xlsx", 1)
	if err != nil {
		t.Fatalf("ReadAny: %v", err)
	}
	if diff := cmp.Diff([]string{"title", "year"}, h); diff != "" {
		t.Errorf("headers:\n%s", diff)
	}
	want := [][]string{{"Anti-Oedipus", "1972"}, {"Mille plateaux", "1980"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows:\n%s", diff)
	}
}

func TestNormalizeCell(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  plain  ", "plain"},
		{"a b", "a b"},       // NBSP
		{" x ", "x"},    // narrow NBSP + thin space
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeCell(tt.in); got != tt.want {
			t.Errorf("normalizeCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
