package model

import "encoding/json"

// Table — таблица в памяти: упорядоченные колонки + строки-срезы.
// Доступ к ячейке O(1) по (row, имя колонки).
type Table struct {
	columns []string
	index   map[string]int // имя колонки -> позиция
	rows    [][]string
}

func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		rows:    make([][]string, len(rows)),
	}
	for i, c := range t.columns {
		if _, ok := t.index[c]; !ok {
			t.index[c] = i
		}
	}
	// выравниваем строки по ширине заголовка
	for i, r := range rows {
		row := make([]string, len(t.columns))
		copy(row, r)
		t.rows[i] = row
	}
	return t
}

func (t *Table) NumRows() int { return len(t.rows) }

func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Cell возвращает значение ячейки; ok=false, если колонки нет или строка вне диапазона.
func (t *Table) Cell(row int, col string) (string, bool) {
	c, ok := t.index[col]
	if !ok || row < 0 || row >= len(t.rows) {
		return "", false
	}
	return t.rows[row][c], true
}

func (t *Table) SetCell(row int, col, val string) bool {
	c, ok := t.index[col]
	if !ok || row < 0 || row >= len(t.rows) {
		return false
	}
	t.rows[row][c] = val
	return true
}

// AddColumn добавляет пустую колонку; повторное имя игнорируется.
func (t *Table) AddColumn(name string) {
	if _, ok := t.index[name]; ok {
		return
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, name)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], "")
	}
}

func (t *Table) Row(i int) []string {
	if i < 0 || i >= len(t.rows) {
		return nil
	}
	return append([]string(nil), t.rows[i]...)
}

// Clone — глубокая копия (merger пишет только в копию, исходник не трогаем).
func (t *Table) Clone() *Table {
	out := &Table{
		columns: append([]string(nil), t.columns...),
		index:   make(map[string]int, len(t.index)),
		rows:    make([][]string, len(t.rows)),
	}
	for k, v := range t.index {
		out.index[k] = v
	}
	for i, r := range t.rows {
		out.rows[i] = append([]string(nil), r...)
	}
	return out
}

// tableJSON — сериализация для session-store и API.
type tableJSON struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{Columns: t.columns, Rows: t.rows})
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var raw tableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = *NewTable(raw.Columns, raw.Rows)
	return nil
}
