package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"concorde-service/internal/fileio"
	"concorde-service/internal/linkage/model"
)

// readTable читает файл из multipart-части и собирает таблицу.
func (h *Handler) readTable(r *http.Request, part string, headerRow int) (*model.Table, error) {
	file, header, err := r.FormFile(part)
	if err != nil {
		return nil, errors.New("missing " + part + " file")
	}
	defer file.Close()

	columns, rows, err := fileio.ReadAny(file, header.Filename, headerRow)
	if err != nil {
		return nil, err
	}
	return model.NewTable(columns, rows), nil
}

// configPart — конфиг матчинга: либо текстовое поле config, либо
// одноимённый файл (JSON или YAML).
func configPart(r *http.Request) ([]byte, error) {
	if v := r.FormValue("config"); v != "" {
		return []byte(v), nil
	}
	file, _, err := r.FormFile("config")
	if err != nil {
		return nil, errors.New("missing config (form field or file)")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func tableRows(t *model.Table) [][]string {
	out := make([][]string, 0, t.NumRows()+1)
	out = append(out, t.Columns())
	for i := 0; i < t.NumRows(); i++ {
		out = append(out, t.Row(i))
	}
	return out
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON декодирует тело запроса; при ошибке сам отвечает 400.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, http.StatusBadRequest, "bad json body: "+err.Error())
		return false
	}
	return true
}
