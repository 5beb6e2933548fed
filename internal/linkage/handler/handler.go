package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"concorde-service/internal/config"
	"concorde-service/internal/fileio"
	"concorde-service/internal/linkage/model"
	linkSvc "concorde-service/internal/linkage/service"
	"concorde-service/internal/session"
)

// Handler — HTTP-обвязка движка: загрузка таблиц, запуск матчинга,
// ручные решения, экспорт. Вся логика — в linkage/service.
type Handler struct {
	cfg   config.Config
	log   zerolog.Logger
	store *session.Store
}

func New(cfg config.Config, log zerolog.Logger, store *session.Store) *Handler {
	return &Handler{cfg: cfg, log: log, store: store}
}

// Match: multipart source + target + config → новая сессия с результатами.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := h.reqLog(r)
	defer r.Body.Close()

	if err := r.ParseMultipartForm(int64(h.cfg.MaxUploadMB) << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "bad multipart form: "+err.Error())
		return
	}

	source, err := h.readTable(r, "source", atoi(r.FormValue("source_header_row"), 1))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "failed to read source: "+err.Error())
		return
	}
	target, err := h.readTable(r, "target", atoi(r.FormValue("target_header_row"), 1))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "failed to read target: "+err.Error())
		return
	}

	rawCfg, err := configPart(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	matchCfg, err := model.ParseMatchConfig(rawCfg)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid config: "+err.Error())
		return
	}

	// колонки из правил, которых нет в таблицах — предупреждение, не отказ
	warnings := linkSvc.ValidateColumns(matchCfg, source, target)

	linker := linkSvc.NewLinker(matchCfg, log)
	results, err := linker.Run(r.Context(), source, target)
	if err != nil {
		jsonError(w, http.StatusRequestTimeout, "matching cancelled: "+err.Error())
		return
	}

	sess := &session.Session{
		Config:  matchCfg,
		Source:  source,
		Target:  target,
		Results: results,
	}
	if err := h.store.Create(sess); err != nil {
		log.Error().Err(err).Msg("create session")
		jsonError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}

	log.Info().
		Str("session_id", sess.ID).
		Int("source_rows", source.NumRows()).
		Int("target_rows", target.NumRows()).
		Strs("missing_columns", warnings).
		Dur("elapsed", time.Since(start)).
		Msg("match done")

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"summary":    linkSvc.Summarize(results),
		"warnings":   warnings,
		"results":    results,
	})
}

// GetSession: текущее состояние результатов.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
		"summary":    linkSvc.Summarize(sess.Results),
		"results":    sess.Results,
	})
}

type resolveRequest struct {
	// target_row_id → source_row_id; null = нет соответствия
	Decisions map[int]*int `json:"decisions"`
}

// Resolve применяет пакет решений к pending-строкам сессии.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := linkSvc.ValidateDecisions(req.Decisions, sess.Source.NumRows()); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	// до применения запоминаем прежний выбор затронутых строк
	applied := 0
	for _, res := range sess.Results {
		if res.Status != model.StatusPending {
			continue
		}
		if _, exists := req.Decisions[res.TargetRowID]; !exists {
			continue
		}
		if err := h.store.PushUndo(sess.ID, res.TargetRowID, res.ChosenSourceRowID); err != nil {
			log := h.reqLog(r)
			log.Error().Err(err).Msg("push undo")
		}
		applied++
	}

	linkSvc.Resolve(sess.Results, req.Decisions)
	if !h.saveResults(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
		"summary": linkSvc.Summarize(sess.Results),
	})
}

type skipRequest struct {
	TargetRowID int `json:"target_row_id"`
}

func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	var req skipRequest
	if !readJSON(w, r, &req) {
		return
	}
	if !linkSvc.Skip(sess.Results, req.TargetRowID) {
		jsonError(w, http.StatusConflict, fmt.Sprintf("row %d is not pending", req.TargetRowID))
		return
	}
	if err := h.store.PushUndo(sess.ID, req.TargetRowID, nil); err != nil {
		log := h.reqLog(r)
		log.Error().Err(err).Msg("push undo")
	}
	if !h.saveResults(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": linkSvc.Summarize(sess.Results)})
}

// Undo снимает последнее решение из журнала и откатывает строку.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	targetRowID, prev, found, err := h.store.PopUndo(sess.ID)
	if err != nil {
		log := h.reqLog(r)
		log.Error().Err(err).Msg("pop undo")
		jsonError(w, http.StatusInternalServerError, "undo failed")
		return
	}
	if !found {
		jsonError(w, http.StatusConflict, "nothing to undo")
		return
	}
	linkSvc.Undo(sess.Results, targetRowID, prev)
	if !h.saveResults(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target_row_id": targetRowID,
		"summary":       linkSvc.Summarize(sess.Results),
	})
}

type bulkRequest struct {
	MinScore float64 `json:"min_score"`
}

// BulkAccept: все однозначные pending со скором >= min_score → accepted.
func (h *Handler) BulkAccept(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	var req bulkRequest
	if !readJSON(w, r, &req) {
		return
	}
	n := linkSvc.BulkAccept(sess.Results, req.MinScore)
	if !h.saveResults(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": n,
		"summary":  linkSvc.Summarize(sess.Results),
	})
}

// AcceptAuto фиксирует автоматические совпадения как принятые.
func (h *Handler) AcceptAuto(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	n := linkSvc.AcceptAuto(sess.Results)
	if !h.saveResults(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": n,
		"summary":  linkSvc.Summarize(sess.Results),
	})
}

// MappingCSV отдаёт плоский отчёт соответствий.
func (h *Handler) MappingCSV(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="mapping.csv"`)
	if err := fileio.WriteCSV(w, linkSvc.MappingRecords(sess.Results)); err != nil {
		log := h.reqLog(r)
		log.Error().Err(err).Msg("write mapping csv")
	}
}

// Export прогоняет перенос колонок и отдаёт книгу Target + REPORT.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	enriched := linkSvc.Transfer(sess.Target, sess.Source, sess.Results, sess.Config.Transfer)

	sheets := []fileio.Sheet{
		{Name: "Target", Rows: tableRows(enriched)},
		{Name: "REPORT", Rows: linkSvc.ReportSheet(sess.Results, sess.Config)},
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="concorde_output.xlsx"`)
	if err := fileio.WriteXLSX(w, sheets); err != nil {
		log := h.reqLog(r)
		log.Error().Err(err).Msg("write xlsx")
	}
}

func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := h.store.Get(id)
	if errors.Is(err, session.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		log := h.reqLog(r)
		log.Error().Err(err).Str("session_id", id).Msg("load session")
		jsonError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	return sess, true
}

func (h *Handler) saveResults(w http.ResponseWriter, r *http.Request, sess *session.Session) bool {
	if err := h.store.UpdateResults(sess.ID, sess.Results); err != nil {
		log := h.reqLog(r)
		log.Error().Err(err).Str("session_id", sess.ID).Msg("save results")
		jsonError(w, http.StatusInternalServerError, "failed to persist results")
		return false
	}
	return true
}

// логгер с req_id, если middleware его проставил
func (h *Handler) reqLog(r *http.Request) zerolog.Logger {
	if rid := r.Header.Get("X-Request-ID"); rid != "" {
		return h.log.With().Str("req_id", rid).Logger()
	}
	return h.log
}
