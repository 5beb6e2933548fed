package serverhttp

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"concorde-service/internal/config"
	linkHnd "concorde-service/internal/linkage/handler"
	"concorde-service/internal/middleware"
	"concorde-service/internal/session"
	"concorde-service/server/http/handlers"
)

func NewRouter(cfg config.Config, logger zerolog.Logger, store *session.Store) *chi.Mux {
	r := chi.NewRouter()

	// порядок важен: recover -> requestID -> logging -> cors -> limit
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(middleware.LimitBytes(int64(cfg.MaxUploadMB) * 1024 * 1024))

	h := linkHnd.New(cfg, logger, store)

	r.Get("/health", handlers.Health)

	// запуск матчинга: две таблицы + конфиг
	r.Post("/match", h.Match)

	// работа с сессией: ручные решения и экспорт
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/resolve", h.Resolve)
		r.Post("/skip", h.Skip)
		r.Post("/undo", h.Undo)
		r.Post("/bulk-accept", h.BulkAccept)
		r.Post("/accept-auto", h.AcceptAuto)
		r.Get("/mapping.csv", h.MappingCSV)
		r.Post("/export", h.Export)
	})

	return r
}
