// Package health реализует HTTP-обработчик проверки работоспособности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
)

// Storage определяет интерфейс проверки готовности хранилища.
type Storage interface {
	CheckDatabaseReady(ctx context.Context) error
}

// Handler обрабатывает запросы проверки работоспособности.
type Handler struct {
	log     *slog.Logger
	storage Storage
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, storage Storage) *Handler {
	return &Handler{
		log:     log,
		storage: storage,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	log := h.log.With(slog.String("op", op))

	if err := h.storage.CheckDatabaseReady(r.Context()); err != nil {
		log.Error("database is not ready", sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database is not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
	}))
}
