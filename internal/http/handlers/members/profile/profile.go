// Package profile реализует HTTP-обработчик закрытого раздела участников.
//
// Доступен только пользователям с активным членством: middleware проверяет
// срок доступа перед вызовом обработчика.
package profile

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/membership-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// Service определяет интерфейс для получения членства пользователя.
type Service interface {
	GetForUser(ctx context.Context, userUID string) (*models.Membership, error)
}

// Handler обрабатывает запросы профиля участника.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Профиль участника
// @Description Возвращает сведения о членстве текущего пользователя.
// @Tags Members
// @Produce  json
// @Success 200 {object} models.Membership "Членство пользователя"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /members/profile [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.members.profile"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	m, err := h.service.GetForUser(r.Context(), userUID)
	if err != nil {
		log.Error("failed to get membership", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to get membership"))
		return
	}

	log.Info("membership profile read", slog.Int("membership_id", m.ID))
	render.JSON(w, r, response.OKWithData(m))
}
