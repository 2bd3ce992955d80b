// Package membershipupdate реализует HTTP-обработчик ручного управления членством.
//
// Администратор может деактивировать членство досрочно или вернуть доступ
// после ошибочной деактивации.
package membershipupdate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/storage/repository"
)

// Request — входные данные для изменения статуса членства.
type Request struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// Service определяет интерфейс для изменения статуса членства.
type Service interface {
	SetActive(ctx context.Context, membershipID int, isActive bool) error
}

// Handler обрабатывает запросы на изменение членства.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Изменить статус членства
// @Description Активирует или деактивирует членство по его идентификатору.
// Только для администраторов.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param id path int true "Идентификатор членства"
// @Param request body Request true "Новый статус"
// @Success 200 {object} response.Response "Статус изменен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Членство не найдено"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/memberships/{id} [patch]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.membershipupdate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	membershipID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || membershipID <= 0 {
		log.Error("invalid membership id", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid membership id"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.SetActive(r.Context(), membershipID, *req.IsActive); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("membership not found", slog.Int("membership_id", membershipID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("membership not found"))
			return
		}
		log.Error("failed to update membership", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to update membership"))
		return
	}

	log.Info("membership updated",
		slog.Int("membership_id", membershipID),
		slog.Bool("is_active", *req.IsActive))
	render.JSON(w, r, response.OK())
}
