// Package paymentcorrect реализует HTTP-обработчик ручной корректировки платежа.
//
// Администратор может принудительно выставить статус платежа, например после
// сверки с выпиской шлюза. Корректировка обходит обычные правила переходов
// и записывается в журнал.
package paymentcorrect

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/storage/repository"
)

// Request — входные данные для корректировки статуса платежа.
type Request struct {
	Status string `json:"status" validate:"required,oneof=pending completed failed cancelled"`
}

// Service определяет интерфейс для корректировки платежа.
type Service interface {
	CorrectStatus(ctx context.Context, paymentUID, status string) error
}

// Handler обрабатывает запросы на корректировку платежа.
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
// @Summary Корректировка платежа
// @Description Принудительно выставляет статус платежа. Только для администраторов.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param uid path string true "Идентификатор платежа"
// @Param request body Request true "Новый статус"
// @Success 200 {object} response.Response "Статус изменен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Платеж не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/payments/{uid} [patch]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.paymentcorrect"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	paymentUID := chi.URLParam(r, "uid")
	if err := h.validate.Var(paymentUID, "required,uuid"); err != nil {
		log.Error("invalid payment uid", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid payment uid"))
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

	if err := h.service.CorrectStatus(r.Context(), paymentUID, req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("payment not found", slog.String("payment_uid", paymentUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("payment not found"))
			return
		}
		log.Error("failed to correct payment status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to correct payment status"))
		return
	}

	log.Info("payment status corrected",
		slog.String("payment_uid", paymentUID),
		slog.String("status", req.Status))
	render.JSON(w, r, response.OK())
}
