// Package paymentlist реализует HTTP-обработчик списка платежей по типу плана.
//
// Доступен только администраторам, поддерживает пагинацию через limit/offset.
package paymentlist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// Service определяет интерфейс для получения списка платежей.
type Service interface {
	ListByPlan(ctx context.Context, planType string, limit, offset int) ([]*models.Payment, error)
}

// Handler обрабатывает запросы на список платежей.
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
// @Summary Список платежей по плану
// @Description Возвращает платежи указанного типа плана с пагинацией. Только для администраторов.
// @Tags Admin
// @Produce  json
// @Param plan_type query string true "Тип плана (basic, standard, premium)"
// @Param limit query int false "Количество записей (по умолчанию 10)"
// @Param offset query int false "Смещение (по умолчанию 0)"
// @Success 200 {object} map[string]any "Список платежей"
// @Failure 422 {object} response.ErrorResponse "Некорректный тип плана"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/payments [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	planType := r.URL.Query().Get("plan_type")
	if err := h.validate.Var(planType, "required,oneof=basic standard premium"); err != nil {
		log.Error("invalid plan type", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid plan type"))
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	payments, err := h.service.ListByPlan(r.Context(), planType, limit, offset)
	if err != nil {
		log.Error("failed to list payments", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list payments"))
		return
	}

	log.Info("list payments", "count", len(payments))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"list_count": len(payments),
		"payments":   payments,
	}))
}
