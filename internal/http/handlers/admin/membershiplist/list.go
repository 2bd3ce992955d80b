// Package membershiplist реализует HTTP-обработчик списка членств для администраторов.
//
// Поддерживает фильтры по статусу, типу плана, продавцу и поиск по имени
// или email покупателя, а также пагинацию.
package membershiplist

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

// Service определяет интерфейс для получения списка членств.
type Service interface {
	List(ctx context.Context, filter models.MembershipFilter) ([]*models.MembershipListItem, error)
}

// Handler обрабатывает запросы на список членств.
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
// @Summary Список членств
// @Description Возвращает членства с фильтрами по статусу, плану, продавцу и поиском
// по имени или email покупателя. Только для администраторов.
// @Tags Admin
// @Produce  json
// @Param status query string false "Статус (active, expired)"
// @Param plan_type query string false "Тип плана (basic, standard, premium)"
// @Param seller query string false "Продавец"
// @Param search query string false "Поиск по имени или email покупателя"
// @Param limit query int false "Количество записей (по умолчанию 20)"
// @Param offset query int false "Смещение (по умолчанию 0)"
// @Success 200 {object} map[string]any "Список членств"
// @Failure 422 {object} response.ErrorResponse "Некорректные параметры фильтра"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/memberships [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.membershiplist"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var filter models.MembershipFilter
	if status := r.URL.Query().Get("status"); status != "" {
		if err := h.validate.Var(status, "oneof=active expired"); err != nil {
			log.Error("invalid status filter", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("invalid status filter"))
			return
		}
		filter.Status = &status
	}
	if planType := r.URL.Query().Get("plan_type"); planType != "" {
		if err := h.validate.Var(planType, "oneof=basic standard premium"); err != nil {
			log.Error("invalid plan type filter", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("invalid plan type filter"))
			return
		}
		filter.PlanType = &planType
	}
	if seller := r.URL.Query().Get("seller"); seller != "" {
		filter.Seller = &seller
	}
	if search := r.URL.Query().Get("search"); search != "" {
		filter.Search = &search
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	filter.Limit = limit
	filter.Offset = offset

	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		log.Error("failed to list memberships", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list memberships"))
		return
	}

	log.Info("list memberships", "count", len(items))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"list_count":  len(items),
		"memberships": items,
	}))
}
