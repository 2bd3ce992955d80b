// Package paymentcreate обрабатывает создание платежей за членство.
//
// Обработчик принимает данные покупателя и тип плана, создает платеж со статусом
// pending и сессию оплаты у платежного шлюза, после чего возвращает ссылку на
// форму оплаты. Авторизация не требуется: покупка возможна до регистрации.
package paymentcreate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// Service определяет интерфейс для создания платежа.
type Service interface {
	Create(ctx context.Context, req models.DummyPayment) (*models.Payment, string, error)
}

// Handler обрабатывает запросы на создание платежей.
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
// @Summary Создать платеж
// @Description Создает платеж за членство и сессию оплаты у платежного шлюза.
// Сумма рассчитывается на сервере по каталогу планов, включая налог.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body models.DummyPayment true "Данные для создания платежа"
// @Success 200 {object} map[string]any "Платеж создан, возвращается ссылка на оплату"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /payments [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyPayment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.String("plan_type", req.PlanType))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	log.Info("all fields are validated")

	payment, redirectURL, err := h.service.Create(r.Context(), req)
	if err != nil {
		log.Error("failed to create payment", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to create payment"))
		return
	}

	log.Info("payment created",
		slog.String("payment_uid", payment.UID),
		slog.Int("total_amount", payment.TotalAmount))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"payment_uid":  payment.UID,
		"total_amount": payment.TotalAmount,
		"redirect_url": redirectURL,
	}))
}
