// Package paymentverify реализует HTTP-обработчик проверки состояния платежа.
//
// Используется клиентом после возврата с формы оплаты, чтобы узнать итоговый
// статус платежа и факт выдачи членства.
package paymentverify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
	"github.com/magabrotheeeer/membership-portal/internal/storage/repository"
)

// Service определяет интерфейс для проверки платежа.
type Service interface {
	Verify(ctx context.Context, paymentUID string) (*models.PaymentVerification, error)
}

// Handler обрабатывает запросы на проверку платежа.
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
// @Summary Проверить платеж
// @Description Возвращает статус платежа и факт выдачи членства.
// @Tags Payments
// @Produce  json
// @Param uid path string true "Идентификатор платежа"
// @Success 200 {object} models.PaymentVerification "Состояние платежа"
// @Failure 404 {object} response.ErrorResponse "Платеж не найден"
// @Failure 422 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /payments/{uid}/verify [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.verify"

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

	verification, err := h.service.Verify(r.Context(), paymentUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("payment not found", slog.String("payment_uid", paymentUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("payment not found"))
			return
		}
		log.Error("failed to verify payment", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to verify payment"))
		return
	}

	log.Info("payment verified",
		slog.String("payment_uid", paymentUID),
		slog.String("status", verification.Status))
	render.JSON(w, r, response.OKWithData(verification))
}
