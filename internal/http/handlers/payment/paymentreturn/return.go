// Package paymentreturn обрабатывает возврат покупателя со страницы оплаты шлюза.
//
// Обработчик фиксирует результат оплаты, при успехе выдает членство и один раз
// показывает покупателю сгенерированные учетные данные. При повторном заходе
// по той же ссылке учетные данные не отображаются.
package paymentreturn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
	membershipsvc "github.com/magabrotheeeer/membership-portal/internal/services/membership"
)

// PaymentService определяет интерфейс для фиксации результата платежа.
type PaymentService interface {
	RecordGatewayResult(ctx context.Context, paymentUID, gatewayStatus, orderID, txnID string) (*models.Payment, error)
}

// MembershipService определяет интерфейс для выдачи членства.
type MembershipService interface {
	Provision(ctx context.Context, paymentUID string) (*models.Membership, string, error)
}

// Handler обрабатывает возврат покупателя после оплаты.
type Handler struct {
	log         *slog.Logger
	payments    PaymentService
	memberships MembershipService
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, payments PaymentService, memberships MembershipService) *Handler {
	return &Handler{
		log:         log,
		payments:    payments,
		memberships: memberships,
	}
}

// ServeHTTP godoc
// @Summary Возврат со страницы оплаты
// @Description Фиксирует результат оплаты и при успехе выдает членство.
// Учетные данные члена показываются только при первом заходе.
// @Tags Payments
// @Produce  json
// @Param payment_uid query string true "Идентификатор платежа"
// @Param status query string true "Статус оплаты от шлюза"
// @Param order_id query string false "Идентификатор заказа у шлюза"
// @Param transaction_id query string false "Идентификатор транзакции у шлюза"
// @Success 200 {object} map[string]any "Результат оплаты"
// @Failure 400 {object} response.ErrorResponse "Отсутствуют обязательные параметры"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /payments/return [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.return"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	paymentUID := r.URL.Query().Get("payment_uid")
	gatewayStatus := r.URL.Query().Get("status")
	if paymentUID == "" || gatewayStatus == "" {
		log.Error("payment_uid or status is missing")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("payment_uid and status are required"))
		return
	}

	payment, err := h.payments.RecordGatewayResult(r.Context(), paymentUID, gatewayStatus,
		r.URL.Query().Get("order_id"), r.URL.Query().Get("transaction_id"))
	if err != nil {
		log.Error("failed to record gateway result", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to process payment result"))
		return
	}

	if payment.Status != models.PaymentStatusCompleted {
		log.Info("payment is not completed",
			slog.String("payment_uid", paymentUID),
			slog.String("status", payment.Status))
		render.JSON(w, r, response.OKWithData(map[string]any{
			"payment_uid": payment.UID,
			"status":      payment.Status,
			"message":     "payment was not completed",
		}))
		return
	}

	m, memberPassword, err := h.memberships.Provision(r.Context(), paymentUID)
	if err != nil {
		if errors.Is(err, membershipsvc.ErrAlreadyProvisioned) {
			log.Info("membership already provisioned", slog.String("payment_uid", paymentUID))
			render.JSON(w, r, response.OKWithData(map[string]any{
				"payment_uid": payment.UID,
				"status":      payment.Status,
				"message":     "membership is already active, credentials were shown earlier",
			}))
			return
		}
		log.Error("failed to provision membership", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to provision membership"))
		return
	}

	log.Info("membership provisioned",
		slog.Int("membership_id", m.ID),
		slog.String("payment_uid", paymentUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"payment_uid":       payment.UID,
		"status":            payment.Status,
		"member_username":   m.MemberUsername,
		"member_password":   memberPassword,
		"access_expires_at": m.AccessExpiresAt,
		"warning":           "save these credentials now, they will not be shown again",
	}))
}
