// Package paymentwebhook обрабатывает уведомления платежного шлюза о результате оплаты.
//
// Подпись запроса проверяется по HMAC-SHA256 в заголовке X-Api-Signature.
// При подтверждении оплаты платеж переводится в финальный статус и, если оплата
// успешна, выдается членство. Повторная доставка того же события безопасна.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
	membershipsvc "github.com/magabrotheeeer/membership-portal/internal/services/membership"
)

// PaymentService определяет интерфейс для фиксации результата платежа.
type PaymentService interface {
	RecordGatewayResult(ctx context.Context, paymentUID, gatewayStatus, orderID, txnID string) (*models.Payment, error)
}

// MembershipService определяет интерфейс для выдачи членства по оплаченному платежу.
type MembershipService interface {
	Provision(ctx context.Context, paymentUID string) (*models.Membership, string, error)
}

// Handler обрабатывает webhook-уведомления платежного шлюза.
type Handler struct {
	log           *slog.Logger
	payments      PaymentService
	memberships   MembershipService
	webhookSecret string
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, payments PaymentService, memberships MembershipService, secret string) *Handler {
	return &Handler{
		log:           log,
		payments:      payments,
		memberships:   memberships,
		webhookSecret: secret,
	}
}

// Payload — тело webhook-уведомления шлюза.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		OrderID       string            `json:"order_id"`
		TransactionID string            `json:"transaction_id"`
		Status        string            `json:"status"`
		Metadata      map[string]string `json:"metadata"`
	} `json:"object"`
}

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// ServeHTTP godoc
// @Summary Webhook платежного шлюза
// @Description Принимает уведомление о результате оплаты, проверяет подпись,
// фиксирует статус платежа и выдает членство при успешной оплате.
// @Tags Payments
// @Accept  json
// @Success 200 "Уведомление обработано"
// @Failure 400 "Некорректное тело запроса"
// @Failure 401 "Неверная подпись"
// @Failure 500 "Внутренняя ошибка сервера"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(h.webhookSecret, body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	paymentUID := payload.Object.Metadata["payment_uid"]
	if paymentUID == "" {
		log.Error("payment_uid is missing in webhook metadata")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	const (
		PaymentSucceeded = "payment.succeeded"
		PaymentFailed    = "payment.failed"
		PaymentCanceled  = "payment.canceled"
	)

	switch strings.ToLower(payload.Event) {
	case PaymentSucceeded, PaymentFailed, PaymentCanceled:
		payment, err := h.payments.RecordGatewayResult(r.Context(),
			paymentUID, payload.Object.Status, payload.Object.OrderID, payload.Object.TransactionID)
		if err != nil {
			log.Error("failed to record gateway result", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if payment.Status == models.PaymentStatusCompleted {
			if _, _, err := h.memberships.Provision(r.Context(), paymentUID); err != nil {
				if errors.Is(err, membershipsvc.ErrAlreadyProvisioned) {
					log.Info("membership already provisioned", slog.String("payment_uid", paymentUID))
				} else {
					log.Error("failed to provision membership", sl.Err(err))
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
			}
		}
	default:
		log.Info("ignored webhook event", slog.String("event", payload.Event))
	}

	log.Info("webhook processed successfully",
		slog.String("event", payload.Event),
		slog.String("payment_uid", paymentUID))
	w.WriteHeader(http.StatusOK)
}
