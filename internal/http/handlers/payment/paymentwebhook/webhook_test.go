package paymentwebhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/membership-portal/internal/models"
	membershipsvc "github.com/magabrotheeeer/membership-portal/internal/services/membership"
)

const (
	testSecret = "webhook_secret"
	paymentUID = "11111111-2222-3333-4444-555555555555"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) RecordGatewayResult(ctx context.Context, paymentUID, gatewayStatus, orderID, txnID string) (*models.Payment, error) {
	args := m.Called(ctx, paymentUID, gatewayStatus, orderID, txnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

type MockMembershipService struct {
	mock.Mock
}

func (m *MockMembershipService) Provision(ctx context.Context, paymentUID string) (*models.Membership, string, error) {
	args := m.Called(ctx, paymentUID)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*models.Membership), args.String(1), args.Error(2)
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookBody(t *testing.T, event, status string) []byte {
	var payload Payload
	payload.Event = event
	payload.Object.OrderID = "ord-1"
	payload.Object.TransactionID = "txn-1"
	payload.Object.Status = status
	payload.Object.Metadata = map[string]string{"payment_uid": paymentUID}

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func TestWebhookHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		body           []byte
		signature      func(body []byte) string
		setupMocks     func(p *MockPaymentService, m *MockMembershipService)
		expectedStatus int
	}{
		{
			name:      "успешная оплата выдаёт членство",
			body:      nil,
			signature: signBody,
			setupMocks: func(p *MockPaymentService, m *MockMembershipService) {
				p.On("RecordGatewayResult", mock.Anything, paymentUID, "succeeded", "ord-1", "txn-1").
					Return(&models.Payment{UID: paymentUID, Status: models.PaymentStatusCompleted}, nil)
				m.On("Provision", mock.Anything, paymentUID).
					Return(&models.Membership{ID: 7, PaymentUID: paymentUID}, "secretpass12", nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:      "повторная доставка после выдачи членства безопасна",
			body:      nil,
			signature: signBody,
			setupMocks: func(p *MockPaymentService, m *MockMembershipService) {
				p.On("RecordGatewayResult", mock.Anything, paymentUID, "succeeded", "ord-1", "txn-1").
					Return(&models.Payment{UID: paymentUID, Status: models.PaymentStatusCompleted}, nil)
				m.On("Provision", mock.Anything, paymentUID).
					Return(nil, "", membershipsvc.ErrAlreadyProvisioned)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "неверная подпись",
			body: nil,
			signature: func(_ []byte) string {
				return "invalid-signature"
			},
			setupMocks:     func(_ *MockPaymentService, _ *MockMembershipService) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:      "ошибка фиксации статуса",
			body:      nil,
			signature: signBody,
			setupMocks: func(p *MockPaymentService, _ *MockMembershipService) {
				p.On("RecordGatewayResult", mock.Anything, paymentUID, "succeeded", "ord-1", "txn-1").
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := new(MockPaymentService)
			memberships := new(MockMembershipService)
			tt.setupMocks(payments, memberships)

			handler := New(logger, payments, memberships, testSecret)

			body := tt.body
			if body == nil {
				body = webhookBody(t, "payment.succeeded", "succeeded")
			}

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
			req.Header.Set("X-Api-Signature", tt.signature(body))

			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			payments.AssertExpectations(t)
			memberships.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_IgnoredEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	payments := new(MockPaymentService)
	memberships := new(MockMembershipService)
	handler := New(logger, payments, memberships, testSecret)

	body := webhookBody(t, "payment.refund_pending", "refund_pending")

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Api-Signature", signBody(body))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	payments.AssertExpectations(t)
	memberships.AssertExpectations(t)
}

func TestWebhookHandler_MissingPaymentUID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := New(logger, new(MockPaymentService), new(MockMembershipService), testSecret)

	var payload Payload
	payload.Event = "payment.succeeded"
	payload.Object.Status = "succeeded"
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Api-Signature", signBody(body))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
