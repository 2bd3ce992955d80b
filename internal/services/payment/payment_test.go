package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/membership-portal/internal/models"
	"github.com/magabrotheeeer/membership-portal/internal/paymentgateway"
	"github.com/magabrotheeeer/membership-portal/internal/storage/repository"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreatePayment(ctx context.Context, p models.Payment) error {
	return m.Called(ctx, p).Error(0)
}
func (m *RepoMock) GetPayment(ctx context.Context, uid string) (*models.Payment, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}
func (m *RepoMock) SetGatewayOrderID(ctx context.Context, uid, orderID string) error {
	return m.Called(ctx, uid, orderID).Error(0)
}
func (m *RepoMock) UpdateGatewayResult(ctx context.Context, uid, status, orderID, txnID string) (int64, error) {
	args := m.Called(ctx, uid, status, orderID, txnID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *RepoMock) ForcePaymentStatus(ctx context.Context, uid, status string) error {
	return m.Called(ctx, uid, status).Error(0)
}
func (m *RepoMock) ListPaymentsByPlan(ctx context.Context, planType string, limit, offset int) ([]*models.Payment, error) {
	args := m.Called(ctx, planType, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}
func (m *RepoMock) GetMembershipByPayment(ctx context.Context, paymentUID string) (*models.Membership, error) {
	args := m.Called(ctx, paymentUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateSession(req paymentgateway.CreateSessionRequest) (*paymentgateway.CreateSessionResponse, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentgateway.CreateSessionResponse), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestPaymentService_Create(t *testing.T) {
	req := models.DummyPayment{
		PlanType:      models.PlanStandard,
		PaymentMethod: "credit_card",
		CustomerName:  "Yamada Taro",
		CustomerEmail: "taro@example.com",
	}

	tests := []struct {
		name       string
		req        models.DummyPayment
		setupMocks func(r *RepoMock, g *GatewayMock)
		wantTotal  int
		wantURL    string
		wantErr    bool
	}{
		{
			name: "успешное создание платежа с налогом",
			req:  req,
			setupMocks: func(r *RepoMock, g *GatewayMock) {
				r.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
					return p.PlanType == models.PlanStandard &&
						p.Amount == 100000 &&
						p.TaxAmount == 10000 &&
						p.TotalAmount == 110000 &&
						p.Status == models.PaymentStatusPending
				})).Return(nil).Once()
				g.On("CreateSession", mock.MatchedBy(func(s paymentgateway.CreateSessionRequest) bool {
					return s.Amount.Value == "110000" && s.Amount.Currency == "JPY"
				})).Return(&paymentgateway.CreateSessionResponse{
					ID:          "sess-1",
					RedirectURL: "https://gateway.example.com/pay/sess-1",
				}, nil).Once()
				r.On("SetGatewayOrderID", mock.Anything, mock.Anything, "sess-1").Return(nil).Once()
			},
			wantTotal: 110000,
			wantURL:   "https://gateway.example.com/pay/sess-1",
		},
		{
			name: "неизвестный тип плана",
			req: models.DummyPayment{
				PlanType:      "platinum",
				CustomerName:  "Yamada Taro",
				CustomerEmail: "taro@example.com",
			},
			setupMocks: func(_ *RepoMock, _ *GatewayMock) {},
			wantErr:    true,
		},
		{
			name: "ошибка шлюза",
			req:  req,
			setupMocks: func(r *RepoMock, g *GatewayMock) {
				r.On("CreatePayment", mock.Anything, mock.Anything).Return(nil).Once()
				g.On("CreateSession", mock.Anything).Return(nil, errors.New("gateway down")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			gateway := new(GatewayMock)
			svc := New(repo, gateway, "https://portal.example.com/payments/return", newNoopLogger())

			tt.setupMocks(repo, gateway)

			p, redirectURL, err := svc.Create(context.Background(), tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantTotal, p.TotalAmount)
				assert.Equal(t, tt.wantURL, redirectURL)
				assert.NotEmpty(t, p.UID)
			}

			repo.AssertExpectations(t)
			gateway.AssertExpectations(t)
		})
	}
}

func TestPaymentService_RecordGatewayResult(t *testing.T) {
	const uid = "11111111-2222-3333-4444-555555555555"

	tests := []struct {
		name       string
		status     string
		setupMocks func(r *RepoMock)
		wantStatus string
		wantErr    error
	}{
		{
			name:   "успешное подтверждение pending платежа",
			status: "succeeded",
			setupMocks: func(r *RepoMock) {
				r.On("GetPayment", mock.Anything, uid).
					Return(&models.Payment{UID: uid, Status: models.PaymentStatusPending}, nil).Once()
				r.On("UpdateGatewayResult", mock.Anything, uid, models.PaymentStatusCompleted, "ord-1", "txn-1").
					Return(int64(1), nil).Once()
				r.On("GetPayment", mock.Anything, uid).
					Return(&models.Payment{UID: uid, Status: models.PaymentStatusCompleted}, nil).Once()
			},
			wantStatus: models.PaymentStatusCompleted,
		},
		{
			name:   "повтор того же статуса идемпотентен",
			status: "succeeded",
			setupMocks: func(r *RepoMock) {
				r.On("GetPayment", mock.Anything, uid).
					Return(&models.Payment{UID: uid, Status: models.PaymentStatusCompleted}, nil).Once()
			},
			wantStatus: models.PaymentStatusCompleted,
		},
		{
			name:   "запрещён переход между терминальными статусами",
			status: "failed",
			setupMocks: func(r *RepoMock) {
				r.On("GetPayment", mock.Anything, uid).
					Return(&models.Payment{UID: uid, Status: models.PaymentStatusCompleted}, nil).Once()
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name:       "неизвестный статус шлюза",
			status:     "exploded",
			setupMocks: func(_ *RepoMock) {},
			wantErr:    ErrUnknownGatewayStatus,
		},
		{
			name:   "гонка: параллельное подтверждение тем же статусом",
			status: "succeeded",
			setupMocks: func(r *RepoMock) {
				r.On("GetPayment", mock.Anything, uid).
					Return(&models.Payment{UID: uid, Status: models.PaymentStatusPending}, nil).Once()
				r.On("UpdateGatewayResult", mock.Anything, uid, models.PaymentStatusCompleted, "ord-1", "txn-1").
					Return(int64(0), nil).Once()
				r.On("GetPayment", mock.Anything, uid).
					Return(&models.Payment{UID: uid, Status: models.PaymentStatusCompleted}, nil).Once()
			},
			wantStatus: models.PaymentStatusCompleted,
		},
		{
			name:   "гонка: параллельное подтверждение другим статусом",
			status: "succeeded",
			setupMocks: func(r *RepoMock) {
				r.On("GetPayment", mock.Anything, uid).
					Return(&models.Payment{UID: uid, Status: models.PaymentStatusPending}, nil).Once()
				r.On("UpdateGatewayResult", mock.Anything, uid, models.PaymentStatusCompleted, "ord-1", "txn-1").
					Return(int64(0), nil).Once()
				r.On("GetPayment", mock.Anything, uid).
					Return(&models.Payment{UID: uid, Status: models.PaymentStatusFailed}, nil).Once()
			},
			wantErr: ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			svc := New(repo, new(GatewayMock), "", newNoopLogger())

			tt.setupMocks(repo)

			p, err := svc.RecordGatewayResult(context.Background(), uid, tt.status, "ord-1", "txn-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, p.Status)
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestPaymentService_CorrectStatus(t *testing.T) {
	const uid = "11111111-2222-3333-4444-555555555555"

	t.Run("корректировка допустимым статусом", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("ForcePaymentStatus", mock.Anything, uid, models.PaymentStatusFailed).Return(nil).Once()
		svc := New(repo, new(GatewayMock), "", newNoopLogger())

		err := svc.CorrectStatus(context.Background(), uid, models.PaymentStatusFailed)
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("неизвестный статус отклоняется", func(t *testing.T) {
		repo := new(RepoMock)
		svc := New(repo, new(GatewayMock), "", newNoopLogger())

		err := svc.CorrectStatus(context.Background(), uid, "refunded")
		assert.Error(t, err)
		repo.AssertExpectations(t)
	})
}

func TestPaymentService_Verify(t *testing.T) {
	const uid = "11111111-2222-3333-4444-555555555555"

	tests := []struct {
		name       string
		setupMocks func(r *RepoMock)
		want       *models.PaymentVerification
		wantErr    bool
	}{
		{
			name: "завершённый платёж с членством",
			setupMocks: func(r *RepoMock) {
				r.On("GetPayment", mock.Anything, uid).
					Return(&models.Payment{UID: uid, Status: models.PaymentStatusCompleted}, nil).Once()
				r.On("GetMembershipByPayment", mock.Anything, uid).
					Return(&models.Membership{ID: 1, PaymentUID: uid}, nil).Once()
			},
			want: &models.PaymentVerification{
				Status:        models.PaymentStatusCompleted,
				IsCompleted:   true,
				HasMembership: true,
			},
		},
		{
			name: "pending платёж без членства",
			setupMocks: func(r *RepoMock) {
				r.On("GetPayment", mock.Anything, uid).
					Return(&models.Payment{UID: uid, Status: models.PaymentStatusPending}, nil).Once()
				r.On("GetMembershipByPayment", mock.Anything, uid).
					Return(nil, repository.ErrNotFound).Once()
			},
			want: &models.PaymentVerification{
				Status:        models.PaymentStatusPending,
				IsCompleted:   false,
				HasMembership: false,
			},
		},
		{
			name: "платёж не найден",
			setupMocks: func(r *RepoMock) {
				r.On("GetPayment", mock.Anything, uid).
					Return(nil, repository.ErrNotFound).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			svc := New(repo, new(GatewayMock), "", newNoopLogger())

			tt.setupMocks(repo)

			got, err := svc.Verify(context.Background(), uid)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			repo.AssertExpectations(t)
		})
	}
}
