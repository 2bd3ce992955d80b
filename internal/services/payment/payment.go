// Package payment содержит бизнес-логику учёта платежей: создание платёжной
// записи, идемпотентную обработку результата шлюза и проверку статуса.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/membership-portal/internal/models"
	"github.com/magabrotheeeer/membership-portal/internal/paymentgateway"
	"github.com/magabrotheeeer/membership-portal/internal/storage/repository"
)

// ErrUnknownGatewayStatus возвращается для статуса шлюза вне известного набора.
var ErrUnknownGatewayStatus = errors.New("unknown gateway status")

// ErrInvalidTransition возвращается при попытке перевести платёж из одного
// терминального статуса в другой обычным путём.
var ErrInvalidTransition = errors.New("invalid payment status transition")

// Repository определяет методы хранилища, нужные платёжному сервису.
type Repository interface {
	CreatePayment(ctx context.Context, p models.Payment) error
	GetPayment(ctx context.Context, uid string) (*models.Payment, error)
	SetGatewayOrderID(ctx context.Context, uid, orderID string) error
	UpdateGatewayResult(ctx context.Context, uid, status, orderID, txnID string) (int64, error)
	ForcePaymentStatus(ctx context.Context, uid, status string) error
	ListPaymentsByPlan(ctx context.Context, planType string, limit, offset int) ([]*models.Payment, error)
	GetMembershipByPayment(ctx context.Context, paymentUID string) (*models.Membership, error)
}

// GatewayClient описывает клиент платёжного шлюза.
type GatewayClient interface {
	CreateSession(req paymentgateway.CreateSessionRequest) (*paymentgateway.CreateSessionResponse, error)
}

// Service реализует учёт платежей.
type Service struct {
	repo      Repository
	gateway   GatewayClient
	returnURL string
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, gateway GatewayClient, returnURL string, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		gateway:   gateway,
		returnURL: returnURL,
		log:       log,
	}
}

// Create регистрирует новую покупку: считает суммы по каталогу планов,
// сохраняет платёж со статусом pending и открывает платёжную сессию в шлюзе.
// Возвращает платёж и адрес перенаправления покупателя.
func (s *Service) Create(ctx context.Context, req models.DummyPayment) (*models.Payment, string, error) {
	price, ok := models.PlanPrices[req.PlanType]
	if !ok {
		return nil, "", fmt.Errorf("unknown plan type: %s", req.PlanType)
	}
	tax := price * models.TaxRatePercent / 100

	p := models.Payment{
		UID:           uuid.NewString(),
		PlanType:      req.PlanType,
		Amount:        price,
		TaxAmount:     tax,
		TotalAmount:   price + tax,
		PaymentMethod: req.PaymentMethod,
		Status:        models.PaymentStatusPending,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
	}
	if req.Seller != "" {
		p.Seller = &req.Seller
	}

	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, "", err
	}
	s.log.Info("created new payment",
		slog.String("payment_uid", p.UID), slog.String("plan_type", p.PlanType))

	session, err := s.gateway.CreateSession(paymentgateway.CreateSessionRequest{
		OrderID: p.UID,
		Amount: paymentgateway.Amount{
			Value:    strconv.Itoa(p.TotalAmount),
			Currency: "JPY",
		},
		Description: "Membership plan: " + p.PlanType,
		ReturnURL:   s.returnURL,
		Metadata: map[string]string{
			"payment_uid": p.UID,
			"plan_type":   p.PlanType,
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create gateway session: %w", err)
	}

	if err := s.repo.SetGatewayOrderID(ctx, p.UID, session.ID); err != nil {
		return nil, "", err
	}
	orderID := session.ID
	p.GatewayOrderID = &orderID

	return &p, session.RedirectURL, nil
}

// mapGatewayStatus переводит статус шлюза в статус платежа.
func mapGatewayStatus(gatewayStatus string) (string, error) {
	switch gatewayStatus {
	case "succeeded", "captured":
		return models.PaymentStatusCompleted, nil
	case "failed":
		return models.PaymentStatusFailed, nil
	case "cancelled", "canceled":
		return models.PaymentStatusCancelled, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownGatewayStatus, gatewayStatus)
	}
}

// RecordGatewayResult фиксирует результат шлюза. Повтор того же терминального
// статуса — идемпотентный no-op, перевод между разными терминальными
// статусами запрещён. Конкурирующие подтверждения разрешает условный UPDATE
// по статусу pending.
func (s *Service) RecordGatewayResult(ctx context.Context, paymentUID, gatewayStatus, orderID, txnID string) (*models.Payment, error) {
	status, err := mapGatewayStatus(gatewayStatus)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.GetPayment(ctx, paymentUID)
	if err != nil {
		return nil, err
	}
	if p.Status == status {
		s.log.Info("gateway result replayed, nothing to do",
			slog.String("payment_uid", paymentUID), slog.String("status", status))
		return p, nil
	}
	if p.Status != models.PaymentStatusPending {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, status)
	}

	affected, err := s.repo.UpdateGatewayResult(ctx, paymentUID, status, orderID, txnID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Параллельный вызов успел первым: перечитываем и повторяем проверку.
		p, err = s.repo.GetPayment(ctx, paymentUID)
		if err != nil {
			return nil, err
		}
		if p.Status == status {
			return p, nil
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, status)
	}

	s.log.Info("payment status updated",
		slog.String("payment_uid", paymentUID), slog.String("status", status))
	return s.repo.GetPayment(ctx, paymentUID)
}

// CorrectStatus — административная правка статуса платежа, в обход правила
// монотонных переходов.
func (s *Service) CorrectStatus(ctx context.Context, paymentUID, status string) error {
	switch status {
	case models.PaymentStatusPending, models.PaymentStatusCompleted,
		models.PaymentStatusFailed, models.PaymentStatusCancelled:
	default:
		return fmt.Errorf("unknown payment status: %s", status)
	}
	if err := s.repo.ForcePaymentStatus(ctx, paymentUID, status); err != nil {
		return err
	}
	s.log.Warn("payment status corrected by admin",
		slog.String("payment_uid", paymentUID), slog.String("status", status))
	return nil
}

// ListByPlan возвращает платежи плана, новые первыми.
func (s *Service) ListByPlan(ctx context.Context, planType string, limit, offset int) ([]*models.Payment, error) {
	return s.repo.ListPaymentsByPlan(ctx, planType, limit, offset)
}

// Verify возвращает статус платежа для клиентского опроса после возврата
// из 3-D Secure. Учётные данные участника наружу не отдаются.
func (s *Service) Verify(ctx context.Context, paymentUID string) (*models.PaymentVerification, error) {
	p, err := s.repo.GetPayment(ctx, paymentUID)
	if err != nil {
		return nil, err
	}

	hasMembership := false
	if _, err := s.repo.GetMembershipByPayment(ctx, paymentUID); err == nil {
		hasMembership = true
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	return &models.PaymentVerification{
		Status:        p.Status,
		IsCompleted:   p.Status == models.PaymentStatusCompleted,
		HasMembership: hasMembership,
	}, nil
}
