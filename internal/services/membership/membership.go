// Package membership содержит бизнес-логику членств: провижининг по
// завершённому платежу, ленивую переоценку срока доступа и административные
// правки, с кешированием чтений.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/membership-portal/internal/lib/credentials"
	"github.com/magabrotheeeer/membership-portal/internal/lib/password"
	"github.com/magabrotheeeer/membership-portal/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
	"github.com/magabrotheeeer/membership-portal/internal/storage/repository"
)

// ValidityMonths — срок действия доступа для всех текущих планов.
const ValidityMonths = 6

// ErrPaymentNotCompleted возвращается при попытке провижининга по платежу,
// который ещё не завершён.
var ErrPaymentNotCompleted = errors.New("payment is not completed")

// ErrAlreadyProvisioned возвращается, когда членство по платежу уже выдано.
// Для повторного webhook это штатный исход, а не сбой.
var ErrAlreadyProvisioned = errors.New("membership already provisioned for payment")

// ErrInvalidExpiration возвращается, когда новая дата окончания раньше даты выдачи.
var ErrInvalidExpiration = errors.New("expiration must not precede grant date")

// Repository определяет методы хранилища, нужные сервису членств.
type Repository interface {
	GetPayment(ctx context.Context, uid string) (*models.Payment, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	RegisterUser(ctx context.Context, user models.User) (string, error)
	CreateMembership(ctx context.Context, m models.Membership) (int, error)
	GetMembershipByUser(ctx context.Context, userUID string) (*models.Membership, error)
	GetMembershipByPayment(ctx context.Context, paymentUID string) (*models.Membership, error)
	UpdateMembershipActive(ctx context.Context, id int, isActive bool) (string, error)
	UpdateMembershipExpiration(ctx context.Context, userUID string, expiresAt time.Time) error
	ListMemberships(ctx context.Context, filter models.MembershipFilter) ([]*models.MembershipListItem, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Publisher публикует сообщения для отправителя уведомлений.
type Publisher interface {
	Publish(exchange, routingKey string, message any) error
}

// Service реализует бизнес-логику членств.
type Service struct {
	repo      Repository
	cache     Cache
	publisher Publisher
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, cache Cache, publisher Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		log:       log,
	}
}

func cacheKeyForUser(userUID string) string {
	return fmt.Sprintf("membership:user:%s", userUID)
}

// Provision выдаёт членство по завершённому платежу ровно один раз:
// генерирует пару логин/пароль, определяет владельца по email покупателя
// (создавая учётную запись, если покупка была до регистрации) и ставит
// письмо с учётными данными в очередь уведомлений. Сбой постановки в
// очередь логируется и не откатывает членство. Возвращает членство и
// пароль в открытом виде для одноразового показа.
func (s *Service) Provision(ctx context.Context, paymentUID string) (*models.Membership, string, error) {
	p, err := s.repo.GetPayment(ctx, paymentUID)
	if err != nil {
		return nil, "", err
	}
	if p.Status != models.PaymentStatusCompleted {
		return nil, "", fmt.Errorf("%w: status %s", ErrPaymentNotCompleted, p.Status)
	}

	if _, err := s.repo.GetMembershipByPayment(ctx, paymentUID); err == nil {
		return nil, "", ErrAlreadyProvisioned
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", err
	}

	memberUsername, memberPassword, err := credentials.NewPair()
	if err != nil {
		return nil, "", err
	}
	hash, err := password.GetHash(memberPassword)
	if err != nil {
		return nil, "", err
	}

	userUID, err := s.resolveUser(ctx, p, memberUsername, hash)
	if err != nil {
		return nil, "", err
	}

	grantedAt := time.Now().UTC()
	m := models.Membership{
		PaymentUID:         paymentUID,
		UserUID:            userUID,
		MemberUsername:     memberUsername,
		MemberPasswordHash: hash,
		AccessGrantedAt:    grantedAt,
		AccessExpiresAt:    grantedAt.AddDate(0, ValidityMonths, 0),
		IsActive:           true,
	}
	id, err := s.repo.CreateMembership(ctx, m)
	if err != nil {
		if errors.Is(err, repository.ErrMembershipExists) {
			// Конкурирующее подтверждение успело первым.
			return nil, "", ErrAlreadyProvisioned
		}
		return nil, "", err
	}
	m.ID = id
	s.log.Info("provisioned new membership",
		slog.Int("membership_id", id), slog.String("payment_uid", paymentUID))

	info := models.CredentialsInfo{
		MembershipID:    id,
		CustomerName:    p.CustomerName,
		Email:           p.CustomerEmail,
		MemberUsername:  memberUsername,
		MemberPassword:  memberPassword,
		AccessExpiresAt: m.AccessExpiresAt,
	}
	if err := s.publisher.Publish(rabbitmq.Exchange, rabbitmq.RoutingKeyCredentials, info); err != nil {
		s.log.Error("failed to publish credentials message", sl.Err(err),
			slog.Int("membership_id", id))
	}

	if err := s.cache.Invalidate(cacheKeyForUser(userUID)); err != nil {
		s.log.Warn("failed to invalidate cache", sl.Err(err))
	}

	return &m, memberPassword, nil
}

// resolveUser находит владельца членства по email покупателя или создаёт
// учётную запись со сгенерированными учётными данными участника.
func (s *Service) resolveUser(ctx context.Context, p *models.Payment, memberUsername, passwordHash string) (string, error) {
	u, err := s.repo.GetUserByEmail(ctx, p.CustomerEmail)
	if err == nil {
		return u.UID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	uid, err := s.repo.RegisterUser(ctx, models.User{
		Email:        p.CustomerEmail,
		Username:     memberUsername,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
	})
	if err != nil {
		return "", err
	}
	s.log.Info("created user account for customer", slog.String("user_uid", uid))
	return uid, nil
}

// GetForUser возвращает членство пользователя, используя кеш или репозиторий.
func (s *Service) GetForUser(ctx context.Context, userUID string) (*models.Membership, error) {
	var result *models.Membership
	cacheKey := cacheKeyForUser(userUID)
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		s.log.Warn("failed to read from cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found {
		return result, nil
	}
	result, err = s.repo.GetMembershipByUser(ctx, userUID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
		s.log.Warn("failed to add to cache", slog.String("key", cacheKey), sl.Err(err))
	}
	return result, nil
}

// GetForPayment возвращает членство, выданное по платежу.
func (s *Service) GetForPayment(ctx context.Context, paymentUID string) (*models.Membership, error) {
	return s.repo.GetMembershipByPayment(ctx, paymentUID)
}

// CheckAndExpire лениво переоценивает срок доступа пользователя: если срок
// прошёл, а флаг ещё активен, гасит его и сохраняет. Перевод возможен только
// в сторону деактивации, повторный вызов без изменений ничего не пишет.
func (s *Service) CheckAndExpire(ctx context.Context, userUID string) (bool, error) {
	m, err := s.repo.GetMembershipByUser(ctx, userUID)
	if err != nil {
		return false, err
	}

	if m.AccessExpiresAt.Before(time.Now()) {
		if m.IsActive {
			if _, err := s.repo.UpdateMembershipActive(ctx, m.ID, false); err != nil {
				return false, err
			}
			if err := s.cache.Invalidate(cacheKeyForUser(userUID)); err != nil {
				s.log.Warn("failed to invalidate cache", sl.Err(err))
			}
			s.log.Info("membership expired and deactivated",
				slog.Int("membership_id", m.ID), slog.String("user_uid", userUID))
		}
		return false, nil
	}
	return m.IsActive, nil
}

// SetActive — административная правка флага активности, в том числе
// реактивация истёкшего членства. До следующей переоценки срока действует
// значение, выставленное администратором.
func (s *Service) SetActive(ctx context.Context, membershipID int, isActive bool) error {
	userUID, err := s.repo.UpdateMembershipActive(ctx, membershipID, isActive)
	if err != nil {
		return err
	}
	if err := s.cache.Invalidate(cacheKeyForUser(userUID)); err != nil {
		s.log.Warn("failed to invalidate cache", sl.Err(err))
	}
	s.log.Info("membership active flag set by admin",
		slog.Int("membership_id", membershipID), slog.Bool("is_active", isActive))
	return nil
}

// SetExpiration — административная правка даты окончания доступа.
func (s *Service) SetExpiration(ctx context.Context, userUID string, expiresAt time.Time) error {
	m, err := s.repo.GetMembershipByUser(ctx, userUID)
	if err != nil {
		return err
	}
	if expiresAt.Before(m.AccessGrantedAt) {
		return ErrInvalidExpiration
	}
	if err := s.repo.UpdateMembershipExpiration(ctx, userUID, expiresAt); err != nil {
		return err
	}
	if err := s.cache.Invalidate(cacheKeyForUser(userUID)); err != nil {
		s.log.Warn("failed to invalidate cache", sl.Err(err))
	}
	s.log.Info("membership expiration set by admin",
		slog.String("user_uid", userUID), slog.Time("access_expires_at", expiresAt))
	return nil
}

// List возвращает членства для админки по фильтру.
func (s *Service) List(ctx context.Context, filter models.MembershipFilter) ([]*models.MembershipListItem, error) {
	return s.repo.ListMemberships(ctx, filter)
}
