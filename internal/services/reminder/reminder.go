// Package reminder реализует пакетную рассылку напоминаний об окончании
// доступа. Выборка — только по дате, ровно за 30 дней до окончания; сбой
// отправки одному получателю не прерывает обработку остальных.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// ReminderDays — за сколько дней до окончания доступа уходит напоминание.
const ReminderDays = 30

// Repository определяет выборку членств для напоминаний.
type Repository interface {
	FindMembershipsExpiringSoon(ctx context.Context, days int) ([]*models.ExpiringMembership, error)
}

// Mailer отправляет письмо-напоминание.
type Mailer interface {
	SendExpirationReminderEmail(name, email string, expiresAt time.Time) error
}

// Failure описывает неудачную отправку одному получателю.
type Failure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// Report — итог одного запуска рассылки.
type Report struct {
	Total        int       `json:"total"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	Failures     []Failure `json:"failures,omitempty"`
	Duration     string    `json:"duration"`
}

// Service реализует задание рассылки напоминаний.
type Service struct {
	repo   Repository
	mailer Mailer
	log    *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, mailer Mailer, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		mailer: mailer,
		log:    log,
	}
}

// Run выполняет один проход рассылки: выбирает членства с окончанием ровно
// через 30 дней и отправляет каждому напоминание независимо. Повторных
// попыток внутри запуска нет: на следующий день выборка эти членства уже
// не вернёт.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	candidates, err := s.repo.FindMembershipsExpiringSoon(ctx, ReminderDays)
	if err != nil {
		return nil, err
	}

	report := &Report{Total: len(candidates)}
	for _, c := range candidates {
		if err := s.mailer.SendExpirationReminderEmail(c.CustomerName, c.Email, c.AccessExpiresAt); err != nil {
			s.log.Error("failed to send expiration reminder", sl.Err(err),
				slog.String("email", c.Email), slog.Int("membership_id", c.MembershipID))
			report.FailureCount++
			report.Failures = append(report.Failures, Failure{Email: c.Email, Error: err.Error()})
			continue
		}
		report.SuccessCount++
	}

	report.Duration = time.Since(start).String()
	s.log.Info("expiration reminder run finished",
		slog.Int("total", report.Total),
		slog.Int("success", report.SuccessCount),
		slog.Int("failed", report.FailureCount),
		slog.String("duration", report.Duration))
	return report, nil
}
