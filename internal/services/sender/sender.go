// Package sender реализует отправку транзакционных писем: учётные данные
// нового участника и напоминания об окончании доступа.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/lib/smtp"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// MembershipRepository отмечает доставку учётных данных.
type MembershipRepository interface {
	MarkCredentialsSent(ctx context.Context, id int) error
}

// SenderService отправляет письма через SMTP-транспорт.
type SenderService struct {
	repo      MembershipRepository
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(repo MembershipRepository, transport smtp.TransportInterface, log *slog.Logger) *SenderService {
	return &SenderService{
		repo:      repo,
		transport: transport,
		log:       log,
	}
}

// SendCredentials обрабатывает сообщение очереди с учётными данными нового
// участника: отправляет письмо и отмечает доставку в хранилище. Ошибка
// возвращается потребителю, чтобы сообщение вернулось в очередь.
func (s *SenderService) SendCredentials(body []byte) error {
	var message models.CredentialsInfo
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	to := []string{message.Email}
	subject := "会員登録のご案内 / Ваши данные для входа в закрытый раздел"
	bodyText := fmt.Sprintf(`Здравствуйте, %s!

Оплата получена, доступ в закрытый раздел открыт.

Логин: %s
Пароль: %s

Доступ действует до %s.
Пожалуйста, сохраните эти данные: повторно они не показываются.`,
		message.CustomerName, message.MemberUsername, message.MemberPassword,
		message.AccessExpiresAt.Format("02.01.2006"))

	if err := s.sendEmail(to, subject, bodyText); err != nil {
		return err
	}

	if err := s.repo.MarkCredentialsSent(context.Background(), message.MembershipID); err != nil {
		s.log.Error("failed to mark credentials as sent", sl.Err(err),
			slog.Int("membership_id", message.MembershipID))
		return err
	}
	return nil
}

// SendExpirationReminderEmail отправляет напоминание о скором окончании доступа.
func (s *SenderService) SendExpirationReminderEmail(name, email string, expiresAt time.Time) error {
	to := []string{email}
	subject := "Уведомление о скором окончании доступа"
	bodyText := fmt.Sprintf(`Здравствуйте, %s!

Ваш доступ в закрытый раздел заканчивается %s.

Чтобы не потерять доступ, пожалуйста, продлите членство заранее.`,
		name, expiresAt.Format("02.01.2006"))

	return s.sendEmail(to, subject, bodyText)
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
