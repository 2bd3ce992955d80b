// Package reminders реализует HTTP-обработчик запуска рассылки напоминаний
// об окончании членства.
//
// Запуск инициируется внешним планировщиком (cron) и защищается общим секретом
// в заголовке Authorization. Если секрет не настроен, запуск разрешен без
// аутентификации с предупреждением в журнале.
package reminders

import (
	"context"
	"crypto/hmac"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/services/reminder"
)

// Service определяет интерфейс для запуска рассылки напоминаний.
type Service interface {
	Run(ctx context.Context) (*reminder.Report, error)
}

// Handler обрабатывает запросы на запуск рассылки напоминаний.
type Handler struct {
	log        *slog.Logger
	service    Service
	cronSecret string
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, cronSecret string) *Handler {
	return &Handler{
		log:        log,
		service:    service,
		cronSecret: cronSecret,
	}
}

// ServeHTTP godoc
// @Summary Запустить рассылку напоминаний
// @Description Находит членства, истекающие ровно через 30 дней, и рассылает
// напоминания по email. Возвращает сводный отчет о рассылке.
// @Tags Jobs
// @Produce  json
// @Success 200 {object} reminder.Report "Отчет о рассылке"
// @Failure 401 {object} response.ErrorResponse "Неверный секрет планировщика"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /jobs/expiration-reminders [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.jobs.reminders"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if h.cronSecret == "" {
		log.Warn("cron secret is not configured, job trigger is unauthenticated")
	} else {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !hmac.Equal([]byte(token), []byte(h.cronSecret)) {
			log.Error("invalid or missing cron secret")
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("unauthorized"))
			return
		}
	}

	report, err := h.service.Run(r.Context())
	if err != nil {
		log.Error("failed to run reminder job", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to run reminder job"))
		return
	}

	log.Info("reminder job finished",
		slog.Int("total", report.Total),
		slog.Int("success_count", report.SuccessCount),
		slog.Int("failure_count", report.FailureCount))
	render.JSON(w, r, response.OKWithData(report))
}
