// Package membershipportal предоставляет маршруты для основного приложения.
package membershipportal

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/membership-portal/internal/config"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/admin/membershiplist"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/admin/membershipupdate"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/admin/paymentcorrect"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/admin/userupdate"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/health"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/jobs/reminders"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/members/profile"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/payment/paymentcreate"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/payment/paymentlist"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/payment/paymentreturn"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/payment/paymentverify"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/membership-portal/internal/http/middlewarectx"
	authservice "github.com/magabrotheeeer/membership-portal/internal/services/auth"
	membershipservice "github.com/magabrotheeeer/membership-portal/internal/services/membership"
	paymentservice "github.com/magabrotheeeer/membership-portal/internal/services/payment"
	reminderservice "github.com/magabrotheeeer/membership-portal/internal/services/reminder"
	"github.com/magabrotheeeer/membership-portal/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, db *repository.Storage,
	authService *authservice.AuthService, paymentService *paymentservice.Service,
	membershipService *membershipservice.Service, reminderService *reminderservice.Service,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)
		r.Get("/health", health.New(logger, db).ServeHTTP)

		// Покупка доступна до регистрации
		r.Post("/payments", paymentcreate.New(logger, paymentService).ServeHTTP)
		r.Get("/payments/return", paymentreturn.New(logger, paymentService, membershipService).ServeHTTP)
		r.Get("/payments/{uid}/verify", paymentverify.New(logger, paymentService).ServeHTTP)

		// Webhook endpoint (подпись вместо аутентификации)
		r.Post("/payments/webhook", paymentwebhook.New(logger, paymentService, membershipService, cfg.WebhookSecret).ServeHTTP)

		// Запуск фоновой рассылки внешним планировщиком
		r.Get("/jobs/expiration-reminders", reminders.New(logger, reminderService, cfg.CronSecret).ServeHTTP)

		// Закрытый раздел участников
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.MembershipMiddleware(membershipService, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/members/profile", profile.New(logger, membershipService).ServeHTTP)
		})

		// Административные конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.AdminMiddleware(logger))
			r.Get("/admin/memberships", membershiplist.New(logger, membershipService).ServeHTTP)
			r.Patch("/admin/memberships/{id}", membershipupdate.New(logger, membershipService).ServeHTTP)
			r.Patch("/admin/users/{uid}", userupdate.New(logger, authService, membershipService).ServeHTTP)
			r.Get("/admin/payments", paymentlist.New(logger, paymentService).ServeHTTP)
			r.Patch("/admin/payments/{uid}", paymentcorrect.New(logger, paymentService).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
