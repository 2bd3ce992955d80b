// Package membershipportal собирает основное HTTP-приложение: хранилище,
// миграции, кэш, брокер уведомлений, платежный шлюз и все сервисы.
package membershipportal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/membership-portal/internal/cache"
	"github.com/magabrotheeeer/membership-portal/internal/config"
	"github.com/magabrotheeeer/membership-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/membership-portal/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/membership-portal/internal/lib/smtp"
	"github.com/magabrotheeeer/membership-portal/internal/migrations"
	"github.com/magabrotheeeer/membership-portal/internal/paymentgateway"
	authservice "github.com/magabrotheeeer/membership-portal/internal/services/auth"
	membershipservice "github.com/magabrotheeeer/membership-portal/internal/services/membership"
	paymentservice "github.com/magabrotheeeer/membership-portal/internal/services/payment"
	reminderservice "github.com/magabrotheeeer/membership-portal/internal/services/reminder"
	senderservice "github.com/magabrotheeeer/membership-portal/internal/services/sender"
	"github.com/magabrotheeeer/membership-portal/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер и его зависимости.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New создает приложение: подключает хранилище, выполняет миграции,
// инициализирует кэш, брокер, платежный шлюз и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(ch)

	gatewayClient := paymentgateway.NewClient(cfg.MerchantID, cfg.SecretKey, cfg.APIURL)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	transport := smtp.NewTransport(cfg, logger)

	authService := authservice.NewAuthService(db, jwtMaker)
	paymentService := paymentservice.New(db, gatewayClient, cfg.ReturnURL, logger)
	membershipService := membershipservice.New(db, cacheRedis, publisher, logger)
	senderService := senderservice.NewSenderService(db, transport, logger)
	reminderService := reminderservice.New(db, senderService, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, db,
		authService, paymentService, membershipService, reminderService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if cerr := a.ch.Close(); cerr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", cerr))
		}
		if cerr := a.conn.Close(); cerr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", cerr))
		}
		a.db.DB.Close()
		return err
	}
}
