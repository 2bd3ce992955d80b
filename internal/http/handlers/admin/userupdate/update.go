// Package userupdate реализует HTTP-обработчик административных правок пользователя.
//
// Администратор может изменить роль пользователя и продлить срок действия
// его членства. Оба поля опциональны, но хотя бы одно должно быть задано.
package userupdate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	membershipsvc "github.com/magabrotheeeer/membership-portal/internal/services/membership"
	"github.com/magabrotheeeer/membership-portal/internal/storage/repository"
)

// Request — входные данные для правки пользователя.
type Request struct {
	Role            *string    `json:"role" validate:"omitempty,oneof=user admin"`
	AccessExpiresAt *time.Time `json:"access_expires_at"`
}

// AuthService определяет интерфейс для изменения роли пользователя.
type AuthService interface {
	UpdateUserRole(ctx context.Context, userUID, role string) error
}

// MembershipService определяет интерфейс для изменения срока членства.
type MembershipService interface {
	SetExpiration(ctx context.Context, userUID string, expiresAt time.Time) error
}

// Handler обрабатывает запросы на правку пользователя.
type Handler struct {
	log         *slog.Logger
	auth        AuthService
	memberships MembershipService
	validate    *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, auth AuthService, memberships MembershipService) *Handler {
	return &Handler{
		log:         log,
		auth:        auth,
		memberships: memberships,
		validate:    validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Правка пользователя
// @Description Изменяет роль пользователя и/или продлевает срок его членства.
// Только для администраторов.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param uid path string true "Идентификатор пользователя"
// @Param request body Request true "Новая роль и/или дата окончания доступа"
// @Success 200 {object} response.Response "Пользователь обновлен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Пользователь или членство не найдены"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/users/{uid} [patch]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.userupdate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID := chi.URLParam(r, "uid")
	if err := h.validate.Var(userUID, "required,uuid"); err != nil {
		log.Error("invalid user uid", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid user uid"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	if req.Role == nil && req.AccessExpiresAt == nil {
		log.Error("request body is empty")
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("role or access_expires_at is required"))
		return
	}

	if req.Role != nil {
		if err := h.auth.UpdateUserRole(r.Context(), userUID, *req.Role); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				log.Warn("user not found", slog.String("user_uid", userUID))
				w.WriteHeader(http.StatusNotFound)
				render.JSON(w, r, response.Error("user not found"))
				return
			}
			log.Error("failed to update user role", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to update user role"))
			return
		}
		log.Info("user role updated", slog.String("user_uid", userUID), slog.String("role", *req.Role))
	}

	if req.AccessExpiresAt != nil {
		if err := h.memberships.SetExpiration(r.Context(), userUID, *req.AccessExpiresAt); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				log.Warn("membership not found", slog.String("user_uid", userUID))
				w.WriteHeader(http.StatusNotFound)
				render.JSON(w, r, response.Error("membership not found"))
				return
			case errors.Is(err, membershipsvc.ErrInvalidExpiration):
				log.Error("invalid expiration date", sl.Err(err))
				w.WriteHeader(http.StatusUnprocessableEntity)
				render.JSON(w, r, response.Error("expiration must not precede grant date"))
				return
			default:
				log.Error("failed to update expiration", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error("failed to update expiration"))
				return
			}
		}
		log.Info("membership expiration updated",
			slog.String("user_uid", userUID),
			slog.Time("access_expires_at", *req.AccessExpiresAt))
	}

	render.JSON(w, r, response.OK())
}
