package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/storage/repository"
)

// MembershipService описывает интерфейс сервиса для ленивой проверки срока членства.
type MembershipService interface {
	CheckAndExpire(ctx context.Context, userUID string) (bool, error)
}

// MembershipMiddleware возвращает HTTP middleware, который проверяет наличие
// активного членства у пользователя из контекста.
//
// Перед проверкой выполняется ленивое истечение: если срок доступа уже прошёл,
// членство деактивируется при этом же запросе. Отсутствие членства — 404,
// истёкшее или деактивированное — 403.
func MembershipMiddleware(membershipService MembershipService, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.MembershipMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			userUID, ok := r.Context().Value(UserUID).(string)
			if !ok {
				log.Error("user uid is missing in context")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}

			active, err := membershipService.CheckAndExpire(r.Context(), userUID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					log.Warn("membership not found", slog.String("user_uid", userUID))
					w.WriteHeader(http.StatusNotFound)
					render.JSON(w, r, response.Error("membership not found"))
					return
				}
				log.Error("failed to check membership", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error("failed to check membership"))
				return
			}
			if !active {
				log.Warn("membership is expired or inactive", slog.String("user_uid", userUID))
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.Error("membership is expired or inactive"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
