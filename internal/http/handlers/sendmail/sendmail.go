// Package sendmail реализует HTTP-обработчик запроса письма о продлении.
//
// Handler извлекает идентификатор пользователя из контекста и инициирует
// выпуск токена и отправку напоминания для него вне планового цикла.
package sendmail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/account-validity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/account-validity/internal/http/response"
	"github.com/magabrotheeeer/account-validity/internal/lib/sl"
	"github.com/magabrotheeeer/account-validity/internal/storage"
)

// Handler управляет HTTP-запросами на внеплановую отправку письма.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики отправки напоминания.
type Service interface {
	SendRenewalEmailToUser(ctx context.Context, userID string) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.sendmail"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := r.Context().Value(middlewarectx.User).(string)
	if !ok || userID == "" {
		log.Error("user id not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	if err := h.service.SendRenewalEmailToUser(r.Context(), userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Error("no validity record for user", slog.String("user_id", userID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no validity record for user"))
			return
		}
		log.Error("failed to send renewal email", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not send renewal email"))
		return
	}

	log.Info("renewal email requested", slog.String("user_id", userID))
	render.JSON(w, r, response.OK())
}
