// Package expiration реализует HTTP-обработчик чтения момента истечения
// учетной записи текущего пользователя.
package expiration

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

// Handler управляет HTTP-запросами чтения момента истечения.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики чтения момента истечения.
type Service interface {
	GetExpiration(ctx context.Context, userID string) (int64, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.expiration"
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

	expirationTsMs, err := h.service.GetExpiration(r.Context(), userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		log.Error("no validity record for user", slog.String("user_id", userID))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("no validity record for user"))
		return
	}
	if err != nil {
		log.Error("failed to get expiration", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get expiration"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"expiration_ts": expirationTsMs,
	}))
}
