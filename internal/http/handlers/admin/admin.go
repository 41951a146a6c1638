// Package admin реализует HTTP-обработчик административного изменения
// срока действия учетной записи.
//
// Handler принимает JSON-запрос с идентификатором пользователя, опциональным
// моментом истечения и опциональным флагом почтовых напоминаний, валидирует
// их и возвращает примененный момент истечения в JSON-формате.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/account-validity/internal/http/response"
	"github.com/magabrotheeeer/account-validity/internal/lib/sl"
	"github.com/magabrotheeeer/account-validity/internal/models"
)

// Handler управляет HTTP-запросами административного изменения валидности.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики изменения срока действия.
type Service interface {
	SetAccountValidity(ctx context.Context, userID string, expirationTsMs *int64, enableRenewalEmails *bool) (int64, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.String("user_id", req.UserID))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	applied, err := h.service.SetAccountValidity(r.Context(), req.UserID, req.ExpirationTsMs, req.EnableRenewalEmails)
	if err != nil {
		log.Error("failed to set account validity", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not set account validity"))
		return
	}

	log.Info("account validity updated",
		slog.String("user_id", req.UserID), slog.Int64("expiration_ts", applied))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"expiration_ts": applied,
	}))
}
