// Package renew реализует HTTP-обработчик публичной страницы продления.
//
// Handler принимает GET-запрос со значением токена из письма, предъявляет его
// движку продления и отвечает HTML-страницей с одним из трех исходов:
// продлено, уже продлено этим токеном, либо токен невалиден.
package renew

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/account-validity/internal/http/response"
	"github.com/magabrotheeeer/account-validity/internal/lib/sl"
	"github.com/magabrotheeeer/account-validity/internal/models"
)

// Handler управляет HTTP-запросами на продление учетной записи по токену.
type Handler struct {
	log     *slog.Logger
	service Service
	appName string
}

// Service описывает интерфейс бизнес-логики предъявления токена.
type Service interface {
	ConsumeToken(ctx context.Context, token string) (models.RenewalResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service, appName string) *Handler {
	return &Handler{
		log:     log,
		service: service,
		appName: appName,
	}
}

var (
	renewedTmpl = template.Must(template.New("renewed").Parse(`<html>
<head><title>Account renewed</title></head>
<body>Your {{.AppName}} account has been successfully renewed and is valid until {{.ExpirationDate}}.</body>
</html>`))

	previouslyRenewedTmpl = template.Must(template.New("previously_renewed").Parse(`<html>
<head><title>Account previously renewed</title></head>
<body>Your {{.AppName}} account has already been renewed with this link and is valid until {{.ExpirationDate}}.</body>
</html>`))

	invalidTokenTmpl = template.Must(template.New("invalid_token").Parse(`<html>
<head><title>Invalid renewal token</title></head>
<body>Invalid renewal token.</body>
</html>`))
)

type pageData struct {
	AppName        string
	ExpirationDate string
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.renew"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		log.Error("missing renewal token in query")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing renewal token"))
		return
	}

	result, err := h.service.ConsumeToken(r.Context(), tokenStr)
	if err != nil {
		log.Error("failed to consume renewal token", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not process renewal token"))
		return
	}

	data := pageData{
		AppName:        h.appName,
		ExpirationDate: time.UnixMilli(result.ExpirationTsMs).UTC().Format("02-01-2006"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch result.Status {
	case models.StatusRenewed:
		log.Info("account renewed via link", slog.String("user_id", result.UserID))
		w.WriteHeader(http.StatusOK)
		h.execute(log, w, renewedTmpl, data)
	case models.StatusAlreadyRenewed:
		log.Info("account already renewed with this token", slog.String("user_id", result.UserID))
		w.WriteHeader(http.StatusOK)
		h.execute(log, w, previouslyRenewedTmpl, data)
	default:
		log.Info("invalid renewal token presented")
		w.WriteHeader(http.StatusNotFound)
		h.execute(log, w, invalidTokenTmpl, data)
	}
}

func (h *Handler) execute(log *slog.Logger, w http.ResponseWriter, tmpl *template.Template, data pageData) {
	if err := tmpl.Execute(w, data); err != nil {
		log.Error("failed to render page", sl.Err(err))
	}
}
