// Package api предоставляет маршруты HTTP-сервиса.
package api

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/account-validity/internal/http/handlers/admin"
	"github.com/magabrotheeeer/account-validity/internal/http/handlers/expiration"
	"github.com/magabrotheeeer/account-validity/internal/http/handlers/health"
	"github.com/magabrotheeeer/account-validity/internal/http/handlers/renew"
	"github.com/magabrotheeeer/account-validity/internal/http/handlers/sendmail"
	"github.com/magabrotheeeer/account-validity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/account-validity/internal/lib/jwt"
	validityservice "github.com/magabrotheeeer/account-validity/internal/services/validity"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, validityService *validityservice.ValidityService, maker jwt.Maker, appName string) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/account_validity", func(r chi.Router) {
		// Открытая страница продления из письма
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/renew", renew.New(logger, validityService, appName).ServeHTTP)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(maker, logger))
			r.Post("/send_mail", sendmail.New(logger, validityService).ServeHTTP)
			r.Get("/expiration", expiration.New(logger, validityService).ServeHTTP)

			// Административная группа
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnlyMiddleware(logger))
				r.Post("/admin", admin.New(logger, validityService).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
