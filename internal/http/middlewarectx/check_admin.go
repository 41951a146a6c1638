package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/account-validity/internal/http/response"
	"github.com/magabrotheeeer/account-validity/internal/lib/jwt"
)

// AdminOnlyMiddleware пропускает дальше только запросы с ролью серверного
// администратора в контексте.
func AdminOnlyMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := r.Context().Value(Role).(string)
			if !ok || role != jwt.RoleAdmin {
				log.Error("admin endpoint requested without admin role")
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.Error("You are not a server admin"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
