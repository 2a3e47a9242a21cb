package httpmw

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/burner-chat/internal/domain"
	"github.com/cwrk-planet/burner-chat/pkg/httputil"
)

type ctxKey string

const ctxKeyAuth ctxKey = "auth"

// Authorizer: проверка (roomId, token); реализуется service.MemberService.
type Authorizer interface {
	Authorize(ctx context.Context, roomID, token string) (domain.AuthContext, error)
}

// AuthMiddleware пропускает запрос только участнику комнаты из ?roomId=.
// Токен берётся из session cookie. Любой отказ: 401 без подробностей.
func AuthMiddleware(authz Authorizer, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roomID := r.URL.Query().Get("roomId")
			token := SessionToken(r, cookieName)

			auth, err := authz.Authorize(r.Context(), roomID, token)
			if err != nil {
				if !domain.IsAuthError(err) {
					slog.ErrorContext(r.Context(), "httpmw.AuthMiddleware:", slog.Any("err", err))
					httputil.Error(r.Context(), w, http.StatusInternalServerError, "internal error", nil)
					return
				}
				slog.DebugContext(r.Context(), "httpmw.AuthMiddleware: rejected",
					slog.String("room_id", roomID), slog.Any("err", err))
				httputil.Error(r.Context(), w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyAuth, auth)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AuthFromCtx(ctx context.Context) (domain.AuthContext, bool) {
	v, ok := ctx.Value(ctxKeyAuth).(domain.AuthContext)
	return v, ok
}
