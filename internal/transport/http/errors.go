package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/burner-chat/internal/domain"
	"github.com/cwrk-planet/burner-chat/pkg/httputil"
)

// statusFor: единственное место, где доменные ошибки превращаются в HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrRoomGone):
		return http.StatusNotFound, "room not found"
	case errors.Is(err, domain.ErrRoomFull):
		return http.StatusConflict, "room is full"
	case domain.IsAuthError(err):
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), op, slog.Any("err", err))
	}
	httputil.Error(r.Context(), w, status, msg, nil)
}
