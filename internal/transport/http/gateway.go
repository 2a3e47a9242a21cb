package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/cwrk-planet/burner-chat/internal/domain"
	httpmw "github.com/cwrk-planet/burner-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/burner-chat/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

// GET /room/{roomId}: вход в комнату. Новому участнику ставится cookie,
// отказ уводит на лендинг с ?error=room-not-found|room-full.
func (h *Handler) EnterRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	presented := httpmw.SessionToken(r, h.cfg.Cookie.Name)

	adm, err := h.memberSvc.Admit(r.Context(), roomID, presented)
	if err != nil {
		writeError(w, r, "handler.EnterRoom:", err)
		return
	}

	switch adm.Kind {
	case domain.AdmissionContinue:
	case domain.AdmissionRoomNotFound, domain.AdmissionRoomFull:
		slog.InfoContext(r.Context(), "admission denied",
			slog.String("room_id", roomID), slog.String("outcome", adm.Kind.String()))
		http.Redirect(w, r, h.landing(adm.Kind.String()), http.StatusFound)
		return
	}

	if adm.Issued {
		h.cfg.Cookie.Set(w, adm.Token)
	}
	if h.cfg.IndexFile != "" {
		http.ServeFile(w, r, h.cfg.IndexFile)
		return
	}
	httputil.JSON(w, http.StatusOK, CreateRoomResponse{RoomID: roomID})
}

// RedirectLanding: всё остальное под /room/ ведёт на лендинг.
func (h *Handler) RedirectLanding(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.cfg.LandingPath, http.StatusFound)
}

func (h *Handler) landing(reason string) string {
	u, err := url.Parse(h.cfg.LandingPath)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	q.Set("error", reason)
	u.RawQuery = q.Encode()
	return u.String()
}
