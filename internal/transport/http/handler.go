package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/burner-chat/internal/service"
	httpmw "github.com/cwrk-planet/burner-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/burner-chat/pkg/httputil"
)

const maxBodyBytes = 16 << 10

type Handler struct {
	roomSvc   *service.RoomService
	memberSvc *service.MemberService
	chatSvc   *service.ChatService

	cfg Config
}

// Config: параметры страницы входа в комнату.
type Config struct {
	Cookie httpmw.SessionCookie
	// LandingPath: куда уводить, если войти нельзя.
	LandingPath string
	// IndexFile: страница комнаты; пусто: отвечаем JSON.
	IndexFile string
}

func NewHandler(room *service.RoomService, member *service.MemberService, chat *service.ChatService, cfg Config) *Handler {
	if cfg.LandingPath == "" {
		cfg.LandingPath = "/"
	}
	return &Handler{
		roomSvc:   room,
		memberSvc: member,
		chatSvc:   chat,
		cfg:       cfg,
	}
}

// POST /api/room/create
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomSvc.CreateRoom(r.Context())
	if err != nil {
		writeError(w, r, "handler.CreateRoom:", err)
		return
	}

	httputil.JSON(w, http.StatusOK, CreateRoomResponse{RoomID: room.ID})
}

// GET /api/room/ttl?roomId=
func (h *Handler) GetTTL(w http.ResponseWriter, r *http.Request) {
	auth, _ := httpmw.AuthFromCtx(r.Context())

	ttl, err := h.roomSvc.TTL(r.Context(), auth.RoomID)
	if err != nil {
		writeError(w, r, "handler.GetTTL:", err)
		return
	}

	httputil.JSON(w, http.StatusOK, TTLResponse{TTL: ttl})
}

// DELETE /api/room?roomId=
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	auth, _ := httpmw.AuthFromCtx(r.Context())

	if err := h.roomSvc.DeleteRoom(r.Context(), auth.RoomID); err != nil {
		writeError(w, r, "handler.DeleteRoom:", err)
		return
	}

	httputil.JSON(w, http.StatusOK, StatusResponse{Status: "destroyed"})
}

// GET /api/room/presence?roomId=
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	auth, _ := httpmw.AuthFromCtx(r.Context())

	n, err := h.memberSvc.Online(r.Context(), auth.RoomID)
	if err != nil {
		writeError(w, r, "handler.GetPresence:", err)
		return
	}

	httputil.JSON(w, http.StatusOK, PresenceResponse{Online: n})
}

// POST /api/messages?roomId=
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	auth, _ := httpmw.AuthFromCtx(r.Context())

	var req PostMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		slog.DebugContext(r.Context(), "handler.PostMessage.Decode:", slog.Any("err", err))
		httputil.Error(r.Context(), w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.Error(r.Context(), w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	msg, err := h.chatSvc.Save(r.Context(), auth.RoomID, req.Sender, req.Text, auth.Token)
	if err != nil {
		writeError(w, r, "handler.PostMessage:", err)
		return
	}

	httputil.JSON(w, http.StatusCreated, MessageResponse{Message: *msg})
}

// GET /api/messages?roomId=
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	auth, _ := httpmw.AuthFromCtx(r.Context())

	msgs, err := h.chatSvc.History(r.Context(), auth.RoomID, auth.Token)
	if err != nil {
		writeError(w, r, "handler.ListMessages:", err)
		return
	}

	httputil.JSON(w, http.StatusOK, MessagesResponse{Messages: msgs})
}
