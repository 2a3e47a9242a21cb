package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/cwrk-planet/burner-chat/internal/broadcast"
	"github.com/cwrk-planet/burner-chat/internal/domain"
	"github.com/cwrk-planet/burner-chat/internal/metrics"
	httpmw "github.com/cwrk-planet/burner-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/burner-chat/pkg/httputil"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type MemberSvc interface {
	Connect(ctx context.Context, roomID, connID string) (int64, error)
	Disconnect(ctx context.Context, roomID, connID string) error
	Online(ctx context.Context, roomID string) (int64, error)
}

type Server struct {
	upgrader  websocket.Upgrader
	hub       *Hub
	memberSvc MemberSvc
	bus       broadcast.Bus

	pingEvery time.Duration
}

// NewServer: origins: разрешённые Origin; пусто: только тот же хост.
func NewServer(hub *Hub, member MemberSvc, bus broadcast.Bus, origins []string) *Server {
	s := &Server{
		hub:       hub,
		memberSvc: member,
		bus:       bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pingEvery: 15 * time.Second,
	}
	if len(origins) > 0 {
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(origins, r.Header.Get("Origin"))
		}
	}
	return s
}

// GET /api/realtime?roomId=: только за AuthMiddleware.
// Клиент лишь слушает: сообщения отправляются через POST /api/messages.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	auth, ok := httpmw.AuthFromCtx(r.Context())
	if !ok {
		httputil.Error(r.Context(), w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам ответил клиенту
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, auth.RoomID, uuid.NewString())
	defer func() { _ = c.Close() }()

	// запрос уже не наш: живём до закрытия сокета
	ctx := context.WithoutCancel(r.Context())

	if err := s.hub.Add(ctx, c); err != nil {
		slog.Error("ws hub add failed", "room", c.roomID, "err", err)
		return
	}
	defer s.hub.Remove(c)

	online, err := s.memberSvc.Connect(ctx, c.roomID, c.id)
	if err != nil {
		if errors.Is(err, domain.ErrRoomGone) {
			_ = c.Send(Message{Type: TypeDestroy, Payload: domain.DestroyPayload{IsDestroyed: true}})
			return
		}
		slog.Error("ws presence join failed", "room", c.roomID, "err", err)
		return
	}
	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()

	if err := c.Send(Message{Type: TypeState, Payload: StatePayload{RoomID: c.roomID, Online: online}}); err != nil {
		slog.Debug("ws send initial state failed", "room", c.roomID, "err", err)
	}
	s.emitPresence(ctx, c.roomID, online)

	go s.writeLoop(c)
	s.readLoop(c)

	leaveCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.memberSvc.Disconnect(leaveCtx, c.roomID, c.id); err != nil {
		slog.Debug("ws presence leave failed", "room", c.roomID, "err", err)
		return
	}
	if online, err := s.memberSvc.Online(leaveCtx, c.roomID); err == nil {
		s.emitPresence(leaveCtx, c.roomID, online)
	}
}

func (s *Server) emitPresence(ctx context.Context, roomID string, online int64) {
	err := s.bus.Emit(ctx, roomID, domain.Event{
		Type:    domain.EventPresence,
		Payload: domain.PresencePayload{Online: online},
	})
	metrics.BroadcastEmits.WithLabelValues(domain.EventPresence, metrics.Result(err)).Inc()
	if err != nil {
		slog.Debug("ws emit presence failed", "room", roomID, "err", err)
	}
}

// readLoop держит read deadline по pong и завершается при закрытии сокета.
// Входящие кадры игнорируются.
func (s *Server) readLoop(c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(4 << 10)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

type wsConn struct {
	conn   *websocket.Conn
	roomID string
	id     string
	sendMu chan struct{}
	closed chan struct{}
	once   sync.Once
}

func newWsConn(c *websocket.Conn, roomID, id string) *wsConn {
	return &wsConn{
		conn:   c,
		roomID: roomID,
		id:     id,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

// Close можно звать из нескольких горутин: хаб закрывает соединения после destroy.
func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) ID() string     { return c.id }
func (c *wsConn) RoomID() string { return c.roomID }
