package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/burner-chat/internal/broadcast"
	"github.com/cwrk-planet/burner-chat/internal/domain"
)

type Conn interface {
	Send(msg Message) error
	Close() error
	ID() string
	RoomID() string
}

// Hub держит локальные соединения по комнатам и одну подписку на шину
// на комнату, пока в ней есть хотя бы одно соединение этого процесса.
type Hub struct {
	bus              broadcast.Bus
	subscribeTimeout time.Duration

	mu    sync.Mutex
	rooms map[string]*room // roomID -> соединения + подписка
}

type room struct {
	conns map[Conn]struct{}
	sub   broadcast.Subscription
}

func NewHub(bus broadcast.Bus) *Hub {
	return &Hub{
		bus:              bus,
		subscribeTimeout: 5 * time.Second,
		rooms:            make(map[string]*room),
	}
}

// Add регистрирует соединение. Первое соединение комнаты подписывает её
// на шину; Subscribe идёт вне h.mu и ограничен subscribeTimeout.
func (h *Hub) Add(ctx context.Context, c Conn) error {
	roomID := c.RoomID()
	if h.attach(roomID, c) {
		return nil
	}

	subCtx, cancel := context.WithTimeout(ctx, h.subscribeTimeout)
	sub, err := h.bus.Subscribe(subCtx, roomID)
	cancel()
	if err != nil {
		return fmt.Errorf("bus.Subscribe: %w", err)
	}

	h.mu.Lock()
	rm, ok := h.rooms[roomID]
	if !ok {
		rm = &room{conns: make(map[Conn]struct{}), sub: sub}
		h.rooms[roomID] = rm
		go h.pump(roomID, rm)
	}
	rm.conns[c] = struct{}{}
	h.mu.Unlock()

	// другой Add успел первым
	if ok {
		if err := sub.Close(); err != nil {
			slog.Debug("ws hub: close extra subscription", "room", roomID, "err", err)
		}
	}
	return nil
}

// attach добавляет c в уже подписанную комнату.
func (h *Hub) attach(roomID string, c Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[roomID]
	if ok {
		rm.conns[c] = struct{}{}
	}
	return ok
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	rm, ok := h.rooms[c.RoomID()]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(rm.conns, c)
	empty := len(rm.conns) == 0
	if empty {
		delete(h.rooms, c.RoomID())
	}
	h.mu.Unlock()

	if empty {
		if err := rm.sub.Close(); err != nil {
			slog.Debug("ws hub: close subscription", "room", c.RoomID(), "err", err)
		}
	}
}

// Rooms: число комнат с локальными соединениями.
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// pump переносит события шины в соединения комнаты. После chat.destroy
// соединения закрываются: комнаты больше нет.
func (h *Hub) pump(roomID string, rm *room) {
	for ev := range rm.sub.Events() {
		conns := h.snapshot(rm)
		msg := fromEvent(ev)
		for _, c := range conns {
			if err := c.Send(msg); err != nil { // best-effort
				slog.Debug("ws hub: send failed", "room", roomID, "conn", c.ID(), "err", err)
			}
		}
		if ev.Type == domain.EventChatDestroy {
			for _, c := range conns {
				_ = c.Close()
			}
		}
	}
}

func (h *Hub) snapshot(rm *room) []Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Conn, 0, len(rm.conns))
	for c := range rm.conns {
		out = append(out, c)
	}
	return out
}

// CloseAll закрывает все локальные соединения: http.Server.Shutdown
// не трогает hijacked-сокеты.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var conns []Conn
	for _, rm := range h.rooms {
		for c := range rm.conns {
			conns = append(conns, c)
		}
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
