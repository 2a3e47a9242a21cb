package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/burner-chat/internal/broadcast"
	"github.com/cwrk-planet/burner-chat/internal/domain"
	"github.com/cwrk-planet/burner-chat/internal/metrics"
	"github.com/cwrk-planet/burner-chat/internal/redisstore"
	"github.com/cwrk-planet/burner-chat/internal/security"
)

// destroyEmitTimeout ограничивает ожидание брокера перед удалением комнаты.
const destroyEmitTimeout = 3 * time.Second

type RoomService struct {
	roomRepo *redisstore.RoomRepository
	ttl      *redisstore.TTLSynchronizer
	bus      broadcast.Bus
	newID    security.IDGenerator
}

func NewRoomService(
	roomRepo *redisstore.RoomRepository,
	ttl *redisstore.TTLSynchronizer,
	bus broadcast.Bus,
	newID security.IDGenerator,
) *RoomService {
	return &RoomService{roomRepo: roomRepo, ttl: ttl, bus: bus, newID: newID}
}

// CreateRoom создаёт пустую комнату с полным временем жизни.
func (s *RoomService) CreateRoom(ctx context.Context) (*domain.Room, error) {
	room := &domain.Room{ID: s.newID()}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("roomRepo.Create: %w", err)
	}
	if _, err := s.ttl.Sync(ctx, room.ID); err != nil {
		return nil, fmt.Errorf("ttl.Sync: %w", err)
	}

	metrics.RoomsCreated.Inc()
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	return s.roomRepo.Get(ctx, id)
}

// TTL: оставшиеся секунды жизни комнаты, 0 если её уже нет.
func (s *RoomService) TTL(ctx context.Context, id string) (int64, error) {
	d, err := s.roomRepo.TTL(ctx, id)
	if err != nil {
		return 0, err
	}
	return int64(d / time.Second), nil
}

// DeleteRoom сначала рассылает chat.destroy и только потом удаляет ключи.
// Ошибка рассылки не останавливает удаление.
func (s *RoomService) DeleteRoom(ctx context.Context, id string) error {
	emitCtx, cancel := context.WithTimeout(ctx, destroyEmitTimeout)
	err := s.bus.Emit(emitCtx, id, domain.Event{
		Type:    domain.EventChatDestroy,
		Payload: domain.DestroyPayload{IsDestroyed: true},
	})
	cancel()
	metrics.BroadcastEmits.WithLabelValues(domain.EventChatDestroy, metrics.Result(err)).Inc()
	if err != nil {
		slog.ErrorContext(ctx, "service.DeleteRoom: emit destroy", slog.String("room_id", id), slog.Any("err", err))
	}

	if err := s.roomRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("roomRepo.Delete: %w", err)
	}
	metrics.RoomsDestroyed.Inc()
	return nil
}
