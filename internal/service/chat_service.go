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

type ChatService struct {
	chatRepo *redisstore.MessageRepository
	ttl      *redisstore.TTLSynchronizer
	bus      broadcast.Bus
	newID    security.IDGenerator

	now func() time.Time
}

func NewChatService(
	chatRepo *redisstore.MessageRepository,
	ttl *redisstore.TTLSynchronizer,
	bus broadcast.Bus,
	newID security.IDGenerator,
) *ChatService {
	return &ChatService{chatRepo: chatRepo, ttl: ttl, bus: bus, newID: newID, now: time.Now}
}

// Save дописывает сообщение и рассылает его участникам.
// Комната истекла между проверкой и записью: domain.ErrRoomGone.
func (s *ChatService) Save(ctx context.Context, roomID, sender, text, ownerToken string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:        s.newID(),
		Sender:    sender,
		Text:      text,
		Timestamp: s.now().UnixMilli(),
		RoomID:    roomID,
		Token:     ownerToken,
	}

	if err := s.chatRepo.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("chatRepo.Append: %w", err)
	}
	metrics.MessagesAppended.Inc()

	// сообщение уже записано: ошибки ниже только логируем
	if _, err := s.ttl.Sync(ctx, roomID); err != nil {
		slog.WarnContext(ctx, "service.Save: ttl sync", slog.String("room_id", roomID), slog.Any("err", err))
	}

	wire := *msg
	wire.Token = ""
	err := s.bus.Emit(ctx, roomID, domain.Event{Type: domain.EventChatMessage, Payload: wire})
	metrics.BroadcastEmits.WithLabelValues(domain.EventChatMessage, metrics.Result(err)).Inc()
	if err != nil {
		slog.WarnContext(ctx, "service.Save: emit message", slog.String("room_id", roomID), slog.Any("err", err))
	}

	return msg, nil
}

// History: сообщения комнаты в порядке записи. Токен владельца виден
// только ему самому.
func (s *ChatService) History(ctx context.Context, roomID, requesterToken string) ([]domain.Message, error) {
	msgs, err := s.chatRepo.List(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i] = msgs[i].RedactedFor(requesterToken)
	}
	return msgs, nil
}
