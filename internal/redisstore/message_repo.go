package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cwrk-planet/burner-chat/internal/domain"

	"github.com/redis/go-redis/v9"
)

// appendScript: KEYS[1] = meta, KEYS[2] = messages, ARGV[1] = запись.
// Проверка существования комнаты и запись в историю: одна операция,
// поэтому список сообщений не может появиться без expiry.
var appendScript = redis.NewScript(`
local ttl = redis.call('PTTL', KEYS[1])
if ttl == -2 then
	return -1
end
local n = redis.call('RPUSH', KEYS[2], ARGV[1])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[2], ttl)
end
return n
`)

type MessageRepository struct {
	db *redis.Client
}

func NewMessageRepository(db *redis.Client) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append дописывает сообщение в конец истории комнаты.
// Если комнаты уже нет: domain.ErrRoomGone.
func (r *MessageRepository) Append(ctx context.Context, m *domain.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	k := keysFor(m.RoomID)

	n, err := appendScript.Run(ctx, r.db, []string{k.Meta, k.Messages}, data).Int64()
	if err != nil {
		return fmt.Errorf("append script: %w", err)
	}
	if n < 0 {
		return domain.ErrRoomGone
	}
	return nil
}

// List возвращает историю в порядке добавления, вместе с токенами владельцев.
func (r *MessageRepository) List(ctx context.Context, roomID string) ([]domain.Message, error) {
	raw, err := r.db.LRange(ctx, keysFor(roomID).Messages, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]domain.Message, 0, len(raw))
	for _, s := range raw {
		var m domain.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
