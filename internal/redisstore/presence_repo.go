package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// joinPresenceScript: KEYS[1] = meta, KEYS[2] = online, ARGV[1] = id соединения.
var joinPresenceScript = redis.NewScript(`
local ttl = redis.call('PTTL', KEYS[1])
if ttl == -2 then
	return -1
end
redis.call('SADD', KEYS[2], ARGV[1])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[2], ttl)
end
return redis.call('SCARD', KEYS[2])
`)

// PresenceRepository: множество живых realtime-соединений комнаты.
type PresenceRepository struct {
	db *redis.Client
}

func NewPresenceRepository(db *redis.Client) *PresenceRepository {
	return &PresenceRepository{db: db}
}

// Join регистрирует соединение. ok=false: комнаты уже нет.
func (r *PresenceRepository) Join(ctx context.Context, roomID, connID string) (online int64, ok bool, err error) {
	k := keysFor(roomID)
	n, err := joinPresenceScript.Run(ctx, r.db, []string{k.Meta, k.Online}, connID).Int64()
	if err != nil {
		return 0, false, fmt.Errorf("presence join: %w", err)
	}
	if n < 0 {
		return 0, false, nil
	}
	return n, true, nil
}

func (r *PresenceRepository) Leave(ctx context.Context, roomID, connID string) error {
	if err := r.db.SRem(ctx, keysFor(roomID).Online, connID).Err(); err != nil {
		return fmt.Errorf("presence leave: %w", err)
	}
	return nil
}

func (r *PresenceRepository) Count(ctx context.Context, roomID string) (int64, error) {
	n, err := r.db.SCard(ctx, keysFor(roomID).Online).Result()
	if err != nil {
		return 0, fmt.Errorf("presence count: %w", err)
	}
	return n, nil
}
