package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS[1] = meta, KEYS[2..] = остальные ключи комнаты.
// Возвращает оставшийся PTTL meta (-2 если комнаты нет, -1 если без expiry).
var syncTTLScript = redis.NewScript(`
local ttl = redis.call('PTTL', KEYS[1])
if ttl <= 0 then
	return ttl
end
for i = 2, #KEYS do
	redis.call('PEXPIRE', KEYS[i], ttl)
end
return ttl
`)

// TTLSynchronizer выравнивает expiry всех ключей комнаты по оставшемуся времени жизни meta.
type TTLSynchronizer struct {
	db *redis.Client
}

func NewTTLSynchronizer(db *redis.Client) *TTLSynchronizer {
	return &TTLSynchronizer{db: db}
}

// Sync: одна атомарная операция: прочитать PTTL meta и применить его к соседним ключам.
// Для отсутствующей комнаты ничего не делает и возвращает 0.
func (s *TTLSynchronizer) Sync(ctx context.Context, roomID string) (time.Duration, error) {
	k := keysFor(roomID)
	keys := append([]string{k.Meta}, k.siblings()...)

	ms, err := syncTTLScript.Run(ctx, s.db, keys).Int64()
	if err != nil {
		return 0, fmt.Errorf("sync ttl: %w", err)
	}
	if ms <= 0 {
		return 0, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}
