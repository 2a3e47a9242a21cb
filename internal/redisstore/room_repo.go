package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cwrk-planet/burner-chat/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	fieldConnected = "connected"
	fieldCreatedAt = "createdAt"
)

// Коды ответа admitScript.
const (
	admitNotFound int64 = iota
	admitMember
	admitFull
	admitAdded
)

// admitScript: условное добавление токена: чтение множества и запись
// выполняются одной операцией на стороне Redis, поэтому параллельные входы
// не могут превысить вместимость.
//
// KEYS[1] = meta; ARGV[1] = предъявленный токен (или ""), ARGV[2] = новый токен,
// ARGV[3] = вместимость.
var admitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return {0, 0}
end
local raw = redis.call('HGET', KEYS[1], 'connected')
local connected = {}
if raw and raw ~= '' then
	connected = cjson.decode(raw)
end
local presented = ARGV[1]
if presented ~= '' then
	for _, t in ipairs(connected) do
		if t == presented then
			return {1, #connected}
		end
	end
end
if #connected >= tonumber(ARGV[3]) then
	return {2, #connected}
end
table.insert(connected, ARGV[2])
redis.call('HSET', KEYS[1], 'connected', cjson.encode(connected))
return {3, #connected}
`)

type RoomRepository struct {
	db       *redis.Client
	ttl      time.Duration
	capacity int
}

func NewRoomRepository(db *redis.Client, ttl time.Duration, capacity int) *RoomRepository {
	if ttl <= 0 {
		ttl = domain.DefaultRoomTTL
	}
	if capacity <= 0 {
		capacity = domain.DefaultCapacity
	}
	return &RoomRepository{db: db, ttl: ttl, capacity: capacity}
}

func (r *RoomRepository) Capacity() int { return r.capacity }

// Create записывает метаданные новой комнаты и ставит им время жизни.
func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	k := keysFor(room.ID)
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}

	_, err := r.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k.Meta,
			fieldConnected, "[]",
			fieldCreatedAt, strconv.FormatInt(room.CreatedAt.UnixMilli(), 10),
		)
		pipe.PExpire(ctx, k.Meta, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}

	room.ConnectedTokens = []string{}
	room.RemainingTTL = r.ttl
	return nil
}

func (r *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	k := keysFor(id)

	var (
		fields *redis.MapStringStringCmd
		pttl   *redis.DurationCmd
	)
	_, err := r.db.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, k.Meta)
		pttl = pipe.PTTL(ctx, k.Meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}

	vals := fields.Val()
	if len(vals) == 0 {
		return nil, domain.ErrRoomNotFound
	}

	room := &domain.Room{ID: id, ConnectedTokens: []string{}}
	if raw := vals[fieldConnected]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &room.ConnectedTokens); err != nil {
			return nil, fmt.Errorf("decode connected: %w", err)
		}
	}
	if ms, err := strconv.ParseInt(vals[fieldCreatedAt], 10, 64); err == nil {
		room.CreatedAt = time.UnixMilli(ms)
	}
	if d := pttl.Val(); d > 0 {
		room.RemainingTTL = d
	}
	return room, nil
}

type AdmitResult struct {
	Kind      domain.AdmissionKind
	Added     bool
	Connected int
}

// Admit атомарно добавляет candidate в список участников, если там есть место.
// Если presented уже в списке: ничего не меняет.
func (r *RoomRepository) Admit(ctx context.Context, roomID, presented, candidate string) (AdmitResult, error) {
	if candidate == "" {
		return AdmitResult{}, errors.New("admit: empty candidate token")
	}
	k := keysFor(roomID)

	res, err := admitScript.Run(ctx, r.db, []string{k.Meta}, presented, candidate, r.capacity).Int64Slice()
	if err != nil {
		return AdmitResult{}, fmt.Errorf("admit script: %w", err)
	}
	if len(res) != 2 {
		return AdmitResult{}, fmt.Errorf("admit script: unexpected response length %d", len(res))
	}

	out := AdmitResult{Connected: int(res[1])}
	switch res[0] {
	case admitNotFound:
		out.Kind = domain.AdmissionRoomNotFound
	case admitMember:
		out.Kind = domain.AdmissionContinue
	case admitFull:
		out.Kind = domain.AdmissionRoomFull
	case admitAdded:
		out.Kind = domain.AdmissionContinue
		out.Added = true
	default:
		return AdmitResult{}, fmt.Errorf("admit script: unknown code %d", res[0])
	}
	return out, nil
}

// TTL: оставшееся время жизни комнаты; 0 если комнаты нет.
func (r *RoomRepository) TTL(ctx context.Context, id string) (time.Duration, error) {
	d, err := r.db.TTL(ctx, keysFor(id).Meta).Result()
	if err != nil {
		return 0, fmt.Errorf("room ttl: %w", err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// Delete удаляет все ключи комнаты одной командой. Повторный вызов: не ошибка.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.Del(ctx, keysFor(id).all()...).Err(); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}
