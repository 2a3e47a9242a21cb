package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cwrk-planet/burner-chat/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisBus: Redis PUBLISH/SUBSCRIBE. PUBLISH синхронен: к моменту ответа
// сервер уже положил событие в буферы всех подписчиков.
type RedisBus struct {
	db     *redis.Client
	prefix string
}

func NewRedisBus(db *redis.Client) *RedisBus {
	return &RedisBus{db: db, prefix: "room:"}
}

func (b *RedisBus) channel(roomID string) string {
	return b.prefix + roomID
}

func (b *RedisBus) Emit(ctx context.Context, roomID string, ev domain.Event) error {
	data, err := encode(roomID, ev)
	if err != nil {
		return err
	}
	if err := b.db.Publish(ctx, b.channel(roomID), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe возвращается после подтверждения подписки сервером.
func (b *RedisBus) Subscribe(ctx context.Context, roomID string) (Subscription, error) {
	ps := b.db.Subscribe(ctx, b.channel(roomID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	s := &redisSubscription{
		ps:   ps,
		out:  make(chan domain.Event, 16),
		done: make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

// Close: клиент Redis общий, его закрывает владелец.
func (b *RedisBus) Close() error { return nil }

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan domain.Event
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) loop() {
	defer close(s.out)

	for msg := range s.ps.Channel() {
		ev, err := decode([]byte(msg.Payload))
		if err != nil {
			slog.Warn("broadcast: skip malformed event", "channel", msg.Channel, "err", err)
			continue
		}
		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Events() <-chan domain.Event { return s.out }

func (s *redisSubscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.ps.Close()
}
