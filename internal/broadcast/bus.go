// Package broadcast доставляет события комнаты текущим подписчикам.
// Доставка best-effort: события не сохраняются, опоздавший подписчик их не увидит.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cwrk-planet/burner-chat/internal/domain"
)

const (
	BackendRedis = "redis"
	BackendNATS  = "nats"
)

var ErrClosed = errors.New("broadcast: bus closed")

// Bus: подключаемый транспорт событий. Emit возвращается только после того,
// как брокер принял событие: на этом держится порядок destroy -> delete.
type Bus interface {
	Emit(ctx context.Context, roomID string, ev domain.Event) error
	Subscribe(ctx context.Context, roomID string) (Subscription, error)
	Close() error
}

type Subscription interface {
	Events() <-chan domain.Event
	Close() error
}

func encode(roomID string, ev domain.Event) ([]byte, error) {
	ev.RoomID = roomID
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

func decode(data []byte) (domain.Event, error) {
	var ev domain.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return domain.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
