package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cwrk-planet/burner-chat/internal/domain"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const defaultFlushTimeout = 2 * time.Second

// NATSBus: core NATS publish/subscribe на subject room.{id}.events.
type NATSBus struct {
	nc           *nats.Conn
	flushTimeout time.Duration
	owned        bool
}

// ConnectNATS открывает собственное соединение; Close его закроет.
func ConnectNATS(url, name string) (*NATSBus, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	b := NewNATSBus(nc)
	b.owned = true
	return b, nil
}

func NewNATSBus(nc *nats.Conn) *NATSBus {
	return &NATSBus{nc: nc, flushTimeout: defaultFlushTimeout}
}

func subject(roomID string) string {
	return "room." + roomID + ".events"
}

// Emit публикует событие и ждёт Flush: после возврата сервер его получил.
func (b *NATSBus) Emit(ctx context.Context, roomID string, ev domain.Event) error {
	data, err := encode(roomID, ev)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(subject(roomID))
	msg.Data = data
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))

	if err := b.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	// FlushWithContext требует deadline
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.flushTimeout)
		defer cancel()
	}
	if err := b.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

func (b *NATSBus) Subscribe(ctx context.Context, roomID string) (Subscription, error) {
	in := make(chan *nats.Msg, 64)
	sub, err := b.nc.ChanSubscribe(subject(roomID), in)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	// подписка должна дойти до сервера раньше, чем кто-то начнёт публиковать
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.flushTimeout)
		defer cancel()
	}
	if err := b.nc.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats subscribe flush: %w", err)
	}

	s := &natsSubscription{
		sub:  sub,
		in:   in,
		out:  make(chan domain.Event, 16),
		done: make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

func (b *NATSBus) Close() error {
	if b.owned {
		b.nc.Close()
	}
	return nil
}

type natsSubscription struct {
	sub  *nats.Subscription
	in   chan *nats.Msg
	out  chan domain.Event
	done chan struct{}
	once sync.Once
}

func (s *natsSubscription) loop() {
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.in:
			ev, err := decode(msg.Data)
			if err != nil {
				slog.Warn("broadcast: skip malformed event", "subject", msg.Subject, "err", err)
				continue
			}
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}
	}
}

func (s *natsSubscription) Events() <-chan domain.Event { return s.out }

func (s *natsSubscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.sub.Unsubscribe()
		close(s.done)
	})
	return err
}
