// Package kafkabus fans identity events out to every service instance.
//
// Publish delivers the full event in-process right away and writes a copy
// without credentials to Kafka. Each instance consumes the topic in its own
// consumer group and re-dispatches copies that did not originate from itself.
package kafkabus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/TrackDesk/internal/broker/messages"
	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/pkg/errors"
)

const publishTimeout = 5 * time.Second

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Bus struct {
	local  *identity.LocalBus
	pub    Publisher
	topic  string
	origin string

	wg sync.WaitGroup
}

var _ identity.Bus = (*Bus)(nil)

// New builds a bus for the instance named origin. pub may be nil, in which
// case events stay in-process.
func New(pub Publisher, topic, origin string) *Bus {
	return &Bus{
		local:  identity.NewLocalBus(),
		pub:    pub,
		topic:  topic,
		origin: origin,
	}
}

func (b *Bus) Origin() string { return b.origin }

func (b *Bus) Subscribe(fn func(identity.Event)) func() {
	return b.local.Subscribe(fn)
}

func (b *Bus) Publish(ctx context.Context, ev identity.Event) error {
	b.local.Dispatch(ev)
	if b.pub == nil {
		return nil
	}

	value, err := json.Marshal(messages.AuthEvent{
		Tag:       string(ev.Tag),
		SessionID: ev.SessionID,
		UserID:    ev.UserID,
		Origin:    b.origin,
		At:        ev.At,
	})
	if err != nil {
		return errors.Wrap(err, "marshal auth event")
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := b.pub.Publish(ctx, b.topic, []byte(ev.SessionID), value); err != nil {
			slog.Warn("kafkabus: publish failed", "tag", ev.Tag, "session_id", ev.SessionID, "err", err)
		}
	}()
	return nil
}

// Handle is the consumer callback for the auth events topic.
func (b *Bus) Handle(_, value []byte) error {
	var msg messages.AuthEvent
	if err := json.Unmarshal(value, &msg); err != nil {
		// ядовитое сообщение пропускаем, иначе консьюмер встанет
		slog.Warn("kafkabus: bad auth event", "err", err)
		return nil
	}
	if msg.Origin == b.origin {
		return nil
	}
	switch identity.EventTag(msg.Tag) {
	case identity.EventSignedIn, identity.EventSignedOut, identity.EventTokenRefreshed, identity.EventUserUpdated:
	default:
		slog.Warn("kafkabus: unknown auth event tag", "tag", msg.Tag)
		return nil
	}

	b.local.Dispatch(identity.Event{
		Tag:       identity.EventTag(msg.Tag),
		SessionID: msg.SessionID,
		UserID:    msg.UserID,
		At:        msg.At,
	})
	return nil
}

// Flush waits for in-flight Kafka writes.
func (b *Bus) Flush() {
	b.wg.Wait()
}
