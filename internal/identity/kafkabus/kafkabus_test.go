package kafkabus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/TrackDesk/internal/broker/messages"
	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu    sync.Mutex
	msgs  [][]byte
	topic string
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.msgs = append(p.msgs, value)
	return p.err
}

func TestBus_PublishDeliversLocallyAndStripsCredentials(t *testing.T) {
	pub := &recordingPublisher{}
	b := New(pub, "auth.events", "web-1")

	var got []identity.Event
	b.Subscribe(func(ev identity.Event) { got = append(got, ev) })

	sess := &identity.Session{ID: "s1", AccessToken: "secret-access", RefreshToken: "s1.secret-refresh"}
	require.NoError(t, b.Publish(context.Background(), identity.Event{
		Tag: identity.EventSignedIn, SessionID: "s1", UserID: "u1", Session: sess, At: time.Now(),
	}))
	b.Flush()

	require.Len(t, got, 1)
	require.Same(t, sess, got[0].Session)

	require.Equal(t, "auth.events", pub.topic)
	require.Len(t, pub.msgs, 1)
	require.NotContains(t, string(pub.msgs[0]), "secret")

	var wire messages.AuthEvent
	require.NoError(t, json.Unmarshal(pub.msgs[0], &wire))
	require.Equal(t, "SIGNED_IN", wire.Tag)
	require.Equal(t, "web-1", wire.Origin)
}

func TestBus_PublishFailureIsNotReturned(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	b := New(pub, "auth.events", "web-1")
	require.NoError(t, b.Publish(context.Background(), identity.Event{Tag: identity.EventSignedOut, SessionID: "s1"}))
	b.Flush()
}

func TestBus_HandleSkipsOwnAndBadMessages(t *testing.T) {
	b := New(nil, "auth.events", "web-1")
	var got []identity.Event
	b.Subscribe(func(ev identity.Event) { got = append(got, ev) })

	own, _ := json.Marshal(messages.AuthEvent{Tag: "SIGNED_OUT", SessionID: "s1", Origin: "web-1"})
	require.NoError(t, b.Handle(nil, own))
	require.NoError(t, b.Handle(nil, []byte("{broken")))
	unknown, _ := json.Marshal(messages.AuthEvent{Tag: "PASSWORD_RECOVERY", Origin: "web-2"})
	require.NoError(t, b.Handle(nil, unknown))
	require.Empty(t, got)

	remote, _ := json.Marshal(messages.AuthEvent{Tag: "USER_UPDATED", UserID: "u1", Origin: "track-admin"})
	require.NoError(t, b.Handle(nil, remote))
	require.Len(t, got, 1)
	require.Equal(t, identity.EventUserUpdated, got[0].Tag)
	require.Equal(t, "u1", got[0].UserID)
	require.Nil(t, got[0].Session)
}

func TestBus_WithoutPublisherStaysLocal(t *testing.T) {
	b := New(nil, "", "cli")
	calls := 0
	unsub := b.Subscribe(func(identity.Event) { calls++ })
	require.NoError(t, b.Publish(context.Background(), identity.Event{Tag: identity.EventUserUpdated}))
	unsub()
	require.NoError(t, b.Publish(context.Background(), identity.Event{Tag: identity.EventUserUpdated}))
	require.Equal(t, 1, calls)
}
