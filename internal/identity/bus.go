package identity

import (
	"context"
	"sync"
)

// Bus carries provider events to subscribers.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(fn func(Event)) (unsubscribe func())
}

// LocalBus delivers events synchronously to in-process subscribers.
type LocalBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(Event)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[uint64]func(Event))}
}

func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	b.Dispatch(ev)
	return nil
}

// Dispatch calls every subscriber in the caller's goroutine.
func (b *LocalBus) Dispatch(ev Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (b *LocalBus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *LocalBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
