package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const initTimeout = 10 * time.Second

// GateFactory builds the gate for one browser context.
type GateFactory func(browserID string) *Gate

// Registry keeps one long-lived gate per browser id.
type Registry struct {
	newGate GateFactory
	idle    time.Duration
	now     func() time.Time

	mu    sync.Mutex
	gates map[string]*registryEntry

	ctx    context.Context
	cancel context.CancelFunc
}

type registryEntry struct {
	gate     *Gate
	lastSeen time.Time
}

func NewRegistry(newGate GateFactory, idle time.Duration) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		newGate: newGate,
		idle:    idle,
		now:     time.Now,
		gates:   make(map[string]*registryEntry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Get returns the gate for browserID, creating and initialising it in the
// background on first use.
func (r *Registry) Get(browserID string) *Gate {
	r.mu.Lock()
	if e, ok := r.gates[browserID]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		return e.gate
	}
	g := r.newGate(browserID)
	r.gates[browserID] = &registryEntry{gate: g, lastSeen: r.now()}
	r.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(r.ctx, initTimeout)
		defer cancel()
		g.Initialize(ctx)
	}()
	return g
}

// Forget disposes the gate of browserID, if any.
func (r *Registry) Forget(browserID string) {
	r.mu.Lock()
	e, ok := r.gates[browserID]
	delete(r.gates, browserID)
	r.mu.Unlock()
	if ok {
		e.gate.Dispose()
	}
}

// Sweep disposes gates idle longer than the idle window and returns how many.
func (r *Registry) Sweep(now time.Time) int {
	var stale []*Gate
	r.mu.Lock()
	for id, e := range r.gates {
		if now.Sub(e.lastSeen) > r.idle {
			stale = append(stale, e.gate)
			delete(r.gates, id)
		}
	}
	r.mu.Unlock()

	for _, g := range stale {
		g.Dispose()
	}
	if len(stale) > 0 {
		slog.Debug("auth: swept idle gates", "count", len(stale))
	}
	return len(stale)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gates)
}

func (r *Registry) Close() {
	r.cancel()
	r.mu.Lock()
	gates := r.gates
	r.gates = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range gates {
		e.gate.Dispose()
	}
}
