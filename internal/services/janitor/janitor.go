// Package janitor periodically purges dead auth sessions and idle auth gates.
package janitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type SessionPurger interface {
	PurgeSessions(ctx context.Context, before time.Time) (int64, error)
}

type GateSweeper interface {
	Sweep(now time.Time) int
}

type Janitor struct {
	sessions SessionPurger
	gates    GateSweeper

	interval  time.Duration
	retention time.Duration
	now       func() time.Time

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalCycles         atomic.Int64
	totalPurged         atomic.Int64
	totalSwept          atomic.Int64
	totalErrors         atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

// New builds a janitor. gates may be nil when no gate registry runs in-process.
func New(sessions SessionPurger, gates GateSweeper) *Janitor {
	return &Janitor{
		sessions:          sessions,
		gates:             gates,
		interval:          10 * time.Minute,
		retention:         24 * time.Hour,
		now:               time.Now,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (j *Janitor) WithSettings(interval, retention time.Duration) *Janitor {
	if interval > 0 {
		j.interval = interval
	}
	if retention > 0 {
		j.retention = retention
	}
	return j
}

// Trigger asks for an immediate cycle. It never blocks.
func (j *Janitor) Trigger() {
	j.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case j.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalCycles   int64      `json:"totalCycles"`
	TotalPurged   int64      `json:"totalPurgedSessions"`
	TotalSwept    int64      `json:"totalSweptGates"`
	TotalErrors   int64      `json:"totalErrors"`
	LastError     string     `json:"lastError,omitempty"`
}

func (j *Janitor) Stats() Stats {
	st := Stats{
		StartedAt:   time.Unix(0, j.startedAtUnixNano).UTC(),
		TotalCycles: j.totalCycles.Load(),
		TotalPurged: j.totalPurged.Load(),
		TotalSwept:  j.totalSwept.Load(),
		TotalErrors: j.totalErrors.Load(),
	}
	if n := j.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := j.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	j.lastErrorMu.Lock()
	st.LastError = j.lastError
	j.lastErrorMu.Unlock()
	return st
}

func (j *Janitor) Run(ctx context.Context) error {
	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			j.RunOnce(ctx)
		case <-j.triggerCh:
			j.RunOnce(ctx)
		}
	}
}

func (j *Janitor) RunOnce(ctx context.Context) {
	now := j.now().UTC()
	j.lastCycleUnixNano.Store(now.UnixNano())
	j.totalCycles.Add(1)

	if j.gates != nil {
		j.totalSwept.Add(int64(j.gates.Sweep(now)))
	}

	if j.sessions == nil {
		return
	}
	n, err := j.sessions.PurgeSessions(ctx, now.Add(-j.retention))
	if err != nil {
		j.totalErrors.Add(1)
		j.lastErrorMu.Lock()
		j.lastError = err.Error()
		j.lastErrorMu.Unlock()
		slog.Error("purge auth sessions", "error", err.Error())
		return
	}
	j.totalPurged.Add(n)
	if n > 0 {
		slog.Info("purged auth sessions", "count", n)
	}
}
