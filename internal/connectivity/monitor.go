// Package connectivity tracks whether the remote store is reachable and
// kicks the queue drains on every offline→online transition.
package connectivity

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Notifier surfaces sync outcomes to the user. Best-effort: the queue
// state is already settled by the time a notification fires.
type Notifier interface {
	Notify(message string)
}

type LogNotifier struct{}

func (LogNotifier) Notify(message string) {
	log.Printf("[notify] %s", message)
}

type Monitor struct {
	pinger   Pinger
	notifier Notifier
	interval time.Duration

	online atomic.Bool

	// transitionMu serializes transition handling so rapid flapping
	// cannot run two drain sequences at once.
	transitionMu sync.Mutex
	drains       []func(ctx context.Context) error
}

func New(pinger Pinger, notifier Notifier, interval time.Duration) *Monitor {
	if interval < time.Second {
		interval = 5 * time.Second
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Monitor{
		pinger:   pinger,
		notifier: notifier,
		interval: interval,
	}
}

// Online is the shared flag every domain-store operation reads to decide
// local-only vs mirrored writes.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnOnline registers a drain to run after each offline→online transition.
// Drains run in registration order.
func (m *Monitor) OnOnline(drain func(ctx context.Context) error) {
	m.drains = append(m.drains, drain)
}

// SetOnline records a connectivity signal. Flipping to online replays the
// queues; flipping to offline only clears the flag — a drain already in
// flight finishes its current operation and the rest stay pending.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	was := m.online.Swap(online)
	if was == online {
		return
	}
	if !online {
		log.Printf("[connectivity] offline")
		return
	}

	log.Printf("[connectivity] online, draining pending operations")
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	var failed bool
	for _, drain := range m.drains {
		if err := drain(ctx); err != nil {
			log.Printf("[connectivity] drain error: %v", err)
			failed = true
		}
	}
	if failed {
		m.notifier.Notify("sync finished with errors; some operations stay queued")
		return
	}
	m.notifier.Notify("all pending operations synced")
}

// Start probes the remote on a ticker until ctx is done. The first probe
// establishes the startup state.
func (m *Monitor) Start(ctx context.Context) {
	m.probe(ctx)
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

func (m *Monitor) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	m.SetOnline(ctx, m.pinger.Ping(pingCtx) == nil)
}
