package heartbeat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zsprackett/streamsim/internal/events"
)

const DefaultInterval = 2000 * time.Millisecond

// Ticker emits an incrementing integer on the heartbeat channel every
// interval. The first emission happens one interval after Start and
// carries 0.
type Ticker struct {
	emitter  events.Emitter
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
	logger   *slog.Logger

	mu   sync.Mutex
	tick int
}

func New(emitter events.Emitter, interval time.Duration, logger *slog.Logger) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ticker{
		emitter:  emitter,
		interval: interval,
		stop:     make(chan struct{}),
		logger:   logger,
	}
}

func (t *Ticker) Start() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.beat()
			case <-t.stop:
				return
			}
		}
	}()
}

// Stop halts the ticker and waits for an in-flight beat. Safe to call
// more than once.
func (t *Ticker) Stop() {
	t.once.Do(func() { close(t.stop) })
	t.wg.Wait()
}

// Beats returns how many heartbeats have been emitted.
func (t *Ticker) Beats() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tick
}

func (t *Ticker) beat() {
	t.mu.Lock()
	n := t.tick
	t.tick++
	t.mu.Unlock()

	if err := t.emitter.Emit(events.Heartbeat, n); err != nil {
		t.logger.Debug("heartbeat emit failed", "tick", n, "err", err)
	}
}
