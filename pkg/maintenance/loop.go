package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/internal/telemetry"
	"github.com/marmos91/mediastorage/pkg/metrics"
)

// cycleFunc performs one pass over the working set, reporting whether it
// made progress (processed at least one item). The loop driver repeats a
// cycle until a pass reports no progress, then sleeps sleepPeriod; this
// mirrors the source's "while records_processed: keep going" shape for the
// policy maintainers (§4.5.1, §4.5.2) and the plain per-cycle sleep used by
// the reconcilers (§4.5.3).
type cycleFunc func(ctx context.Context) (processed bool, err error)

// outsideWindowSleep is how long a loop naps between window rechecks when
// it is not currently permitted to run, fixed by spec.md §4.5's intro.
const outsideWindowSleep = 60 * time.Second

// loop is the cooperative run-loop shared by every maintenance task: gated
// by a Window, draining its working set each time it becomes eligible, then
// sleeping for a configured inter-cycle period. Grounded on a worker/
// stopCh/sync.WaitGroup shutdown shape, adapted from an N-worker pool to a
// single long-running task per maintenance concern (the source ran one
// thread per concern too).
type loop struct {
	name        string
	window      Window
	sleepPeriod time.Duration
	cycle       cycleFunc
	metrics     *metrics.MaintenanceMetrics

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newLoop(name string, window Window, sleepPeriod time.Duration, cycle cycleFunc, m *metrics.MaintenanceMetrics) *loop {
	return &loop{
		name:        name,
		window:      window,
		sleepPeriod: sleepPeriod,
		cycle:       cycle,
		metrics:     m,
	}
}

// Start begins running the loop in the background. Calling Start twice is a
// no-op.
func (l *loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	go l.run()
}

// Stop signals the loop to exit and blocks until it does. A loop that was
// never started returns immediately.
func (l *loop) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	stopCh, doneCh := l.stopCh, l.doneCh
	l.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (l *loop) run() {
	defer close(l.doneCh)
	ctx := context.Background()

	for {
		if !l.window.Contains(time.Now()) {
			logger.Debug("not in execution window; sleeping", "loop", l.name)
			if l.sleep(outsideWindowSleep) {
				return
			}
			continue
		}

		for {
			spanCtx, span := telemetry.StartMaintenanceSpan(ctx, l.name)
			start := time.Now()
			processed, err := l.cycle(spanCtx)
			items := 0
			if processed {
				items = 1
			}
			l.metrics.RecordCycle(l.name, items, time.Since(start).Seconds())
			if err != nil {
				logger.Error("maintenance cycle failed", "loop", l.name, "error", err)
				l.metrics.RecordError(l.name)
				telemetry.RecordError(spanCtx, err)
			}
			span.End()
			if !processed {
				break
			}
			select {
			case <-l.stopCh:
				return
			default:
			}
		}

		logger.Debug("working set drained; sleeping", "loop", l.name, "period", l.sleepPeriod)
		if l.sleep(l.sleepPeriod) {
			return
		}
	}
}

// sleep waits for d, returning true if the loop was asked to stop first.
func (l *loop) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.stopCh:
		return true
	case <-timer.C:
		return false
	}
}
