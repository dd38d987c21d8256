package watcher

import (
	"context"
	"time"

	"github.com/ritzau/classpath-changes/pkg/logging"
)

// Debouncer batches rapid file system events to avoid excessive re-snapshotting
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

// run accumulates paths until the input has been quiet for quietPeriod, or
// maxWait has passed since the first accumulated event.
func (d *Debouncer) run(ctx context.Context) {
	var (
		quiet   <-chan time.Time
		maxWait <-chan time.Time
		seen    = make(map[string]bool)
		paths   []string
	)

	flush := func() {
		quiet, maxWait = nil, nil
		if len(paths) == 0 {
			return
		}
		logging.Debug("flushing accumulated events", "paths", len(paths))
		d.output <- ChangeEvent{Paths: paths, Timestamp: time.Now()}
		paths = nil
		seen = make(map[string]bool)
	}

	defer close(d.output)

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}
			for _, p := range event.Paths {
				if !seen[p] {
					seen[p] = true
					paths = append(paths, p)
				}
			}
			quiet = time.After(d.quietPeriod)
			if maxWait == nil {
				maxWait = time.After(d.maxWait)
			}

		case <-quiet:
			flush()

		case <-maxWait:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
