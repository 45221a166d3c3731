package trace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/saucer/core"
	"github.com/mattjoyce/saucer/internal/log"
)

const (
	defaultBuffer    = 1024
	defaultBatchSize = 128
	flushInterval    = 100 * time.Millisecond
)

// Recorder is an asynchronous observer. Observe never blocks the loop: when
// the buffer is full the observation is dropped and counted.
type Recorder struct {
	store  *Store
	runID  string
	logger *slog.Logger

	ch      chan Record
	done    chan struct{}
	dropped atomic.Int64
	once    sync.Once
	mu      sync.Mutex
	closed  bool
	err     error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*recorderOptions)

type recorderOptions struct {
	buffer int
	logger *slog.Logger
}

// WithBuffer sets how many observations may wait to be written.
func WithBuffer(n int) RecorderOption { return func(o *recorderOptions) { o.buffer = n } }

// WithRecorderLogger sets the recorder logger.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(o *recorderOptions) { o.logger = l }
}

// NewRecorder begins a run for program and starts the writer.
func NewRecorder(ctx context.Context, store *Store, program string, opts ...RecorderOption) (*Recorder, error) {
	o := recorderOptions{buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	runID, err := store.BeginRun(ctx, program, time.Now())
	if err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = log.WithRun(runID)
	}
	r := &Recorder{
		store:  store,
		runID:  runID,
		logger: o.logger,
		ch:     make(chan Record, max(o.buffer, 1)),
		done:   make(chan struct{}),
	}
	go r.write()
	return r, nil
}

// RunID returns the id of the run being recorded.
func (r *Recorder) RunID() string { return r.runID }

// Observer returns r as a core.Observer.
func (r *Recorder) Observer() core.Observer { return r.Observe }

// Observe queues o for writing.
func (r *Recorder) Observe(o core.Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.ch <- FromObservation(o):
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many observations were not recorded.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

func (r *Recorder) write() {
	defer close(r.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, defaultBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.store.Append(context.Background(), r.runID, batch); err != nil {
			r.logger.Error("trace write failed", "error", err, "records", len(batch))
			r.dropped.Add(int64(len(batch)))
			if r.err == nil {
				r.err = err
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-r.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= defaultBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close writes everything queued and marks the run ended. It returns the
// first write error, if any.
func (r *Recorder) Close(ctx context.Context) error {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.ch)
		r.mu.Unlock()
	})
	select {
	case <-r.done:
	case <-ctx.Done():
		return fmt.Errorf("close recorder: %w", ctx.Err())
	}
	if err := r.store.EndRun(ctx, r.runID, time.Now(), int(r.Dropped())); err != nil {
		return err
	}
	return r.err
}
