package fdwatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

type (
	// ReadCallback is invoked on the worker goroutine when fd is readable.
	ReadCallback func(fd int)

	// TimeoutCallback is invoked on the worker goroutine when the configured
	// timeout elapses without any other activity.
	TimeoutCallback func()
)

// Watcher multiplexes readability of a set of file descriptors, plus a
// single timeout, onto one background worker goroutine.
//
// Callbacks run synchronously on the worker, with no internal lock held, so
// they may call any Watcher method, including [Watcher.Stop].
//
// A Watcher must be created with [New].
type Watcher struct {
	// Prevent copying
	_ [0]func()

	logger *logiface.Logger[logiface.Event]

	// current worker, nil when stopped
	worker atomic.Pointer[worker]

	// serialises worker creation and teardown
	mu sync.Mutex

	// most recently created worker, guarded by mu
	last *worker

	watchMu sync.Mutex
	watched map[int]*watchEntry

	timeoutMu sync.Mutex
	timeout   timeoutConfig

	metrics metrics
}

// watchEntry is a single registration. Each call to WatchDescriptor
// allocates a new entry, so pointer identity distinguishes registrations of
// the same descriptor.
type watchEntry struct {
	onReadable ReadCallback
	fd         int
}

type timeoutConfig struct {
	onTimeout TimeoutCallback
	duration  time.Duration
}

// worker is the state of a single worker goroutine.
type worker struct {
	ctl   *controlChannel
	done  chan struct{}
	ready []*watchEntry
	gid   atomic.Uint64
	quit  atomic.Bool

	// stopped worker that had not exited when this one was created, cleared
	// once it has
	prev atomic.Pointer[worker]
}

// runsOn reports whether gid is the goroutine of w, or of a worker w is still
// waiting on.
func (w *worker) runsOn(gid uint64) bool {
	for ; w != nil; w = w.prev.Load() {
		if w.gid.Load() == gid {
			return true
		}
	}
	return false
}

// New creates a stopped Watcher. No goroutine or descriptor is allocated
// until the first [Watcher.Start] or [Watcher.WatchDescriptor].
func New(opts ...Option) (*Watcher, error) {
	cfg, err := resolveWatcherOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		logger:  cfg.logger.Clone().Str("component", "fdwatch").Logger(),
		watched: make(map[int]*watchEntry),
		timeout: timeoutConfig{
			duration:  cfg.timeout,
			onTimeout: cfg.onTimeout,
		},
	}, nil
}

// WatchDescriptor registers onReadable to be called whenever fd is readable,
// replacing any previous registration for fd.
//
// The descriptor must remain open while registered. A descriptor the OS
// reports as invalid is treated as never ready, until it is registered again.
//
// Starts the worker if it is not running, otherwise wakes it so the new
// registration is picked up immediately. The returned error reports a failed
// start or wake-up; the registration is stored regardless.
func (x *Watcher) WatchDescriptor(fd int, onReadable ReadCallback) error {
	x.mu.Lock()
	x.watchMu.Lock()
	x.watched[fd] = &watchEntry{fd: fd, onReadable: onReadable}
	x.watchMu.Unlock()
	started, err := x.startLocked()
	x.mu.Unlock()

	if err != nil || started {
		return err
	}
	return x.notify()
}

// UnwatchDescriptor removes the registration for fd, if any, and wakes the
// worker. A callback for fd that was already dispatched may still run.
func (x *Watcher) UnwatchDescriptor(fd int) error {
	x.watchMu.Lock()
	delete(x.watched, fd)
	x.watchMu.Unlock()

	return x.notify()
}

// ConfigureTimeout replaces the timeout configuration. While the worker is
// idle for d, onTimeout is called, repeatedly. A d <= 0 disables the timeout.
//
// The worker is woken so the new duration applies to the next wait. This
// method does not start the worker.
func (x *Watcher) ConfigureTimeout(d time.Duration, onTimeout TimeoutCallback) error {
	x.timeoutMu.Lock()
	x.timeout = timeoutConfig{duration: d, onTimeout: onTimeout}
	x.timeoutMu.Unlock()

	return x.notify()
}

// Start starts the worker goroutine, if it is not already running.
// It is safe to call concurrently; only one worker is ever created.
// On failure the watcher remains stopped and Start may be retried.
func (x *Watcher) Start() error {
	_, err := x.start()
	return err
}

// Stop stops the worker and clears every registration, including the
// timeout. It is idempotent, safe to call concurrently, and safe to call
// from within a callback, in which case it does not wait for the worker.
func (x *Watcher) Stop() error {
	return x.Shutdown(context.Background())
}

// Shutdown behaves like [Watcher.Stop], but gives up waiting for the worker
// to exit when ctx is done, returning ctx.Err(). Registrations are cleared
// before waiting, so anything registered while the worker exits belongs to
// the next run, which does not begin until the worker has exited.
func (x *Watcher) Shutdown(ctx context.Context) error {
	x.mu.Lock()
	w := x.worker.Load()
	if w == nil {
		x.mu.Unlock()
		return nil
	}
	x.worker.Store(nil)
	w.quit.Store(true)

	x.watchMu.Lock()
	clear(x.watched)
	x.watchMu.Unlock()

	x.timeoutMu.Lock()
	x.timeout = timeoutConfig{}
	x.timeoutMu.Unlock()

	wakeErr := w.ctl.notify()
	x.mu.Unlock()
	if wakeErr == ErrControlChannelClosed {
		// the worker saw quit before the wake-up, and is already exiting
		wakeErr = nil
	}

	var err error
	switch {
	case wakeErr != nil:
		// the worker will still observe quit on its next wake-up
		err = fmt.Errorf("fdwatch: wake worker for shutdown: %w", wakeErr)
	case w.runsOn(goroutineID()):
		// called from a callback, the worker exits once it returns
	default:
		select {
		case <-w.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	x.logger.Info().Log("stopped watching file descriptors")

	return err
}

// State returns the current run state.
func (x *Watcher) State() RunState {
	if x.worker.Load() != nil {
		return StateRunning
	}
	return StateStopped
}

// Metrics returns a snapshot of the watcher's counters.
func (x *Watcher) Metrics() Metrics {
	return x.metrics.snapshot()
}

// start creates the worker if there is none, reporting whether this call
// created it.
func (x *Watcher) start() (bool, error) {
	if x.worker.Load() != nil {
		return false, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	return x.startLocked()
}

// startLocked is start, with mu held.
func (x *Watcher) startLocked() (bool, error) {
	if x.worker.Load() != nil {
		return false, nil
	}

	ctl, err := newControlChannel()
	if err != nil {
		x.logger.Err().Err(err).Log("failed to create control channel")
		return false, fmt.Errorf("fdwatch: create control channel: %w", err)
	}

	w := &worker{
		ctl:  ctl,
		done: make(chan struct{}),
	}
	if prev := x.last; prev != nil {
		select {
		case <-prev.done:
		default:
			// stopped, but still running a callback
			w.prev.Store(prev)
		}
	}
	x.last = w
	x.worker.Store(w)
	x.metrics.starts.Add(1)

	go x.run(w)

	return true, nil
}

// notify wakes the current worker, if any.
func (x *Watcher) notify() error {
	w := x.worker.Load()
	if w == nil {
		return nil
	}
	switch err := w.ctl.notify(); err {
	case nil, ErrControlChannelClosed:
		// closed means the worker exited, there is nothing to wake
		return nil
	default:
		return fmt.Errorf("fdwatch: wake worker: %w", err)
	}
}

// timeoutDuration snapshots the configured timeout duration.
func (x *Watcher) timeoutDuration() time.Duration {
	x.timeoutMu.Lock()
	defer x.timeoutMu.Unlock()
	return x.timeout.duration
}

// fireTimeout re-reads the timeout configuration, which may have changed
// while waiting, and invokes the callback if a timeout is still configured.
func (x *Watcher) fireTimeout() {
	var onTimeout TimeoutCallback
	x.timeoutMu.Lock()
	if x.timeout.duration > 0 {
		onTimeout = x.timeout.onTimeout
	}
	x.timeoutMu.Unlock()

	if onTimeout != nil {
		x.metrics.timeouts.Add(1)
		onTimeout()
	}
}
