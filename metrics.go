package fdwatch

import (
	"sync/atomic"
)

// Metrics is a point-in-time snapshot of a watcher's counters.
// Counters accumulate across restarts.
type Metrics struct {
	// Starts is the number of worker goroutines created.
	Starts uint64
	// Wakeups is the number of control channel drains performed by the worker.
	Wakeups uint64
	// Dispatches is the number of read callbacks invoked.
	Dispatches uint64
	// Timeouts is the number of timeout callbacks invoked.
	Timeouts uint64
	// WaitErrors is the number of failed readiness waits, excluding EINTR.
	WaitErrors uint64
}

type metrics struct {
	starts     atomic.Uint64
	wakeups    atomic.Uint64
	dispatches atomic.Uint64
	timeouts   atomic.Uint64
	waitErrors atomic.Uint64
}

func (m *metrics) snapshot() Metrics {
	return Metrics{
		Starts:     m.starts.Load(),
		Wakeups:    m.wakeups.Load(),
		Dispatches: m.dispatches.Load(),
		Timeouts:   m.timeouts.Load(),
		WaitErrors: m.waitErrors.Load(),
	}
}
