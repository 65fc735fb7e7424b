package fdwatch

// RunState indicates whether a [Watcher] currently has a worker goroutine.
//
//	StateStopped → StateRunning   [Start, or WatchDescriptor on a stopped watcher]
//	StateRunning → StateStopped   [Stop, Shutdown]
//
// A stopped watcher may be started again.
type RunState uint32

const (
	// StateStopped indicates there is no worker; this is the initial state.
	StateStopped RunState = iota
	// StateRunning indicates the worker goroutine exists and is polling.
	StateRunning
)

// String returns a human-readable representation of the state.
func (s RunState) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateRunning:
		return "Running"
	default:
		return "Unknown"
	}
}
