// Package fdwatch provides a background reactor for file descriptor
// readability.
//
// A [Watcher] owns a single worker goroutine, which blocks in poll(2) over
// every registered descriptor, plus an internal control channel used to wake
// it whenever registrations change. Callbacks are invoked synchronously on
// the worker goroutine.
//
// # Platform Support
//
// The control channel is implemented using:
//   - Linux: eventfd
//   - Darwin: a non-blocking self-pipe
//
// Other platforms fail to start, with [ErrUnsupportedPlatform].
//
// # Timeout
//
// A single timeout may be configured with [Watcher.ConfigureTimeout]. Its
// callback fires each time a wait completes with no descriptor or control
// channel activity, i.e. repeatedly while idle. The configuration is re-read
// after every expiry, so the callback may reconfigure or disable it.
//
// # Thread Safety
//
// All methods are safe to call from any goroutine, including from within a
// callback. Callbacks never run while an internal lock is held.
//
// # Usage
//
//	w, err := fdwatch.New(fdwatch.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
//	if err := w.WatchDescriptor(fd, func(fd int) {
//	    // read from fd
//	}); err != nil {
//	    log.Fatal(err)
//	}
package fdwatch
