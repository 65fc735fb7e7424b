//go:build linux || darwin

package fdwatch

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newTestPipe creates a pipe, returning the read end as a raw descriptor
// suitable for WatchDescriptor, and the write end as a file.
func newTestPipe(t *testing.T) (int, *os.File) {
	t.Helper()
	pipeR, pipeW, err := os.Pipe()
	require.NoError(t, err)
	fd := int(pipeR.Fd())
	t.Cleanup(func() {
		_ = pipeR.Close()
		_ = pipeW.Close()
	})
	return fd, pipeW
}

// newTestWatcher creates a watcher that is stopped when the test ends.
func newTestWatcher(t *testing.T, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = w.Stop()
	})
	return w
}

// drainFD discards whatever is currently buffered on fd.
func drainFD(fd int) {
	var buf [64]byte
	_, _ = unix.Read(fd, buf[:])
}

// isReadable polls fd without blocking.
func isReadable(t *testing.T, fd int) bool {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		return n > 0
	}
}
