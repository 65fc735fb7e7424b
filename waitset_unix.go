//go:build linux || darwin

package fdwatch

import (
	"math"
	"time"

	"golang.org/x/sys/unix"
)

// readableEvents are the revents bits indicating a read would not block.
// POLLHUP and POLLERR are included since a read returns EOF or the error
// immediately, mirroring select(2) readability.
const readableEvents = unix.POLLIN | unix.POLLHUP | unix.POLLERR

// waitSet is the worker's reusable poll(2) request. The first element is
// always the control channel; entries is parallel to fds[1:].
type waitSet struct {
	fds     []unix.PollFd
	entries []*watchEntry
}

func (s *waitSet) reset(controlFD int) {
	clear(s.entries)
	s.entries = s.entries[:0]
	s.fds = append(s.fds[:0], unix.PollFd{Fd: int32(controlFD), Events: unix.POLLIN})
}

func (s *waitSet) add(entry *watchEntry) {
	s.fds = append(s.fds, unix.PollFd{Fd: int32(entry.fd), Events: unix.POLLIN})
	s.entries = append(s.entries, entry)
}

// wait blocks until a descriptor in the set is ready or timeout elapses,
// returning the number of ready descriptors (0 on timeout). A timeout <= 0
// blocks indefinitely. EINTR restarts the wait with the remaining time.
func (s *waitSet) wait(timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		n, err := unix.Poll(s.fds, pollTimeout(timeout))
		if err != unix.EINTR {
			return n, err
		}
		if timeout > 0 {
			timeout = time.Until(deadline)
			if timeout <= 0 {
				return 0, nil
			}
		}
	}
}

func (s *waitSet) controlReady() bool {
	return s.fds[0].Revents&readableEvents != 0
}

// pollTimeout converts a duration to poll(2) milliseconds, rounding up so a
// short positive timeout never becomes a busy poll.
func pollTimeout(d time.Duration) int {
	if d <= 0 {
		return -1
	}
	if d >= math.MaxInt32*time.Millisecond {
		return math.MaxInt32
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}
