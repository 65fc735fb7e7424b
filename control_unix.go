//go:build linux || darwin

package fdwatch

import (
	"encoding/binary"
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// controlChannel interrupts the worker's readiness wait.
//
// The read end is owned by the worker, which is also the only closer. The
// write end may be used from any goroutine; mu ensures a notify never writes
// to a descriptor number that was closed (and possibly reused).
type controlChannel struct {
	mu      sync.RWMutex
	readFD  int
	writeFD int
	closed  bool
}

func newControlChannel() (*controlChannel, error) {
	readFD, writeFD, err := createWakeFd()
	if err != nil {
		return nil, err
	}
	return &controlChannel{readFD: readFD, writeFD: writeFD}, nil
}

// notify makes the read end readable. Notifications coalesce: EAGAIN means
// the pipe or eventfd counter is saturated, i.e. a wake-up is already pending.
func (c *controlChannel) notify() error {
	// eventfd requires an 8 byte value, a pipe accepts anything
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrControlChannelClosed
	}

	for {
		_, err := unix.Write(c.writeFD, buf[:])
		switch err {
		case nil, unix.EAGAIN:
			return nil
		case unix.EINTR:
			continue
		default:
			return err
		}
	}
}

// drain discards every pending notification. Worker only.
func (c *controlChannel) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(c.readFD, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil || n <= 0 {
			return
		}
	}
}

func (c *controlChannel) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	err := unix.Close(c.readFD)
	if c.writeFD != c.readFD {
		err = errors.Join(err, unix.Close(c.writeFD))
	}
	return err
}
