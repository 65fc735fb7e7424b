//go:build linux || darwin

// Command fdwatch copies everything readable from files, FIFOs, or stdin to
// stdout, using a single [fdwatch.Watcher] for all inputs.
//
// Usage:
//
//	fdwatch [-idle 5s] [-log-level info] [path ...]
//
// Each path is opened read-only and non-blocking. With no paths, stdin is
// used. The command exits once every input reaches EOF, or on SIGINT or
// SIGTERM. While idle, a heartbeat is logged every -idle interval.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	fdwatch "github.com/joeycumines/go-fdwatch"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"golang.org/x/sys/unix"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "fdwatch:", err)
		}
		os.Exit(2)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("fdwatch", flag.ContinueOnError)
	flags.SetOutput(stderr)
	idle := flags.Duration("idle", 0, "log a heartbeat after this long without input (0 disables)")
	logLevel := flags.String("log-level", "info", "minimum log level: debug, info, warning, err")
	if err := flags.Parse(args); err != nil {
		return err
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		return err
	}

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(stderr)),
		stumpy.L.WithLevel(level),
		stumpy.L.WithCategoryRateLimits(map[time.Duration]int{
			time.Second: 5,
			time.Minute: 30,
		}),
	).Logger()

	fds, err := openInputs(flags.Args())
	if err != nil {
		return err
	}

	c := &copier{
		out:       stdout,
		logger:    logger,
		idle:      *idle,
		remaining: len(fds),
		done:      make(chan struct{}),
		buf:       make([]byte, 32*1024),
	}

	c.watcher, err = fdwatch.New(
		fdwatch.WithLogger(logger),
		fdwatch.WithTimeout(*idle, c.heartbeat),
	)
	if err != nil {
		closeInputs(fds)
		return err
	}

	for _, fd := range fds {
		if err := c.watcher.WatchDescriptor(fd, c.onReadable); err != nil {
			_ = c.watcher.Stop()
			closeInputs(fds)
			return err
		}
	}

	select {
	case <-ctx.Done():
		logger.Info().Log("interrupted")
	case <-c.done:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = c.watcher.Shutdown(shutdownCtx)

	m := c.watcher.Metrics()
	logger.Info().
		Int64("bytes", c.copied).
		Uint64("dispatches", m.Dispatches).
		Uint64("wakeups", m.Wakeups).
		Log("done")

	if ctx.Err() != nil && err == nil {
		// inputs that never reached EOF
		closeInputs(c.open(fds))
	}

	return err
}

// copier state is only accessed from the watcher's worker goroutine, until
// done is closed.
type copier struct {
	out       io.Writer
	logger    *logiface.Logger[logiface.Event]
	watcher   *fdwatch.Watcher
	done      chan struct{}
	closed    map[int]bool
	buf       []byte
	idle      time.Duration
	copied    int64
	remaining int
}

func (c *copier) onReadable(fd int) {
	n, err := unix.Read(fd, c.buf)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return
	case err != nil:
		c.logger.Err().Err(err).Int("fd", fd).Log("read failed")
		c.finish(fd)
	case n == 0:
		c.logger.Debug().Int("fd", fd).Log("reached EOF")
		c.finish(fd)
	default:
		if _, err := c.out.Write(c.buf[:n]); err != nil {
			c.logger.Err().Err(err).Log("write failed")
		}
		c.copied += int64(n)
	}
}

func (c *copier) finish(fd int) {
	if err := c.watcher.UnwatchDescriptor(fd); err != nil {
		c.logger.Warning().Err(err).Int("fd", fd).Log("failed to unwatch")
	}
	if fd != unix.Stdin {
		_ = unix.Close(fd)
	}
	if c.closed == nil {
		c.closed = make(map[int]bool)
	}
	c.closed[fd] = true

	c.remaining--
	if c.remaining == 0 {
		close(c.done)
	}
}

func (c *copier) heartbeat() {
	c.logger.Info().
		Dur("idle", c.idle).
		Int("open", c.remaining).
		Log("waiting for input")
}

// open returns the inputs not yet closed by finish. Only valid once the
// watcher has stopped.
func (c *copier) open(fds []int) []int {
	var open []int
	for _, fd := range fds {
		if !c.closed[fd] {
			open = append(open, fd)
		}
	}
	return open
}

func openInputs(paths []string) ([]int, error) {
	if len(paths) == 0 {
		return []int{unix.Stdin}, nil
	}
	fds := make([]int, 0, len(paths))
	for _, path := range paths {
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err != nil {
			closeInputs(fds)
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		fds = append(fds, fd)
	}
	return fds, nil
}

func closeInputs(fds []int) {
	for _, fd := range fds {
		if fd != unix.Stdin {
			_ = unix.Close(fd)
		}
	}
}

func parseLevel(s string) (logiface.Level, error) {
	switch s {
	case "debug":
		return stumpy.L.LevelDebug(), nil
	case "info":
		return stumpy.L.LevelInformational(), nil
	case "warning":
		return stumpy.L.LevelWarning(), nil
	case "err", "error":
		return stumpy.L.LevelError(), nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
