//go:build linux || darwin

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// lockedBuffer guards writes from the worker goroutine and the caller.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_CopiesFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first")
	second := filepath.Join(dir, "second")
	require.NoError(t, os.WriteFile(first, bytes.Repeat([]byte("a"), 100*1024), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("hello\n"), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stdout, stderr lockedBuffer
	require.NoError(t, run(ctx, []string{"-log-level", "debug", first, second}, &stdout, &stderr))

	out := stdout.String()
	assert.Len(t, out, 100*1024+len("hello\n"))
	assert.Equal(t, 100*1024, strings.Count(out, "a"))
	assert.Contains(t, out, "hello\n")

	logs := stderr.String()
	assert.Contains(t, logs, `reached EOF`)
	assert.Contains(t, logs, `"msg":"done"`)
}

func TestRun_FIFOInterrupted(t *testing.T) {
	fifo := filepath.Join(t.TempDir(), "fifo")
	require.NoError(t, unix.Mkfifo(fifo, 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	var stdout, stderr lockedBuffer
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, []string{"-idle", "10ms", fifo}, &stdout, &stderr)
	}()

	// no writer ever connects, so only the interrupt ends the run
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after interrupt")
	}
	assert.Empty(t, stdout.String())
	if runtime.GOOS == "linux" {
		// linux reports no hangup for a FIFO that never had a writer
		assert.Contains(t, stderr.String(), `waiting for input`)
		assert.Contains(t, stderr.String(), `interrupted`)
	}
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	var stdout, stderr lockedBuffer

	assert.Error(t, run(ctx, []string{"-log-level", "loud"}, &stdout, &stderr))
	assert.Error(t, run(ctx, []string{"-no-such-flag"}, &stdout, &stderr))
	assert.ErrorContains(t, run(ctx, []string{filepath.Join(t.TempDir(), "missing")}, &stdout, &stderr), "missing")
}
