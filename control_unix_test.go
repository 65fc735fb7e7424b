//go:build linux || darwin

package fdwatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlChannel_NotifyCoalesces(t *testing.T) {
	c, err := newControlChannel()
	require.NoError(t, err)
	defer c.close()

	require.False(t, isReadable(t, c.readFD))

	for i := 0; i < 100; i++ {
		require.NoError(t, c.notify())
	}
	require.True(t, isReadable(t, c.readFD))

	c.drain()
	assert.False(t, isReadable(t, c.readFD), "a single drain should consume every pending notification")
}

// TestControlChannel_Saturated verifies a full pipe (darwin) is not an error,
// since a wake-up is already pending.
func TestControlChannel_Saturated(t *testing.T) {
	c, err := newControlChannel()
	require.NoError(t, err)
	defer c.close()

	for i := 0; i < 20000; i++ {
		require.NoError(t, c.notify())
	}

	c.drain()
	assert.False(t, isReadable(t, c.readFD))

	require.NoError(t, c.notify())
	assert.True(t, isReadable(t, c.readFD))
}

func TestControlChannel_Close(t *testing.T) {
	c, err := newControlChannel()
	require.NoError(t, err)

	require.NoError(t, c.close())
	require.NoError(t, c.close(), "close should be idempotent")
	assert.ErrorIs(t, c.notify(), ErrControlChannelClosed)
}
