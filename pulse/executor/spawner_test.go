package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawner(t *testing.T) {
	t.Run("unlimited", func(t *testing.T) {
		s := NewSpawner(0, 0)
		for i := 0; i < 100; i++ {
			require.NoError(t, s.Wait(context.Background()))
		}
	})

	t.Run("nil spawner", func(t *testing.T) {
		var s *Spawner
		assert.NoError(t, s.Wait(context.Background()))
	})

	t.Run("burst then throttle", func(t *testing.T) {
		s := NewSpawner(1, 2)
		require.NoError(t, s.Wait(context.Background()))
		require.NoError(t, s.Wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.Error(t, s.Wait(ctx))
	})
}

func TestCappedBuffer(t *testing.T) {
	b := newCappedBuffer(5)

	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = b.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n, "writers are never told to stop")

	assert.Equal(t, "abcde"+truncatedMarker, b.String())

	assert.Equal(t, DefaultMaxOutput, newCappedBuffer(0).max)
}
