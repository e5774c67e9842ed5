package presence

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackers(t *testing.T) map[string]Tracker {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Tracker{
		"memory": NewMemoryTracker(),
		"redis":  NewRedisTracker(client, ""),
	}
}

func TestTracker_AttachIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, tr := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tr.Attach(ctx, "room", "alice"))
			require.NoError(t, tr.Attach(ctx, "room", "alice"))

			n, err := tr.Count(ctx, "room")
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestTracker_DetachReportsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, tr := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tr.Attach(ctx, "room", "alice"))
			require.NoError(t, tr.Attach(ctx, "room", "bob"))

			empty, err := tr.Detach(ctx, "room", "alice")
			require.NoError(t, err)
			assert.False(t, empty)

			n, err := tr.Count(ctx, "room")
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			empty, err = tr.Detach(ctx, "room", "bob")
			require.NoError(t, err)
			assert.True(t, empty)

			n, err = tr.Count(ctx, "room")
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestTracker_DetachUnknown(t *testing.T) {
	ctx := context.Background()
	for name, tr := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			empty, err := tr.Detach(ctx, "ghost-room", "nobody")
			require.NoError(t, err)
			assert.True(t, empty)
		})
	}
}

func TestTracker_RoomsAreIndependent(t *testing.T) {
	ctx := context.Background()
	for name, tr := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tr.Attach(ctx, "a", "alice"))
			require.NoError(t, tr.Attach(ctx, "b", "alice"))

			empty, err := tr.Detach(ctx, "a", "alice")
			require.NoError(t, err)
			assert.True(t, empty)

			n, err := tr.Count(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestMemoryTracker_Concurrent(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Attach(ctx, "room", "alice")
			tr.Attach(ctx, "room", "bob")
		}()
	}
	wg.Wait()

	n, err := tr.Count(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
