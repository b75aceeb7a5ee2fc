package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armatrix/copilot-sdk-go/session"
)

func TestMemoryStore_PutAndGet(t *testing.T) {
	store := session.NewMemoryStore(0, nil)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, session.NewEntry("slack:C1/171.2", "sess-1")))

	e, err := store.Get(ctx, "slack:C1/171.2")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", e.SessionID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := session.NewMemoryStore(0, nil)
	_, err := store.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStore_PutInvalid(t *testing.T) {
	store := session.NewMemoryStore(0, nil)
	assert.Error(t, store.Put(context.Background(), session.Entry{SessionID: "s"}))
	assert.Error(t, store.Put(context.Background(), session.Entry{Key: "k"}))
}

func TestMemoryStore_DeleteRunsEvict(t *testing.T) {
	var evicted []string
	store := session.NewMemoryStore(0, func(e session.Entry) { evicted = append(evicted, e.SessionID) })
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, session.NewEntry("k", "sess-del")))
	require.NoError(t, store.Delete(ctx, "k"))
	assert.Equal(t, []string{"sess-del"}, evicted)

	assert.ErrorIs(t, store.Delete(ctx, "k"), session.ErrNotFound)
}

func TestMemoryStore_IdleExpiry(t *testing.T) {
	var mu sync.Mutex
	var evicted []string
	store := session.NewMemoryStore(30*time.Millisecond, func(e session.Entry) {
		mu.Lock()
		defer mu.Unlock()
		evicted = append(evicted, e.Key)
	})
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, session.NewEntry("idle", "sess-idle")))

	time.Sleep(60 * time.Millisecond)
	_, err := store.Get(ctx, "idle")
	assert.ErrorIs(t, err, session.ErrNotFound)

	store.Flush()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"idle"}, evicted)
}

func TestMemoryStore_GetRefreshesTTL(t *testing.T) {
	store := session.NewMemoryStore(200*time.Millisecond, nil)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, session.NewEntry("busy", "sess-busy")))

	for i := 0; i < 4; i++ {
		time.Sleep(70 * time.Millisecond)
		_, err := store.Get(ctx, "busy")
		require.NoError(t, err, "iteration %d", i)
	}
}

func TestMemoryStore_Keys(t *testing.T) {
	store := session.NewMemoryStore(0, nil)
	ctx := context.Background()

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(ctx, session.NewEntry(k, "sess-"+k)))
	}
	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)
	assert.Equal(t, 3, store.Len())
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := session.NewMemoryStore(time.Minute, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		key := fmt.Sprintf("k%d", i%5)
		go func() {
			defer wg.Done()
			_ = store.Put(ctx, session.NewEntry(key, "s"))
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Get(ctx, key)
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Keys(ctx)
		}()
	}
	wg.Wait()
}
