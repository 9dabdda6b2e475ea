package sessionstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/infrastructure/cache"
	"honeypot-lab/pkg/logger"
)

func newRedisStore(t *testing.T) (*RedisStore, *cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.NewRedisFromClient(client, "hp:", logger.NewNop())
	return NewRedisStore(c, time.Hour, time.Second, 5*time.Second, logger.NewNop()), c, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _, mr := newRedisStore(t)
	ctx := context.Background()

	out, err := store.Update(ctx, "s1", func(s *models.Session, created bool) error {
		assert.True(t, created)
		s.Step = 3
		s.Evidence.Add(models.CategoryIFSCCode, "HDFC0001234")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Step)

	assert.True(t, mr.Exists("hp:session:s1"))
	assert.Equal(t, time.Hour, mr.TTL("hp:session:s1"))
	assert.False(t, mr.Exists("hp:lock:s1"), "lock released after update")

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Step)
	assert.Equal(t, []string{"HDFC0001234"}, got.Evidence.Values(models.CategoryIFSCCode))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisStoreSerializesSameSession(t *testing.T) {
	store, _, _ := newRedisStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "shared", func(s *models.Session, _ bool) error {
				s.Messages++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, 16, s.Messages)
}

func TestRedisStoreLockTimeout(t *testing.T) {
	store, c, _ := newRedisStore(t)
	store.lockWait = 50 * time.Millisecond
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "busy", "someone-else", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = store.Update(ctx, "busy", func(*models.Session, bool) error { return nil })
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestRedisStoreExpiredSessionIsRecreated(t *testing.T) {
	store, _, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "s1", func(s *models.Session, _ bool) error {
		s.Step = 12
		return nil
	})
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	out, err := store.Update(ctx, "s1", func(s *models.Session, created bool) error {
		assert.True(t, created)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Step)
}
