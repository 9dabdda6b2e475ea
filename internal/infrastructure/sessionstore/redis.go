package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/infrastructure/cache"
	"honeypot-lab/pkg/logger"
)

const lockRetryInterval = 20 * time.Millisecond

// RedisStore shares sessions between replicas. Each record is a JSON document
// whose TTL is refreshed to the retention window on every update; writers
// serialize on a token lock per session.
type RedisStore struct {
	cache     *cache.RedisCache
	retention time.Duration
	lockTTL   time.Duration
	lockWait  time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(c *cache.RedisCache, retention, lockTTL, lockWait time.Duration, log *logger.Logger) *RedisStore {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	if lockWait <= 0 {
		lockWait = 3 * time.Second
	}
	return &RedisStore{
		cache:     c,
		retention: retention,
		lockTTL:   lockTTL,
		lockWait:  lockWait,
		now:       time.Now,
		logger:    log.WithComponent("session-store"),
	}
}

// Update implements Store
func (r *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*models.Session, error) {
	token := uuid.NewString()
	if err := r.lock(ctx, id, token); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.cache.ReleaseLock(context.WithoutCancel(ctx), id, token); err != nil {
			r.logger.Warn().Err(err).Str("session_id", id).Msg("failed to release session lock")
		}
	}()

	created := false
	var s models.Session
	err := r.cache.GetJSON(ctx, cache.KeySessionPrefix+id, &s)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		s = *models.NewSession(id, r.now())
		created = true
	case err != nil:
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s.Evidence == nil {
		s.Evidence = models.NewEvidenceSet()
	}

	if err := fn(&s, created); err != nil {
		return nil, err
	}

	if err := r.cache.SetJSON(ctx, cache.KeySessionPrefix+id, &s, r.retention); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return s.Clone(), nil
}

// Get implements Store
func (r *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := r.cache.GetJSON(ctx, cache.KeySessionPrefix+id, &s)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s.Evidence == nil {
		s.Evidence = models.NewEvidenceSet()
	}
	return &s, nil
}

// Count implements Store
func (r *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := r.cache.CountKeys(ctx, cache.KeySessionPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

func (r *RedisStore) lock(ctx context.Context, id, token string) error {
	deadline := r.now().Add(r.lockWait)
	for {
		ok, err := r.cache.AcquireLock(ctx, id, token, r.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			return nil
		}
		if r.now().After(deadline) {
			return ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}
