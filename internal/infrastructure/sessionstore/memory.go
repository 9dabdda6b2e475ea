package sessionstore

import (
	"context"
	"sync"
	"time"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/pkg/logger"
)

type memoryEntry struct {
	mu      sync.Mutex
	session *models.Session
	fresh   bool
	evicted bool
}

// MemoryStore keeps sessions in process memory with one mutex per session
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry

	retention     time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *logger.Logger
}

// NewMemoryStore creates an in-memory store. Sessions idle longer than
// retention are dropped by Sweep; a zero retention keeps them forever.
func NewMemoryStore(retention, sweepInterval time.Duration, log *logger.Logger) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	return &MemoryStore{
		entries:       make(map[string]*memoryEntry),
		retention:     retention,
		sweepInterval: sweepInterval,
		now:           time.Now,
		logger:        log.WithComponent("session-store"),
	}
}

// Update implements Store
func (m *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (*models.Session, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e := m.entry(id)
		e.mu.Lock()
		if e.evicted {
			// swept between lookup and lock, retry on a new entry
			e.mu.Unlock()
			continue
		}

		now := m.now()
		if !e.fresh && m.expired(e.session, now) {
			e.session = models.NewSession(id, now)
			e.fresh = true
		}

		working := e.session.Clone()
		err := fn(working, e.fresh)
		if err == nil {
			e.session = working
			e.fresh = false
		}
		out := e.session.Clone()
		e.mu.Unlock()

		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Get implements Store
func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted || e.fresh || m.expired(e.session, m.now()) {
		return nil, ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

// Count implements Store. It counts exactly the sessions Get would return:
// placeholders left by failed updates and expired sessions awaiting the sweep
// are skipped.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	entries := make([]*memoryEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	now := m.now()
	n := 0
	for _, e := range entries {
		e.mu.Lock()
		if !e.evicted && !e.fresh && !m.expired(e.session, now) {
			n++
		}
		e.mu.Unlock()
	}
	return n, nil
}

// Sweep drops sessions idle beyond the retention window and returns how many
// were removed. Sessions locked by an in-flight update are skipped.
func (m *MemoryStore) Sweep() int {
	if m.retention <= 0 {
		return 0
	}

	now := m.now()
	removed := 0

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if !e.mu.TryLock() {
			continue
		}
		if m.expired(e.session, now) {
			e.evicted = true
			delete(m.entries, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// Run sweeps on every interval until ctx is cancelled
func (m *MemoryStore) Run(ctx context.Context) {
	if m.retention <= 0 {
		return
	}

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	m.logger.Info().
		Dur("retention", m.retention).
		Dur("interval", m.sweepInterval).
		Msg("session janitor started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("session janitor stopped")
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug().Int("evicted", n).Msg("evicted idle sessions")
			}
		}
	}
}

func (m *MemoryStore) entry(id string) *memoryEntry {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.entries[id]; ok {
		return e
	}
	e = &memoryEntry{session: models.NewSession(id, m.now()), fresh: true}
	m.entries[id] = e
	return e
}

func (m *MemoryStore) expired(s *models.Session, now time.Time) bool {
	return m.retention > 0 && now.Sub(s.LastActiveAt) > m.retention
}
