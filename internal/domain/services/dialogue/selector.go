package dialogue

import (
	"math/rand"
	"sync"
	"time"

	"honeypot-lab/internal/domain/models"
)

// Selector chooses among candidate utterances and rolls the stylistic dice
type Selector interface {
	// Select returns one candidate, preferring anything other than avoid
	Select(phase models.Phase, register models.Register, candidates []string, avoid string) string
	// Chance reports true with probability p
	Chance(p float64) bool
}

// RandomSelector picks uniformly from a seeded source. Safe for concurrent use.
type RandomSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSelector seeds the selector; a zero seed uses the clock
func NewRandomSelector(seed int64) *RandomSelector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomSelector{rng: rand.New(rand.NewSource(seed))}
}

func (r *RandomSelector) Select(_ models.Phase, _ models.Register, candidates []string, avoid string) string {
	pool := withoutAvoid(candidates, avoid)
	if len(pool) == 0 {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return pool[r.rng.Intn(len(pool))]
}

func (r *RandomSelector) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < p
}

// FixedSelector always takes the first eligible candidate and never decorates.
// Replies become a pure function of the session, which suits tests and replays.
type FixedSelector struct{}

func (FixedSelector) Select(_ models.Phase, _ models.Register, candidates []string, avoid string) string {
	pool := withoutAvoid(candidates, avoid)
	if len(pool) == 0 {
		return ""
	}
	return pool[0]
}

func (FixedSelector) Chance(p float64) bool {
	return p >= 1
}

// withoutAvoid drops avoid unless it is the only candidate
func withoutAvoid(candidates []string, avoid string) []string {
	if avoid == "" || len(candidates) < 2 {
		return candidates
	}
	pool := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c != avoid {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return candidates
	}
	return pool
}
