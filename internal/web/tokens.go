package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// tokenGuard makes each form submission token usable for one recorded trade.
// A token is reserved while its submission is in flight and released again
// if the submission fails, so a corrected form can reuse it.
type tokenGuard struct {
	mu   sync.Mutex
	used map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func newTokenGuard(ttl time.Duration) *tokenGuard {
	return &tokenGuard{used: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

// Issue returns a fresh token for a new form.
func (g *tokenGuard) Issue() string {
	return uuid.NewString()
}

// Reserve claims token. It returns false when the token was already used.
// Empty tokens are never tracked.
func (g *tokenGuard) Reserve(token string) bool {
	if token == "" {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for t, at := range g.used {
		if now.Sub(at) > g.ttl {
			delete(g.used, t)
		}
	}
	if _, ok := g.used[token]; ok {
		return false
	}
	g.used[token] = now
	return true
}

// Release frees a token whose submission did not record anything.
func (g *tokenGuard) Release(token string) {
	if token == "" {
		return
	}
	g.mu.Lock()
	delete(g.used, token)
	g.mu.Unlock()
}
