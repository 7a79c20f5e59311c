package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
)

type grant struct {
	token     string
	expiresAt time.Time
}

// MemoryLease is a single-process Lease for tests and local runs.
type MemoryLease struct {
	now func() time.Time

	mu     sync.Mutex
	grants map[string]grant
}

func NewMemoryLease() *MemoryLease {
	return &MemoryLease{now: time.Now, grants: make(map[string]grant)}
}

func (l *MemoryLease) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	now := l.now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	if g, ok := l.grants[key]; ok && now.Before(g.expiresAt) {
		return "", domain.ErrBusy
	}
	token := uuid.NewString()
	l.grants[key] = grant{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

func (l *MemoryLease) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if g, ok := l.grants[key]; ok && g.token == token {
		delete(l.grants, key)
	}
	return nil
}
