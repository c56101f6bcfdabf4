package lock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

const busyMsg = "A mint for this wallet is already in progress. Please wait for it to finish."

// MemoryGuard is a process-local MintGuard.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

var _ domain.MintGuard = (*MemoryGuard)(nil)

// NewMemoryGuard creates an empty guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]time.Time), now: time.Now}
}

// Acquire takes key for at most ttl. A held, unexpired key yields ErrBusy.
func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	key = normalizeKey(key)

	g.mu.Lock()
	defer g.mu.Unlock()

	if until, ok := g.held[key]; ok && g.now().Before(until) {
		return nil, domain.NewError(domain.KindBusy, "acquire", busyMsg, nil)
	}
	until := g.now().Add(ttl)
	g.held[key] = until

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			// Only drop our own hold; an expired one may have been retaken.
			if held, ok := g.held[key]; ok && held.Equal(until) {
				delete(g.held, key)
			}
		})
	}, nil
}

// Addresses differ only by checksum casing.
func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
