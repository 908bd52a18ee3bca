package ticket

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tickd-io/tickd/internal/platform"
)

// DefaultConfirmTTL is how long a close-confirmation prompt stays actionable.
const DefaultConfirmTTL = 5 * time.Minute

type pendingClose struct {
	channel *platform.Channel
	invoker string
	expires time.Time
	used    bool
}

// ConfirmTable tracks outstanding close confirmations. Tokens are single-use:
// the first Consume wins, later calls on the same token are no-ops, and
// expired tokens behave as if they never existed.
type ConfirmTable struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]*pendingClose
	now     func() time.Time
}

// NewConfirmTable creates a table with the given token lifetime.
// A non-positive ttl falls back to DefaultConfirmTTL.
func NewConfirmTable(ttl time.Duration) *ConfirmTable {
	if ttl <= 0 {
		ttl = DefaultConfirmTTL
	}
	return &ConfirmTable{
		ttl:     ttl,
		pending: make(map[string]*pendingClose),
		now:     time.Now,
	}
}

// Add registers a pending confirmation for the channel and returns its token
// and expiry.
func (t *ConfirmTable) Add(ch *platform.Channel, invokerID string) (token string, expires time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	token = uuid.NewString()
	expires = t.now().Add(t.ttl)
	t.pending[token] = &pendingClose{
		channel: ch,
		invoker: invokerID,
		expires: expires,
	}
	return token, expires
}

// Consume marks the token used and returns its channel. ok is false when the
// token is unknown, already used, or expired.
func (t *ConfirmTable) Consume(token string) (ch *platform.Channel, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, exists := t.pending[token]
	if !exists || p.used || t.now().After(p.expires) {
		return nil, false
	}
	p.used = true
	return p.channel, true
}

// Sweep drops expired and consumed entries, returning how many were removed.
func (t *ConfirmTable) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	now := t.now()
	for token, p := range t.pending {
		if p.used || now.After(p.expires) {
			delete(t.pending, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked entries, consumed ones included until
// the next sweep.
func (t *ConfirmTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
