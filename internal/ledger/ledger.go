// Package ledger records which meeting mails were sent to whom.
package ledger

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultTTL is how long a send is remembered.
const DefaultTTL = 30 * 24 * time.Hour

// Key returns the ledger key for a (meeting page, recipient) pair.
func Key(pageURL, email string) string {
	sum := md5.Sum([]byte(pageURL + email))
	return "sent_" + hex.EncodeToString(sum[:])
}

// Store is the key store the ledger claims entries in.
type Store interface {
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// Ledger deduplicates sends per (page, recipient).
type Ledger struct {
	store Store
	ttl   time.Duration
}

// New creates a Ledger. ttl <= 0 uses DefaultTTL.
func New(store Store, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{store: store, ttl: ttl}
}

// Once runs send unless the pair was already recorded. The entry is claimed
// before send and released if send fails, so a failed send is retried on a
// later run. It reports whether send ran successfully.
func (l *Ledger) Once(ctx context.Context, pageURL, email string, send func() error) (bool, error) {
	key := Key(pageURL, email)
	ok, err := l.store.SetNX(ctx, key, l.ttl)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := send(); err != nil {
		_ = l.store.Del(ctx, key)
		return false, err
	}
	return true, nil
}

// Memory is an in-process Store. Entries expire lazily.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]time.Time), now: time.Now}
}

// SetNX stores key if absent or expired.
func (m *Memory) SetNX(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.entries[key]; ok && m.now().Before(exp) {
		return false, nil
	}
	m.entries[key] = m.now().Add(ttl)
	return true, nil
}

// Del removes key.
func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
