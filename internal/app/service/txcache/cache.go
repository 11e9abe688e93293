package txcache

import (
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"

	"github.com/fatflowers/momobridge/internal/models"
)

// DefaultTerminalTTL is how long a terminal-state entry stays cached before
// the deferred deletion fires.
const DefaultTerminalTTL = 300 * time.Second

// Cache is the process-local mapping from reference id to last-known
// transaction state. Purely an availability/performance optimization: it
// reinitializes empty on restart and the persistent store wins on
// disagreement.
type Cache struct {
	mu          sync.RWMutex
	entries     map[string]*models.Transaction
	terminalTTL time.Duration
}

func New() *Cache {
	return NewWithTTL(DefaultTerminalTTL)
}

func NewWithTTL(terminalTTL time.Duration) *Cache {
	return &Cache{
		entries:     make(map[string]*models.Transaction),
		terminalTTL: terminalTTL,
	}
}

func (c *Cache) Get(referenceID string) (*models.Transaction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entries[referenceID]
	return t, ok
}

// Set stores the record under its reference id. A write that leaves the
// record in a terminal state schedules a one-shot deferred deletion; a timer
// firing after the entry was already replaced simply deletes the newer copy,
// which is equally terminal.
func (c *Cache) Set(t *models.Transaction) {
	if t == nil || t.ReferenceID == "" {
		return
	}
	c.mu.Lock()
	c.entries[t.ReferenceID] = t
	c.mu.Unlock()

	if t.IsTerminal() {
		ref := t.ReferenceID
		time.AfterFunc(c.terminalTTL, func() { c.Delete(ref) })
	}
}

func (c *Cache) Delete(referenceID string) {
	c.mu.Lock()
	delete(c.entries, referenceID)
	c.mu.Unlock()
}

// Values snapshots every cached record, in no particular order.
func (c *Cache) Values() []*models.Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Values(c.entries)
}

// FindByExternalID scans for a record carrying the given caller-supplied
// order id. Linear, but the cache only holds in-flight transactions.
func (c *Cache) FindByExternalID(externalID string) (*models.Transaction, bool) {
	if externalID == "" {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.entries {
		if t.ExternalID == externalID {
			return t, true
		}
	}
	return nil, false
}

// Module exposes the transaction cache via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
