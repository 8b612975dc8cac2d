package services

import (
	"sync"

	"github.com/google/uuid"
)

// orderLocks serializes mutations per order. The ledger's read-modify-write
// of the running total is not safe under concurrent edits to the same
// order, so every mutating operation holds the order's lock for the span of
// its transaction. Locks are reference counted and dropped once idle.
type orderLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*orderLockEntry
}

type orderLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{entries: make(map[uuid.UUID]*orderLockEntry)}
}

func (l *orderLocks) lock(orderID uuid.UUID) {
	l.mu.Lock()
	entry, ok := l.entries[orderID]
	if !ok {
		entry = &orderLockEntry{}
		l.entries[orderID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

func (l *orderLocks) unlock(orderID uuid.UUID) {
	l.mu.Lock()
	entry := l.entries[orderID]
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, orderID)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
