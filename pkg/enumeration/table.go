// Package enumeration implements the per-active-enumeration state table
// keyed by ProjFS enumeration identifier. The mutex+map+accessor shape
// mirrors how the engine's opened-handle pool tracked live handles before
// this engine replaced handle tracking with enumeration-identifier
// tracking.
package enumeration

import (
	"sync"

	"github.com/google/uuid"

	"github.com/juergengeck/one.projfs/pkg/model"
)

// Table is a keyed collection of EnumerationState, guarded by one mutex
// and one condition variable shared across all entries. The condition
// variable is signalled whenever any entry's IsLoading flips to false.
type Table struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries map[uuid.UUID]*model.EnumerationState
}

// New constructs an empty enumeration table.
func New() *Table {
	t := &Table{entries: make(map[uuid.UUID]*model.EnumerationState)}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Start atomically inserts a fresh EnumerationState for id, overwriting
// any existing state for the same identifier. warn is called if an
// existing entry was overwritten, so the caller can log the kernel-side
// reuse.
func (t *Table) Start(id uuid.UUID, warn func()) {
	t.mu.Lock()
	if _, exists := t.entries[id]; exists && warn != nil {
		warn()
	}
	t.entries[id] = &model.EnumerationState{}
	t.mu.Unlock()
}

// Lookup returns the state for id and whether it existed, without
// creating one.
func (t *Table) Lookup(id uuid.UUID) (*model.EnumerationState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.entries[id]
	return s, ok
}

// LookupOrCreate returns the state for id, creating a fresh one and
// calling warn if none existed. This tolerates a Get callback for an
// identifier the table never saw a Start for.
func (t *Table) LookupOrCreate(id uuid.UUID, warn func()) *model.EnumerationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.entries[id]
	if !ok {
		if warn != nil {
			warn()
		}
		s = &model.EnumerationState{}
		t.entries[id] = s
	}
	return s
}

// End removes the state for id.
func (t *Table) End(id uuid.UUID) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// Lock acquires the table's mutex for the duration of a caller-supplied
// critical section against a specific entry's fields. Callers must not
// retain the lock across an outbound host call.
func (t *Table) Lock() {
	t.mu.Lock()
}

// Unlock releases the table's mutex.
func (t *Table) Unlock() {
	t.mu.Unlock()
}

// Wait blocks on the shared condition variable until some entry's
// IsLoading transitions to false. Callers must hold the lock.
func (t *Table) Wait() {
	t.cond.Wait()
}

// Broadcast wakes every waiter on the shared condition variable. Callers
// must hold the lock.
func (t *Table) Broadcast() {
	t.cond.Broadcast()
}
