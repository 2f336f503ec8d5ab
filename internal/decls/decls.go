// Package decls is the declaration arena shared by concurrent
// compilation workers: a slot map where every slot carries its own
// reader/writer lock, plus a free list for slot reuse. Insert, Get and
// Remove touch only the slot they address; Retain is the one bulk
// operation and takes the arena-wide exclusive lock.
package decls

import (
	"fmt"
	"sync"

	"fortio.org/safecast"

	"cinder/internal/ir"
	"cinder/internal/source"
)

// DeclKind distinguishes what a declaration names.
type DeclKind uint8

const (
	// DeclFunc names a function.
	DeclFunc DeclKind = iota
	// DeclConst names a module-level constant.
	DeclConst
	// DeclType names an aggregate shape.
	DeclType
)

// Decl is one frontend declaration visible to every worker.
type Decl struct {
	Name string
	Kind DeclKind
	Span source.Span

	Func  ir.FuncID
	Type  ir.TypeRef
	Value ir.ValueID
}

// ID addresses a slot in the arena. The zero ID is never handed out.
type ID uint32

// NoID is the invalid declaration id.
const NoID ID = 0

// IsValid reports whether the id can address a slot.
func (id ID) IsValid() bool { return id != NoID }

type slot struct {
	mu       sync.RWMutex
	occupied bool
	decl     Decl
}

// Arena is the concurrent declaration store. The arena lock guards the
// slot index; individual slot locks guard slot contents; the free list
// has its own exclusive section so slot reuse never blocks readers of
// unrelated slots.
type Arena struct {
	mu    sync.RWMutex
	slots []*slot

	freeMu sync.Mutex
	free   []ID
}

// NewArena creates an empty arena. Slot 0 is a reserved sentinel.
func NewArena() *Arena {
	return &Arena{slots: []*slot{nil}}
}

// Insert stores a declaration and returns its id, reusing a freed slot
// when one exists. Only the written slot is locked; readers of other
// slots never wait.
func (a *Arena) Insert(d Decl) ID {
	a.freeMu.Lock()
	var id ID
	if n := len(a.free); n > 0 {
		id = a.free[n-1]
		a.free = a.free[:n-1]
	}
	a.freeMu.Unlock()

	if id.IsValid() {
		a.mu.RLock()
		s := a.slots[id]
		a.mu.RUnlock()
		s.mu.Lock()
		s.decl = d
		s.occupied = true
		s.mu.Unlock()
		return id
	}

	a.mu.Lock()
	n, err := safecast.Conv[uint32](len(a.slots))
	if err != nil {
		panic(fmt.Errorf("declaration arena overflow: %w", err))
	}
	id = ID(n)
	a.slots = append(a.slots, &slot{occupied: true, decl: d})
	a.mu.Unlock()
	return id
}

// Get reads a declaration by id. The second result is false for
// invalid, stale, or removed ids.
func (a *Arena) Get(id ID) (Decl, bool) {
	s := a.slot(id)
	if s == nil {
		return Decl{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.occupied {
		return Decl{}, false
	}
	return s.decl, true
}

// Remove frees a slot and returns it to the free list. Removing an
// already free slot is a no-op.
func (a *Arena) Remove(id ID) {
	s := a.slot(id)
	if s == nil {
		return
	}
	s.mu.Lock()
	wasOccupied := s.occupied
	s.occupied = false
	s.decl = Decl{}
	s.mu.Unlock()

	if wasOccupied {
		a.freeMu.Lock()
		a.free = append(a.free, id)
		a.freeMu.Unlock()
	}
}

// Retain removes every declaration the predicate rejects. It holds the
// arena-wide exclusive lock for its whole run and cannot overlap any
// other access, including the free list.
func (a *Arena) Retain(keep func(ID, *Decl) bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freeMu.Lock()
	defer a.freeMu.Unlock()

	for i := 1; i < len(a.slots); i++ {
		s := a.slots[i]
		s.mu.Lock()
		if s.occupied && !keep(ID(i), &s.decl) { //nolint:gosec // G115: bounded by arena length
			s.occupied = false
			s.decl = Decl{}
			a.free = append(a.free, ID(i)) //nolint:gosec // G115: bounded by arena length
		}
		s.mu.Unlock()
	}
}

// Len counts occupied slots.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	count := 0
	for i := 1; i < len(a.slots); i++ {
		s := a.slots[i]
		s.mu.RLock()
		if s.occupied {
			count++
		}
		s.mu.RUnlock()
	}
	return count
}

func (a *Arena) slot(id ID) *slot {
	if !id.IsValid() {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(id) >= len(a.slots) {
		return nil
	}
	return a.slots[id]
}
