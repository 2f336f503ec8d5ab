package decls

import (
	"fmt"
	"sync"
	"testing"
)

func TestArenaInsertGetRemove(t *testing.T) {
	a := NewArena()

	id := a.Insert(Decl{Name: "transfer", Kind: DeclFunc})
	if !id.IsValid() {
		t.Fatal("insert returned the sentinel id")
	}

	d, ok := a.Get(id)
	if !ok || d.Name != "transfer" {
		t.Fatalf("get = %+v, %t", d, ok)
	}

	a.Remove(id)
	if _, ok := a.Get(id); ok {
		t.Fatal("removed declaration still readable")
	}

	// The freed slot is reused.
	again := a.Insert(Decl{Name: "balance", Kind: DeclConst})
	if again != id {
		t.Errorf("freed slot not reused: got %d, want %d", again, id)
	}
}

func TestArenaDoubleRemoveDoesNotDuplicateFreeSlot(t *testing.T) {
	a := NewArena()
	id := a.Insert(Decl{Name: "a"})
	a.Remove(id)
	a.Remove(id)

	first := a.Insert(Decl{Name: "b"})
	second := a.Insert(Decl{Name: "c"})
	if first == second {
		t.Fatal("two live declarations share a slot")
	}
}

func TestArenaRetain(t *testing.T) {
	a := NewArena()
	for i := 0; i < 10; i++ {
		kind := DeclFunc
		if i%2 == 1 {
			kind = DeclConst
		}
		a.Insert(Decl{Name: fmt.Sprintf("d%d", i), Kind: kind})
	}

	a.Retain(func(_ ID, d *Decl) bool { return d.Kind == DeclFunc })

	if a.Len() != 5 {
		t.Fatalf("after retain: %d declarations, want 5", a.Len())
	}
}

func TestArenaConcurrentAccess(t *testing.T) {
	a := NewArena()
	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	ids := make([][]ID, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ids[w] = make([]ID, perWorker)
			for i := 0; i < perWorker; i++ {
				id := a.Insert(Decl{Name: fmt.Sprintf("w%d/%d", w, i), Kind: DeclFunc})
				ids[w][i] = id
				if _, ok := a.Get(id); !ok {
					t.Errorf("worker %d lost declaration %d", w, id)
					return
				}
				if i%3 == 0 {
					a.Remove(id)
				}
			}
		}(w)
	}
	wg.Wait()

	// Every id kept by a worker still resolves to its own declaration.
	for w := range ids {
		for i, id := range ids[w] {
			if i%3 == 0 {
				continue
			}
			d, ok := a.Get(id)
			if !ok || d.Name != fmt.Sprintf("w%d/%d", w, i) {
				t.Fatalf("worker %d entry %d: got %+v, %t", w, i, d, ok)
			}
		}
	}
}
