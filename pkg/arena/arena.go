// Package arena implements typed slab allocators and the intrusive list
// used to thread nodes owned by those allocators. Every IR node handed out
// by pkg/ssair, pkg/value or pkg/mir lives in one of these arenas; external
// references to a node are a Ref, never a Go pointer, so the graph of
// instructions/values/uses can be cyclic without the garbage collector
// ever seeing a cycle of its own.
package arena

// Ref is a handle into an Arena: an index tagged by generation so that a
// stale handle (kept around past a Free) can be told apart from a live one
// sharing the same slot. The zero Ref is never issued by Alloc; Nil is the
// sentinel "no handle" value every Ref field in the IR can hold.
type Ref struct {
	index      uint32
	generation uint32
}

// Nil is the sentinel empty handle. It compares equal to any unset Ref field.
var Nil = Ref{}

// Valid reports whether r was ever returned by an Alloc call.
func (r Ref) Valid() bool { return r != Nil }

// Index exposes the raw slot index, for callers that print handles for
// debugging or use them as map keys across arena boundaries.
func (r Ref) Index() uint32 { return r.index }

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Arena is a growable slab allocator returning stable Ref handles. A freed
// slot's index is reused by a later Alloc, but Free bumps the slot's
// generation, so a Ref captured before the Free compares unequal to one
// minted after and no longer resolves, even though the underlying slice
// slot was recycled.
type Arena[T any] struct {
	slots     []slot[T]
	freeList  []uint32
	liveCount int
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Alloc inserts value into the arena and returns its handle.
func (a *Arena[T]) Alloc(value T) Ref {
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		s := &a.slots[idx]
		s.value = value
		s.live = true
		a.liveCount++
		return Ref{index: idx + 1, generation: s.generation}
	}
	idx := uint32(len(a.slots))
	a.slots = append(a.slots, slot[T]{value: value, live: true})
	a.liveCount++
	return Ref{index: idx + 1, generation: 0}
}

// Get returns the value at r and whether r is currently live. Passing a
// handle from a different arena, or one that has been Free'd and whose slot
// was recycled, reports ok == false rather than returning stale data.
func (a *Arena[T]) Get(r Ref) (T, bool) {
	var zero T
	if !r.Valid() || r.index == 0 || int(r.index) > len(a.slots) {
		return zero, false
	}
	s := &a.slots[r.index-1]
	if !s.live || s.generation != r.generation {
		return zero, false
	}
	return s.value, true
}

// MustGet panics if r is not live; used in call sites where liveness was
// already established by an earlier Get/iteration, to avoid double error
// plumbing for what is a programmer-error condition.
func (a *Arena[T]) MustGet(r Ref) T {
	v, ok := a.Get(r)
	if !ok {
		panic("arena: dereferenced a dead or foreign Ref")
	}
	return v
}

// Set overwrites the value stored at a live r. Returns false if r is dead.
func (a *Arena[T]) Set(r Ref, value T) bool {
	if !r.Valid() || r.index == 0 || int(r.index) > len(a.slots) {
		return false
	}
	s := &a.slots[r.index-1]
	if !s.live || s.generation != r.generation {
		return false
	}
	s.value = value
	return true
}

// Free releases the slot at r for reuse. Any Ref copies captured before
// this call become permanently dead (Get/Set report false), because the
// slot's generation is advanced before it can be handed out again.
func (a *Arena[T]) Free(r Ref) {
	if !r.Valid() || r.index == 0 || int(r.index) > len(a.slots) {
		return
	}
	s := &a.slots[r.index-1]
	if !s.live || s.generation != r.generation {
		return
	}
	var zero T
	s.value = zero
	s.live = false
	s.generation++
	a.freeList = append(a.freeList, r.index-1)
	a.liveCount--
}

// Len returns the number of currently live entries.
func (a *Arena[T]) Len() int { return a.liveCount }

// Each calls f for every live entry, in slot order (insertion order modulo
// slot reuse). f may not allocate into or free from a during iteration;
// that invariant is the caller's responsibility, mirroring the "no pass may
// hold a borrow of the arena during a stop-the-world GC" rule in the spec.
func (a *Arena[T]) Each(f func(Ref, T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		f(Ref{index: uint32(i) + 1, generation: s.generation}, s.value)
	}
}
