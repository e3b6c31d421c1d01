package arena

// ListNode is embedded (by value, addressed through an Arena[T] Ref) in
// every node type that participates in an intrusive doubly-linked list: a
// block's instruction chain, or a value's user list. Unlike container/list,
// no separate heap node is allocated per element — the prev/next links live
// inside the arena slot itself, addressed by Ref so the list survives arena
// growth and slot reuse.
type ListNode struct {
	prev, next Ref
}

// List is an intrusive doubly-linked list header over nodes of type T whose
// ListNode is reachable via the supplied accessor closures. Nodes are
// identified by Ref into the same Arena[T] that owns them; List itself owns
// no storage beyond the two sentinel-adjacent links.
type List[T any] struct {
	head, tail Ref
	length     int
}

// Accessors bundle the get/set pair a List needs to reach into a node's
// embedded ListNode without the node type itself needing to satisfy an
// interface (which would require pointer receivers the arena's value
// storage doesn't support).
type Accessors[T any] struct {
	Arena *Arena[T]
	Get   func(T) ListNode
	Set   func(T, ListNode) T
}

func (ac Accessors[T]) link(r Ref) ListNode {
	v, ok := ac.Arena.Get(r)
	if !ok {
		return ListNode{}
	}
	return ac.Get(v)
}

func (ac Accessors[T]) setLink(r Ref, ln ListNode) {
	v, ok := ac.Arena.Get(r)
	if !ok {
		return
	}
	ac.Arena.Set(r, ac.Set(v, ln))
}

// Head returns the first node's Ref, or Nil if the list is empty.
func (l *List[T]) Head() Ref { return l.head }

// Tail returns the last node's Ref, or Nil if the list is empty.
func (l *List[T]) Tail() Ref { return l.tail }

// Len returns the number of linked nodes.
func (l *List[T]) Len() int { return l.length }

// Next returns the node following r, using ac to read r's embedded link.
func (l *List[T]) Next(ac Accessors[T], r Ref) Ref { return ac.link(r).next }

// Prev returns the node preceding r.
func (l *List[T]) Prev(ac Accessors[T], r Ref) Ref { return ac.link(r).prev }

// PushBack appends r to the end of the list.
func (l *List[T]) PushBack(ac Accessors[T], r Ref) {
	if l.tail == Nil {
		l.head, l.tail = r, r
		ac.setLink(r, ListNode{})
		l.length++
		return
	}
	ac.setLink(r, ListNode{prev: l.tail})
	oldTail := ac.link(l.tail)
	oldTail.next = r
	ac.setLink(l.tail, oldTail)
	l.tail = r
	l.length++
}

// PushFront prepends r to the start of the list.
func (l *List[T]) PushFront(ac Accessors[T], r Ref) {
	if l.head == Nil {
		l.head, l.tail = r, r
		ac.setLink(r, ListNode{})
		l.length++
		return
	}
	ac.setLink(r, ListNode{next: l.head})
	oldHead := ac.link(l.head)
	oldHead.prev = r
	ac.setLink(l.head, oldHead)
	l.head = r
	l.length++
}

// InsertBefore splices r immediately before at, which must already be
// linked into l. Inserting before Nil is equivalent to PushBack.
func (l *List[T]) InsertBefore(ac Accessors[T], r, at Ref) {
	if at == Nil {
		l.PushBack(ac, r)
		return
	}
	atLink := ac.link(at)
	prev := atLink.prev
	ac.setLink(r, ListNode{prev: prev, next: at})
	atLink.prev = r
	ac.setLink(at, atLink)
	if prev == Nil {
		l.head = r
	} else {
		prevLink := ac.link(prev)
		prevLink.next = r
		ac.setLink(prev, prevLink)
	}
	l.length++
}

// InsertAfter splices r immediately after at.
func (l *List[T]) InsertAfter(ac Accessors[T], r, at Ref) {
	if at == Nil {
		l.PushFront(ac, r)
		return
	}
	atLink := ac.link(at)
	next := atLink.next
	ac.setLink(r, ListNode{prev: at, next: next})
	atLink.next = r
	ac.setLink(at, atLink)
	if next == Nil {
		l.tail = r
	} else {
		nextLink := ac.link(next)
		nextLink.prev = r
		ac.setLink(next, nextLink)
	}
	l.length++
}

// Remove detaches r from the list. r's own links are cleared so a stale
// reader following them observes an isolated node rather than a dangling
// edge back into the list it was just removed from.
func (l *List[T]) Remove(ac Accessors[T], r Ref) {
	ln := ac.link(r)
	if ln.prev == Nil {
		l.head = ln.next
	} else {
		prevLink := ac.link(ln.prev)
		prevLink.next = ln.next
		ac.setLink(ln.prev, prevLink)
	}
	if ln.next == Nil {
		l.tail = ln.prev
	} else {
		nextLink := ac.link(ln.next)
		nextLink.prev = ln.prev
		ac.setLink(ln.next, nextLink)
	}
	ac.setLink(r, ListNode{})
	l.length--
}

// Walk calls f for every node from head to tail. f returning false stops
// the walk early (mirrors the builder's ControlFlow-style early exit).
func (l *List[T]) Walk(ac Accessors[T], f func(Ref) bool) {
	for r := l.head; r != Nil; r = ac.link(r).next {
		if !f(r) {
			return
		}
	}
}
