package arena

import "testing"

func TestArenaAllocGet(t *testing.T) {
	a := New[string]()
	r1 := a.Alloc("one")
	r2 := a.Alloc("two")

	if v, ok := a.Get(r1); !ok || v != "one" {
		t.Fatalf("Get(r1) = %q, %v; want one, true", v, ok)
	}
	if v, ok := a.Get(r2); !ok || v != "two" {
		t.Fatalf("Get(r2) = %q, %v; want two, true", v, ok)
	}
	if a.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", a.Len())
	}
}

func TestArenaFreeAndReuse(t *testing.T) {
	a := New[int]()
	r1 := a.Alloc(1)
	a.Free(r1)

	if _, ok := a.Get(r1); ok {
		t.Fatalf("Get(r1) after Free should fail")
	}

	r2 := a.Alloc(2)
	if r2.Index() != r1.Index() {
		t.Fatalf("expected slot reuse: r2.Index()=%d r1.Index()=%d", r2.Index(), r1.Index())
	}
	if _, ok := a.Get(r1); ok {
		t.Fatalf("stale handle r1 must not resolve after slot reuse")
	}
	if v, ok := a.Get(r2); !ok || v != 2 {
		t.Fatalf("Get(r2) = %d, %v; want 2, true", v, ok)
	}
}

func TestArenaNilRef(t *testing.T) {
	a := New[int]()
	if Nil.Valid() {
		t.Fatal("Nil must not be Valid")
	}
	if _, ok := a.Get(Nil); ok {
		t.Fatal("Get(Nil) must fail")
	}
}

func TestArenaEachSkipsFreed(t *testing.T) {
	a := New[int]()
	r1 := a.Alloc(10)
	r2 := a.Alloc(20)
	a.Alloc(30)
	a.Free(r2)

	seen := map[int]bool{}
	a.Each(func(_ Ref, v int) { seen[v] = true })

	if seen[20] {
		t.Fatal("Each must skip freed slots")
	}
	if !seen[10] || !seen[30] {
		t.Fatalf("Each missed live slots: %v", seen)
	}
	_ = r1
}

type node struct {
	val  string
	link ListNode
}

func nodeAccessors(a *Arena[node]) Accessors[node] {
	return Accessors[node]{
		Arena: a,
		Get:   func(n node) ListNode { return n.link },
		Set:   func(n node, ln ListNode) node { n.link = ln; return n },
	}
}

func TestListPushBackOrder(t *testing.T) {
	a := New[node]()
	ac := nodeAccessors(a)
	var l List[node]

	r1 := a.Alloc(node{val: "a"})
	r2 := a.Alloc(node{val: "b"})
	r3 := a.Alloc(node{val: "c"})

	l.PushBack(ac, r1)
	l.PushBack(ac, r2)
	l.PushBack(ac, r3)

	var order []string
	l.Walk(ac, func(r Ref) bool {
		v, _ := a.Get(r)
		order = append(order, v.val)
		return true
	})
	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("order = %v; want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v; want %v", order, want)
		}
	}
	if l.Len() != 3 {
		t.Fatalf("Len() = %d; want 3", l.Len())
	}
}

func TestListInsertBeforeAndRemove(t *testing.T) {
	a := New[node]()
	ac := nodeAccessors(a)
	var l List[node]

	r1 := a.Alloc(node{val: "a"})
	r2 := a.Alloc(node{val: "c"})
	l.PushBack(ac, r1)
	l.PushBack(ac, r2)

	rb := a.Alloc(node{val: "b"})
	l.InsertBefore(ac, rb, r2)

	var order []string
	l.Walk(ac, func(r Ref) bool {
		v, _ := a.Get(r)
		order = append(order, v.val)
		return true
	})
	if got := order; len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("order = %v; want [a b c]", got)
	}

	l.Remove(ac, rb)
	order = nil
	l.Walk(ac, func(r Ref) bool {
		v, _ := a.Get(r)
		order = append(order, v.val)
		return true
	})
	if got := order; len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("after remove order = %v; want [a c]", got)
	}
	if l.Head() != r1 || l.Tail() != r2 {
		t.Fatalf("head/tail not restored correctly")
	}
}
