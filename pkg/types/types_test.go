package types

import "testing"

func TestInternArrayIdempotent(t *testing.T) {
	c := NewContext(DefaultConfig())
	a1 := c.InternArray(Int(32), 10)
	a2 := c.InternArray(Int(32), 10)
	if a1 != a2 {
		t.Fatalf("structurally identical arrays must intern to the same ID")
	}
	a3 := c.InternArray(Int(32), 11)
	if a1 == a3 {
		t.Fatalf("arrays of different length must not share an ID")
	}
}

func TestInternStructOffsetsPadded(t *testing.T) {
	c := NewContext(DefaultConfig())
	// struct { i8; i32 } -> i32 needs 4-byte alignment, so field 1 pads to offset 4.
	s := c.InternStruct([]ID{Int(8), Int(32)}, false)
	fields := s.StructFields(c)
	if fields[0].Offset != 0 {
		t.Fatalf("field 0 offset = %d; want 0", fields[0].Offset)
	}
	if fields[1].Offset != 4 {
		t.Fatalf("field 1 offset = %d; want 4 (padded)", fields[1].Offset)
	}
	size, err := c.SizeOf(s)
	if err != nil {
		t.Fatal(err)
	}
	if size != 8 {
		t.Fatalf("struct size = %d; want 8", size)
	}
}

func TestInternStructPackedNoPadding(t *testing.T) {
	c := NewContext(DefaultConfig())
	s := c.InternStruct([]ID{Int(8), Int(32)}, true)
	fields := s.StructFields(c)
	if fields[1].Offset != 1 {
		t.Fatalf("packed field 1 offset = %d; want 1", fields[1].Offset)
	}
	size, _ := c.SizeOf(s)
	if size != 5 {
		t.Fatalf("packed struct size = %d; want 5", size)
	}
}

func TestInternStructDedup(t *testing.T) {
	c := NewContext(DefaultConfig())
	s1 := c.InternStruct([]ID{Int(32), Int(32)}, false)
	s2 := c.InternStruct([]ID{Int(32), Int(32)}, false)
	if s1 != s2 {
		t.Fatalf("identical struct shapes must intern to the same ID")
	}
}

func TestSizeOfVoidAndFuncFails(t *testing.T) {
	c := NewContext(DefaultConfig())
	if _, err := c.SizeOf(Void); err == nil {
		t.Fatal("SizeOf(Void) should fail")
	}
	fn := c.InternFunc(Void, []ID{Int(32)}, false)
	if _, err := c.SizeOf(fn); err == nil {
		t.Fatal("SizeOf(Func) should fail")
	}
}

func TestAlignOfIsPowerOfTwo(t *testing.T) {
	c := NewContext(DefaultConfig())
	for _, bits := range []int{1, 8, 16, 32, 64, 128} {
		align, err := c.AlignOf(Int(bits))
		if err != nil {
			t.Fatal(err)
		}
		if align&(align-1) != 0 {
			t.Fatalf("AlignOf(i%d) = %d; not a power of two", bits, align)
		}
	}
}

func TestInternAliasSameNameSameStructOK(t *testing.T) {
	c := NewContext(DefaultConfig())
	s := c.InternStruct([]ID{Int(32)}, false)
	a1 := c.InternAlias("Point", s)
	a2 := c.InternAlias("Point", s)
	if a1 != a2 {
		t.Fatalf("re-interning the same alias/struct pair must return the same ID")
	}
}

func TestInternAliasSameNameDifferentStructPanics(t *testing.T) {
	c := NewContext(DefaultConfig())
	s1 := c.InternStruct([]ID{Int(32)}, false)
	s2 := c.InternStruct([]ID{Int(64)}, false)
	c.InternAlias("Point", s1)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic redefining alias with a different struct")
		}
	}()
	c.InternAlias("Point", s2)
}

func TestDispatchClass(t *testing.T) {
	c := NewContext(DefaultConfig())
	cases := []struct {
		ty   ID
		want Typ
	}{
		{Int(32), Tint},
		{Int(64), Tlong},
		{Int(128), Tlong},
		{Float(IEEE32), Tsingle},
		{Float(IEEE64), Tfloat},
		{Ptr, Tlong},
	}
	for _, c2 := range cases {
		if got := c.DispatchClass(c2.ty); got != c2.want {
			t.Errorf("DispatchClass(%v) = %v; want %v", c2.ty, got, c2.want)
		}
	}
}
