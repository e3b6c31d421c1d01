package value

import (
	"math/big"
	"testing"

	"github.com/ssair-lang/ssair/pkg/arena"
)

func TestIsZero(t *testing.T) {
	if !IsZero(ConstData{Kind: ConstZero}) {
		t.Fatal("ConstZero should be zero")
	}
	if !IsZero(AggrZero{}) {
		t.Fatal("AggrZero should be zero")
	}
	if !IsZero(ConstData{Kind: ConstInt, Int: big.NewInt(0)}) {
		t.Fatal("ConstInt(0) should be zero")
	}
	if IsZero(ConstData{Kind: ConstInt, Int: big.NewInt(1)}) {
		t.Fatal("ConstInt(1) should not be zero")
	}
	if IsZero(None{}) {
		t.Fatal("None is not a zero value")
	}
}

func TestUserListTracksDistinctInstructions(t *testing.T) {
	uses := arena.New[Use]()
	ac := Accessors(uses)
	var ul UserList

	inst1 := InstRef{arena.Ref{}}
	u1 := uses.Alloc(Use{Kind: UseKind{Role: RoleBinOpLhs}, Owner: Owner{Kind: OwnerInst, Inst: inst1}})
	ul.PushBack(ac, UseRef{u1})

	if HasMultipleUsers(uses, &ul) {
		t.Fatal("single use should not count as multiple users")
	}

	u2 := uses.Alloc(Use{Kind: UseKind{Role: RoleBinOpRhs}, Owner: Owner{Kind: OwnerInst, Inst: inst1}})
	ul.PushBack(ac, UseRef{u2})

	if HasMultipleUsers(uses, &ul) {
		t.Fatal("same instruction using a value twice must still count as one user")
	}

	inst2 := InstRef{arena.Ref{}}
	_ = inst2
}

func TestUseRemoveDetaches(t *testing.T) {
	uses := arena.New[Use]()
	ac := Accessors(uses)
	var ul UserList

	u1 := uses.Alloc(Use{Kind: UseKind{Role: RoleLoadPtr}})
	u2 := uses.Alloc(Use{Kind: UseKind{Role: RoleStoreVal}})
	ul.PushBack(ac, UseRef{u1})
	ul.PushBack(ac, UseRef{u2})

	if ul.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", ul.Len())
	}

	ul.Remove(ac, UseRef{u1})
	if ul.Len() != 1 {
		t.Fatalf("Len() after Remove = %d; want 1", ul.Len())
	}

	var remaining []UseRef
	ul.Walk(ac, func(r UseRef) bool {
		remaining = append(remaining, r)
		return true
	})
	if len(remaining) != 1 || remaining[0].Ref != u2 {
		t.Fatalf("remaining = %v; want [%v]", remaining, u2)
	}
}
