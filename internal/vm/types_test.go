package vm

import "testing"

func TestNewInternerReservesAtomics(t *testing.T) {
	in := NewInterner()
	cases := []struct {
		id   TypeID
		kind Kind
	}{
		{in.IDUndefined, KindUndefined},
		{in.IDAny, KindAny},
		{in.IDVoid, KindVoid},
		{in.IDBool, KindBool},
		{in.IDInt, KindInt},
		{in.IDDouble, KindDouble},
		{in.IDString, KindString},
		{in.IDJSON, KindJSON},
		{in.IDTypeID, KindTypeID},
	}
	for _, c := range cases {
		if got := in.GetNode(c.id).Kind; got != c.kind {
			t.Fatalf("atomic id %v: expected kind %v, got %v", c.id, c.kind, got)
		}
	}
}

func TestInternAnonymousDeduplicates(t *testing.T) {
	in := NewInterner()
	vecOfInt := TypeNode{Kind: KindVector, Children: []TypeID{in.IDInt}}
	a := in.InternAnonymous(vecOfInt)
	b := in.InternAnonymous(vecOfInt)
	if a != b {
		t.Fatalf("expected structurally equal vector types to share an id, got %v and %v", a, b)
	}

	vecOfString := TypeNode{Kind: KindVector, Children: []TypeID{in.IDString}}
	c := in.InternAnonymous(vecOfString)
	if c == a {
		t.Fatalf("expected distinct element types to produce distinct ids")
	}
}

func TestInternAnonymousPanicsOnNamed(t *testing.T) {
	in := NewInterner()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic interning a Named node via InternAnonymous")
		}
	}()
	in.InternAnonymous(TypeNode{Kind: KindNamed})
}

func TestDeclareNamedForwardReference(t *testing.T) {
	in := NewInterner()
	node := in.DeclareNamed([]string{"my_pkg", "Node"}, in.IDUndefined)
	if in.GetNode(node).namedBody != in.IDUndefined {
		t.Fatalf("expected forward-declared body to start undefined")
	}

	// A struct referencing the not-yet-resolved name should still intern
	// fine, since interning only needs the name's id, not its body.
	selfRef := in.InternAnonymous(TypeNode{Kind: KindStruct, Children: []TypeID{node}, FieldNames: []string{"next"}})
	if selfRef == 0 {
		t.Fatal("expected a valid struct id")
	}

	in.UpdateNamed(node, selfRef)
	if got := in.Peek(node); got != selfRef {
		t.Fatalf("expected Peek to resolve through the named alias, got %v want %v", got, selfRef)
	}
}

func TestUpdateNamedPanicsOnNonNamedID(t *testing.T) {
	in := NewInterner()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic updating a non-named id")
		}
	}()
	in.UpdateNamed(in.IDInt, in.IDBool)
}

func TestLookupByNamePanicsOnUnknownPath(t *testing.T) {
	in := NewInterner()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic looking up an undeclared path")
		}
	}()
	in.LookupByName([]string{"nope"})
}

func TestIsRCBearing(t *testing.T) {
	in := NewInterner()
	rcBearing := map[TypeID]bool{
		in.IDBool:   false,
		in.IDInt:    false,
		in.IDDouble: false,
		in.IDTypeID: false,
		in.IDString: true,
		in.IDJSON:   true,
	}
	for id, want := range rcBearing {
		if got := in.IsRCBearing(id); got != want {
			t.Fatalf("IsRCBearing(%v) = %v, want %v", id, got, want)
		}
	}

	vec := in.InternAnonymous(TypeNode{Kind: KindVector, Children: []TypeID{in.IDInt}})
	if !in.IsRCBearing(vec) {
		t.Fatal("expected a vector type to be RC-bearing")
	}
}

func TestGetVariantFunction(t *testing.T) {
	in := NewInterner()
	fn := in.InternAnonymous(TypeNode{
		Kind:     KindFunction,
		Children: []TypeID{in.IDInt, in.IDInt, in.IDString}, // ret=int, args=(int,string)
	})
	v := in.GetVariant(fn)
	if v.Ret != in.IDInt {
		t.Fatalf("expected ret int, got %v", v.Ret)
	}
	if len(v.Args) != 2 || v.Args[0] != in.IDInt || v.Args[1] != in.IDString {
		t.Fatalf("expected args [int, string], got %v", v.Args)
	}
}

func TestTypeIDIndexOrdering(t *testing.T) {
	in := NewInterner()
	elem := in.InternAnonymous(TypeNode{Kind: KindVector, Children: []TypeID{in.IDInt}})
	nested := in.InternAnonymous(TypeNode{Kind: KindVector, Children: []TypeID{elem}})
	if nested.Index() <= elem.Index() {
		t.Fatalf("expected parent index %d to exceed child index %d", nested.Index(), elem.Index())
	}
}
