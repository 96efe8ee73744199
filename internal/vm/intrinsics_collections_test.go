package vm

import "testing"

// callbackInterp builds an Interpreter with a real Stack (callFunction
// pushes/pops call args through it) backed by a traced heap, plus a host
// FunctionDef of int(int, any) suitable as a map/filter/reduce/sort callback.
func callbackInterp(t *testing.T, host HostFunc, retType TypeID, dynamicArgCount int) (*Interner, *Heap, *Interpreter, *FunctionDef) {
	t.Helper()
	in, h := tracedHeap()
	fnType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{retType, in.IDInt, in.IDAny}})
	fn := &FunctionDef{Name: "cb", Type: fnType, Host: host, DynamicArgCount: dynamicArgCount}
	prog := &Program{Interner: in, Heap: h, Functions: []*FunctionDef{fn}}
	it := &Interpreter{heap: h, stack: NewStack(h, 64), prog: prog}
	return in, h, it, fn
}

// cb returns the Word referring to fn, the only entry in it.prog.Functions.
func cb(*FunctionDef) Word { return WordLink(0) }

func TestHostMapDoublesElements(t *testing.T) {
	in, h, it, fn := callbackInterp(t, func(it *Interpreter, args []Word) (Word, error) {
		return WordInt(args[0].Int() * 2), nil
	}, 0, 1)
	fn.Type = in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt, in.IDInt, in.IDAny}})

	vec := h.AllocVector(in.IDInt, []Word{WordInt(1), WordInt(2), WordInt(3)})
	ctx := WordInt(0)
	result, err := hostMap(it, []Word{vec, cb(fn), WordTypeID(in.IDInt), ctx})
	if err != nil {
		t.Fatalf("hostMap: %v", err)
	}
	if h.VectorLen(result) != 3 {
		t.Fatalf("expected 3 results, got %d", h.VectorLen(result))
	}
	if got := h.VectorGet(result, 1).Int(); got != 4 {
		t.Fatalf("expected doubled element 4, got %d", got)
	}
	vecType := in.InternAnonymous(TypeNode{Kind: KindVector, Children: []TypeID{in.IDInt}})
	h.Release(vec, vecType)
	h.Release(result, vecType)
	if h.LiveCount() != 0 {
		t.Fatalf("expected 0 live allocations, got %d", h.LiveCount())
	}
}

func TestHostFilterKeepsEven(t *testing.T) {
	in, h, it, fn := callbackInterp(t, func(it *Interpreter, args []Word) (Word, error) {
		return WordBool(args[0].Int()%2 == 0), nil
	}, 0, 1)
	fn.Type = in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDBool, in.IDInt, in.IDAny}})

	vec := h.AllocVector(in.IDInt, []Word{WordInt(1), WordInt(2), WordInt(3), WordInt(4)})
	result, err := hostFilter(it, []Word{vec, cb(fn), WordTypeID(in.IDInt), WordInt(0)})
	if err != nil {
		t.Fatalf("hostFilter: %v", err)
	}
	if h.VectorLen(result) != 2 {
		t.Fatalf("expected 2 surviving elements, got %d", h.VectorLen(result))
	}
	vecType := in.InternAnonymous(TypeNode{Kind: KindVector, Children: []TypeID{in.IDInt}})
	h.Release(vec, vecType)
	h.Release(result, vecType)
	if h.LiveCount() != 0 {
		t.Fatalf("expected 0 live allocations, got %d", h.LiveCount())
	}
}

func TestHostReduceSums(t *testing.T) {
	in, h, it, fn := callbackInterp(t, nil, 0, 1)
	fn.Type = in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt, in.IDInt, in.IDInt, in.IDAny}})
	fn.Host = func(it *Interpreter, args []Word) (Word, error) {
		return WordInt(args[0].Int() + args[1].Int()), nil
	}

	vec := h.AllocVector(in.IDInt, []Word{WordInt(1), WordInt(2), WordInt(3)})
	result, err := hostReduce(it, []Word{vec, WordInt(0), cb(fn), WordTypeID(in.IDInt), WordInt(0)})
	if err != nil {
		t.Fatalf("hostReduce: %v", err)
	}
	if result.Int() != 6 {
		t.Fatalf("expected sum 6, got %d", result.Int())
	}
	vecType := in.InternAnonymous(TypeNode{Kind: KindVector, Children: []TypeID{in.IDInt}})
	h.Release(vec, vecType)
	if h.LiveCount() != 0 {
		t.Fatalf("expected 0 live allocations, got %d", h.LiveCount())
	}
}

func TestHostStableSortAscending(t *testing.T) {
	in, h, it, fn := callbackInterp(t, func(it *Interpreter, args []Word) (Word, error) {
		return WordBool(args[0].Int() < args[1].Int()), nil
	}, 0, 1)
	fn.Type = in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDBool, in.IDInt, in.IDInt, in.IDAny}})

	vec := h.AllocVector(in.IDInt, []Word{WordInt(3), WordInt(1), WordInt(2)})
	result, err := hostStableSort(it, []Word{vec, cb(fn), WordTypeID(in.IDInt), WordInt(0)})
	if err != nil {
		t.Fatalf("hostStableSort: %v", err)
	}
	got := []int64{h.VectorGet(result, 0).Int(), h.VectorGet(result, 1).Int(), h.VectorGet(result, 2).Int()}
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("expected sorted [1 2 3], got %v", got)
	}
	vecType := in.InternAnonymous(TypeNode{Kind: KindVector, Children: []TypeID{in.IDInt}})
	h.Release(vec, vecType)
	h.Release(result, vecType)
	if h.LiveCount() != 0 {
		t.Fatalf("expected 0 live allocations, got %d", h.LiveCount())
	}
}

func TestHostMapDagParentChain(t *testing.T) {
	in, h, it, fn := callbackInterp(t, func(it *Interpreter, args []Word) (Word, error) {
		return WordInt(args[0].Int() + args[1].Int()), nil
	}, 0, 1)
	fn.Type = in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt, in.IDInt, in.IDInt, in.IDAny}})

	elements := h.AllocVector(in.IDInt, []Word{WordInt(1), WordInt(2), WordInt(3)})
	parents := h.AllocVector(in.IDInt, []Word{WordInt(-1), WordInt(0), WordInt(1)})
	result, err := hostMapDag(it, []Word{elements, parents, cb(fn), WordTypeID(in.IDInt), WordInt(0)})
	if err != nil {
		t.Fatalf("hostMapDag: %v", err)
	}
	got := []int64{h.VectorGet(result, 0).Int(), h.VectorGet(result, 1).Int(), h.VectorGet(result, 2).Int()}
	if got[0] != 1 || got[1] != 3 || got[2] != 6 {
		t.Fatalf("expected cumulative sums [1 3 6], got %v", got)
	}
	vecType := in.InternAnonymous(TypeNode{Kind: KindVector, Children: []TypeID{in.IDInt}})
	h.Release(elements, vecType)
	h.Release(parents, vecType)
	h.Release(result, vecType)
	if h.LiveCount() != 0 {
		t.Fatalf("expected 0 live allocations, got %d", h.LiveCount())
	}
}

func TestHostMapDagDetectsCycle(t *testing.T) {
	in, h, it, fn := callbackInterp(t, func(it *Interpreter, args []Word) (Word, error) {
		return WordInt(args[0].Int()), nil
	}, 0, 1)
	fn.Type = in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt, in.IDInt, in.IDInt, in.IDAny}})

	elements := h.AllocVector(in.IDInt, []Word{WordInt(1), WordInt(2)})
	parents := h.AllocVector(in.IDInt, []Word{WordInt(1), WordInt(0)})
	_, err := hostMapDag(it, []Word{elements, parents, cb(fn), WordTypeID(in.IDInt), WordInt(0)})
	if err == nil {
		t.Fatal("expected an error detecting a cycle in the parents graph")
	}

	vecType := in.InternAnonymous(TypeNode{Kind: KindVector, Children: []TypeID{in.IDInt}})
	h.Release(elements, vecType)
	h.Release(parents, vecType)
}
