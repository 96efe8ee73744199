package vm

import (
	"testing"

	"github.com/sirupsen/logrus"
)

// loadSingleFunc loads a Program containing exactly one function, mirroring
// program_test.go's buildAddProgram but parameterized for reuse across the
// opcode groups below.
func loadSingleFunc(t *testing.T, in *Interner, fn *FunctionDef) *Program {
	t.Helper()
	global := &Frame{Name: "<global>"}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	prog, err := Load(in, Config{Trace: true}, []*FunctionDef{fn}, global, logger)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return prog
}

// TestOpAddStringConcatenates returns a freshly built string through a local
// that close_frame also releases. That isn't a double free: OpAddString's
// WriteRegister retains the new value before releasing the slot's old
// occupant, so the local's own allocation ends up with refcount 2 (one from
// AllocString, one from that retain) before close_frame drops it back to 1,
// leaving exactly the reference the caller now owns.
func TestOpAddStringConcatenates(t *testing.T) {
	in := NewInterner()
	fnType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDString, in.IDString, in.IDString}})
	frame := &Frame{
		Name:       "cat",
		ArgCount:   2,
		Symbols:    []Symbol{{Name: "a", Type: in.IDString}, {Name: "b", Type: in.IDString}, {Name: "r", Type: in.IDString}},
		Exts:       []bool{true, true, true},
		LocalsExts: []bool{true},
		Code: []Instruction{
			{Op: OpAddString, A: 2, B: 0, C: 1},
			{Op: OpReturn, A: 2},
		},
	}
	fn := &FunctionDef{Name: "cat", Type: fnType, Frame: frame}
	prog := loadSingleFunc(t, in, fn)
	link, _ := prog.FindFunction("cat")

	a := prog.Heap.AllocString([]byte("foo"))
	b := prog.Heap.AllocString([]byte("bar"))
	result, _, err := prog.CallByLink(link, []Word{a, b})
	if err != nil {
		t.Fatalf("CallByLink: %v", err)
	}
	if stringOf(result).String() != "foobar" {
		t.Fatalf("expected \"foobar\", got %q", stringOf(result).String())
	}
	prog.Heap.Release(result, in.IDString)
	if got := prog.Heap.LiveCount(); got != 0 {
		t.Fatalf("expected 0 live allocations, got %d", got)
	}
}

func TestOpDivIntByZero(t *testing.T) {
	in := NewInterner()
	fnType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt, in.IDInt, in.IDInt}})
	frame := &Frame{
		Name:     "div",
		ArgCount: 2,
		Symbols:  []Symbol{{Name: "a", Type: in.IDInt}, {Name: "b", Type: in.IDInt}, {Name: "r", Type: in.IDInt}},
		Code: []Instruction{
			{Op: OpDivInt, A: 2, B: 0, C: 1},
			{Op: OpReturn, A: 2},
		},
	}
	fn := &FunctionDef{Name: "div", Type: fnType, Frame: frame}
	prog := loadSingleFunc(t, in, fn)
	link, _ := prog.FindFunction("div")
	if _, _, err := prog.CallByLink(link, []Word{WordInt(10), WordInt(0)}); err == nil {
		t.Fatal("expected a divide_by_zero error")
	}
}

func TestOpCmpLEGenericOverwritesLeftRegister(t *testing.T) {
	in := NewInterner()
	fnType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDBool, in.IDInt, in.IDInt}})
	frame := &Frame{
		Name:     "le",
		ArgCount: 2,
		Symbols:  []Symbol{{Name: "a", Type: in.IDInt}, {Name: "b", Type: in.IDInt}},
		Code: []Instruction{
			{Op: OpCmpLE, A: int32(in.IDInt), B: 0, C: 1},
			{Op: OpReturn, A: 0},
		},
	}
	fn := &FunctionDef{Name: "le", Type: fnType, Frame: frame}
	prog := loadSingleFunc(t, in, fn)
	link, _ := prog.FindFunction("le")
	result, _, err := prog.CallByLink(link, []Word{WordInt(3), WordInt(5)})
	if err != nil {
		t.Fatalf("CallByLink: %v", err)
	}
	if !result.Bool() {
		t.Fatal("expected 3 <= 5 to be true")
	}
}

// TestOpNewVectorAndLookupVector builds [a, b, c] into a properly-typed
// vector local (copying the arguments into its slot first via
// StoreLocalIntern, since NewVector's source registers and destination
// register are the same one), reads one element back out, and returns it —
// leaving the vector itself to be cleaned up by CloseFrame via LocalsExts.
func TestOpNewVectorAndLookupVector(t *testing.T) {
	in := NewInterner()
	vecType := in.InternAnonymous(TypeNode{Kind: KindVector, Children: []TypeID{in.IDInt}})
	fnType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt, in.IDInt, in.IDInt, in.IDInt}})
	frame := &Frame{
		Name:     "pick",
		ArgCount: 3,
		Symbols: []Symbol{
			{Name: "a", Type: in.IDInt}, {Name: "b", Type: in.IDInt}, {Name: "idx", Type: in.IDInt},
			{Name: "vec", Type: vecType}, {Name: "tmpB", Type: in.IDInt}, {Name: "tmpC", Type: in.IDInt},
			{Name: "r", Type: in.IDInt},
		},
		Exts:       []bool{false, false, false, true, false, false, false},
		LocalsExts: []bool{true, false, false, false},
		Code: []Instruction{
			{Op: OpStoreLocalIntern, A: 3, B: 0}, // vec-slot = a
			{Op: OpStoreLocalIntern, A: 4, B: 1}, // tmpB = b
			{Op: OpStoreLocalIntern, A: 5, B: 2}, // tmpC = idx
			{Op: OpNewVector, A: int32(in.IDInt), B: 3, C: 3},
			{Op: OpLookupVector, A: 6, B: 3, C: 2},
			{Op: OpReturn, A: 6},
		},
	}
	fn := &FunctionDef{Name: "pick", Type: fnType, Frame: frame}
	prog := loadSingleFunc(t, in, fn)
	link, _ := prog.FindFunction("pick")
	result, _, err := prog.CallByLink(link, []Word{WordInt(10), WordInt(20), WordInt(1)})
	if err != nil {
		t.Fatalf("CallByLink: %v", err)
	}
	if result.Int() != 20 {
		t.Fatalf("expected element at index 1 (from [10,20,1]) = 20, got %d", result.Int())
	}
	if got := prog.Heap.LiveCount(); got != 0 {
		t.Fatalf("expected 0 live allocations, got %d", got)
	}
}

func TestOpNewStructAndGetStructMember(t *testing.T) {
	in := NewInterner()
	structType := in.InternAnonymous(TypeNode{
		Kind:       KindStruct,
		Children:   []TypeID{in.IDInt, in.IDInt},
		FieldNames: []string{"x", "y"},
	})
	fnType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt, in.IDInt, in.IDInt}})
	frame := &Frame{
		Name:     "makeAndRead",
		ArgCount: 2,
		Symbols: []Symbol{
			{Name: "x", Type: in.IDInt}, {Name: "y", Type: in.IDInt},
			{Name: "s", Type: structType}, {Name: "r", Type: in.IDInt},
		},
		Exts:       []bool{false, false, true, false},
		LocalsExts: []bool{true, false},
		Code: []Instruction{
			{Op: OpStoreLocalIntern, A: 2, B: 0}, // s-slot = x
			{Op: OpStoreLocalIntern, A: 3, B: 1}, // r-slot (tmp) = y
			{Op: OpNewStruct, A: int32(structType), B: 2, C: 2},
			{Op: OpGetStructMember, A: 3, B: 2, C: 1},
			{Op: OpReturn, A: 3},
		},
	}
	fn := &FunctionDef{Name: "makeAndRead", Type: fnType, Frame: frame}
	prog := loadSingleFunc(t, in, fn)
	link, _ := prog.FindFunction("makeAndRead")
	result, _, err := prog.CallByLink(link, []Word{WordInt(7), WordInt(9)})
	if err != nil {
		t.Fatalf("CallByLink: %v", err)
	}
	if result.Int() != 9 {
		t.Fatalf("expected field \"y\"=9, got %d", result.Int())
	}
	if got := prog.Heap.LiveCount(); got != 0 {
		t.Fatalf("expected 0 live allocations, got %d", got)
	}
}

func TestOpBrAlwaysSkipsInstruction(t *testing.T) {
	in := NewInterner()
	fnType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt}})
	frame := &Frame{
		Name:    "skip",
		Symbols: []Symbol{{Name: "r", Type: in.IDInt}},
		Code: []Instruction{
			{Op: OpBrAlways, A: 1}, // skip the next instruction
			{Op: OpStop},           // never reached
			{Op: OpReturn, A: 0},   // returns the zero-valued local "r" (0)
		},
	}
	fn := &FunctionDef{Name: "skip", Type: fnType, Frame: frame}
	prog := loadSingleFunc(t, in, fn)
	link, _ := prog.FindFunction("skip")
	result, _, err := prog.CallByLink(link, nil)
	if err != nil {
		t.Fatalf("CallByLink: %v", err)
	}
	if result.Int() != 0 {
		t.Fatalf("expected 0, got %d", result.Int())
	}
}

func TestOpBrFalseBoolBranchesOnFalse(t *testing.T) {
	in := NewInterner()
	fnType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt, in.IDBool}})
	frame := &Frame{
		Name:     "branch",
		ArgCount: 1,
		Symbols:  []Symbol{{Name: "cond", Type: in.IDBool}, {Name: "r", Type: in.IDInt}},
		Code: []Instruction{
			{Op: OpBrFalseBool, A: 0, B: 1}, // if !cond, skip the "r=cond" store
			{Op: OpStoreLocalIntern, A: 1, B: 0},
			{Op: OpReturn, A: 1},
		},
	}
	fn := &FunctionDef{Name: "branch", Type: fnType, Frame: frame}
	prog := loadSingleFunc(t, in, fn)
	link, _ := prog.FindFunction("branch")

	falsy, _, err := prog.CallByLink(link, []Word{WordBool(false)})
	if err != nil {
		t.Fatalf("CallByLink(false): %v", err)
	}
	if falsy.Int() != 0 {
		t.Fatalf("expected branching past the store when cond is false, got %d", falsy.Int())
	}
}

// TestExecCallBytecodeToBytecode drives a caller function that calls a
// bytecode-backed callee entirely through OpCall/OpPopn — no host
// function involved — exercising execCall's bytecode branch end to end.
func TestExecCallBytecodeToBytecode(t *testing.T) {
	in := NewInterner()
	addType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt, in.IDInt, in.IDInt}})
	addFrame := &Frame{
		Name:     "add",
		ArgCount: 2,
		Symbols:  []Symbol{{Name: "a", Type: in.IDInt}, {Name: "b", Type: in.IDInt}, {Name: "r", Type: in.IDInt}},
		Code: []Instruction{
			{Op: OpAddInt, A: 2, B: 0, C: 1},
			{Op: OpReturn, A: 2},
		},
	}
	addFn := &FunctionDef{Name: "add", Type: addType, Frame: addFrame}

	callerType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt}})
	linkWord := WordLink(0)
	two := WordInt(2)
	five := WordInt(5)
	callerFrame := &Frame{
		Name: "caller",
		Symbols: []Symbol{
			{Name: "fnref", Type: addType, IsConst: true, Const: &linkWord},
			{Name: "x", Type: in.IDInt, IsConst: true, Const: &two},
			{Name: "y", Type: in.IDInt, IsConst: true, Const: &five},
			{Name: "r", Type: in.IDInt},
		},
		Code: []Instruction{
			{Op: OpPushIntern, A: 1}, // push x
			{Op: OpPushIntern, A: 2}, // push y
			{Op: OpCall, A: 3, B: 0, C: 2},
			{Op: OpPopn, A: 2},
			{Op: OpReturn, A: 3},
		},
	}
	callerFn := &FunctionDef{Name: "caller", Type: callerType, Frame: callerFrame}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	global := &Frame{Name: "<global>"}
	prog, err := Load(in, Config{Trace: true}, []*FunctionDef{addFn, callerFn}, global, logger)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	link, ok := prog.FindFunction("caller")
	if !ok {
		t.Fatal("expected to find function \"caller\"")
	}
	result, _, err := prog.CallByLink(link, nil)
	if err != nil {
		t.Fatalf("CallByLink(caller): %v", err)
	}
	if result.Int() != 7 {
		t.Fatalf("expected add(2,5)=7, got %d", result.Int())
	}
}
