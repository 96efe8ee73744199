package vm

import (
	"testing"

	"github.com/sirupsen/logrus"
)

// buildAddProgram assembles a minimal program with one bytecode function,
// add(a, b int) int, entirely by hand (no pkg/floyd wire format involved),
// exercising Load/CallByLink/the interpreter loop directly.
func buildAddProgram(t *testing.T) *Program {
	t.Helper()
	in := NewInterner()
	fnType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt, in.IDInt, in.IDInt}})
	frame := &Frame{
		Name:     "add",
		ArgCount: 2,
		Symbols: []Symbol{
			{Name: "a", Type: in.IDInt},
			{Name: "b", Type: in.IDInt},
			{Name: "r", Type: in.IDInt},
		},
		Exts:       []bool{false, false, false},
		LocalsExts: []bool{false},
		Code: []Instruction{
			{Op: OpAddInt, A: 2, B: 0, C: 1},
			{Op: OpReturn, A: 2},
		},
	}
	fn := &FunctionDef{Name: "add", Type: fnType, Frame: frame}
	global := &Frame{Name: "<global>"}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	prog, err := Load(in, Config{Trace: true}, []*FunctionDef{fn}, global, logger)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return prog
}

func TestCallByLinkAdd(t *testing.T) {
	prog := buildAddProgram(t)
	link, ok := prog.FindFunction("add")
	if !ok {
		t.Fatal("expected to find function \"add\"")
	}
	result, _, err := prog.CallByLink(link, []Word{WordInt(19), WordInt(23)})
	if err != nil {
		t.Fatalf("CallByLink: %v", err)
	}
	if got := result.Int(); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := prog.Heap.LiveCount(); got != 0 {
		t.Fatalf("expected no outstanding allocations, got %d", got)
	}
}

func TestFindFunctionUnknown(t *testing.T) {
	prog := buildAddProgram(t)
	if _, ok := prog.FindFunction("nope"); ok {
		t.Fatal("expected FindFunction to report false for an undeclared name")
	}
}

func TestCallByLinkInvalidLink(t *testing.T) {
	prog := buildAddProgram(t)
	if _, _, err := prog.CallByLink(LinkID(99), nil); err == nil {
		t.Fatal("expected an error calling an out-of-range link id")
	}
}

func TestLoadRejectsNonEmptyGlobalArgs(t *testing.T) {
	in := NewInterner()
	global := &Frame{Name: "<global>", ArgCount: 1, Symbols: []Symbol{{Name: "x", Type: in.IDInt}}}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	if _, err := Load(in, DefaultConfig(), nil, global, logger); err == nil {
		t.Fatal("expected an error loading a global frame with nonzero arg_count")
	}
}

func TestLoadRejectsDuplicateFunctionNames(t *testing.T) {
	in := NewInterner()
	fnType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDVoid}})
	frame := &Frame{Name: "f", Code: []Instruction{{Op: OpStop}}}
	fns := []*FunctionDef{
		{Name: "dup", Type: fnType, Frame: frame},
		{Name: "dup", Type: fnType, Frame: frame},
	}
	global := &Frame{Name: "<global>"}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	if _, err := Load(in, DefaultConfig(), fns, global, logger); err == nil {
		t.Fatal("expected an error loading two functions with the same name")
	}
}

func TestUnregisteredHostImportErrors(t *testing.T) {
	in := NewInterner()
	fnType := in.InternAnonymous(TypeNode{Kind: KindFunction, Children: []TypeID{in.IDInt}})
	fn := &FunctionDef{Name: "import_me", Type: fnType} // neither Frame nor Host set
	global := &Frame{Name: "<global>"}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	prog, err := Load(in, DefaultConfig(), []*FunctionDef{fn}, global, logger)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	link, _ := prog.FindFunction("import_me")
	if _, _, err := prog.CallByLink(link, nil); err == nil {
		t.Fatal("expected an error calling a function with no bytecode frame and no host implementation")
	}
}

func TestGlobalInitRunsLetBindings(t *testing.T) {
	in := NewInterner()
	global := &Frame{
		Name:     "<global>",
		Symbols:  []Symbol{{Name: "answer", Type: in.IDInt, IsConst: true, Const: func() *Word { w := WordInt(42); return &w }()}},
		Exts:     []bool{false},
		Code:     []Instruction{{Op: OpStop}},
	}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	prog, err := Load(in, DefaultConfig(), nil, global, logger)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	typ, w, ok := prog.FindGlobal("answer")
	if !ok {
		t.Fatal("expected to find global \"answer\"")
	}
	if typ != in.IDInt || w.Int() != 42 {
		t.Fatalf("expected global answer=42, got type=%v value=%d", typ, w.Int())
	}
}
