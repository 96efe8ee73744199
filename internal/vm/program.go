package vm

import "github.com/sirupsen/logrus"

// HostFunc is a native Go implementation of a Floyd intrinsic or any other
// host-registered function. args are already decoded into plain Words of
// the types the function's signature declares; dynamic (`any`-typed)
// arguments have already been resolved using their adjacent type-id word.
type HostFunc func(it *Interpreter, args []Word) (Word, error)

// FunctionDef is one row of the program's function link table (§4.6):
// either a Floyd bytecode function (Frame != nil) or a host function
// (Host != nil) — never both.
type FunctionDef struct {
	Name            string
	Type            TypeID // Function type: ret + arg types
	Frame           *Frame
	Host            HostFunc
	DynamicArgCount int // number of trailing `any` arguments (§4.4 item 5)
	ReturnIsRC      bool
}

// Program is a single loaded Floyd unit (§4.6): its own type interner,
// heap, function table, and global frame. One Program owns exactly one
// Heap (§5 "Shared resources").
type Program struct {
	Interner *Interner
	Heap     *Heap
	Config   Config

	Functions []*FunctionDef
	byName    map[string]int

	Global *Frame

	stack  *Stack
	interp *Interpreter
}

// Load builds a Program from already-interned types, a function table and
// a global frame, then runs the global frame's instructions once — this is
// how top-level `let`/`var` bindings are computed (§4.6). The global
// frame's locals remain permanently open on the stack as the distinguished
// "global frame" root that LoadGlobal*/StoreGlobal* opcodes address.
func Load(interner *Interner, cfg Config, functions []*FunctionDef, global *Frame, logger *logrus.Logger) (*Program, error) {
	if global.ArgCount != 0 {
		return nil, NewLoadError("global frame must have zero arguments")
	}
	byName := make(map[string]int, len(functions))
	for i, fn := range functions {
		if fn.Frame != nil && fn.Host != nil {
			return nil, NewLoadError("function %q declares both a bytecode frame and a host implementation", fn.Name)
		}
		if _, dup := byName[fn.Name]; dup {
			return nil, NewLoadError("duplicate function name %q", fn.Name)
		}
		byName[fn.Name] = i
	}
	if err := checkNoSymbolRefLeaks(interner, global); err != nil {
		return nil, err
	}
	for _, fn := range functions {
		if fn.Frame != nil {
			if err := checkNoSymbolRefLeaks(interner, fn.Frame); err != nil {
				return nil, err
			}
		}
	}

	heap := NewHeap(interner, cfg)
	p := &Program{Interner: interner, Heap: heap, Config: cfg, Functions: functions, byName: byName, Global: global}
	p.stack = NewStack(heap, defaultStackCapacity)
	p.interp = NewInterpreter(p, logger)

	if err := p.runGlobalInit(global); err != nil {
		return nil, err
	}
	return p, nil
}

// runGlobalInit executes the global frame once, recovering any programmer-
// error panic (§7) into a LoadError: a malformed global initializer is a
// loader-time failure, not something Runtime.Call's callers should ever see.
func (p *Program) runGlobalInit(global *Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewLoadError("global initialization failed: %v", r)
		}
	}()
	p.stack.OpenFrame(global, 0)
	if _, _, loopErr := p.interp.execLoop(global); loopErr != nil {
		return NewLoadError("global initialization failed: %v", loopErr)
	}
	return nil
}

// checkNoSymbolRefLeaks enforces §4.6 / §4.1: a SymbolRef type node
// reaching the interpreter means the typechecker failed to resolve a free
// identifier — this is a loader-time LoadError, not a runtime condition.
func checkNoSymbolRefLeaks(interner *Interner, f *Frame) error {
	for _, sym := range f.Symbols {
		if interner.GetNode(sym.Type).Kind == KindSymbolRef {
			return NewLoadError("unresolved symbol reference in type of %q", sym.Name)
		}
	}
	return nil
}

// FindGlobal returns the type and current value of a global symbol
// (§4.6, §6 Host API).
func (p *Program) FindGlobal(name string) (TypeID, Word, bool) {
	for i, sym := range p.Global.Symbols {
		if sym.Name == name {
			return sym.Type, p.stack.words[i], true
		}
	}
	return 0, Word{}, false
}

// FindFunction returns the link id for a named function, or false.
func (p *Program) FindFunction(name string) (LinkID, bool) {
	i, ok := p.byName[name]
	if !ok {
		return 0, false
	}
	return LinkID(i), true
}

// CallByLink invokes a function by its link table index with already
// host-decoded Words, returning its result Word and its return type.
func (p *Program) CallByLink(link LinkID, args []Word) (Word, TypeID, error) {
	if int(link) < 0 || int(link) >= len(p.Functions) {
		return Word{}, 0, NewRuntimeError("invalid_function", "call: link id %d out of range", link)
	}
	return p.interp.callFunction(p.Functions[link], args)
}

// TakeOutput drains and returns every line `print` has appended so far.
func (p *Program) TakeOutput() []string {
	out := p.interp.output
	p.interp.output = nil
	return out
}
