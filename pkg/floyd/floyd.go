// Package floyd is the host-facing facade over internal/vm (§6 Host API):
// load a bytecode program, call its exported functions with ordinary Go
// values, read its globals, and drain whatever `print` produced. Nothing
// here knows about Words, Heaps, or reference counting — those are
// internal/vm's concern, crossed only at ToWord/FromWord.
package floyd

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/marcusz/Floyd-sub000/internal/vm"
	"github.com/marcusz/Floyd-sub000/pkg/config"
)

// Value mirrors internal/vm.Value: a self-contained host-side tree, not
// tied to any Heap's RC bookkeeping. Re-exported here so callers never need
// to import internal/vm directly.
type Value = vm.Value

// Kind discriminates which field of a Value is meaningful, re-exported
// alongside its values so callers can switch on Value.Kind without
// importing internal/vm directly.
type Kind = vm.Kind

const (
	KindBool   = vm.KindBool
	KindInt    = vm.KindInt
	KindDouble = vm.KindDouble
	KindString = vm.KindString
	KindJSON   = vm.KindJSON
	KindTypeID = vm.KindTypeID
	KindVector = vm.KindVector
	KindDict   = vm.KindDict
	KindStruct = vm.KindStruct
)

func Bool(b bool) Value      { return vm.ValueBool(b) }
func Int(i int64) Value      { return vm.ValueInt(i) }
func Double(f float64) Value { return vm.ValueDouble(f) }
func Str(s string) Value     { return vm.ValueString(s) }

// Word, Interpreter and HostFunc are re-exported so a host function passed
// to WithHostFunction/RegisterHostFunction can be written without an
// internal/vm import of its own — a host function runs at the same level
// as a builtin intrinsic (§4.5), one step below the Value/Word boundary
// Call and FindGlobal cross.
type Word = vm.Word
type Interpreter = vm.Interpreter
type HostFunc = vm.HostFunc

func WordBool(b bool) Word    { return vm.WordBool(b) }
func WordInt(i int64) Word    { return vm.WordInt(i) }
func WordFloat(f float64) Word { return vm.WordFloat(f) }

// Runtime is one loaded Floyd program.
type Runtime struct {
	prog   *vm.Program
	logger *logrus.Logger
}

// Option configures LoadProgram before the program is built.
type Option func(*loadOptions)

type loadOptions struct {
	hosts  map[string]vm.HostFunc
	logger *logrus.Logger
	cfg    vm.Config
}

// WithHostFunction registers a native Go function under name, resolvable
// by any FunctionSpec.HostIntrinsic in the loaded program — the embedding
// application's own native bindings, alongside the builtin vm.Intrinsics.
// fn operates at the same Word level as the builtin intrinsics (its args
// are already decoded per the function's declared parameter types; a
// trailing `any` parameter arrives as an adjacent (type, value) pair, see
// internal/vm's dynArg) since a host function, like an intrinsic, runs
// inside the interpreter's call convention, not at the Call boundary.
func WithHostFunction(name string, fn vm.HostFunc) Option {
	return func(o *loadOptions) {
		o.hosts[name] = fn
	}
}

// WithLogger overrides the logrus.Logger the runtime's interpreter logs
// through. A default (logrus.New()) is used when omitted.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *loadOptions) { o.logger = logger }
}

// WithConfig selects the collection backends and allocation tracing a
// loaded program uses (§5, §9); DefaultConfig otherwise.
func WithConfig(c *config.Config) Option {
	return func(o *loadOptions) {
		if c == nil {
			return
		}
		o.cfg = vm.Config{
			VectorBackend: backendFromName(c.VM.VectorBackend, vm.VectorBackendHAMT, vm.VectorBackendCArray, "carray"),
			DictBackend:   dictBackendFromName(c.VM.DictBackend),
			Trace:         c.VM.Trace,
		}
	}
}

func backendFromName(name string, def, alt vm.VectorBackend, altName string) vm.VectorBackend {
	if config.ParseBackend(name) == altName {
		return alt
	}
	return def
}

func dictBackendFromName(name string) vm.DictBackend {
	if config.ParseBackend(name) == "cppmap" {
		return vm.DictBackendCppMap
	}
	return vm.DictBackendHAMT
}

// LoadProgram decodes a JSON-encoded ProgramSpec, builds its interner,
// function table and global frame, and runs the global frame once
// (§4.6), returning a Runtime ready for Call.
func LoadProgram(data []byte, opts ...Option) (*Runtime, error) {
	o := &loadOptions{hosts: make(map[string]vm.HostFunc), cfg: vm.DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logrus.New()
	}

	spec, err := DecodeProgramSpec(data)
	if err != nil {
		return nil, err
	}
	interner, functions, global, err := buildProgram(spec, o.hosts)
	if err != nil {
		return nil, fmt.Errorf("build program: %w", err)
	}
	prog, err := vm.Load(interner, o.cfg, functions, global, o.logger)
	if err != nil {
		return nil, err
	}
	return &Runtime{prog: prog, logger: o.logger}, nil
}

// Call invokes the named exported function with host-level Values,
// returning its host-level result. Each of the function's fixed parameters
// is converted to a Word against its declared type; each of its trailing
// `any` parameters (DynamicArgCount, §4.4 item 5) is instead emitted as the
// adjacent (type tag, value) word pair the interpreter's call convention
// expects, the tag taken from the argument's own Value.Kind since the
// declared parameter type for those slots is only "any". The result is
// converted back via FromWord before its backing Word is released (§6
// "call(fn_value, args) → value").
func (r *Runtime) Call(name string, args ...Value) (Value, error) {
	link, ok := r.prog.FindFunction(name)
	if !ok {
		return Value{}, fmt.Errorf("floyd: no such function %q", name)
	}
	fd := r.prog.Functions[link]
	variant := r.prog.Interner.GetVariant(r.prog.Interner.Peek(fd.Type))
	if len(variant.Args) != len(args) {
		return Value{}, fmt.Errorf("floyd: %q expects %d arguments, got %d", name, len(variant.Args), len(args))
	}
	fixedCount := len(variant.Args) - fd.DynamicArgCount
	words := make([]vm.Word, 0, len(args)+fd.DynamicArgCount)
	for i, a := range args {
		if i < fixedCount {
			words = append(words, r.prog.Heap.ToWord(variant.Args[i], a))
			continue
		}
		t, err := concreteTypeID(r.prog.Interner, a)
		if err != nil {
			return Value{}, fmt.Errorf("floyd: %q argument %d: %w", name, i, err)
		}
		words = append(words, vm.WordTypeID(t), r.prog.Heap.ToWord(t, a))
	}
	resultWord, retType, err := r.prog.CallByLink(link, words)
	if err != nil {
		return Value{}, err
	}
	result := r.prog.Heap.FromWord(retType, resultWord)
	r.prog.Heap.Release(resultWord, retType)
	return result, nil
}

// concreteTypeID picks the static type that backs an `any`-typed argument
// at the host boundary, since a dynamic slot's declared type is only
// KindAny — the tag word a caller must supply alongside it has to name the
// value's own concrete type instead. Restricted to the scalar kinds the
// host API (and cmd/floydrun's --args) ever constructs directly; a vector,
// dict, struct or function value can only reach a dynamic argument by
// being produced from inside the program itself.
func concreteTypeID(interner *vm.Interner, v Value) (vm.TypeID, error) {
	switch v.Kind {
	case vm.KindBool:
		return interner.IDBool, nil
	case vm.KindInt:
		return interner.IDInt, nil
	case vm.KindDouble:
		return interner.IDDouble, nil
	case vm.KindString:
		return interner.IDString, nil
	case vm.KindJSON:
		return interner.IDJSON, nil
	case vm.KindTypeID:
		return interner.IDTypeID, nil
	default:
		return 0, fmt.Errorf("dynamic (any) arguments from the host API only support bool/int/double/string/json/typeid, got %v", v.Kind)
	}
}

// FindGlobal returns the current value of a top-level `let`/`var` binding.
func (r *Runtime) FindGlobal(name string) (Value, bool) {
	t, w, ok := r.prog.FindGlobal(name)
	if !ok {
		return Value{}, false
	}
	return r.prog.Heap.FromWord(t, w), true
}

// TakeOutput drains and returns every line `print` has appended since the
// last call to TakeOutput (or since load, for the first call).
func (r *Runtime) TakeOutput() []string {
	return r.prog.TakeOutput()
}

// LiveCount reports how many heap allocations are currently outstanding —
// zero after a well-behaved program's last call returns (§8 "no leaks").
func (r *Runtime) LiveCount() int {
	return r.prog.Heap.LiveCount()
}

// RegisterHostFunction binds fn as the host implementation of the already-
// loaded function named name, for a function row the program declared
// without a bytecode frame or a builtin intrinsic name (a host import, §6
// Host API) — the embedding application supplying its own native binding
// after LoadProgram rather than before it. It is an error to call this
// against a bytecode function or to call it twice for the same name.
func (r *Runtime) RegisterHostFunction(name string, fn vm.HostFunc) error {
	link, ok := r.prog.FindFunction(name)
	if !ok {
		return fmt.Errorf("floyd: no such function %q", name)
	}
	fd := r.prog.Functions[link]
	if fd.Frame != nil {
		return fmt.Errorf("floyd: %q is a bytecode function, not a host import", name)
	}
	if fd.Host != nil {
		return fmt.Errorf("floyd: %q already has a registered host implementation", name)
	}
	fd.Host = fn
	return nil
}
