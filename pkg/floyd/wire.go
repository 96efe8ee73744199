package floyd

import (
	"encoding/json"
	"fmt"

	"github.com/marcusz/Floyd-sub000/internal/vm"
)

// ProgramSpec is the JSON-encoded shape of a loaded Floyd unit (§4.6): a
// flat list of type declarations, a function table, and a global frame.
// cmd/floydrun reads one of these off disk; nothing upstream of this
// package (a parser, typechecker, or code generator) is in scope — Floyd
// source text never appears here, only its already-compiled bytecode form.
//
// Types must appear in dependency order: every TypeSpec.Children/Elem/
// Ret/Args reference is either the name of one of the eight built-in atomic
// kinds ("any", "void", "bool", "int", "double", "string", "json",
// "typeid") or "#<i>" referencing the i'th entry of Types by position
// (0-based), and a referenced position must already have been processed.
type ProgramSpec struct {
	Types     []TypeSpec     `json:"types"`
	Functions []FunctionSpec `json:"functions"`
	Global    FrameSpec      `json:"global"`
}

type TypeSpec struct {
	Kind       string   `json:"kind"`
	Name       []string `json:"name,omitempty"`        // KindNamed
	Elem       string   `json:"elem,omitempty"`        // KindVector, KindDict
	FieldTypes []string `json:"field_types,omitempty"`  // KindStruct
	FieldNames []string `json:"field_names,omitempty"`  // KindStruct
	Ret        string   `json:"ret,omitempty"`          // KindFunction
	Args       []string `json:"args,omitempty"`         // KindFunction
	Pure       bool     `json:"pure,omitempty"`
	DynamicRet bool     `json:"dynamic_ret,omitempty"`
	Dest       string   `json:"dest,omitempty"` // KindNamed's body, set once resolvable
}

type SymbolSpec struct {
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	IsConst bool       `json:"is_const,omitempty"`
	Const   *ConstSpec `json:"const,omitempty"`
}

// ConstSpec covers the inline (non-RC) constant kinds only: a `let` bound
// to a string/vector/struct/etc. is instead initialized by the global
// frame's own bytecode (PushIntern/StoreGlobal*), since building such a
// value needs a live Heap, which doesn't exist yet while the static Frame
// is being assembled.
type ConstSpec struct {
	Bool   *bool    `json:"bool,omitempty"`
	Int    *int64   `json:"int,omitempty"`
	Double *float64 `json:"double,omitempty"`
}

type InstructionSpec struct {
	Op string `json:"op"`
	A  int32  `json:"a,omitempty"`
	B  int16  `json:"b,omitempty"`
	C  int16  `json:"c,omitempty"`
}

type FrameSpec struct {
	Name       string            `json:"name"`
	Symbols    []SymbolSpec      `json:"symbols"`
	ArgCount   int               `json:"arg_count"`
	LocalsExts []bool            `json:"locals_exts,omitempty"`
	Code       []InstructionSpec `json:"code"`
}

// FunctionSpec describes one function-table row. Exactly one of Frame or
// HostIntrinsic must be set: HostIntrinsic names an entry of vm.Intrinsics
// (§4.5) the loader binds as this function's host implementation, the way
// a generated program's standard-library calls resolve to native code.
type FunctionSpec struct {
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Frame           *FrameSpec `json:"frame,omitempty"`
	HostIntrinsic   string     `json:"host_intrinsic,omitempty"`
	DynamicArgCount int        `json:"dynamic_arg_count,omitempty"`
	ReturnIsRC      bool       `json:"return_is_rc,omitempty"`
}

// DecodeProgramSpec parses a JSON-encoded ProgramSpec.
func DecodeProgramSpec(data []byte) (*ProgramSpec, error) {
	var spec ProgramSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	return &spec, nil
}

// typeBuilder resolves a ProgramSpec's types into a live *vm.Interner,
// tracking the TypeID each position produced so later references ("#<i>")
// can be resolved.
type typeBuilder struct {
	interner *vm.Interner
	byPos    []vm.TypeID
}

func countNamed(types []TypeSpec) int {
	n := 0
	for _, ts := range types {
		if ts.Kind == "named" {
			n++
		}
	}
	return n
}

func (tb *typeBuilder) buildAnonymous(pos int, kind vm.Kind, ts TypeSpec, resolved []vm.TypeID) (vm.TypeID, error) {
	n := vm.TypeNode{Kind: kind, Pure: ts.Pure, DynamicRet: ts.DynamicRet}
	switch kind {
	case vm.KindVector, vm.KindDict:
		elem, err := tb.resolveRef(ts.Elem, resolved)
		if err != nil {
			return 0, fmt.Errorf("type[%d] elem: %w", pos, err)
		}
		n.Children = []vm.TypeID{elem}
	case vm.KindStruct:
		fields := make([]vm.TypeID, len(ts.FieldTypes))
		for i, ref := range ts.FieldTypes {
			id, err := tb.resolveRef(ref, resolved)
			if err != nil {
				return 0, fmt.Errorf("type[%d] field_types[%d]: %w", pos, i, err)
			}
			fields[i] = id
		}
		n.Children = fields
		n.FieldNames = append([]string(nil), ts.FieldNames...)
	case vm.KindFunction:
		ret, err := tb.resolveRef(ts.Ret, resolved)
		if err != nil {
			return 0, fmt.Errorf("type[%d] ret: %w", pos, err)
		}
		args := make([]vm.TypeID, len(ts.Args))
		for i, ref := range ts.Args {
			id, err := tb.resolveRef(ref, resolved)
			if err != nil {
				return 0, fmt.Errorf("type[%d] args[%d]: %w", pos, i, err)
			}
			args[i] = id
		}
		n.Children = append([]vm.TypeID{ret}, args...)
	}
	return tb.interner.InternAnonymous(n), nil
}

// resolveRef resolves one TypeSpec reference string: a built-in atomic
// name, or "#<i>" for a position already processed in this ProgramSpec.
func (tb *typeBuilder) resolveRef(ref string, resolved []vm.TypeID) (vm.TypeID, error) {
	switch ref {
	case "any":
		return tb.interner.IDAny, nil
	case "void":
		return tb.interner.IDVoid, nil
	case "bool":
		return tb.interner.IDBool, nil
	case "int":
		return tb.interner.IDInt, nil
	case "double":
		return tb.interner.IDDouble, nil
	case "string":
		return tb.interner.IDString, nil
	case "json":
		return tb.interner.IDJSON, nil
	case "typeid":
		return tb.interner.IDTypeID, nil
	}
	var i int
	if _, err := fmt.Sscanf(ref, "#%d", &i); err != nil {
		return 0, fmt.Errorf("malformed type reference %q", ref)
	}
	if i < 0 || i >= len(resolved) {
		return 0, fmt.Errorf("type reference %q out of range", ref)
	}
	return resolved[i], nil
}

func buildConst(t vm.TypeID, interner *vm.Interner, cs *ConstSpec) (*vm.Word, error) {
	if cs == nil {
		return nil, nil
	}
	kind := interner.GetNode(interner.Peek(t)).Kind
	switch {
	case cs.Bool != nil && kind == vm.KindBool:
		w := vm.WordBool(*cs.Bool)
		return &w, nil
	case cs.Int != nil && kind == vm.KindInt:
		w := vm.WordInt(*cs.Int)
		return &w, nil
	case cs.Double != nil && kind == vm.KindDouble:
		w := vm.WordFloat(*cs.Double)
		return &w, nil
	default:
		return nil, fmt.Errorf("const literal does not match symbol's declared kind %v", kind)
	}
}

func buildSymbols(symbols []SymbolSpec, tb *typeBuilder, interner *vm.Interner) ([]vm.Symbol, []bool, error) {
	out := make([]vm.Symbol, len(symbols))
	exts := make([]bool, len(symbols))
	for i, ss := range symbols {
		t, err := tb.resolveRef(ss.Type, tb.byPos)
		if err != nil {
			return nil, nil, fmt.Errorf("symbol[%d] %q type: %w", i, ss.Name, err)
		}
		constWord, err := buildConst(t, interner, ss.Const)
		if err != nil {
			return nil, nil, fmt.Errorf("symbol[%d] %q: %w", i, ss.Name, err)
		}
		out[i] = vm.Symbol{Name: ss.Name, Type: t, Const: constWord, IsConst: ss.IsConst}
		exts[i] = interner.IsRCBearing(t)
	}
	return out, exts, nil
}

func buildFrame(fs FrameSpec, tb *typeBuilder, interner *vm.Interner) (*vm.Frame, error) {
	symbols, exts, err := buildSymbols(fs.Symbols, tb, interner)
	if err != nil {
		return nil, fmt.Errorf("frame %q: %w", fs.Name, err)
	}
	localsExts := fs.LocalsExts
	if localsExts == nil {
		localsExts = exts[fs.ArgCount:]
	}
	code := make([]vm.Instruction, len(fs.Code))
	for i, is := range fs.Code {
		op, ok := vm.OpcodeByName(is.Op)
		if !ok {
			return nil, fmt.Errorf("frame %q code[%d]: unknown opcode %q", fs.Name, i, is.Op)
		}
		code[i] = vm.Instruction{Op: op, A: is.A, B: is.B, C: is.C}
	}
	return &vm.Frame{
		Name:       fs.Name,
		Symbols:    symbols,
		Exts:       exts,
		ArgCount:   fs.ArgCount,
		LocalsExts: localsExts,
		Code:       code,
	}, nil
}

// buildProgram assembles spec into an *vm.Interner, a function table and a
// global *vm.Frame, resolving each FunctionSpec.HostIntrinsic against both
// extraHosts (host functions the embedder passed via WithHostFunction
// options to LoadProgram) and vm.Intrinsics.
func buildProgram(spec *ProgramSpec, extraHosts map[string]vm.HostFunc) (*vm.Interner, []*vm.FunctionDef, *vm.Frame, error) {
	interner, byPos, err := buildInternerWithPositions(spec.Types)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("types: %w", err)
	}
	tb := &typeBuilder{interner: interner, byPos: byPos}

	functions := make([]*vm.FunctionDef, len(spec.Functions))
	for i, fs := range spec.Functions {
		t, err := tb.resolveRef(fs.Type, tb.byPos)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("function[%d] %q type: %w", i, fs.Name, err)
		}
		fd := &vm.FunctionDef{Name: fs.Name, Type: t, DynamicArgCount: fs.DynamicArgCount, ReturnIsRC: fs.ReturnIsRC}
		switch {
		case fs.Frame != nil && fs.HostIntrinsic != "":
			return nil, nil, nil, fmt.Errorf("function %q: both frame and host_intrinsic set", fs.Name)
		case fs.Frame != nil:
			frame, err := buildFrame(*fs.Frame, tb, interner)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("function %q: %w", fs.Name, err)
			}
			fd.Frame = frame
		case fs.HostIntrinsic != "":
			host, ok := extraHosts[fs.HostIntrinsic]
			if !ok {
				host, ok = vm.Intrinsics[fs.HostIntrinsic]
			}
			if !ok {
				return nil, nil, nil, fmt.Errorf("function %q: unknown host intrinsic %q", fs.Name, fs.HostIntrinsic)
			}
			fd.Host = host
		default:
			// Neither a bytecode frame nor a named builtin intrinsic: a host
			// import the embedding application is expected to supply by
			// function name via Runtime.RegisterHostFunction before any Call
			// reaches it (§6 Host API).
		}
		functions[i] = fd
	}

	global, err := buildFrame(spec.Global, tb, interner)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("global: %w", err)
	}
	return interner, functions, global, nil
}

// buildInternerWithPositions interns every TypeSpec in order (declaring
// Named types up front so forward/mutually-recursive references resolve,
// per §4.1), returning the TypeID each input position produced so
// buildProgram can translate FunctionSpec/FrameSpec type references.
func buildInternerWithPositions(types []TypeSpec) (*vm.Interner, []vm.TypeID, error) {
	interner := vm.NewInterner()
	tb := &typeBuilder{interner: interner}

	named := make([]vm.TypeID, 0, countNamed(types))
	for _, ts := range types {
		if ts.Kind != "named" {
			continue
		}
		named = append(named, interner.DeclareNamed(ts.Name, interner.IDUndefined))
	}

	resolved := make([]vm.TypeID, len(types))
	namedIdx := 0
	for i, ts := range types {
		kind, ok := vm.KindByName(ts.Kind)
		if !ok {
			return nil, nil, fmt.Errorf("type[%d]: unknown kind %q", i, ts.Kind)
		}
		if kind == vm.KindNamed {
			resolved[i] = named[namedIdx]
			namedIdx++
			continue
		}
		id, err := tb.buildAnonymous(i, kind, ts, resolved)
		if err != nil {
			return nil, nil, err
		}
		resolved[i] = id
	}

	namedIdx = 0
	for i, ts := range types {
		if ts.Kind != "named" {
			continue
		}
		dest, err := tb.resolveRef(ts.Dest, resolved)
		if err != nil {
			return nil, nil, fmt.Errorf("type[%d] (%v) dest: %w", i, ts.Name, err)
		}
		interner.UpdateNamed(named[namedIdx], dest)
		namedIdx++
	}

	return interner, resolved, nil
}
