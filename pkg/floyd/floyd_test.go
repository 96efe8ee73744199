package floyd

import (
	"testing"

	"github.com/marcusz/Floyd-sub000/pkg/config"
)

// traced enables the allocation tracer (LiveCount/Trace are otherwise
// always zero, per internal/vm/heap.go's Config.Trace gate) so leak
// assertions in these tests are actually meaningful.
func traced() *config.Config {
	c := config.Default()
	c.VM.Trace = true
	return c
}

// addProgram declares one function add(a: int, b: int) -> int, computed
// entirely in bytecode, plus a print(x: any) host import bound to the
// builtin "print" intrinsic.
const addProgram = `{
  "types": [
    {"kind": "function", "ret": "int", "args": ["int", "int"]},
    {"kind": "function", "ret": "void", "args": ["any"]}
  ],
  "functions": [
    {
      "name": "add",
      "type": "#0",
      "frame": {
        "name": "add",
        "arg_count": 2,
        "symbols": [
          {"name": "a", "type": "int"},
          {"name": "b", "type": "int"},
          {"name": "r", "type": "int"}
        ],
        "code": [
          {"op": "add_int", "a": 2, "b": 0, "c": 1},
          {"op": "return", "a": 2}
        ]
      }
    },
    {
      "name": "print",
      "type": "#1",
      "host_intrinsic": "print",
      "dynamic_arg_count": 1
    }
  ],
  "global": {
    "name": "<global>",
    "symbols": [],
    "arg_count": 0,
    "code": []
  }
}`

func TestLoadProgramAndCallAdd(t *testing.T) {
	rt, err := LoadProgram([]byte(addProgram), WithConfig(traced()))
	if err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	result, err := rt.Call("add", Int(2), Int(40))
	if err != nil {
		t.Fatalf("Call(add): %v", err)
	}
	if result.Kind != KindInt || result.I != 42 {
		t.Fatalf("expected int 42, got %+v", result)
	}
	if live := rt.LiveCount(); live != 0 {
		t.Fatalf("expected no outstanding allocations after add, got %d", live)
	}
}

func TestLoadProgramAndCallPrintDynamicArg(t *testing.T) {
	rt, err := LoadProgram([]byte(addProgram), WithConfig(traced()))
	if err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if _, err := rt.Call("print", Str("hello")); err != nil {
		t.Fatalf("Call(print): %v", err)
	}
	out := rt.TakeOutput()
	if len(out) != 1 || out[0] != "hello" {
		t.Fatalf("expected captured output [\"hello\"], got %v", out)
	}
	if live := rt.LiveCount(); live != 0 {
		t.Fatalf("expected no outstanding allocations after print, got %d", live)
	}
}

func TestCallUnknownFunction(t *testing.T) {
	rt, err := LoadProgram([]byte(addProgram), WithConfig(traced()))
	if err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if _, err := rt.Call("nope"); err == nil {
		t.Fatal("expected error calling an undeclared function")
	}
}

func TestCallArgCountMismatch(t *testing.T) {
	rt, err := LoadProgram([]byte(addProgram), WithConfig(traced()))
	if err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if _, err := rt.Call("add", Int(1)); err == nil {
		t.Fatal("expected error calling add with too few arguments")
	}
}

func TestRegisterHostFunction(t *testing.T) {
	const program = `{
    "types": [
      {"kind": "function", "ret": "int", "args": ["int"]}
    ],
    "functions": [
      {"name": "double_it", "type": "#0"}
    ],
    "global": {"name": "<global>", "symbols": [], "arg_count": 0, "code": []}
  }`
	rt, err := LoadProgram([]byte(program))
	if err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if _, err := rt.Call("double_it", Int(5)); err == nil {
		t.Fatal("expected error calling an unregistered host import before RegisterHostFunction")
	}

	err = rt.RegisterHostFunction("double_it", func(it *Interpreter, args []Word) (Word, error) {
		return WordInt(args[0].Int() * 2), nil
	})
	if err != nil {
		t.Fatalf("RegisterHostFunction: %v", err)
	}

	result, err := rt.Call("double_it", Int(5))
	if err != nil {
		t.Fatalf("Call(double_it) after registration: %v", err)
	}
	if result.Kind != KindInt || result.I != 10 {
		t.Fatalf("expected int 10, got %+v", result)
	}
}

func TestRegisterHostFunctionTwiceFails(t *testing.T) {
	const program = `{
    "types": [
      {"kind": "function", "ret": "int", "args": ["int"]}
    ],
    "functions": [
      {"name": "double_it", "type": "#0"}
    ],
    "global": {"name": "<global>", "symbols": [], "arg_count": 0, "code": []}
  }`
	rt, err := LoadProgram([]byte(program))
	if err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	noop := func(it *Interpreter, args []Word) (Word, error) { return Word{}, nil }
	if err := rt.RegisterHostFunction("double_it", noop); err != nil {
		t.Fatalf("first RegisterHostFunction: %v", err)
	}
	if err := rt.RegisterHostFunction("double_it", noop); err == nil {
		t.Fatal("expected error re-registering an already-bound host import")
	}
}
