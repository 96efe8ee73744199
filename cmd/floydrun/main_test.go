package main

import (
	"testing"

	"github.com/marcusz/Floyd-sub000/pkg/floyd"
)

func TestDecodeCallArgsScalars(t *testing.T) {
	vals, err := decodeCallArgs(`[true, 3, 1.5, "hi"]`)
	if err != nil {
		t.Fatalf("decodeCallArgs: %v", err)
	}
	if len(vals) != 4 {
		t.Fatalf("expected 4 values, got %d", len(vals))
	}
	if vals[0].Kind != floyd.KindBool || !vals[0].B {
		t.Fatalf("expected bool true, got %+v", vals[0])
	}
	if vals[1].Kind != floyd.KindInt || vals[1].I != 3 {
		t.Fatalf("expected int 3, got %+v", vals[1])
	}
	if vals[2].Kind != floyd.KindDouble || vals[2].F != 1.5 {
		t.Fatalf("expected double 1.5, got %+v", vals[2])
	}
	if vals[3].Kind != floyd.KindString || vals[3].S != "hi" {
		t.Fatalf("expected string \"hi\", got %+v", vals[3])
	}
}

func TestDecodeCallArgsIntVsDoubleDisambiguation(t *testing.T) {
	vals, err := decodeCallArgs(`[3, 3.5]`)
	if err != nil {
		t.Fatalf("decodeCallArgs: %v", err)
	}
	if vals[0].Kind != floyd.KindInt {
		t.Fatalf("expected a whole-number JSON literal to decode as int, got %v", vals[0].Kind)
	}
	if vals[1].Kind != floyd.KindDouble {
		t.Fatalf("expected a fractional JSON literal to decode as double, got %v", vals[1].Kind)
	}
}

func TestDecodeCallArgsRejectsMalformedJSON(t *testing.T) {
	if _, err := decodeCallArgs("not json"); err == nil {
		t.Fatal("expected an error decoding malformed --args JSON")
	}
}

func TestDecodeCallArgsRejectsUnsupportedElement(t *testing.T) {
	if _, err := decodeCallArgs(`[{"a":1}]`); err == nil {
		t.Fatal("expected an error for an object element (only scalars are supported)")
	}
	if _, err := decodeCallArgs(`[null]`); err == nil {
		t.Fatal("expected an error for a null element")
	}
}

func TestValueToJSONScalarsAndCollections(t *testing.T) {
	if got := valueToJSON(floyd.Bool(true)); got != true {
		t.Fatalf("expected true, got %v", got)
	}
	if got := valueToJSON(floyd.Int(7)); got != int64(7) {
		t.Fatalf("expected int64(7), got %v (%T)", got, got)
	}
	if got := valueToJSON(floyd.Str("x")); got != "x" {
		t.Fatalf("expected \"x\", got %v", got)
	}

	vec := floyd.Value{Kind: floyd.KindVector, Vec: []floyd.Value{floyd.Int(1), floyd.Int(2)}}
	out, ok := valueToJSON(vec).([]interface{})
	if !ok || len(out) != 2 || out[0] != int64(1) || out[1] != int64(2) {
		t.Fatalf("expected [1 2], got %#v", out)
	}

	dict := floyd.Value{Kind: floyd.KindDict, Dict: map[string]floyd.Value{"k": floyd.Str("v")}}
	dout, ok := valueToJSON(dict).(map[string]interface{})
	if !ok || dout["k"] != "v" {
		t.Fatalf("expected {k:v}, got %#v", dout)
	}
}

func TestDescribeValueRendersJSON(t *testing.T) {
	s := describeValue(floyd.Str("hello"))
	if s != `"hello"` {
		t.Fatalf("expected quoted JSON string, got %q", s)
	}
	n := describeValue(floyd.Int(42))
	if n != "42" {
		t.Fatalf("expected \"42\", got %q", n)
	}
}
