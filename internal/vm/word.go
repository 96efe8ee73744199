package vm

import "math"

// LinkID identifies a function in the program's function link table. It is
// the runtime representation of a function value (§3.2, §GLOSSARY).
type LinkID int32

// Word is the runtime representation of a single Floyd value occupying one
// stack slot or one collection/struct slot. A Word alone is never
// self-describing; the surrounding static type (a symbol's declared type,
// or a dynamic-argument type id adjacent on the stack) says how to read it.
//
// The C++ source reinterprets a single 64-bit word as bool, int64, double,
// a packed heap pointer, or a link-id. Go has no safe way to alias those
// representations in one field without unsafe.Pointer games, so Word keeps
// an inline numeric payload alongside an optional heap pointer and link id;
// exactly one of them is meaningful for any given (Word, TypeID) pair.
type Word struct {
	bits uint64
	obj  *HeapObj
	link LinkID
}

func WordBool(b bool) Word {
	if b {
		return Word{bits: 1}
	}
	return Word{bits: 0}
}

func WordInt(i int64) Word { return Word{bits: uint64(i)} }

func WordFloat(f float64) Word { return Word{bits: math.Float64bits(f)} }

func WordObj(o *HeapObj) Word { return Word{obj: o} }

func WordLink(l LinkID) Word { return Word{link: l} }

// WordTypeID stores a type id as an inline value (the "typeid" base kind).
func WordTypeID(t TypeID) Word { return Word{bits: uint64(t)} }

func (w Word) Bool() bool { return w.bits != 0 }

func (w Word) Int() int64 { return int64(w.bits) }

func (w Word) Float() float64 { return math.Float64frombits(w.bits) }

func (w Word) TypeIDValue() TypeID { return TypeID(w.bits) }

func (w Word) Link() LinkID { return w.link }

// Obj returns the heap object this word points to, or nil for inline words.
func (w Word) Obj() *HeapObj { return w.obj }

// IsNilObj reports whether an RC-bearing word has no backing allocation
// (only ever true for a freshly zero-valued Word, e.g. an unwritten local
// slot before its declared initializer runs).
func (w Word) IsNilObj() bool { return w.obj == nil }
