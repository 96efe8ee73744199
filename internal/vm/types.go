// Package vm implements the Floyd bytecode execution core: the type
// interner, the reference-counted value backend, the register stack, the
// instruction set and its interpreter, the intrinsic library, and the
// program loader.
package vm

import (
	"fmt"
	"strings"
	"sync"
)

// Kind is the base-kind tag of a type node. The first 15 Kind values occupy
// the interner's first 15 slots (see Interner.reserveAtomics); Struct,
// Vector, Dict, Function, SymbolRef and Named also describe real,
// non-reserved nodes allocated later.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindAny
	KindVoid
	KindBool
	KindInt
	KindDouble
	KindString
	KindJSON
	KindTypeID
	KindStruct
	KindVector
	KindDict
	KindFunction
	KindSymbolRef
	KindNamed

	reservedKindCount = 15
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindAny:
		return "any"
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindJSON:
		return "json"
	case KindTypeID:
		return "typeid"
	case KindStruct:
		return "struct"
	case KindVector:
		return "vector"
	case KindDict:
		return "dict"
	case KindFunction:
		return "function"
	case KindSymbolRef:
		return "symbol-ref"
	case KindNamed:
		return "named"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// KindByName resolves the text a Kind.String call would have produced back
// into a Kind, for wire-format loaders assembling an Interner from JSON.
func KindByName(name string) (Kind, bool) {
	switch name {
	case "undefined":
		return KindUndefined, true
	case "any":
		return KindAny, true
	case "void":
		return KindVoid, true
	case "bool":
		return KindBool, true
	case "int":
		return KindInt, true
	case "double":
		return KindDouble, true
	case "string":
		return KindString, true
	case "json":
		return KindJSON, true
	case "typeid":
		return KindTypeID, true
	case "struct":
		return KindStruct, true
	case "vector":
		return KindVector, true
	case "dict":
		return KindDict, true
	case "function":
		return KindFunction, true
	case "symbol-ref":
		return KindSymbolRef, true
	case "named":
		return KindNamed, true
	default:
		return 0, false
	}
}

// TypeID is the dense runtime identifier for an interned type. It packs the
// node's append-order index into the high bits and the 4-bit Kind tag into
// the low bits, so that two TypeIDs compare the same way their indices do
// regardless of Kind — this keeps "every child id is numerically less than
// its parent id" (§4.1) true by construction rather than by coincidence of
// which Kind values happen to be involved.
type TypeID uint32

const typeIDKindBits = 4
const typeIDKindMask = (1 << typeIDKindBits) - 1

func makeTypeID(index int, k Kind) TypeID {
	return TypeID(uint32(index)<<typeIDKindBits | uint32(k)&typeIDKindMask)
}

// Index returns the node's append-order position in the interner.
func (t TypeID) Index() int { return int(uint32(t) >> typeIDKindBits) }

// KindTag returns the 4-bit dispatch tag packed into the id. It is only a
// hint: the authoritative Kind lives on the TypeNode, since a Named node's
// tag is KindNamed even though its body may be any other kind.
func (t TypeID) KindTag() Kind { return Kind(uint32(t) & typeIDKindMask) }

func (t TypeID) String() string { return fmt.Sprintf("t#%d", t.Index()) }

// TypeNode is one entry in the interner's append-only table.
type TypeNode struct {
	Kind Kind

	// Name holds the lexical path for a Named node; empty for anonymous
	// nodes.
	Name []string

	// Children holds element type ids: single element for Vector, field
	// types (in declaration order) for Struct, return-type-then-arg-types
	// for Function.
	Children []TypeID

	// FieldNames holds struct field names, parallel to Children, only set
	// when Kind == KindStruct.
	FieldNames []string

	// Pure and DynamicRet only apply to KindFunction.
	Pure       bool
	DynamicRet bool

	// Symbol holds the free identifier text for KindSymbolRef nodes only.
	Symbol string

	// namedBody is the id a KindNamed node resolves to. It starts as
	// IDUndefined when declared via DeclareNamed with an undefined body,
	// and is filled in exactly once by UpdateNamed.
	namedBody TypeID
}

func (n *TypeNode) namePath() string { return strings.Join(n.Name, ".") }

// Variant is a read-only, kind-discriminated view of a TypeNode, convenient
// for switch-based consumers (the disassembler, to_string, struct layout
// computation) that don't want to re-derive which fields are meaningful for
// a given Kind.
type Variant struct {
	Kind       Kind
	Name       []string
	Elem       TypeID   // Vector, Dict (value type)
	FieldTypes []TypeID // Struct
	FieldNames []string // Struct
	Ret        TypeID   // Function
	Args       []TypeID // Function
	Pure       bool
	DynamicRet bool
	Symbol     string // SymbolRef
	Dest       TypeID // Named
}

// Interner assigns dense TypeIDs to structurally- or nominally-distinct
// types. Anonymous types are deduplicated by structural key; named types
// are allocated once per lexical path and may be forward-declared with an
// undefined body, then filled in later by UpdateNamed — this is how the
// loader represents mutually recursive struct types.
type Interner struct {
	mu        sync.RWMutex
	nodes     []TypeNode
	byName    map[string]TypeID
	byAnonKey map[string]TypeID

	// Fixed ids for the nine atomic kinds, populated by reserveAtomics.
	IDUndefined TypeID
	IDAny       TypeID
	IDVoid      TypeID
	IDBool      TypeID
	IDInt       TypeID
	IDDouble    TypeID
	IDString    TypeID
	IDJSON      TypeID
	IDTypeID    TypeID
}

// NewInterner builds an interner with the first 15 reserved slots already
// populated: the nine atomic kinds at fixed ids, then four unusable
// placeholder nodes for the Struct/Vector/Dict/Function kind tags, then one
// placeholder each for SymbolRef and Named — this is what spec.md §3.1
// means by "the first fifteen entries are reserved."
func NewInterner() *Interner {
	in := &Interner{
		byName:    make(map[string]TypeID),
		byAnonKey: make(map[string]TypeID),
	}
	in.reserveAtomics()
	return in
}

func (in *Interner) reserveAtomics() {
	atomicKinds := []Kind{
		KindUndefined, KindAny, KindVoid, KindBool, KindInt, KindDouble,
		KindString, KindJSON, KindTypeID,
		// placeholders: never looked up, only keep index alignment so the
		// real Struct/Vector/Dict/Function/SymbolRef/Named kind tags match
		// spec.md's documented reserved-slot ordering.
		KindStruct, KindVector, KindDict, KindFunction, KindSymbolRef, KindNamed,
	}
	for _, k := range atomicKinds {
		in.nodes = append(in.nodes, TypeNode{Kind: k})
	}
	in.IDUndefined = makeTypeID(0, KindUndefined)
	in.IDAny = makeTypeID(1, KindAny)
	in.IDVoid = makeTypeID(2, KindVoid)
	in.IDBool = makeTypeID(3, KindBool)
	in.IDInt = makeTypeID(4, KindInt)
	in.IDDouble = makeTypeID(5, KindDouble)
	in.IDString = makeTypeID(6, KindString)
	in.IDJSON = makeTypeID(7, KindJSON)
	in.IDTypeID = makeTypeID(8, KindTypeID)
	if len(in.nodes) != reservedKindCount {
		panic(fmt.Sprintf("internal error: reserved %d slots, expected %d", len(in.nodes), reservedKindCount))
	}
}

func anonKey(n TypeNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|", n.Kind)
	for _, c := range n.Children {
		fmt.Fprintf(&b, "%d,", c)
	}
	b.WriteByte('|')
	for _, f := range n.FieldNames {
		b.WriteString(f)
		b.WriteByte(',')
	}
	fmt.Fprintf(&b, "|%v|%v|%s", n.Pure, n.DynamicRet, n.Symbol)
	return b.String()
}

// InternAnonymous returns the id of an existing node structurally equal to
// n, or allocates a new one. Every id in n.Children must already be
// interned (and is therefore numerically smaller than the id this call
// returns).
func (in *Interner) InternAnonymous(n TypeNode) TypeID {
	if n.Kind == KindNamed {
		panic("InternAnonymous: use DeclareNamed for named types")
	}
	key := anonKey(n)
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.byAnonKey[key]; ok {
		return id
	}
	id := makeTypeID(len(in.nodes), n.Kind)
	in.nodes = append(in.nodes, n)
	in.byAnonKey[key] = id
	return id
}

// DeclareNamed creates a new named node at path, with body as its initial
// (possibly IDUndefined) resolution target. It is a programmer error to
// declare a path that already exists.
func (in *Interner) DeclareNamed(path []string, body TypeID) TypeID {
	key := strings.Join(path, ".")
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.byName[key]; ok {
		panic(fmt.Sprintf("DeclareNamed: duplicate path %q", key))
	}
	id := makeTypeID(len(in.nodes), KindNamed)
	in.nodes = append(in.nodes, TypeNode{Kind: KindNamed, Name: append([]string(nil), path...), namedBody: body})
	in.byName[key] = id
	return id
}

// UpdateNamed fills in a previously declared name's body. It is a
// programmer error to call this on a non-named id.
func (in *Interner) UpdateNamed(id TypeID, body TypeID) {
	in.mu.Lock()
	defer in.mu.Unlock()
	idx := id.Index()
	if idx < 0 || idx >= len(in.nodes) || in.nodes[idx].Kind != KindNamed {
		panic(fmt.Sprintf("UpdateNamed: %v is not a named node", id))
	}
	in.nodes[idx].namedBody = body
}

// LookupByName returns the id declared for path. It is a programmer error
// to look up an unknown path.
func (in *Interner) LookupByName(path []string) TypeID {
	key := strings.Join(path, ".")
	in.mu.RLock()
	defer in.mu.RUnlock()
	id, ok := in.byName[key]
	if !ok {
		panic(fmt.Sprintf("LookupByName: unknown path %q", key))
	}
	return id
}

// Peek walks the Named alias chain starting at id until a non-Named node is
// reached, and returns that node's id. Peek always terminates: the walk is
// bounded by the number of interned nodes, so an alias cycle panics instead
// of looping forever.
func (in *Interner) Peek(id TypeID) TypeID {
	in.mu.RLock()
	defer in.mu.RUnlock()
	cur := id
	for i := 0; i < len(in.nodes)+1; i++ {
		idx := cur.Index()
		if idx < 0 || idx >= len(in.nodes) {
			panic(fmt.Sprintf("Peek: %v out of range", cur))
		}
		n := &in.nodes[idx]
		if n.Kind != KindNamed {
			return cur
		}
		cur = n.namedBody
	}
	panic(fmt.Sprintf("Peek: alias cycle starting at %v", id))
}

// GetNode returns a read-only copy of the node at id.
func (in *Interner) GetNode(id TypeID) TypeNode {
	in.mu.RLock()
	defer in.mu.RUnlock()
	idx := id.Index()
	if idx < 0 || idx >= len(in.nodes) {
		panic(fmt.Sprintf("GetNode: %v out of range", id))
	}
	return in.nodes[idx]
}

// GetVariant returns the kind-discriminated view of id's own node. Named
// aliases are not Peek'ed away: for a KindNamed node only Dest (the alias
// body) is filled in, and callers Peek first when they need the payload.
func (in *Interner) GetVariant(id TypeID) Variant {
	n := in.GetNode(id)
	v := Variant{Kind: n.Kind, Name: n.Name, Pure: n.Pure, DynamicRet: n.DynamicRet, Symbol: n.Symbol}
	switch n.Kind {
	case KindVector, KindDict:
		if len(n.Children) > 0 {
			v.Elem = n.Children[0]
		}
	case KindStruct:
		v.FieldTypes = n.Children
		v.FieldNames = n.FieldNames
	case KindFunction:
		if len(n.Children) > 0 {
			v.Ret = n.Children[0]
			v.Args = n.Children[1:]
		}
	case KindNamed:
		v.Dest = n.namedBody
	}
	return v
}

// IsRCBearing reports whether values of type id own a heap allocation
// (string, vector, dict, struct, json) and therefore participate in
// reference counting. Function, bool, int, double and typeid values are
// inline.
func (in *Interner) IsRCBearing(id TypeID) bool {
	switch in.GetNode(in.Peek(id)).Kind {
	case KindString, KindVector, KindDict, KindStruct, KindJSON:
		return true
	default:
		return false
	}
}

// TypeName renders a debug-friendly name for id, following Named aliases
// for display but reporting the alias's own lexical name when it has one.
func (in *Interner) TypeName(id TypeID) string {
	n := in.GetNode(id)
	if n.Kind == KindNamed && len(n.Name) > 0 {
		return n.namePath()
	}
	switch n.Kind {
	case KindVector:
		return "[" + in.TypeName(n.Children[0]) + "]"
	case KindDict:
		return "[string:" + in.TypeName(n.Children[0]) + "]"
	case KindStruct:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = in.TypeName(c)
		}
		return "struct{" + strings.Join(parts, ",") + "}"
	case KindFunction:
		parts := make([]string, 0, len(n.Children))
		for _, c := range n.Children[1:] {
			parts = append(parts, in.TypeName(c))
		}
		return in.TypeName(n.Children[0]) + "(" + strings.Join(parts, ",") + ")"
	case KindNamed:
		return "alias->" + in.TypeName(n.namedBody)
	default:
		return n.Kind.String()
	}
}
