package vm

// Value is the host-facing mirror of a Floyd runtime value: a plain,
// self-contained Go tree that owns all of its own data, independent of any
// Heap's RC bookkeeping. pkg/floyd's Runtime.Call and Runtime.FindGlobal
// convert to and from Value at the host boundary (§4.2 "value_t ... the
// bridge between host code and the Word/HeapObj representation").
//
// Exactly one field is meaningful for a given Value depending on its Kind,
// mirroring the way a Word is only meaningful alongside its static type.
type Value struct {
	Kind Kind

	B bool
	I int64
	F float64
	S string
	T TypeID // KindTypeID payload, or a function value's static type

	Vec []Value          // KindVector
	Dict map[string]Value // KindDict
	St   []Value          // KindStruct, parallel to the struct's layout
	J    *JSONVal         // KindJSON
	Fn   LinkID           // KindFunction
}

func ValueBool(b bool) Value       { return Value{Kind: KindBool, B: b} }
func ValueInt(i int64) Value       { return Value{Kind: KindInt, I: i} }
func ValueDouble(f float64) Value  { return Value{Kind: KindDouble, F: f} }
func ValueString(s string) Value   { return Value{Kind: KindString, S: s} }
func ValueTypeID(t TypeID) Value   { return Value{Kind: KindTypeID, T: t} }
func ValueJSON(j *JSONVal) Value   { return Value{Kind: KindJSON, J: j} }
func ValueFunction(t TypeID, l LinkID) Value {
	return Value{Kind: KindFunction, T: t, Fn: l}
}

// ToWord converts a host Value into a Word of static type t, allocating
// whatever heap storage the shape requires. The caller owns exactly one
// reference to the result (as if it had just been produced by an
// intrinsic): Release it (or store it somewhere that eventually will) to
// avoid leaking.
func (h *Heap) ToWord(t TypeID, v Value) Word {
	peeked := h.interner.Peek(t)
	node := h.interner.GetNode(peeked)
	switch node.Kind {
	case KindBool:
		return WordBool(v.B)
	case KindInt:
		return WordInt(v.I)
	case KindDouble:
		return WordFloat(v.F)
	case KindTypeID:
		return WordTypeID(v.T)
	case KindString:
		return h.AllocString([]byte(v.S))
	case KindJSON:
		return h.AllocJSON(v.J)
	case KindFunction:
		return WordLink(v.Fn)
	case KindVector:
		elem := h.interner.GetVariant(peeked).Elem
		items := make([]Word, len(v.Vec))
		for i, e := range v.Vec {
			items[i] = h.ToWord(elem, e)
		}
		w := h.AllocVector(elem, items)
		h.releaseTemporaries(elem, items)
		return w
	case KindDict:
		val := h.interner.GetVariant(peeked).Elem
		entries := make(map[string]Word, len(v.Dict))
		for k, e := range v.Dict {
			entries[k] = h.ToWord(val, e)
		}
		w := h.AllocDict(val, entries)
		for _, wd := range entries {
			h.releaseTemporary(val, wd)
		}
		return w
	case KindStruct:
		variant := h.interner.GetVariant(peeked)
		layout := &StructLayout{Type: peeked, Elems: variant.FieldTypes, Names: variant.FieldNames}
		fields := make([]Word, len(v.St))
		for i, e := range v.St {
			fields[i] = h.ToWord(layout.Elems[i], e)
		}
		w := h.AllocStruct(layout, fields)
		for i, fw := range fields {
			h.releaseTemporary(layout.Elems[i], fw)
		}
		return w
	default:
		typeMismatch("ToWord: unsupported kind %v", node.Kind)
		return Word{}
	}
}

// releaseTemporary drops the extra reference ToWord's own allocation left
// behind once the parent collection/struct has retained the element itself
// (AllocVector/AllocDict/AllocStruct all retain on construction), so the
// net effect is exactly one owning reference held by the parent.
func (h *Heap) releaseTemporary(t TypeID, w Word) {
	h.Release(w, t)
}

func (h *Heap) releaseTemporaries(t TypeID, ws []Word) {
	if ws == nil {
		return
	}
	for _, w := range ws {
		h.releaseTemporary(t, w)
	}
}

// FromWord converts a Word of static type t into a host Value, deep-copying
// every shape into ordinary Go data so the result outlives the Heap's own
// RC bookkeeping (the caller may Release w immediately afterward).
func (h *Heap) FromWord(t TypeID, w Word) Value {
	peeked := h.interner.Peek(t)
	node := h.interner.GetNode(peeked)
	switch node.Kind {
	case KindBool:
		return ValueBool(w.Bool())
	case KindInt:
		return ValueInt(w.Int())
	case KindDouble:
		return ValueDouble(w.Float())
	case KindTypeID:
		return ValueTypeID(w.TypeIDValue())
	case KindString:
		return ValueString(stringOf(w).String())
	case KindJSON:
		return ValueJSON(jsonOf(w).deepClone())
	case KindFunction:
		return ValueFunction(peeked, w.Link())
	case KindVector:
		elem := h.interner.GetVariant(peeked).Elem
		slice := h.vectorSlice(w)
		out := make([]Value, len(slice))
		for i, e := range slice {
			out[i] = h.FromWord(elem, e)
		}
		return Value{Kind: KindVector, Vec: out}
	case KindDict:
		val := h.interner.GetVariant(peeked).Elem
		keys, vals := h.dictKeysAndValues(w)
		out := make(map[string]Value, len(keys))
		for i, k := range keys {
			out[k] = h.FromWord(val, vals[i])
		}
		return Value{Kind: KindDict, Dict: out}
	case KindStruct:
		s := structOf(w)
		out := make([]Value, len(s.Fields))
		for i, f := range s.Fields {
			out[i] = h.FromWord(s.Layout.Elems[i], f)
		}
		return Value{Kind: KindStruct, St: out}
	default:
		typeMismatch("FromWord: unsupported kind %v", node.Kind)
		return Value{}
	}
}
