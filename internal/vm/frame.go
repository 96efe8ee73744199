package vm

// Symbol is one entry of a frame's static symbol table: a declared name,
// its type, and (for `let`/global constants computed at load time) an
// optional constant initializer.
type Symbol struct {
	Name    string
	Type    TypeID
	Const   *Word // nil unless this symbol has a compile-time constant value
	IsConst bool
}

// Frame is the static descriptor every activation of a function shares
// (§3.3 "bc_frame"): the symbol table, which symbols are RC-bearing, which
// non-argument locals need releasing on close_frame, the argument count,
// and the instruction stream itself.
type Frame struct {
	Name string

	Symbols    []Symbol
	Exts       []bool // parallel to Symbols: RC-bearing?
	ArgCount   int
	LocalsExts []bool // parallel to Symbols[ArgCount:]: release on close_frame?

	Code []Instruction
}

func (f *Frame) localCount() int { return len(f.Symbols) - f.ArgCount }

// newDefaultLocal produces the initial word for local symbol sym: its
// retained constant initializer if it has one, an unallocated word (no
// backing object, see Word.IsNilObj) for an RC-bearing type, otherwise the
// inline zero value of its type, per §3.3 "each local initialized from
// frame's locals template."
func (h *Heap) newDefaultLocal(sym Symbol) Word {
	if sym.IsConst && sym.Const != nil {
		w := *sym.Const
		h.Retain(w, sym.Type)
		return w
	}
	if h.interner.IsRCBearing(sym.Type) {
		return Word{}
	}
	return h.zeroValue(sym.Type)
}

// zeroValue returns the default word of type t: false/0/0.0 for inline
// kinds, a freshly allocated empty value (refcount 1) for RC-bearing kinds.
func (h *Heap) zeroValue(t TypeID) Word {
	peeked := h.interner.Peek(t)
	switch h.interner.GetNode(peeked).Kind {
	case KindBool:
		return WordBool(false)
	case KindInt:
		return WordInt(0)
	case KindDouble:
		return WordFloat(0)
	case KindTypeID:
		return WordTypeID(h.interner.IDUndefined)
	case KindFunction:
		return WordLink(-1)
	case KindString:
		return h.AllocString(nil)
	case KindJSON:
		return h.AllocJSON(JSONNull())
	case KindVector:
		elem := h.interner.GetVariant(peeked).Elem
		return h.AllocVector(elem, nil)
	case KindDict:
		val := h.interner.GetVariant(peeked).Elem
		return h.AllocDict(val, nil)
	case KindStruct:
		variant := h.interner.GetVariant(peeked)
		layout := &StructLayout{Type: peeked, Elems: variant.FieldTypes, Names: variant.FieldNames}
		fields := make([]Word, len(layout.Elems))
		for i, ft := range layout.Elems {
			fields[i] = h.zeroValue(ft)
		}
		w := h.AllocStruct(layout, fields)
		for i, ft := range layout.Elems {
			h.Release(fields[i], ft)
		}
		return w
	default:
		typeMismatch("zeroValue: unsupported kind %v", h.interner.GetNode(peeked).Kind)
		return Word{}
	}
}
