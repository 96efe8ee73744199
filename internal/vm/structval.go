package vm

// StructLayout is the program loader's precomputed description of a struct
// type: field types and names in declaration order, so GetStructMember and
// update on struct are O(1) without re-walking the interner (§9 "Struct
// layout"). Go slices of Words don't need byte offsets the way the C++
// backend does, so Layout only tracks field index, not byte offset.
type StructLayout struct {
	Type  TypeID
	Elems []TypeID
	Names []string
}

func (l *StructLayout) indexOf(name string) int {
	for i, n := range l.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// StructVal is the struct payload: copy-on-write (§3.2).
type StructVal struct {
	Layout *StructLayout
	Fields []Word
}

func (h *Heap) AllocStruct(layout *StructLayout, fields []Word) Word {
	cp := make([]Word, len(fields))
	copy(cp, fields)
	for i, w := range cp {
		h.Retain(w, layout.Elems[i])
	}
	o := h.newObj(layout.Type, &StructVal{Layout: layout, Fields: cp})
	return WordObj(o)
}

func structOf(w Word) *StructVal {
	s, ok := w.Obj().payload.(*StructVal)
	if !ok {
		typeMismatch("expected struct payload, got %T", w.Obj().payload)
	}
	return s
}

func (s *StructVal) withField(idx int, val Word) *StructVal {
	nf := make([]Word, len(s.Fields))
	copy(nf, s.Fields)
	nf[idx] = val
	return &StructVal{Layout: s.Layout, Fields: nf}
}
