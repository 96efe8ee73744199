package vm

// CArrayVector is the contiguous-buffer vector backend: copy-on-write at
// the value level (§3.2). Every mutating operation below allocates a fresh
// backing slice; two CArrayVector values never alias the same slice.
type CArrayVector struct {
	Elem TypeID
	Data []Word
}

func (h *Heap) AllocVectorCArray(elem TypeID, data []Word) Word {
	cp := make([]Word, len(data))
	copy(cp, data)
	h.retainAllElements(elem, cp)
	o := h.newObj(h.vectorType(elem), &CArrayVector{Elem: elem, Data: cp})
	return WordObj(o)
}

func carrayOf(w Word) *CArrayVector {
	v, ok := w.Obj().payload.(*CArrayVector)
	if !ok {
		typeMismatch("expected carray vector payload, got %T", w.Obj().payload)
	}
	return v
}

// vectorType interns (or finds) the anonymous Vector type over elem. The
// intrinsics call this whenever they synthesize a brand-new vector value
// whose element type is already known (e.g. from an existing vector's own
// type), matching §4.1 "subtype ids ... interned before its parent."
func (h *Heap) vectorType(elem TypeID) TypeID {
	return h.interner.InternAnonymous(TypeNode{Kind: KindVector, Children: []TypeID{elem}})
}

func (h *Heap) dictType(val TypeID) TypeID {
	return h.interner.InternAnonymous(TypeNode{Kind: KindDict, Children: []TypeID{val}})
}

func (v *CArrayVector) pushBack(x Word) *CArrayVector {
	nd := make([]Word, len(v.Data)+1)
	copy(nd, v.Data)
	nd[len(v.Data)] = x
	return &CArrayVector{Elem: v.Elem, Data: nd}
}

func (v *CArrayVector) update(i int, x Word) *CArrayVector {
	nd := make([]Word, len(v.Data))
	copy(nd, v.Data)
	nd[i] = x
	return &CArrayVector{Elem: v.Elem, Data: nd}
}

func (v *CArrayVector) subset(start, end int) *CArrayVector {
	nd := make([]Word, end-start)
	copy(nd, v.Data[start:end])
	return &CArrayVector{Elem: v.Elem, Data: nd}
}
