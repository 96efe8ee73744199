package vm

// AllocVector builds a new vector value using the heap's configured
// backend (§9: "the choice is global per program, not per type").
func (h *Heap) AllocVector(elem TypeID, items []Word) Word {
	if h.config.VectorBackend == VectorBackendCArray {
		return h.AllocVectorCArray(elem, items)
	}
	return h.AllocVectorHamt(elem, items)
}

// VectorLen returns a vector value's element count regardless of backend.
func (h *Heap) VectorLen(w Word) int {
	switch p := w.Obj().payload.(type) {
	case *CArrayVector:
		return len(p.Data)
	case *HamtVector:
		return p.Len()
	default:
		typeMismatch("VectorLen: expected vector payload, got %T", p)
		return 0
	}
}

// VectorGet returns the element at i regardless of backend.
func (h *Heap) VectorGet(w Word, i int) Word {
	switch p := w.Obj().payload.(type) {
	case *CArrayVector:
		return p.Data[i]
	case *HamtVector:
		return p.Get(i)
	default:
		typeMismatch("VectorGet: expected vector payload, got %T", p)
		return Word{}
	}
}

// VectorElemType returns the element type of a vector value.
func (h *Heap) VectorElemType(w Word) TypeID {
	switch p := w.Obj().payload.(type) {
	case *CArrayVector:
		return p.Elem
	case *HamtVector:
		return p.elem
	default:
		typeMismatch("VectorElemType: expected vector payload, got %T", p)
		return h.interner.IDUndefined
	}
}

// VectorPushBack returns a new vector with x appended. The new collection
// shares every other element's storage with w, but owns its own reference
// to each of them (spec.md §9: "the backend retains every element of the
// resulting collection on creation"), so the full resulting slice is
// retained here rather than just x.
func (h *Heap) VectorPushBack(w Word, x Word) Word {
	elem := h.VectorElemType(w)
	var o *HeapObj
	switch p := w.Obj().payload.(type) {
	case *CArrayVector:
		o = h.newObj(w.Obj().typ, p.pushBack(x))
	case *HamtVector:
		o = h.newObj(w.Obj().typ, p.pushBack(x))
	default:
		typeMismatch("VectorPushBack: expected vector payload, got %T", p)
	}
	nv := WordObj(o)
	h.retainAllElements(elem, h.vectorSlice(nv))
	return nv
}

// VectorUpdate returns a new vector with index i replaced by x. Fails with
// a RuntimeError if i is out of range. w keeps its own reference to the
// replaced element untouched — only the new collection's full element set
// (shared storage included) is retained, per the same policy as
// VectorPushBack.
func (h *Heap) VectorUpdate(w Word, i int, x Word) (Word, error) {
	n := h.VectorLen(w)
	if i < 0 || i >= n {
		return Word{}, NewRuntimeError("index_out_of_range", "update: index %d out of range [0,%d)", i, n)
	}
	elem := h.VectorElemType(w)
	var o *HeapObj
	switch p := w.Obj().payload.(type) {
	case *CArrayVector:
		o = h.newObj(w.Obj().typ, p.update(i, x))
	case *HamtVector:
		o = h.newObj(w.Obj().typ, p.update(i, x))
	default:
		typeMismatch("VectorUpdate: expected vector payload, got %T", p)
	}
	nv := WordObj(o)
	h.retainAllElements(elem, h.vectorSlice(nv))
	return nv, nil
}

// VectorSubset returns the clamp-and-validate subset described in §4.5:
// start2 = min(start, len), end2 = min(end, len), start2 <= end2; negative
// indices fail.
func (h *Heap) VectorSubset(w Word, start, end int) (Word, error) {
	n := h.VectorLen(w)
	if start < 0 || end < 0 {
		return Word{}, NewRuntimeError("invalid_argument", "subset: negative index")
	}
	s2 := minInt(start, n)
	e2 := minInt(end, n)
	if e2 < s2 {
		e2 = s2
	}
	elem := h.VectorElemType(w)
	items := make([]Word, e2-s2)
	for i := s2; i < e2; i++ {
		items[i-s2] = h.VectorGet(w, i)
	}
	return h.AllocVector(elem, items), nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// VectorFind returns the index of the first element equal to x, or -1.
func (h *Heap) VectorFind(w Word, x Word) int {
	elem := h.VectorElemType(w)
	n := h.VectorLen(w)
	for i := 0; i < n; i++ {
		if h.Compare(CompareEq, elem, h.VectorGet(w, i), x) {
			return i
		}
	}
	return -1
}

// VectorToSlice materializes every element regardless of backend.
func (h *Heap) VectorToSlice(w Word) []Word {
	return h.vectorSlice(w)
}
