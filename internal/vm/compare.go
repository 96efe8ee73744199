package vm

import "bytes"

// CompareOp enumerates the six relational/equality operators §4.2's
// compare() supports.
type CompareOp uint8

const (
	CompareEq CompareOp = iota
	CompareNeq
	CompareLess
	CompareLessEq
	CompareGreater
	CompareGreaterEq
)

// Compare implements the structural deep compare of §4.2: strings
// byte-wise, doubles with IEEE ordering, collections lexicographic on
// (length, then elements).
func (h *Heap) Compare(op CompareOp, t TypeID, a, b Word) bool {
	c := h.compareValues(t, a, b)
	switch op {
	case CompareEq:
		return c == 0
	case CompareNeq:
		return c != 0
	case CompareLess:
		return c < 0
	case CompareLessEq:
		return c <= 0
	case CompareGreater:
		return c > 0
	case CompareGreaterEq:
		return c >= 0
	default:
		typeMismatch("unknown compare op %d", op)
		return false
	}
}

// compareValues returns -1, 0, or 1.
func (h *Heap) compareValues(t TypeID, a, b Word) int {
	peeked := h.interner.Peek(t)
	switch h.interner.GetNode(peeked).Kind {
	case KindBool:
		return cmpBool(a.Bool(), b.Bool())
	case KindInt:
		return cmpInt64(a.Int(), b.Int())
	case KindDouble:
		return cmpFloat64(a.Float(), b.Float())
	case KindTypeID:
		return cmpInt64(int64(a.TypeIDValue()), int64(b.TypeIDValue()))
	case KindString:
		return bytes.Compare(stringOf(a).Bytes, stringOf(b).Bytes)
	case KindVector:
		elem := h.interner.GetVariant(peeked).Elem
		return h.compareVectors(elem, h.vectorSlice(a), h.vectorSlice(b))
	case KindDict:
		val := h.interner.GetVariant(peeked).Elem
		return h.compareDicts(val, a, b)
	case KindStruct:
		return h.compareStructs(a, b)
	case KindJSON:
		return h.compareJSON(jsonOf(a), jsonOf(b))
	case KindFunction:
		return cmpInt64(int64(a.Link()), int64(b.Link()))
	default:
		typeMismatch("compare: unsupported kind %v", h.interner.GetNode(peeked).Kind)
		return 0
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// vectorSlice returns a vector value's elements regardless of backend.
func (h *Heap) vectorSlice(w Word) []Word {
	switch p := w.Obj().payload.(type) {
	case *CArrayVector:
		return p.Data
	case *HamtVector:
		return p.ToSlice()
	default:
		typeMismatch("expected vector payload, got %T", p)
		return nil
	}
}

func (h *Heap) compareVectors(elem TypeID, a, b []Word) int {
	if c := cmpInt64(int64(len(a)), int64(len(b))); c != 0 {
		return c
	}
	for i := range a {
		if c := h.compareValues(elem, a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func (h *Heap) compareDicts(val TypeID, a, b Word) int {
	ka, va := h.dictKeysAndValues(a)
	kb, vb := h.dictKeysAndValues(b)
	if c := cmpInt64(int64(len(ka)), int64(len(kb))); c != 0 {
		return c
	}
	for i := range ka {
		if c := bytes.Compare([]byte(ka[i]), []byte(kb[i])); c != 0 {
			return c
		}
		if c := h.compareValues(val, va[i], vb[i]); c != 0 {
			return c
		}
	}
	return 0
}

func (h *Heap) dictKeysAndValues(w Word) ([]string, []Word) {
	switch p := w.Obj().payload.(type) {
	case *CppMapDict:
		keys := p.sortedKeys()
		vals := make([]Word, len(keys))
		for i, k := range keys {
			vals[i] = p.m[k]
		}
		return keys, vals
	case *HamtDict:
		keys := p.sortedKeys()
		vals := make([]Word, len(keys))
		for i, k := range keys {
			v, _ := p.Get(k)
			vals[i] = v
		}
		return keys, vals
	default:
		typeMismatch("expected dict payload, got %T", p)
		return nil, nil
	}
}

func (h *Heap) compareStructs(a, b Word) int {
	sa, sb := structOf(a), structOf(b)
	for i := range sa.Fields {
		if c := h.compareValues(sa.Layout.Elems[i], sa.Fields[i], sb.Fields[i]); c != 0 {
			return c
		}
	}
	return 0
}

func (h *Heap) compareJSON(a, b *JSONVal) int {
	if c := cmpInt64(int64(a.Kind), int64(b.Kind)); c != 0 {
		return c
	}
	switch a.Kind {
	case JSONKindString:
		return bytes.Compare([]byte(a.Str), []byte(b.Str))
	case JSONKindNumber:
		return cmpFloat64(a.Num, b.Num)
	case JSONKindArray:
		if c := cmpInt64(int64(len(a.Arr)), int64(len(b.Arr))); c != 0 {
			return c
		}
		for i := range a.Arr {
			if c := h.compareJSON(a.Arr[i], b.Arr[i]); c != 0 {
				return c
			}
		}
		return 0
	case JSONKindObject:
		if c := cmpInt64(int64(len(a.Obj)), int64(len(b.Obj))); c != 0 {
			return c
		}
		for i := range a.Obj {
			if c := bytes.Compare([]byte(a.Obj[i].Key), []byte(b.Obj[i].Key)); c != 0 {
				return c
			}
			if c := h.compareJSON(a.Obj[i].Val, b.Obj[i].Val); c != 0 {
				return c
			}
		}
		return 0
	default:
		return 0
	}
}
