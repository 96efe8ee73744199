package vm

// AllocDict builds a new dict value using the heap's configured backend.
func (h *Heap) AllocDict(val TypeID, entries map[string]Word) Word {
	if h.config.DictBackend == DictBackendCppMap {
		return h.AllocDictCppMap(val, entries)
	}
	return h.AllocDictHamt(val, entries)
}

// DictValType returns a dict value's value type.
func (h *Heap) DictValType(w Word) TypeID {
	switch p := w.Obj().payload.(type) {
	case *CppMapDict:
		return p.val
	case *HamtDict:
		return p.val
	default:
		typeMismatch("DictValType: expected dict payload, got %T", p)
		return h.interner.IDUndefined
	}
}

// DictSize returns a dict value's entry count.
func (h *Heap) DictSize(w Word) int {
	switch p := w.Obj().payload.(type) {
	case *CppMapDict:
		return len(p.m)
	case *HamtDict:
		return p.cnt
	default:
		typeMismatch("DictSize: expected dict payload, got %T", p)
		return 0
	}
}

// DictGet looks up key, following §4.5: a missing key is a RuntimeError, not
// a silent default.
func (h *Heap) DictGet(w Word, key string) (Word, error) {
	var v Word
	var ok bool
	switch p := w.Obj().payload.(type) {
	case *CppMapDict:
		v, ok = p.get(key)
	case *HamtDict:
		v, ok = p.Get(key)
	default:
		typeMismatch("DictGet: expected dict payload, got %T", p)
	}
	if !ok {
		return Word{}, NewRuntimeError("key_not_found", "dict has no key %q", key)
	}
	return v, nil
}

// DictExists reports whether key is present.
func (h *Heap) DictExists(w Word, key string) bool {
	switch p := w.Obj().payload.(type) {
	case *CppMapDict:
		return p.exists(key)
	case *HamtDict:
		return p.has(key)
	default:
		typeMismatch("DictExists: expected dict payload, got %T", p)
		return false
	}
}

// DictUpdate returns a new dict with key bound to x, replacing the previous
// binding (if any). The new dict shares every other entry's value with w,
// but owns its own reference to each of them (the same "retain the full
// resulting collection" policy as VectorUpdate), so the full resulting
// value set is retained here. w's own binding for key, if any, is left
// untouched — only w's eventual disposal releases it.
func (h *Heap) DictUpdate(w Word, key string, x Word) Word {
	val := h.DictValType(w)
	var o *HeapObj
	switch p := w.Obj().payload.(type) {
	case *CppMapDict:
		o = h.newObj(w.Obj().typ, p.update(key, x))
	case *HamtDict:
		o = h.newObj(w.Obj().typ, p.insert(key, x))
	default:
		typeMismatch("DictUpdate: expected dict payload, got %T", p)
	}
	nv := WordObj(o)
	h.retainAllElements(val, h.dictValues(nv))
	return nv
}

// DictErase returns a new dict with key removed (a no-op copy if absent).
// Same policy as DictUpdate: retain the full surviving value set of the new
// dict, and leave w's own binding (if any) alone.
func (h *Heap) DictErase(w Word, key string) Word {
	val := h.DictValType(w)
	var o *HeapObj
	switch p := w.Obj().payload.(type) {
	case *CppMapDict:
		o = h.newObj(w.Obj().typ, p.erase(key))
	case *HamtDict:
		o = h.newObj(w.Obj().typ, p.erase(key))
	default:
		typeMismatch("DictErase: expected dict payload, got %T", p)
	}
	nv := WordObj(o)
	h.retainAllElements(val, h.dictValues(nv))
	return nv
}

// dictValues returns a dict value's values regardless of backend.
func (h *Heap) dictValues(w Word) []Word {
	switch p := w.Obj().payload.(type) {
	case *CppMapDict:
		return mapValues(p.m)
	case *HamtDict:
		return hdAllValues(p.root)
	default:
		typeMismatch("dictValues: expected dict payload, got %T", p)
		return nil
	}
}

// DictKeys returns every key in lexicographic order (§4.5 get_keys).
func (h *Heap) DictKeys(w Word) []string {
	switch p := w.Obj().payload.(type) {
	case *CppMapDict:
		return p.sortedKeys()
	case *HamtDict:
		return p.sortedKeys()
	default:
		typeMismatch("DictKeys: expected dict payload, got %T", p)
		return nil
	}
}
