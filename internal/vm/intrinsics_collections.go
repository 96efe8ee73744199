package vm

import "sort"

func init() {
	Intrinsics["map"] = hostMap
	Intrinsics["map_string"] = hostMapString
	Intrinsics["map_dag"] = hostMapDag
	Intrinsics["filter"] = hostFilter
	Intrinsics["reduce"] = hostReduce
	Intrinsics["stable_sort"] = hostStableSort
}

// callback resolves a function-value Word into its FunctionDef, the way
// execCall resolves OpCall's callee register (§4.4 group 5).
func (it *Interpreter) callback(fnWord Word) (*FunctionDef, error) {
	link := fnWord.Link()
	if int(link) < 0 || int(link) >= len(it.prog.Functions) {
		return nil, NewRuntimeError("invalid_function", "call: link id %d out of range", link)
	}
	return it.prog.Functions[link], nil
}

// hostMap implements map(elements, f, context) → [R] (§4.5). context is a
// dynamic ("any") argument, so it arrives as an adjacent (type, value) pair
// per §4.4 item 5.
func hostMap(it *Interpreter, args []Word) (Word, error) {
	elements, fWord := args[0], args[1]
	ctxType, ctxVal := dynArg(args, 2)
	h := it.heap

	fn, err := it.callback(fWord)
	if err != nil {
		return Word{}, err
	}
	retType := fn.retType(h.interner)

	n := h.VectorLen(elements)
	out := make([]Word, n)
	for i := 0; i < n; i++ {
		e := h.VectorGet(elements, i)
		r, _, callErr := it.callFunction(fn, []Word{e, WordTypeID(ctxType), ctxVal})
		if callErr != nil {
			return Word{}, callErr
		}
		out[i] = r
	}
	result := h.AllocVector(retType, out)
	h.releaseTemporaries(retType, out)
	return result, nil
}

// hostMapString implements map_string(s, f, context) → string: f is applied
// to each byte of s (as an int code point), and the resulting strings are
// concatenated.
func hostMapString(it *Interpreter, args []Word) (Word, error) {
	s, fWord := args[0], args[1]
	ctxType, ctxVal := dynArg(args, 2)
	h := it.heap

	fn, err := it.callback(fWord)
	if err != nil {
		return Word{}, err
	}
	ba := stringOf(s)
	out := make([]byte, 0, len(ba.Bytes))
	for _, c := range ba.Bytes {
		r, _, callErr := it.callFunction(fn, []Word{WordInt(int64(c)), WordTypeID(ctxType), ctxVal})
		if callErr != nil {
			return Word{}, callErr
		}
		out = append(out, stringOf(r).Bytes...)
		h.Release(r, h.interner.IDString)
	}
	return h.AllocString(out), nil
}

// hostFilter implements filter(elements, predicate, context) → [E] (§4.5).
func hostFilter(it *Interpreter, args []Word) (Word, error) {
	elements, fWord := args[0], args[1]
	ctxType, ctxVal := dynArg(args, 2)
	h := it.heap

	fn, err := it.callback(fWord)
	if err != nil {
		return Word{}, err
	}
	elemType := h.VectorElemType(elements)
	n := h.VectorLen(elements)
	out := make([]Word, 0, n)
	for i := 0; i < n; i++ {
		e := h.VectorGet(elements, i)
		r, _, callErr := it.callFunction(fn, []Word{e, WordTypeID(ctxType), ctxVal})
		if callErr != nil {
			return Word{}, callErr
		}
		keep := r.Bool()
		if keep {
			out = append(out, e)
		}
	}
	return h.AllocVector(elemType, out), nil
}

// hostReduce implements reduce(elements, init, f, context) → R (§4.5).
func hostReduce(it *Interpreter, args []Word) (Word, error) {
	elements, acc, fWord := args[0], args[1], args[2]
	ctxType, ctxVal := dynArg(args, 3)
	h := it.heap

	fn, err := it.callback(fWord)
	if err != nil {
		return Word{}, err
	}
	retType := fn.retType(h.interner)
	h.Retain(acc, retType)
	n := h.VectorLen(elements)
	for i := 0; i < n; i++ {
		e := h.VectorGet(elements, i)
		next, _, callErr := it.callFunction(fn, []Word{acc, e, WordTypeID(ctxType), ctxVal})
		if callErr != nil {
			h.Release(acc, retType)
			return Word{}, callErr
		}
		h.Release(acc, retType)
		acc = next
	}
	return acc, nil
}

// hostStableSort implements stable_sort(elements, less, context) → [E].
func hostStableSort(it *Interpreter, args []Word) (Word, error) {
	elements, fWord := args[0], args[1]
	ctxType, ctxVal := dynArg(args, 2)
	h := it.heap

	fn, err := it.callback(fWord)
	if err != nil {
		return Word{}, err
	}
	elemType := h.VectorElemType(elements)
	items := append([]Word(nil), h.VectorToSlice(elements)...)

	var sortErr error
	sort.SliceStable(items, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		r, _, callErr := it.callFunction(fn, []Word{items[i], items[j], WordTypeID(ctxType), ctxVal})
		if callErr != nil {
			sortErr = callErr
			return false
		}
		return r.Bool()
	})
	if sortErr != nil {
		return Word{}, sortErr
	}
	return h.AllocVector(elemType, items), nil
}

// hostMapDag implements map_dag(elements, parents, f, context) → [R]
// (§4.5): topological order processing, parents[i] is the index of
// elements[i]'s parent (-1 for roots); f receives the element, its parent's
// already-computed result (the zero value of R for roots), and context.
// Detects cycles: if a full pass makes no progress, the graph isn't a DAG.
func hostMapDag(it *Interpreter, args []Word) (Word, error) {
	elements, parents, fWord := args[0], args[1], args[2]
	ctxType, ctxVal := dynArg(args, 3)
	h := it.heap

	fn, err := it.callback(fWord)
	if err != nil {
		return Word{}, err
	}
	retType := fn.retType(h.interner)
	n := h.VectorLen(elements)

	done := make([]bool, n)
	results := make([]Word, n)
	remaining := n
	for remaining > 0 {
		progressed := false
		for i := 0; i < n; i++ {
			if done[i] {
				continue
			}
			parentIdx := int(h.VectorGet(parents, i).Int())
			var parentResult Word
			if parentIdx == -1 {
				parentResult = h.zeroValue(retType)
			} else if done[parentIdx] {
				parentResult = results[parentIdx]
			} else {
				continue
			}
			e := h.VectorGet(elements, i)
			r, _, callErr := it.callFunction(fn, []Word{e, parentResult, WordTypeID(ctxType), ctxVal})
			if parentIdx == -1 {
				h.Release(parentResult, retType)
			}
			if callErr != nil {
				return Word{}, callErr
			}
			results[i] = r
			done[i] = true
			remaining--
			progressed = true
		}
		if !progressed {
			return Word{}, NewRuntimeError("cycle", "map_dag: parents graph is not acyclic")
		}
	}
	out := h.AllocVector(retType, results)
	h.releaseTemporaries(retType, results)
	return out, nil
}
