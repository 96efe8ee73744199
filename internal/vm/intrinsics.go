package vm

import (
	"strconv"
	"strings"
)

// Intrinsics is the catalogue of host functions backing §4.5. Each entry is
// named the way the intrinsic signature table names it; a loaded Program's
// function table binds a FunctionDef.Host to Intrinsics[name] when an
// incoming function descriptor says "this is a host intrinsic, not
// bytecode" (pkg/floyd's program decoder does the binding).
//
// Unlike the original implementation, one Go function handles every backend
// specialization of a given intrinsic (string/vector-carray/vector-hamt/
// dict-cppmap/dict-hamt all go through the same update/push_back/etc.),
// since internal/vm/vector.go and dict.go already dispatch on payload type
// uniformly — the per-specialization split described in §4.5 exists in the
// original to let its code generator pick a monomorphic opcode sequence;
// Go's dynamic type switch gets the same result without the split.
var Intrinsics = map[string]HostFunc{
	"update":     hostUpdate,
	"push_back":  hostPushBack,
	"size":       hostSize,
	"subset":     hostSubset,
	"replace":    hostReplace,
	"find":       hostFind,
	"exists":     hostExists,
	"erase":      hostErase,
	"get_keys":   hostGetKeys,
	"to_string":  hostToString,
	"to_pretty_string": hostToPrettyString,
	"typeof":     hostTypeof,
	"assert":     hostAssert,
	"print":      hostPrint,
}

// dynArg reads one "any"-typed argument's adjacent (type, value) pair, per
// §4.4 item 5: "dynamic arguments, each prefixed by a type-id on the stack."
// args[i] holds the type word, args[i+1] the value.
func dynArg(args []Word, i int) (TypeID, Word) {
	return args[i].TypeIDValue(), args[i+1]
}

// hostUpdate implements update(coll, key, value) across every shape (§4.5).
func hostUpdate(it *Interpreter, args []Word) (Word, error) {
	coll, key, value := args[0], args[1], args[2]
	h := it.heap
	switch p := coll.Obj().payload.(type) {
	case *ByteArray:
		i := int(key.Int())
		if i < 0 || i >= len(p.Bytes) {
			return Word{}, NewRuntimeError("index_out_of_range", "update: string index %d out of range [0,%d)", i, len(p.Bytes))
		}
		nb := append([]byte(nil), p.Bytes...)
		nb[i] = byte(value.Int())
		return h.AllocString(nb), nil
	case *CArrayVector, *HamtVector:
		return h.VectorUpdate(coll, int(key.Int()), value)
	case *CppMapDict, *HamtDict:
		return h.DictUpdate(coll, stringOf(key).String(), value), nil
	case *StructVal:
		idx := int(key.Int())
		nv := p.withField(idx, value)
		for i, ft := range nv.Layout.Elems {
			h.Retain(nv.Fields[i], ft)
		}
		return WordObj(h.newObj(coll.Obj().Type(), nv)), nil
	default:
		typeMismatch("update: unsupported shape %T", p)
		return Word{}, nil
	}
}

// hostPushBack implements push_back(coll, v) — string, vector-carray,
// vector-hamt (§4.5).
func hostPushBack(it *Interpreter, args []Word) (Word, error) {
	coll, v := args[0], args[1]
	h := it.heap
	switch p := coll.Obj().payload.(type) {
	case *ByteArray:
		return h.AllocString(append(append([]byte(nil), p.Bytes...), byte(v.Int()))), nil
	case *CArrayVector, *HamtVector:
		return h.VectorPushBack(coll, v), nil
	default:
		typeMismatch("push_back: unsupported shape %T", p)
		return Word{}, nil
	}
}

// hostSize implements size(coll) — string, vector, dict, json (§4.5).
func hostSize(it *Interpreter, args []Word) (Word, error) {
	coll := args[0]
	h := it.heap
	switch p := coll.Obj().payload.(type) {
	case *ByteArray:
		return WordInt(int64(len(p.Bytes))), nil
	case *CArrayVector, *HamtVector:
		return WordInt(int64(h.VectorLen(coll))), nil
	case *CppMapDict, *HamtDict:
		return WordInt(int64(h.DictSize(coll))), nil
	case *JSONVal:
		switch p.Kind {
		case JSONKindObject:
			return WordInt(int64(len(p.Obj))), nil
		case JSONKindArray:
			return WordInt(int64(len(p.Arr))), nil
		case JSONKindString:
			return WordInt(int64(len(p.Str))), nil
		default:
			return Word{}, NewRuntimeError("invalid_argument", "size: json node kind %v has no size", p.Kind)
		}
	default:
		typeMismatch("size: unsupported shape %T", p)
		return Word{}, nil
	}
}

// hostSubset implements subset(coll, start, end) — string, vector (§4.5).
func hostSubset(it *Interpreter, args []Word) (Word, error) {
	coll, start, end := args[0], int(args[1].Int()), int(args[2].Int())
	h := it.heap
	switch p := coll.Obj().payload.(type) {
	case *ByteArray:
		if start < 0 || end < 0 {
			return Word{}, NewRuntimeError("invalid_argument", "subset: negative index")
		}
		n := len(p.Bytes)
		s2, e2 := minInt(start, n), minInt(end, n)
		if e2 < s2 {
			e2 = s2
		}
		return h.AllocString(p.Bytes[s2:e2]), nil
	case *CArrayVector, *HamtVector:
		return h.VectorSubset(coll, start, end)
	default:
		typeMismatch("subset: unsupported shape %T", p)
		return Word{}, nil
	}
}

// hostReplace implements replace(coll, start, end, replacement) — string and
// vector, both operands must share shape (§4.5).
func hostReplace(it *Interpreter, args []Word) (Word, error) {
	coll, start, end, repl := args[0], int(args[1].Int()), int(args[2].Int()), args[3]
	h := it.heap
	switch p := coll.Obj().payload.(type) {
	case *ByteArray:
		if start < 0 || end < 0 {
			return Word{}, NewRuntimeError("invalid_argument", "replace: negative index")
		}
		n := len(p.Bytes)
		s2, e2 := minInt(start, n), minInt(end, n)
		if e2 < s2 {
			e2 = s2
		}
		out := append([]byte(nil), p.Bytes[:s2]...)
		out = append(out, stringOf(repl).Bytes...)
		out = append(out, p.Bytes[e2:]...)
		return h.AllocString(out), nil
	case *CArrayVector, *HamtVector:
		if start < 0 || end < 0 {
			return Word{}, NewRuntimeError("invalid_argument", "replace: negative index")
		}
		n := h.VectorLen(coll)
		s2, e2 := minInt(start, n), minInt(end, n)
		if e2 < s2 {
			e2 = s2
		}
		elem := h.VectorElemType(coll)
		out := make([]Word, 0, s2+h.VectorLen(repl)+(n-e2))
		for i := 0; i < s2; i++ {
			out = append(out, h.VectorGet(coll, i))
		}
		out = append(out, h.VectorToSlice(repl)...)
		for i := e2; i < n; i++ {
			out = append(out, h.VectorGet(coll, i))
		}
		return h.AllocVector(elem, out), nil
	default:
		typeMismatch("replace: unsupported shape %T", p)
		return Word{}, nil
	}
}

// hostFind implements find(coll, v) → int — string substring search, vector
// first-equal-element search (§4.5).
func hostFind(it *Interpreter, args []Word) (Word, error) {
	coll, v := args[0], args[1]
	h := it.heap
	switch p := coll.Obj().payload.(type) {
	case *ByteArray:
		needle := stringOf(v).Bytes
		if len(needle) == 0 {
			return WordInt(0), nil
		}
		for i := 0; i+len(needle) <= len(p.Bytes); i++ {
			if string(p.Bytes[i:i+len(needle)]) == string(needle) {
				return WordInt(int64(i)), nil
			}
		}
		return WordInt(-1), nil
	case *CArrayVector, *HamtVector:
		return WordInt(int64(h.VectorFind(coll, v))), nil
	default:
		typeMismatch("find: unsupported shape %T", p)
		return Word{}, nil
	}
}

func hostExists(it *Interpreter, args []Word) (Word, error) {
	return WordBool(it.heap.DictExists(args[0], stringOf(args[1]).String())), nil
}

func hostErase(it *Interpreter, args []Word) (Word, error) {
	return it.heap.DictErase(args[0], stringOf(args[1]).String()), nil
}

func hostGetKeys(it *Interpreter, args []Word) (Word, error) {
	keys := it.heap.DictKeys(args[0])
	items := make([]Word, len(keys))
	for i, k := range keys {
		items[i] = it.heap.AllocString([]byte(k))
	}
	w := it.heap.AllocVector(it.heap.interner.IDString, items)
	it.heap.releaseTemporaries(it.heap.interner.IDString, items)
	return w, nil
}

// hostToString implements to_string(v: any) (§4.5). v's type rides in as the
// adjacent dynamic-arg type word.
func hostToString(it *Interpreter, args []Word) (Word, error) {
	t, v := dynArg(args, 0)
	return it.heap.AllocString([]byte(renderValue(it.heap, t, v, false))), nil
}

func hostToPrettyString(it *Interpreter, args []Word) (Word, error) {
	t, v := dynArg(args, 0)
	return it.heap.AllocString([]byte(renderValue(it.heap, t, v, true))), nil
}

func hostTypeof(it *Interpreter, args []Word) (Word, error) {
	t, _ := dynArg(args, 0)
	return WordTypeID(t), nil
}

// hostAssert implements assert(cond) — a failed assertion is a runtime
// error, not a panic (§4.5 "assert false ... raise a runtime error").
func hostAssert(it *Interpreter, args []Word) (Word, error) {
	if !args[0].Bool() {
		return Word{}, NewRuntimeError("assert_failed", "assertion failed")
	}
	return WordBool(true), nil
}

// hostPrint implements print(v: any), appending one line to the runtime's
// captured output (§4.5).
func hostPrint(it *Interpreter, args []Word) (Word, error) {
	t, v := dynArg(args, 0)
	it.Print(renderValue(it.heap, t, v, false))
	return Word{}, nil
}

// renderValue is the shared formatter behind to_string/to_pretty_string/
// print. pretty adds newline-and-indent layout to nested collections.
func renderValue(h *Heap, t TypeID, w Word, pretty bool) string {
	var b strings.Builder
	writeValue(&b, h, t, w, pretty, 0)
	return b.String()
}

func writeValue(b *strings.Builder, h *Heap, t TypeID, w Word, pretty bool, depth int) {
	peeked := h.interner.Peek(t)
	switch h.interner.GetNode(peeked).Kind {
	case KindBool:
		if w.Bool() {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindInt:
		b.WriteString(strconv.FormatInt(w.Int(), 10))
	case KindDouble:
		b.WriteString(strconv.FormatFloat(w.Float(), 'g', -1, 64))
	case KindString:
		b.WriteString(stringOf(w).String())
	case KindTypeID:
		b.WriteString(h.interner.TypeName(w.TypeIDValue()))
	case KindVector:
		elem := h.interner.GetVariant(peeked).Elem
		slice := h.vectorSlice(w)
		b.WriteByte('[')
		for i, e := range slice {
			if i > 0 {
				b.WriteByte(',')
			}
			if pretty {
				b.WriteByte('\n')
				indent(b, depth+1)
			}
			writeValue(b, h, elem, e, pretty, depth+1)
		}
		if pretty && len(slice) > 0 {
			b.WriteByte('\n')
			indent(b, depth)
		}
		b.WriteByte(']')
	case KindDict:
		val := h.interner.GetVariant(peeked).Elem
		keys, vals := h.dictKeysAndValues(w)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			if pretty {
				b.WriteByte('\n')
				indent(b, depth+1)
			}
			b.WriteString(k)
			b.WriteByte(':')
			writeValue(b, h, val, vals[i], pretty, depth+1)
		}
		if pretty && len(keys) > 0 {
			b.WriteByte('\n')
			indent(b, depth)
		}
		b.WriteByte('}')
	case KindStruct:
		s := structOf(w)
		b.WriteByte('{')
		for i, f := range s.Fields {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, h, s.Layout.Elems[i], f, pretty, depth+1)
		}
		b.WriteByte('}')
	case KindJSON:
		b.WriteString(generateJSONScript(jsonOf(w)))
	default:
		typeMismatch("to_string: unsupported kind %v", h.interner.GetNode(peeked).Kind)
	}
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
}
