package vm

import (
	"sort"

	"github.com/francoispqt/gojay"
)

func init() {
	Intrinsics["to_json"] = hostToJSON
	Intrinsics["from_json"] = hostFromJSON
	Intrinsics["parse_json_script"] = hostParseJSONScript
	Intrinsics["generate_json_script"] = hostGenerateJSONScript
	Intrinsics["get_json_type"] = hostGetJSONType
}

// hostToJSON implements to_json(v: any) → json (§4.5): builds a JSONVal tree
// mirroring v's shape, following the same Kind switch as FromWord/ToWord.
func hostToJSON(it *Interpreter, args []Word) (Word, error) {
	t, v := dynArg(args, 0)
	tree := valueToJSON(it.heap, t, v)
	return it.heap.AllocJSON(tree), nil
}

func valueToJSON(h *Heap, t TypeID, w Word) *JSONVal {
	peeked := h.interner.Peek(t)
	switch h.interner.GetNode(peeked).Kind {
	case KindBool:
		return JSONBoolVal(w.Bool())
	case KindInt:
		return JSONNumberVal(float64(w.Int()))
	case KindDouble:
		return JSONNumberVal(w.Float())
	case KindString:
		return JSONStringVal(stringOf(w).String())
	case KindJSON:
		return jsonOf(w).deepClone()
	case KindVector:
		elem := h.interner.GetVariant(peeked).Elem
		slice := h.vectorSlice(w)
		items := make([]*JSONVal, len(slice))
		for i, e := range slice {
			items[i] = valueToJSON(h, elem, e)
		}
		return JSONArrayVal(items)
	case KindDict:
		val := h.interner.GetVariant(peeked).Elem
		keys, vals := h.dictKeysAndValues(w)
		fields := make([]JSONField, len(keys))
		for i, k := range keys {
			fields[i] = JSONField{Key: k, Val: valueToJSON(h, val, vals[i])}
		}
		return JSONObjectVal(fields)
	case KindStruct:
		s := structOf(w)
		fields := make([]JSONField, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = JSONField{Key: s.Layout.Names[i], Val: valueToJSON(h, s.Layout.Elems[i], f)}
		}
		return JSONObjectVal(fields)
	default:
		typeMismatch("to_json: unsupported kind %v", h.interner.GetNode(peeked).Kind)
		return nil
	}
}

// hostFromJSON implements from_json(json, type) → v (§4.5): recursive
// schema-directed decoding; a shape mismatch between the json tree and the
// requested type is a RuntimeError, not a panic.
func hostFromJSON(it *Interpreter, args []Word) (Word, error) {
	j := jsonOf(args[0])
	t := args[1].TypeIDValue()
	return jsonToValue(it.heap, t, j)
}

func jsonToValue(h *Heap, t TypeID, j *JSONVal) (Word, error) {
	peeked := h.interner.Peek(t)
	node := h.interner.GetNode(peeked)
	switch node.Kind {
	case KindBool:
		if !j.IsBool() {
			return Word{}, NewRuntimeError("json_schema_mismatch", "from_json: expected bool, got json kind %v", j.Kind)
		}
		return WordBool(j.Bool()), nil
	case KindInt:
		if j.Kind != JSONKindNumber {
			return Word{}, NewRuntimeError("json_schema_mismatch", "from_json: expected number, got json kind %v", j.Kind)
		}
		return WordInt(int64(j.Num)), nil
	case KindDouble:
		if j.Kind != JSONKindNumber {
			return Word{}, NewRuntimeError("json_schema_mismatch", "from_json: expected number, got json kind %v", j.Kind)
		}
		return WordFloat(j.Num), nil
	case KindString:
		if j.Kind != JSONKindString {
			return Word{}, NewRuntimeError("json_schema_mismatch", "from_json: expected string, got json kind %v", j.Kind)
		}
		return h.AllocString([]byte(j.Str)), nil
	case KindJSON:
		return h.AllocJSON(j.deepClone()), nil
	case KindVector:
		if j.Kind != JSONKindArray {
			return Word{}, NewRuntimeError("json_schema_mismatch", "from_json: expected array, got json kind %v", j.Kind)
		}
		elem := h.interner.GetVariant(peeked).Elem
		items := make([]Word, len(j.Arr))
		for i, e := range j.Arr {
			w, err := jsonToValue(h, elem, e)
			if err != nil {
				return Word{}, err
			}
			items[i] = w
		}
		out := h.AllocVector(elem, items)
		h.releaseTemporaries(elem, items)
		return out, nil
	case KindDict:
		if j.Kind != JSONKindObject {
			return Word{}, NewRuntimeError("json_schema_mismatch", "from_json: expected object, got json kind %v", j.Kind)
		}
		val := h.interner.GetVariant(peeked).Elem
		entries := make(map[string]Word, len(j.Obj))
		for _, f := range j.Obj {
			w, err := jsonToValue(h, val, f.Val)
			if err != nil {
				return Word{}, err
			}
			entries[f.Key] = w
		}
		out := h.AllocDict(val, entries)
		for _, w := range entries {
			h.releaseTemporary(val, w)
		}
		return out, nil
	case KindStruct:
		if j.Kind != JSONKindObject {
			return Word{}, NewRuntimeError("json_schema_mismatch", "from_json: expected object for struct, got json kind %v", j.Kind)
		}
		variant := h.interner.GetVariant(peeked)
		layout := &StructLayout{Type: peeked, Elems: variant.FieldTypes, Names: variant.FieldNames}
		fields := make([]Word, len(layout.Names))
		for i, name := range layout.Names {
			fv, ok := j.field(name)
			if !ok {
				return Word{}, NewRuntimeError("json_schema_mismatch", "from_json: struct field %q missing in json object", name)
			}
			w, err := jsonToValue(h, layout.Elems[i], fv)
			if err != nil {
				return Word{}, err
			}
			fields[i] = w
		}
		out := h.AllocStruct(layout, fields)
		for i, w := range fields {
			h.releaseTemporary(layout.Elems[i], w)
		}
		return out, nil
	default:
		typeMismatch("from_json: unsupported destination kind %v", node.Kind)
		return Word{}, nil
	}
}

// hostParseJSONScript implements parse_json_script(string) → json (§4.5),
// using gojay to decode the wire text into the generic tree gojay already
// understands, then adapting that into our *JSONVal shape.
func hostParseJSONScript(it *Interpreter, args []Word) (Word, error) {
	text := stringOf(args[0]).Bytes
	var generic interface{}
	if err := gojay.Unmarshal(text, &generic); err != nil {
		return Word{}, NewRuntimeError("json_parse_error", "parse_json_script: %v", err)
	}
	return it.heap.AllocJSON(interfaceToJSON(generic)), nil
}

// hostGenerateJSONScript implements generate_json_script(json) → string.
func hostGenerateJSONScript(it *Interpreter, args []Word) (Word, error) {
	text := generateJSONScript(jsonOf(args[0]))
	return it.heap.AllocString([]byte(text)), nil
}

// hostGetJSONType implements get_json_type(json) → int, 1..7 (§4.5).
func hostGetJSONType(it *Interpreter, args []Word) (Word, error) {
	return WordInt(int64(jsonOf(args[0]).GetTypeInt())), nil
}

// interfaceToJSON adapts gojay's generic decode result (map[string]interface{},
// []interface{}, string, float64, bool, nil) into a *JSONVal tree.
func interfaceToJSON(v interface{}) *JSONVal {
	switch t := v.(type) {
	case nil:
		return JSONNull()
	case bool:
		return JSONBoolVal(t)
	case float64:
		return JSONNumberVal(t)
	case string:
		return JSONStringVal(t)
	case []interface{}:
		items := make([]*JSONVal, len(t))
		for i, e := range t {
			items[i] = interfaceToJSON(e)
		}
		return JSONArrayVal(items)
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]JSONField, len(keys))
		for i, k := range keys {
			fields[i] = JSONField{Key: k, Val: interfaceToJSON(t[k])}
		}
		return JSONObjectVal(fields)
	default:
		typeMismatch("parse_json_script: unexpected decoded type %T", v)
		return nil
	}
}

// jsonToInterface is the inverse of interfaceToJSON, used to hand a tree to
// gojay for text encoding via generate_json_script.
func jsonToInterface(j *JSONVal) interface{} {
	switch j.Kind {
	case JSONKindNull:
		return nil
	case JSONKindTrue:
		return true
	case JSONKindFalse:
		return false
	case JSONKindNumber:
		return j.Num
	case JSONKindString:
		return j.Str
	case JSONKindArray:
		out := make([]interface{}, len(j.Arr))
		for i, e := range j.Arr {
			out[i] = jsonToInterface(e)
		}
		return out
	case JSONKindObject:
		out := make(map[string]interface{}, len(j.Obj))
		for _, f := range j.Obj {
			out[f.Key] = jsonToInterface(f.Val)
		}
		return out
	default:
		return nil
	}
}

// generateJSONScript renders j as compact wire-format JSON text via gojay;
// to_pretty_string's indentation is handled separately by writeValue, since
// gojay's Marshal has no pretty-print mode of its own.
func generateJSONScript(j *JSONVal) string {
	data, err := gojay.Marshal(jsonToInterface(j))
	if err != nil {
		fatalf("generate_json_script: gojay marshal failed: %v", err)
	}
	return string(data)
}
