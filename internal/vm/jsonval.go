package vm

// JSONKind discriminates a JSONVal node. Values 1..7 match the original
// Floyd runtime's get_json_type mapping exactly, including true/false as
// distinct kinds (grounded on original_source/FloydSpeak/FloydSpeak/
// host_functions.cpp:host__get_json_type, since spec.md only says "1..7
// per JSON kind" without giving the mapping).
type JSONKind uint8

const (
	JSONKindObject JSONKind = iota + 1
	JSONKindArray
	JSONKindString
	JSONKindNumber
	JSONKindTrue
	JSONKindFalse
	JSONKindNull
)

// JSONField is one key/value pair of a JSON object, order-preserving.
type JSONField struct {
	Key string
	Val *JSONVal
}

// JSONVal is a node in a recursive JSON tree. A Floyd json value is always
// an allocated *JSONVal; spec.md §9's open question ("every JSON value is
// either disallowed or always an allocated object, never a bare null
// pointer") is resolved by never constructing or accepting a nil *JSONVal
// anywhere outside this file — JSONNull() returns a real, kind-tagged node.
//
// The tree is a single-owner, copy-on-write Go structure: unlike
// vectors/dicts/structs, JSON values here carry no per-Word RC bookkeeping
// inside the tree, since only the outer allocation (the JSONVal heap
// object wrapping the root) is ever referenced by a Floyd Word.
type JSONVal struct {
	Kind JSONKind
	Str  string
	Num  float64
	Arr  []*JSONVal
	Obj  []JSONField
}

func JSONNull() *JSONVal            { return &JSONVal{Kind: JSONKindNull} }
func JSONBoolVal(b bool) *JSONVal {
	if b {
		return &JSONVal{Kind: JSONKindTrue}
	}
	return &JSONVal{Kind: JSONKindFalse}
}
func JSONNumberVal(n float64) *JSONVal  { return &JSONVal{Kind: JSONKindNumber, Num: n} }
func JSONStringVal(s string) *JSONVal   { return &JSONVal{Kind: JSONKindString, Str: s} }
func JSONArrayVal(items []*JSONVal) *JSONVal {
	return &JSONVal{Kind: JSONKindArray, Arr: append([]*JSONVal(nil), items...)}
}
func JSONObjectVal(fields []JSONField) *JSONVal {
	return &JSONVal{Kind: JSONKindObject, Obj: append([]JSONField(nil), fields...)}
}

// GetTypeInt returns the 1..7 value get_json_type exposes to Floyd code.
func (j *JSONVal) GetTypeInt() int { return int(j.Kind) }

func (j *JSONVal) IsTrue() bool  { return j.Kind == JSONKindTrue }
func (j *JSONVal) IsFalse() bool { return j.Kind == JSONKindFalse }
func (j *JSONVal) IsBool() bool  { return j.IsTrue() || j.IsFalse() }
func (j *JSONVal) Bool() bool    { return j.IsTrue() }

func (j *JSONVal) field(key string) (*JSONVal, bool) {
	for _, f := range j.Obj {
		if f.Key == key {
			return f.Val, true
		}
	}
	return nil, false
}

// deepClone returns a structurally independent copy, used by any intrinsic
// that "updates" a JSON tree (copy-on-write at the allocation level).
func (j *JSONVal) deepClone() *JSONVal {
	cp := &JSONVal{Kind: j.Kind, Str: j.Str, Num: j.Num}
	if j.Arr != nil {
		cp.Arr = make([]*JSONVal, len(j.Arr))
		for i, e := range j.Arr {
			cp.Arr[i] = e.deepClone()
		}
	}
	if j.Obj != nil {
		cp.Obj = make([]JSONField, len(j.Obj))
		for i, f := range j.Obj {
			cp.Obj[i] = JSONField{Key: f.Key, Val: f.Val.deepClone()}
		}
	}
	return cp
}

func (h *Heap) AllocJSON(tree *JSONVal) Word {
	if tree == nil {
		tree = JSONNull()
	}
	o := h.newObj(h.interner.IDJSON, &JSONVal{})
	// Store directly: JSONVal itself is the payload, not a wrapper, so
	// copy tree's fields into the freshly allocated node in place.
	jv := o.payload.(*JSONVal)
	*jv = *tree
	return WordObj(o)
}

func jsonOf(w Word) *JSONVal {
	j, ok := w.Obj().payload.(*JSONVal)
	if !ok {
		typeMismatch("expected json payload, got %T", w.Obj().payload)
	}
	return j
}
