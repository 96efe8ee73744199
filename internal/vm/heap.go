package vm

import (
	"sync"

	"github.com/google/uuid"
)

const heapObjMagic = 0xF10FDBEEFCAFE001

// VectorBackend selects the vector implementation a loaded program uses.
// The choice is global per program, not per type (§9).
type VectorBackend uint8

const (
	VectorBackendHAMT VectorBackend = iota
	VectorBackendCArray
)

// DictBackend selects the dict implementation a loaded program uses.
type DictBackend uint8

const (
	DictBackendHAMT DictBackend = iota
	DictBackendCppMap
)

// Config selects collection backends and debug behavior for one loaded
// program (§4.2 "config_t").
type Config struct {
	VectorBackend VectorBackend
	DictBackend   DictBackend
	Trace         bool // keep the allocation-trace side table populated
}

// DefaultConfig matches the spec's stated default: "HAMT as the default
// for persistence and structural sharing" (§9).
func DefaultConfig() Config {
	return Config{VectorBackend: VectorBackendHAMT, DictBackend: DictBackendHAMT}
}

// HeapObj is the common header every heap allocation shares (§3.2).
type HeapObj struct {
	magic   uint64
	rc      uint32
	allocID uint64
	typ     TypeID
	payload any // *ByteArray | *CArrayVector | *HamtVector | *CppMapDict | *HamtDict | *StructVal | *JSONVal
}

func (o *HeapObj) Type() TypeID { return o.typ }
func (o *HeapObj) RC() uint32   { return o.rc }

// AllocRecord is one row of a Heap.Trace() snapshot.
type AllocRecord struct {
	SnapshotID string
	AllocID    uint64
	RC         uint32
	Type       TypeID
	Summary    string
}

// Heap owns every allocation made while running one loaded Program: the RC
// discipline, the collection-backend choice, and (optionally) the
// allocation-trace side table (§4.2, §9 "Allocation tracing"). It is not
// thread-safe on the hot path — only allocSeq and the trace table are
// guarded, matching §5: "an optional debug mutex guards the
// allocation-recording side table."
type Heap struct {
	interner *Interner
	config   Config

	mu       sync.Mutex
	allocSeq uint64
	trace    map[uint64]*HeapObj
}

func NewHeap(interner *Interner, cfg Config) *Heap {
	h := &Heap{interner: interner, config: cfg}
	if cfg.Trace {
		h.trace = make(map[uint64]*HeapObj)
	}
	return h
}

func (h *Heap) nextAllocID() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allocSeq++
	return h.allocSeq
}

func (h *Heap) recordAlloc(o *HeapObj) {
	if h.trace == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trace[o.allocID] = o
}

func (h *Heap) forgetAlloc(o *HeapObj) {
	if h.trace == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.trace, o.allocID)
}

func (h *Heap) newObj(typ TypeID, payload any) *HeapObj {
	o := &HeapObj{magic: heapObjMagic, rc: 1, allocID: h.nextAllocID(), typ: typ, payload: payload}
	h.recordAlloc(o)
	return o
}

// Retain increments an RC-bearing value's reference count. It is a no-op
// for inline (non-RC) types.
func (h *Heap) Retain(w Word, t TypeID) {
	if !h.interner.IsRCBearing(t) || w.IsNilObj() {
		return
	}
	o := w.obj
	if o.magic != heapObjMagic {
		fatalf("retain: corrupt heap object header")
	}
	o.rc++
}

// Release decrements an RC-bearing value's reference count, disposing it
// (and recursively releasing its children) when the count reaches zero. It
// is a no-op for inline types.
func (h *Heap) Release(w Word, t TypeID) {
	if !h.interner.IsRCBearing(t) || w.IsNilObj() {
		return
	}
	o := w.obj
	if o.magic != heapObjMagic {
		fatalf("release: corrupt heap object header")
	}
	if o.rc == 0 {
		fatalf("release: rc already zero for alloc #%d", o.allocID)
	}
	o.rc--
	if o.rc == 0 {
		h.dispose(o)
	}
}

// ReleaseObj releases w unconditionally if it carries a heap allocation,
// without consulting a static TypeID. Used where the caller only has an
// RC-bearing/not-RC-bearing bit to go on (the Popn opcode's ext bitmap),
// not a full static type, since every HeapObj is self-describing enough to
// dispose itself correctly via the payload type switch in dispose.
func (h *Heap) ReleaseObj(w Word) {
	if w.IsNilObj() {
		return
	}
	o := w.obj
	if o.magic != heapObjMagic {
		fatalf("release: corrupt heap object header")
	}
	if o.rc == 0 {
		fatalf("release: rc already zero for alloc #%d", o.allocID)
	}
	o.rc--
	if o.rc == 0 {
		h.dispose(o)
	}
}

func (h *Heap) dispose(o *HeapObj) {
	switch p := o.payload.(type) {
	case *ByteArray:
		// strings own no RC-bearing children
	case *CArrayVector:
		h.releaseAllElements(p.Elem, p.Data)
	case *HamtVector:
		h.releaseAllElements(p.elem, p.ToSlice())
	case *CppMapDict:
		h.releaseAllElements(p.val, mapValues(p.m))
	case *HamtDict:
		h.releaseAllElements(p.val, hdAllValues(p.root))
	case *StructVal:
		for i, w := range p.Fields {
			h.Release(w, p.Layout.Elems[i])
		}
	case *JSONVal:
		// JSON trees own no Word-level RC children: the whole tree is a
		// single-owner, copy-on-write Go structure (§3.2 JSON row).
	default:
		fatalf("dispose: unknown payload type %T", p)
	}
	h.forgetAlloc(o)
	o.magic = 0 // poison: a further retain/release on this object is fatal
}

// retainAllElements / releaseAllElements implement the RC policy spec.md §9
// sanctions for persistent collections: "the backend retains every element
// of the resulting collection on creation, and releases every element on
// disposal; sharing is observed at the node level of the HAMT, not at the
// leaf level." This double-counts RC across structurally shared nodes but
// is correct and avoids needing per-node RC headers.
func (h *Heap) retainAllElements(elemType TypeID, words []Word) {
	if !h.interner.IsRCBearing(elemType) {
		return
	}
	for _, w := range words {
		h.Retain(w, elemType)
	}
}

func (h *Heap) releaseAllElements(elemType TypeID, words []Word) {
	if !h.interner.IsRCBearing(elemType) {
		return
	}
	for _, w := range words {
		h.Release(w, elemType)
	}
}

// LiveCount returns the number of currently tracked live allocations.
// Requires Config.Trace.
func (h *Heap) LiveCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.trace)
}

// Trace returns a snapshot of every live allocation, tagged with a fresh
// snapshot id (§9 "Allocation tracing / leak detector"). Requires
// Config.Trace; returns nil otherwise.
func (h *Heap) Trace() []AllocRecord {
	if h.trace == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	snap := uuid.NewString()
	out := make([]AllocRecord, 0, len(h.trace))
	for _, o := range h.trace {
		out = append(out, AllocRecord{
			SnapshotID: snap,
			AllocID:    o.allocID,
			RC:         o.rc,
			Type:       o.typ,
			Summary:    h.summarize(o),
		})
	}
	return out
}

func (h *Heap) summarize(o *HeapObj) string {
	switch p := o.payload.(type) {
	case *ByteArray:
		return "string(" + p.String() + ")"
	case *CArrayVector:
		return "vector-carray(len=" + itoa(len(p.Data)) + ")"
	case *HamtVector:
		return "vector-hamt(len=" + itoa(p.cnt) + ")"
	case *CppMapDict:
		return "dict-cppmap(len=" + itoa(len(p.m)) + ")"
	case *HamtDict:
		return "dict-hamt(len=" + itoa(p.cnt) + ")"
	case *StructVal:
		return "struct(" + h.interner.TypeName(o.typ) + ")"
	case *JSONVal:
		return "json"
	default:
		return "?"
	}
}

func itoa(n int) string {
	// Tiny local helper so heap.go doesn't need strconv just for this.
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
