package vm

import (
	"sort"

	"github.com/cespare/xxhash/v2"
)

// HamtDict is a real Bagwell hash-array-mapped trie keyed by a hash of the
// string key: internal nodes are indexed 5 bits at a time; a node starts as
// a leaf bucket (a small linear-scan list) and only splits into a 32-way
// subnode once two *different* keys land in the same bucket before the max
// depth is reached. Past hdMaxDepth, residual "collisions" (or exhausted
// hash bits) are resolved by exact key comparison within the bucket, which
// keeps every operation correct regardless of hash quality.
type HamtDict struct {
	val  TypeID
	cnt  int
	root *hdNode
}

type hdNode struct {
	kids    []*hdNode   // non-nil for internal nodes
	entries []dictEntry // non-nil (possibly empty) for leaf buckets
}

type dictEntry struct {
	key string
	val Word
}

const hdMaxDepth = 6 // 6*5 = 30 of the 32 hash bits get consumed by the trie

func hashKey(key string) uint32 { return uint32(xxhash.Sum64String(key)) }

func emptyHamtDict(val TypeID) *HamtDict {
	return &HamtDict{val: val, root: &hdNode{entries: []dictEntry{}}}
}

func (d *HamtDict) Get(key string) (Word, bool) {
	return hdLookup(d.root, hashKey(key), 0, key)
}

func hdLookup(n *hdNode, h uint32, depth int, key string) (Word, bool) {
	if n == nil {
		return Word{}, false
	}
	if n.kids == nil {
		for _, e := range n.entries {
			if e.key == key {
				return e.val, true
			}
		}
		return Word{}, false
	}
	idx := (h >> uint(depth*hamtBits)) & hamtMask
	if int(idx) >= len(n.kids) {
		return Word{}, false
	}
	return hdLookup(n.kids[idx], h, depth+1, key)
}

func (d *HamtDict) insert(key string, val Word) *HamtDict {
	return &HamtDict{val: d.val, cnt: d.cnt + boolToInt(!d.has(key)), root: hdInsert(d.root, hashKey(key), 0, key, val)}
}

func (d *HamtDict) has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func hdInsert(n *hdNode, h uint32, depth int, key string, val Word) *hdNode {
	if n == nil {
		return &hdNode{entries: []dictEntry{{key, val}}}
	}
	if n.kids == nil {
		for _, e := range n.entries {
			if e.key == key {
				ne := append([]dictEntry(nil), n.entries...)
				for i := range ne {
					if ne[i].key == key {
						ne[i].val = val
					}
				}
				return &hdNode{entries: ne}
			}
		}
		if depth >= hdMaxDepth || len(n.entries) == 0 {
			ne := append(append([]dictEntry(nil), n.entries...), dictEntry{key, val})
			return &hdNode{entries: ne}
		}
		// Split this bucket into a subnode and re-insert everything.
		split := &hdNode{kids: make([]*hdNode, hamtWidth)}
		for _, e := range n.entries {
			eh := hashKey(e.key)
			idx := (eh >> uint(depth*hamtBits)) & hamtMask
			split.kids[idx] = hdInsert(split.kids[idx], eh, depth+1, e.key, e.val)
		}
		idx := (h >> uint(depth*hamtBits)) & hamtMask
		split.kids[idx] = hdInsert(split.kids[idx], h, depth+1, key, val)
		return split
	}
	idx := (h >> uint(depth*hamtBits)) & hamtMask
	kids := append([]*hdNode(nil), n.kids...)
	kids[idx] = hdInsert(kids[idx], h, depth+1, key, val)
	return &hdNode{kids: kids}
}

func (d *HamtDict) erase(key string) *HamtDict {
	if !d.has(key) {
		return d
	}
	return &HamtDict{val: d.val, cnt: d.cnt - 1, root: hdErase(d.root, hashKey(key), 0, key)}
}

func hdErase(n *hdNode, h uint32, depth int, key string) *hdNode {
	if n == nil {
		return n
	}
	if n.kids == nil {
		ne := make([]dictEntry, 0, len(n.entries))
		for _, e := range n.entries {
			if e.key != key {
				ne = append(ne, e)
			}
		}
		return &hdNode{entries: ne}
	}
	idx := (h >> uint(depth*hamtBits)) & hamtMask
	kids := append([]*hdNode(nil), n.kids...)
	kids[idx] = hdErase(kids[idx], h, depth+1, key)
	return &hdNode{kids: kids}
}

func hdAllEntries(n *hdNode) []dictEntry {
	if n == nil {
		return nil
	}
	if n.kids == nil {
		return n.entries
	}
	var out []dictEntry
	for _, k := range n.kids {
		out = append(out, hdAllEntries(k)...)
	}
	return out
}

func hdAllValues(n *hdNode) []Word {
	entries := hdAllEntries(n)
	out := make([]Word, len(entries))
	for i, e := range entries {
		out[i] = e.val
	}
	return out
}

// sortedKeys returns every key in lexicographic order for deterministic
// get_keys/to_string output.
func (d *HamtDict) sortedKeys() []string {
	entries := hdAllEntries(d.root)
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	sort.Strings(keys)
	return keys
}

func (h *Heap) AllocDictHamt(val TypeID, entries map[string]Word) Word {
	hd := emptyHamtDict(val)
	for k, v := range entries {
		hd = hd.insert(k, v)
	}
	h.retainAllElements(val, hdAllValues(hd.root))
	o := h.newObj(h.dictType(val), hd)
	return WordObj(o)
}

func hamtDictOf(w Word) *HamtDict {
	d, ok := w.Obj().payload.(*HamtDict)
	if !ok {
		typeMismatch("expected hamt dict payload, got %T", w.Obj().payload)
	}
	return d
}
