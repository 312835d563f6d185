package hamt64

import (
	"fmt"
	"strings"
)

// collisionLeaf holds two or more key/value pairs whose keys share the same
// 60bit hash.
type collisionLeaf struct {
	kvs []KeyVal
}

func newCollisionLeaf(kvs []KeyVal) *collisionLeaf {
	leaf := new(collisionLeaf)
	leaf.kvs = append(leaf.kvs, kvs...)

	return leaf
}

func (l collisionLeaf) Hash60() uint64 {
	return l.kvs[0].Key.Hash60()
}

func (l collisionLeaf) String() string {
	var kvstrs = make([]string, len(l.kvs))
	for i := 0; i < len(l.kvs); i++ {
		kvstrs[i] = l.kvs[i].String()
	}

	return fmt.Sprintf("collisionLeaf{hash60:%s, kvs:[%s]}",
		hash60String(l.Hash60()), strings.Join(kvstrs, ","))
}

func (l collisionLeaf) get(k Key) (interface{}, bool) {
	for _, kv := range l.kvs {
		if kv.Key.Equals(k) {
			return kv.Val, true
		}
	}
	return nil, false
}

func (l collisionLeaf) copy() *collisionLeaf {
	// keep the KeyVal contents, only this slice is new
	return newCollisionLeaf(l.kvs)
}

// put inserts a new key/val pair into the leaf node, and returns a new leaf
// and a bool representing if the new leaf accumulated a key/val pair.
func (l collisionLeaf) put(k Key, v interface{}) (leafI, bool) {
	var nl = l.copy()

	for i, kv := range l.kvs {
		if kv.Key.Equals(k) {
			// new KeyVal container, keep the old Key object.
			nl.kvs[i] = KeyVal{kv.Key, v}
			return nl, false
		}
	}

	nl.kvs = append(nl.kvs, KeyVal{k, v})
	return nl, true
}

// del searches the current list of KeyVal pairs; if k is found the matching
// pair is removed and the new leafI, the removed value and true are returned.
// A collisionLeaf reduced to one pair becomes a flatLeaf.
func (l collisionLeaf) del(k Key) (leafI, interface{}, bool) {
	for i, kv := range l.kvs {
		if !kv.Key.Equals(k) {
			continue
		}

		if len(l.kvs) == 2 {
			var other = l.kvs[1-i]
			return newFlatLeaf(other.Key, other.Val), kv.Val, true
		}

		var nl = l.copy()
		nl.kvs = append(nl.kvs[:i], nl.kvs[i+1:]...)

		return nl, kv.Val, true
	}

	return nil, nil, false
}
