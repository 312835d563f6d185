package hamt64

import "fmt"

// flatLeaf holds exactly one key/value pair.
type flatLeaf struct {
	key Key
	val interface{}
}

func newFlatLeaf(k Key, v interface{}) *flatLeaf {
	return &flatLeaf{key: k, val: v}
}

// Hash60() is required for nodeI
func (l flatLeaf) Hash60() uint64 {
	return l.key.Hash60()
}

func (l flatLeaf) String() string {
	return fmt.Sprintf("flatLeaf{hash60:%s, key:%s, val:%v}", hash60String(l.Hash60()), l.key, l.val)
}

func (l flatLeaf) get(k Key) (interface{}, bool) {
	if l.key.Equals(k) {
		return l.val, true
	}
	return nil, false
}

// put returns a new flatLeaf when k replaces the current key, otherwise a
// collisionLeaf holding both pairs; the bool reports whether a pair was added.
func (l flatLeaf) put(k Key, v interface{}) (leafI, bool) {
	if l.key.Equals(k) {
		// keep the original key object; only the value changes
		return newFlatLeaf(l.key, v), false
	}

	return newCollisionLeaf([]KeyVal{{l.key, l.val}, {k, v}}), true
}

func (l flatLeaf) del(k Key) (leafI, interface{}, bool) {
	if l.key.Equals(k) {
		return nil, l.val, true //deleted entry
	}
	return nil, nil, false //didn't delete
}
