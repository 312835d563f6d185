package hamt64

import (
	"fmt"
	"hash/fnv"
)

// Key is the interface a key must satisfy to be stored in a Hamt.
//
// Hash60() MUST be stable for the lifetime of the key and MUST agree with
// Equals(); two keys that are Equals() MUST have the same Hash60().
type Key interface {
	Equals(Key) bool
	Hash60() uint64
	String() string
}

// KeyVal is a key/value pair as stored in a leaf.
type KeyVal struct {
	Key Key
	Val interface{}
}

func (kv KeyVal) String() string {
	return fmt.Sprintf("KeyVal{%s, %v}", kv.Key, kv.Val)
}

const mask60 = 1<<60 - 1

// Hash60 calculates a 60bit hash from an arbitrary list of bytes. It uses the
// FNV1 hashing algorithm and xor-folds the top 4 bits into the lower 60 bits.
//
//	https://golang.org/pkg/hash/fnv/
//	http://www.isthe.com/chongo/tech/comp/fnv/index.html#xor-fold
func Hash60(bs []byte) uint64 {
	var h = fnv.New64()
	h.Write(bs)
	var h64 = h.Sum64()
	return (h64 >> 60) ^ (h64 & mask60)
}
