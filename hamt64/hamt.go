/*
Package hamt64 implements a functional Hash Array Mapped Trie (HAMT).
It is called hamt64 because this package is using 64 nodes for each level of
the Trie. The term functional is used to imply immutable and persistent: Put()
and Del() return a new Hamt and leave the receiver untouched, sharing every
table that did not change. Copying a Hamt value is therefore O(1).

The 60bits of hash are separated into ten 6bit values that constitute the hash
path of any Key in this Trie. Only as many levels as are needed to find a
unique location for a leaf are used.

If all ten levels of the Trie are used for two or more key/val pairs then a
special collision leaf is used to store those key/val pairs, at the tenth
level of the Trie.
*/
package hamt64

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Lgr receives debug output, e.g. full 60bit hash collisions. It discards
// everything until replaced.
var Lgr = zap.NewNop()

// Nbits constant is the number of bits(6) a 60bit hash value is split into,
// to provide the indexes of a HAMT.
const Nbits uint = 6

// MaxDepth constant is the maximum depth(9) of Nbits values that constitute
// the path in a HAMT, from [0..MaxDepth] for a total of MaxDepth+1(10) levels.
// Nbits*(MaxDepth+1) == HASHBITS (ie 6*(9+1) == 60).
const MaxDepth uint = 9

// TableCapacity constant is the number of table entries in a each node of
// a HAMT datastructure; its value is 1<<Nbits (ie 2^6 == 64).
const TableCapacity uint = 1 << Nbits

func hashPathMask(depth uint) uint64 {
	return uint64(1<<((depth)*Nbits)) - 1
}

// Create a string of the form "/%02d/%02d..." to describe a hashPath of
// a given depth.
func hashPathString(hashPath uint64, depth uint) string {
	if depth == 0 {
		return "/"
	}
	var strs = make([]string, depth)

	for d := uint(0); d < depth; d++ {
		strs[d] = fmt.Sprintf("%02d", index(hashPath, d))
	}

	return "/" + strings.Join(strs, "/")
}

func hash60String(h60 uint64) string {
	return hashPathString(h60, MaxDepth+1)
}

// indexMask() generates a Nbits(6-bit) mask for a given depth
func indexMask(depth uint) uint64 {
	return uint64(uint8(1<<Nbits)-1) << (depth * Nbits)
}

// index() calculates a Nbits(6-bit) integer based on the hash and depth
func index(h60 uint64, depth uint) uint {
	return uint((h60 & indexMask(depth)) >> (depth * Nbits))
}

func buildHashPath(hashPath uint64, idx, depth uint) uint64 {
	return hashPath | uint64(idx)<<(depth*Nbits)
}

// Configuration constants to be passed to `hamt64.New(int) *Hamt`.
const (
	// HybridTables indicates the structure should use compressedTable
	// initially, then upgrade to fullTable when appropriate.
	HybridTables = iota //0
	// CompTablesOnly indicates the structure should use compressedTables ONLY.
	CompTablesOnly //1
	// FullTablesOnly indicates the structure should use fullTables ONLY.
	FullTablesOnly //2
)

// TableOptionName maps HybridTables, CompTablesOnly and FullTablesOnly to
// their names.
var TableOptionName = map[int]string{
	HybridTables:   "HybridTables",
	CompTablesOnly: "CompTablesOnly",
	FullTablesOnly: "FullTablesOnly",
}

// UpgradeThreshold: when a compressedTable meets or exceeds this number of
// entries it is upgraded to a fullTable. Only applies to HybridTables.
var UpgradeThreshold = TableCapacity / 2

// DowngradeThreshold: when a fullTable drops below this number of entries it
// is downgraded to a compressedTable. Only applies to HybridTables.
var DowngradeThreshold = TableCapacity / 4

// Hamt is a persistent hash map. The zero value is an empty Hamt using
// compressed tables only.
type Hamt struct {
	root            tableI
	nentries        uint
	grade, fullinit bool
}

// New creates a new empty Hamt with the table option set to either:
//
// `hamt64.HybridTables`:
// Initially start out with compressedTable, but when the table is half full
// upgrade to fullTable. If a fullTable shrinks below DowngradeThreshold
// entries downgrade to compressedTable.
//
// `hamt64.CompTablesOnly`:
// Use compressedTable ONLY. This uses the least amount of space.
//
// `hamt64.FullTablesOnly`:
// Only use fullTable.
func New(opt int) *Hamt {
	switch opt {
	case CompTablesOnly:
		return &Hamt{}
	case FullTablesOnly:
		return &Hamt{fullinit: true}
	default:
		return &Hamt{grade: true}
	}
}

func (h Hamt) IsEmpty() bool {
	return h.root == nil && h.nentries == 0
}

// Len returns the number of key/val pairs stored.
func (h Hamt) Len() int {
	return int(h.nentries)
}

func (h Hamt) newRootTable(leaf leafI) tableI {
	if h.fullinit {
		return newRootFullTable(h.grade, leaf)
	}
	return newRootCompressedTable(h.grade, leaf)
}

func (h Hamt) newTable(depth uint, leaf1 leafI, k Key, v interface{}) tableI {
	var leaf2 = newFlatLeaf(k, v)

	if h.fullinit {
		return newFullTable(h.grade, depth, leaf1, leaf2)
	}
	return newCompressedTable(h.grade, depth, leaf1, leaf2)
}

// copyUp is ONLY called on a fresh copy of the current Hamt. Hence, modifying
// it is allowed.
func (h *Hamt) copyUp(oldTable, newTable tableI, path pathT) {
	if path.isEmpty() {
		h.root = newTable
		return
	}

	var parentDepth = uint(len(path)) - 1

	var oldParent = path.pop()

	var parentIdx = index(oldTable.Hash60(), parentDepth)
	var newParent tableI
	if newTable == nil {
		newParent = oldParent.remove(parentIdx)
	} else {
		newParent = oldParent.replace(parentIdx, newTable)
	}

	h.copyUp(oldParent, newParent, path) //recurses at most MaxDepth times
}

// Get(k) retrieves the value for a given key from the Hamt. The bool
// represents whether the key was found.
func (h Hamt) Get(k Key) (interface{}, bool) {
	if h.IsEmpty() {
		return nil, false
	}

	var h60 = k.Hash60()
	var curTable = h.root

	for depth := uint(0); depth <= MaxDepth; depth++ {
		var curNode = curTable.get(index(h60, depth))

		if curNode == nil {
			break
		}

		if leaf, ok := curNode.(leafI); ok {
			if leaf.Hash60() == h60 {
				return leaf.get(k)
			}
			return nil, false
		}

		//else curNode MUST BE A tableI
		curTable = curNode.(tableI)
	}

	return nil, false
}

// Put new key/val pair into Hamt, returning a new persistent Hamt and a bool
// indicating if the key/val pair was added(true) or merely updated(false).
// On update the original Key object is kept.
func (h Hamt) Put(k Key, v interface{}) (Hamt, bool) {
	var nh = h

	if h.IsEmpty() {
		nh.root = h.newRootTable(newFlatLeaf(k, v))
		nh.nentries = 1
		return nh, true
	}

	var h60 = k.Hash60()
	var newTable tableI
	var added bool

	// for-loop state is path, curTable and depth.
	var path = newPathT()
	var curTable = h.root

	for depth := uint(0); depth <= MaxDepth; depth++ {
		var idx = index(h60, depth)
		var curNode = curTable.get(idx)

		if curNode == nil {
			newTable = curTable.insert(idx, newFlatLeaf(k, v))
			added = true
			break
		}

		if curLeaf, isLeaf := curNode.(leafI); isLeaf {
			if curLeaf.Hash60() == h60 {
				var newLeaf leafI
				newLeaf, added = curLeaf.put(k, v)
				if added {
					Lgr.Debug("hash60 collision",
						zap.Stringer("orig", curLeaf),
						zap.Stringer("key", k),
						zap.String("h60", hash60String(h60)))
				}
				newTable = curTable.replace(idx, newLeaf)
				break
			}

			// depth < MaxDepth here: two different 60bit hashes must
			// differ in at least one 6bit index.
			newTable = curTable.replace(idx, h.newTable(depth+1, curLeaf, k, v))
			added = true
			break
		}

		path.push(curTable)
		curTable = curNode.(tableI)
	}

	if added {
		nh.nentries++
	}
	nh.copyUp(curTable, newTable, path)

	return nh, added
}

// Del(k) returns a new Hamt, the value deleted, and a boolean that specifies
// whether or not the key was deleted (eg it didn't exist to start with).
// When nothing was deleted the returned Hamt is the receiver.
func (h Hamt) Del(k Key) (Hamt, interface{}, bool) {
	if h.IsEmpty() {
		return h, nil, false
	}

	var h60 = k.Hash60()
	var newTable tableI
	var val interface{}

	// for-loop state is path, curTable, and depth.
	var path = newPathT()
	var curTable = h.root

	for depth := uint(0); depth <= MaxDepth; depth++ {
		var idx = index(h60, depth)
		var curNode = curTable.get(idx)

		if curNode == nil {
			return h, nil, false
		}

		if curLeaf, ok := curNode.(leafI); ok {
			var newLeaf leafI
			var deleted bool
			newLeaf, val, deleted = curLeaf.del(k)

			if !deleted {
				return h, nil, false
			}

			if newLeaf == nil {
				newTable = curTable.remove(idx)
			} else {
				newTable = curTable.replace(idx, newLeaf)
			}

			break
		}

		path.push(curTable)
		curTable = curNode.(tableI)
	}

	var nh = h
	nh.nentries--
	nh.copyUp(curTable, newTable, path)

	return nh, val, true
}

func (h Hamt) String() string {
	return fmt.Sprintf("Hamt{ nentries: %d, root: %s }", h.nentries, h.root)
}

func (h Hamt) LongString(indent string) string {
	if h.root == nil {
		return indent + fmt.Sprintf("Hamt{ nentries: %d, root: nil }", h.nentries)
	}
	var str = indent + fmt.Sprintf("Hamt{ nentries: %d, root:\n", h.nentries)
	str += h.root.LongString(indent, 0) + "\n"
	str += indent + "}"
	return str
}
