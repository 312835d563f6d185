package hamt64

import (
	"fmt"
	"math/bits"
	"strings"

	"go.uber.org/zap"
)

// The compressedTable is a low memory usage version of a fullTable. It
// records which table entries are populated using a bit map called nodeMap,
// and stores only the populated nodes in a slice ordered from the Least
// Significant Bit of the nodeMap upward.
//
// The slot of a node for table index idx is the number of bits set in the
// nodeMap below the idx'th bit (the Hamming Weight of nodeMap&(1<<idx-1)).
type compressedTable struct {
	hashPath uint64 // depth*Nbits of hash to get to this location in the Trie
	nodeMap  uint64
	nodes    []nodeI
	grade    bool
}

func newRootCompressedTable(grade bool, lf leafI) tableI {
	var idx = index(lf.Hash60(), 0)

	var ct = new(compressedTable)
	ct.grade = grade
	ct.nodeMap = 1 << idx
	ct.nodes = []nodeI{lf}

	return ct
}

// newCompressedTable builds the chain of tables, starting at depth, needed to
// separate leaf1 and leaf2. The caller guarantees their Hash60() differ.
func newCompressedTable(grade bool, depth uint, leaf1 leafI, leaf2 *flatLeaf) tableI {
	var retTable = new(compressedTable)
	retTable.grade = grade
	retTable.hashPath = leaf1.Hash60() & hashPathMask(depth)

	var curTable = retTable
	var hashPath = retTable.hashPath
	for d := depth; d <= MaxDepth; d++ {
		var idx1 = index(leaf1.Hash60(), d)
		var idx2 = index(leaf2.Hash60(), d)

		if idx1 != idx2 {
			curTable.nodeMap |= 1 << idx1
			curTable.nodeMap |= 1 << idx2
			if idx1 < idx2 {
				curTable.nodes = []nodeI{leaf1, leaf2}
			} else {
				curTable.nodes = []nodeI{leaf2, leaf1}
			}

			return retTable
		}

		if d == MaxDepth {
			break
		}

		hashPath = buildHashPath(hashPath, idx1, d)

		var newTable = new(compressedTable)
		newTable.grade = grade
		newTable.hashPath = hashPath

		curTable.nodeMap = 1 << idx1
		curTable.nodes = []nodeI{newTable}

		curTable = newTable
	}

	// Only reachable if leaf1.Hash60() == leaf2.Hash60(), which Hamt.Put()
	// rules out before calling.
	Lgr.DPanic("newCompressedTable: leaves share a hash60",
		zap.String("leaf1", leaf1.String()), zap.String("leaf2", leaf2.String()))

	var newLeaf, _ = leaf1.put(leaf2.key, leaf2.val)
	curTable.nodeMap = 1 << index(leaf1.Hash60(), MaxDepth)
	curTable.nodes = []nodeI{newLeaf}

	return retTable
}

// downgradeToCompressedTable() converts fullTable structs that have less than
// DowngradeThreshold tableEntry's. The ents slice is ordered from lowest idx to
// highest, as tableI.entries() guarantees.
func downgradeToCompressedTable(hashPath uint64, ents []tableEntry) *compressedTable {
	var nt = new(compressedTable)
	nt.grade = true
	nt.hashPath = hashPath
	nt.nodes = make([]nodeI, len(ents))

	for i, ent := range ents {
		nt.nodeMap |= uint64(1) << ent.idx
		nt.nodes[i] = ent.node
	}

	return nt
}

func (t compressedTable) Hash60() uint64 {
	return t.hashPath
}

func (t compressedTable) copy() *compressedTable {
	var nt = new(compressedTable)
	nt.grade = t.grade
	nt.hashPath = t.hashPath
	nt.nodeMap = t.nodeMap
	nt.nodes = append(nt.nodes, t.nodes...)
	return nt
}

func nodeMapString(nodeMap uint64) string {
	var strs = make([]string, 7)

	var top4 = nodeMap >> 60
	strs[0] = fmt.Sprintf("%04b", top4)

	const tenBitMask uint64 = 1<<10 - 1
	for i := uint(0); i < 6; i++ {
		tenBitVal := (nodeMap & (tenBitMask << (i * 10))) >> (i * 10)
		strs[6-i] = fmt.Sprintf("%010b", tenBitVal)
	}

	return strings.Join(strs, " ")
}

func (t compressedTable) String() string {
	return fmt.Sprintf("compressedTable{hashPath:%s, nentries()=%d}",
		hash60String(t.hashPath), t.nentries())
}

// LongString() is required for tableI
func (t compressedTable) LongString(indent string, depth uint) string {
	var strs = make([]string, 2+len(t.nodes))

	strs[0] = indent + fmt.Sprintf("compressedTable{hashPath=%s, nentries()=%d, nodeMap=%s,",
		hashPathString(t.hashPath, depth), t.nentries(), nodeMapString(t.nodeMap))

	for i, n := range t.nodes {
		if tn, ok := n.(tableI); ok {
			strs[1+i] = indent + fmt.Sprintf("\tt.nodes[%d]:\n%s", i, tn.LongString(indent+"\t", depth+1))
		} else {
			strs[1+i] = indent + fmt.Sprintf("\tt.nodes[%d]: %s", i, n)
		}
	}

	strs[len(strs)-1] = indent + "}"

	return strings.Join(strs, "\n")
}

func (t compressedTable) nentries() uint {
	return uint(len(t.nodes))
}

// This function MUST return the slice of tableEntry structs from lowest
// tableEntry.idx to highest tableEntry.idx .
func (t compressedTable) entries() []tableEntry {
	var ents = make([]tableEntry, 0, len(t.nodes))

	for i, j := uint(0), 0; i < TableCapacity; i++ {
		if t.nodeMap&(uint64(1)<<i) > 0 {
			ents = append(ents, tableEntry{i, t.nodes[j]})
			j++
		}
	}

	return ents
}

// slot returns the position in t.nodes for table index idx.
func (t compressedTable) slot(idx uint) int {
	var bitMask = uint64(1)<<idx - 1
	return bits.OnesCount64(t.nodeMap & bitMask)
}

func (t compressedTable) get(idx uint) nodeI {
	if t.nodeMap&(uint64(1)<<idx) == 0 {
		return nil
	}

	return t.nodes[t.slot(idx)]
}

func (t compressedTable) insert(idx uint, entry nodeI) tableI {
	// t.nodeMap & 1<<idx == 0
	var i = t.slot(idx)

	var nt = t.copy()
	nt.nodeMap |= uint64(1) << idx
	nt.nodes = append(nt.nodes[:i], append([]nodeI{entry}, nt.nodes[i:]...)...)

	if t.grade && uint(len(nt.nodes)) >= UpgradeThreshold {
		return upgradeToFullTable(nt.hashPath, nt.entries())
	}

	return nt
}

func (t compressedTable) replace(idx uint, entry nodeI) tableI {
	// t.nodeMap & 1<<idx > 0
	var nt = t.copy()
	nt.nodes[t.slot(idx)] = entry

	return nt
}

func (t compressedTable) remove(idx uint) tableI {
	// t.nodeMap & 1<<idx > 0
	var i = t.slot(idx)

	var nt = t.copy()
	nt.nodeMap &^= uint64(1) << idx
	nt.nodes = append(nt.nodes[:i], nt.nodes[i+1:]...)

	if nt.nodeMap == 0 {
		return nil
	}

	return nt
}
