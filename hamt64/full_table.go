package hamt64

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// fullTable keeps all TableCapacity slots; get() is a plain array index.
type fullTable struct {
	hashPath uint64 // depth*Nbits of hash to get to this location in the Trie
	numEnts  uint
	nodes    [TableCapacity]nodeI
	grade    bool
}

func newRootFullTable(grade bool, lf leafI) tableI {
	var ft = new(fullTable)
	ft.grade = grade
	ft.numEnts = 1
	ft.nodes[index(lf.Hash60(), 0)] = lf

	return ft
}

// newFullTable builds the chain of tables, starting at depth, needed to
// separate leaf1 and leaf2. The caller guarantees their Hash60() differ.
func newFullTable(grade bool, depth uint, leaf1 leafI, leaf2 *flatLeaf) tableI {
	var retTable = new(fullTable)
	retTable.grade = grade
	retTable.hashPath = leaf1.Hash60() & hashPathMask(depth)

	var curTable = retTable
	var hashPath = retTable.hashPath
	for d := depth; d <= MaxDepth; d++ {
		var idx1 = index(leaf1.Hash60(), d)
		var idx2 = index(leaf2.Hash60(), d)

		if idx1 != idx2 {
			curTable.nodes[idx1] = leaf1
			curTable.nodes[idx2] = leaf2
			curTable.numEnts = 2

			return retTable
		}

		if d == MaxDepth {
			break
		}

		hashPath = buildHashPath(hashPath, idx1, d)

		var newTable = new(fullTable)
		newTable.grade = grade
		newTable.hashPath = hashPath

		curTable.numEnts = 1
		curTable.nodes[idx1] = newTable

		curTable = newTable
	}

	// Only reachable if leaf1.Hash60() == leaf2.Hash60(), which Hamt.Put()
	// rules out before calling.
	Lgr.DPanic("newFullTable: leaves share a hash60",
		zap.String("leaf1", leaf1.String()), zap.String("leaf2", leaf2.String()))

	var newLeaf, _ = leaf1.put(leaf2.key, leaf2.val)
	curTable.numEnts = 1
	curTable.nodes[index(leaf1.Hash60(), MaxDepth)] = newLeaf

	return retTable
}

func upgradeToFullTable(hashPath uint64, tabEnts []tableEntry) tableI {
	var ft = new(fullTable)
	ft.grade = true
	ft.hashPath = hashPath
	ft.numEnts = uint(len(tabEnts))

	for _, ent := range tabEnts {
		ft.nodes[ent.idx] = ent.node
	}

	return ft
}

// Hash60() is required for nodeI
func (t fullTable) Hash60() uint64 {
	return t.hashPath
}

func (t fullTable) copy() *fullTable {
	var nt = new(fullTable)
	*nt = t // nodes is an array, so this copies every slot
	return nt
}

func (t fullTable) String() string {
	return fmt.Sprintf("fullTable{hashPath:%s, nentries()=%d}", hash60String(t.hashPath), t.nentries())
}

// LongString() is required for tableI
func (t fullTable) LongString(indent string, depth uint) string {
	var strs = make([]string, 0, 2+t.numEnts)

	strs = append(strs, indent+fmt.Sprintf("fullTable{hashPath:%s, nentries()=%d,",
		hashPathString(t.hashPath, depth), t.nentries()))

	for i, n := range t.nodes {
		if n == nil {
			continue
		}
		if tn, ok := n.(tableI); ok {
			strs = append(strs, indent+fmt.Sprintf("\tt.nodes[%d]:\n%s", i, tn.LongString(indent+"\t", depth+1)))
		} else {
			strs = append(strs, indent+fmt.Sprintf("\tt.nodes[%d]: %s", i, n))
		}
	}

	strs = append(strs, indent+"}")

	return strings.Join(strs, "\n")
}

func (t fullTable) nentries() uint {
	return t.numEnts
}

// This function MUST return the slice of tableEntry structs from lowest
// tableEntry.idx to highest tableEntry.idx .
func (t fullTable) entries() []tableEntry {
	var ents = make([]tableEntry, 0, t.numEnts)
	for i := uint(0); i < TableCapacity; i++ {
		if t.nodes[i] != nil {
			ents = append(ents, tableEntry{i, t.nodes[i]})
		}
	}
	return ents
}

func (t fullTable) get(idx uint) nodeI {
	return t.nodes[idx]
}

func (t fullTable) insert(idx uint, entry nodeI) tableI {
	// t.nodes[idx] == nil
	var nt = t.copy()
	nt.nodes[idx] = entry
	nt.numEnts++
	return nt
}

func (t fullTable) replace(idx uint, entry nodeI) tableI {
	// t.nodes[idx] != nil
	var nt = t.copy()
	nt.nodes[idx] = entry
	return nt
}

func (t fullTable) remove(idx uint) tableI {
	// t.nodes[idx] != nil
	var nt = t.copy()
	nt.nodes[idx] = nil
	nt.numEnts--

	if nt.numEnts == 0 {
		return nil
	}

	if nt.grade && nt.numEnts < DowngradeThreshold {
		return downgradeToCompressedTable(nt.hashPath, nt.entries())
	}

	return nt
}
