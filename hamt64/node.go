package hamt64

// nodeI is the interface for every entry in a table; so table entries are
// either a leaf or a table or nil.
//
// The Hash60() method for leaf structs is the 60 bits of the keys hash.
//
// The Hash60() method for table structs is the depth*Nbits of the hash path
// that leads to the table's position in the Trie.
//
// For collisionLeafs Hash60() is the definition of what a collision is.
type nodeI interface {
	Hash60() uint64
	String() string
}

// Every leafI is a nodeI
type leafI interface {
	nodeI
	get(k Key) (interface{}, bool)
	put(k Key, v interface{}) (leafI, bool) //bool == added? key/val pair
	del(k Key) (leafI, interface{}, bool)   //bool == deleted? key
}

// Every tableI is a nodeI.
type tableI interface {
	nodeI

	LongString(indent string, depth uint) string

	nentries() uint // get the number of nodeI entries

	// Get an Ordered list of index and node pairs. This slice MUST BE Ordered
	// from lowest index to highest.
	entries() []tableEntry

	get(idx uint) nodeI

	insert(idx uint, entry nodeI) tableI
	replace(idx uint, entry nodeI) tableI
	remove(idx uint) tableI
}

type tableEntry struct {
	idx  uint
	node nodeI
}
