package hamt64

import "strings"

// pathT is the stack of tables walked from the root down to the table being
// modified; copyUp() unwinds it to rebuild the persistent spine.
type pathT []tableI

func newPathT() pathT {
	return pathT(make([]tableI, 0, MaxDepth))
}

// pop returns & removes the last entry inserted with push().
func (path *pathT) pop() tableI {
	if len(*path) == 0 {
		return nil
	}
	parent := (*path)[len(*path)-1]
	*path = (*path)[:len(*path)-1]
	return parent
}

// You should never push nil, but we are not checking to prevent this.
func (path *pathT) push(node tableI) {
	*path = append(*path, node)
}

func (path pathT) isEmpty() bool {
	return len(path) == 0
}

// Only good for debug messages.
func (path pathT) String() string {
	strs := make([]string, len(path))
	var indent = ""
	for i, pv := range path {
		strs[i] = indent + pv.String() + "\n"
		indent += "  "
	}
	return strings.Join(strs, "")
}
