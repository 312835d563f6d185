package keystore

// Cursor walks a snapshot of a KeyStore's keys and values. It does not see
// changes made to the KeyStore after it was created.
//
//	c := ks.Cursor()
//	for c.Advance(); c.Valid(); c.Advance() {
//		fmt.Println(c.Key(), c.Value())
//	}
type Cursor struct {
	keys   []any
	values []any
	pos    int
}

// NewCursor returns an unstarted Cursor over ks.
func NewCursor(ks *KeyStore) *Cursor {
	return &Cursor{keys: ks.Keys(), values: ks.Values(), pos: -1}
}

// Restart moves the cursor back before the first element.
func (c *Cursor) Restart() {
	c.pos = -1
}

// Advance moves to the next element. Once past the last element it stays
// there.
func (c *Cursor) Advance() {
	if c.pos < len(c.keys) {
		c.pos++
	}
}

// Valid reports whether the cursor is positioned on an element.
func (c *Cursor) Valid() bool {
	return c.pos >= 0 && c.pos < len(c.keys)
}

// Key returns the current key, or nil when not Valid().
func (c *Cursor) Key() any {
	if !c.Valid() {
		return nil
	}
	return c.keys[c.pos]
}

// Value returns the current value, or nil when not Valid().
func (c *Cursor) Value() any {
	if !c.Valid() {
		return nil
	}
	return c.values[c.pos]
}

// Len returns the number of elements in the snapshot.
func (c *Cursor) Len() int {
	return len(c.keys)
}
