/*
Package keystore implements KeyStore, an insertion-ordered dictionary whose
keys may be any scalar (string, bool, integer, float, nil) or any pointer.

Scalar keys are compared by kind and value, so 1, 1.0, "1" and true are four
distinct keys. Pointer keys are compared by identity: two pointers are the
same key only if they point at the same variable.

Entries live in a persistent hamt64.Hamt keyed by the key's Signature, next
to a slice recording insertion order. GetCopy() therefore costs one slice
copy; the trie is shared until either side writes to it.

A KeyStore is not safe for concurrent mutation.
*/
package keystore

import (
	"iter"
	"slices"

	"github.com/lleo/go-keystore/hamt64"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Pair is one key/value entry.
type Pair struct {
	Key   any
	Value any
}

// entry is what the trie stores under a Signature. Entries are never modified
// in place; Set and Update put a new one.
type entry struct {
	key any
	val any
}

// KeyStore is an insertion-ordered map from arbitrary keys to values. Create
// one with New, FromPairs, FromMapping or Deserialize; the zero value is an
// empty KeyStore with default options.
type KeyStore struct {
	table       hamt64.Hamt
	order       []Signature
	tableOption int
	lgr         *zap.Logger
	codec       *Codec
}

// New returns an empty KeyStore.
func New(opts ...Option) *KeyStore {
	var ks = &KeyStore{
		tableOption: hamt64.HybridTables,
		lgr:         zap.NewNop(),
		codec:       defaultCodec,
	}
	for _, opt := range opts {
		opt(ks)
	}
	ks.table = *hamt64.New(ks.tableOption)
	return ks
}

// init fills in the defaults a zero KeyStore lacks.
func (ks *KeyStore) init() {
	if ks.lgr == nil {
		ks.lgr = zap.NewNop()
	}
	if ks.codec == nil {
		ks.codec = defaultCodec
	}
}

func (ks *KeyStore) lookup(key any) (Signature, entry, bool, error) {
	sig, err := ComputeSignature(key)
	if err != nil {
		return sig, entry{}, false, err
	}
	v, found := ks.table.Get(sig)
	if !found {
		return sig, entry{}, false, nil
	}
	return sig, v.(entry), true, nil
}

// Set stores value under key. A new key is appended to the iteration order;
// an existing key keeps its position and its original key handle.
func (ks *KeyStore) Set(key, value any) error {
	sig, e, found, err := ks.lookup(key)
	if err != nil {
		return err
	}
	if found {
		ks.table, _ = ks.table.Put(sig, entry{key: e.key, val: value})
		return nil
	}
	ks.table, _ = ks.table.Put(sig, entry{key: key, val: value})
	ks.order = append(ks.order, sig)
	return nil
}

// Get returns the value stored under key.
func (ks *KeyStore) Get(key any) (any, error) {
	sig, e, found, err := ks.lookup(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrKeyNotFound, "%s", sig)
	}
	return e.val, nil
}

// Update replaces the value stored under key with fn(value). The key keeps
// its position.
func (ks *KeyStore) Update(key any, fn func(value any) any) error {
	if fn == nil {
		return errors.Wrap(ErrInvalidArgument, "nil update func")
	}
	sig, e, found, err := ks.lookup(key)
	if err != nil {
		return err
	}
	if !found {
		return errors.Wrapf(ErrKeyNotFound, "%s", sig)
	}
	ks.table, _ = ks.table.Put(sig, entry{key: e.key, val: fn(e.val)})
	return nil
}

// Has reports whether key is present.
func (ks *KeyStore) Has(key any) (bool, error) {
	_, _, found, err := ks.lookup(key)
	return found, err
}

// Remove deletes key. Removing a missing key is not an error.
func (ks *KeyStore) Remove(key any) error {
	sig, err := ComputeSignature(key)
	if err != nil {
		return err
	}
	table, _, deleted := ks.table.Del(sig)
	if !deleted {
		return nil
	}
	ks.table = table
	if i := slices.Index(ks.order, sig); i >= 0 {
		ks.order = slices.Delete(ks.order, i, i+1)
	}
	return nil
}

// Count returns the number of entries.
func (ks *KeyStore) Count() int {
	return ks.table.Len()
}

func (ks *KeyStore) entryAt(i int) entry {
	v, _ := ks.table.Get(ks.order[i])
	return v.(entry)
}

// Keys returns the keys in iteration order.
func (ks *KeyStore) Keys() []any {
	var keys = make([]any, len(ks.order))
	for i := range ks.order {
		keys[i] = ks.entryAt(i).key
	}
	return keys
}

// Values returns the values in iteration order.
func (ks *KeyStore) Values() []any {
	var vals = make([]any, len(ks.order))
	for i := range ks.order {
		vals[i] = ks.entryAt(i).val
	}
	return vals
}

// ToPairs returns the entries in iteration order.
func (ks *KeyStore) ToPairs() []Pair {
	var pairs = make([]Pair, len(ks.order))
	for i := range ks.order {
		e := ks.entryAt(i)
		pairs[i] = Pair{Key: e.key, Value: e.val}
	}
	return pairs
}

// GetCopy returns an independent KeyStore holding the same keys and values
// in the same order. Pointer keys and values are shared, not cloned.
func (ks *KeyStore) GetCopy() *KeyStore {
	ks.init()
	return &KeyStore{
		table:       ks.table,
		order:       slices.Clone(ks.order),
		tableOption: ks.tableOption,
		lgr:         ks.lgr,
		codec:       ks.codec,
	}
}

// Cursor returns a Cursor over a snapshot of the current entries.
func (ks *KeyStore) Cursor() *Cursor {
	return NewCursor(ks)
}

// All returns an iterator over a snapshot of the current entries, for use
// with range.
func (ks *KeyStore) All() iter.Seq2[any, any] {
	var pairs = ks.ToPairs()
	return func(yield func(any, any) bool) {
		for _, p := range pairs {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}
