package keystore

import (
	"iter"
	"reflect"

	"github.com/pkg/errors"
)

// FromPairs builds a KeyStore from a sequence of key/value pairs, inserted in
// sequence order; later duplicates overwrite earlier values.
//
// pairs may be a slice or array whose elements are Pair, [2]T or a two
// element slice, an iter.Seq[Pair], or a *KeyStore.
func FromPairs(pairs any, opts ...Option) (*KeyStore, error) {
	var ks = New(opts...)

	switch src := pairs.(type) {
	case *KeyStore:
		if src == nil {
			break
		}
		for _, p := range src.ToPairs() {
			if err := ks.Set(p.Key, p.Value); err != nil {
				return nil, err
			}
		}
		return ks, nil
	case []Pair:
		for _, p := range src {
			if err := ks.Set(p.Key, p.Value); err != nil {
				return nil, err
			}
		}
		return ks, nil
	case iter.Seq[Pair]:
		for p := range src {
			if err := ks.Set(p.Key, p.Value); err != nil {
				return nil, err
			}
		}
		return ks, nil
	}

	var rv = reflect.ValueOf(pairs)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Wrapf(ErrInvalidArgument,
			"pairs must be a slice, array, iter.Seq[Pair] or *KeyStore, got %T", pairs)
	}
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		k, v, ok := pairOf(elem)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidArgument,
				"element %d is not a key/value pair: %T", i, elem)
		}
		if err := ks.Set(k, v); err != nil {
			return nil, err
		}
	}
	return ks, nil
}

// pairOf unpacks a Pair or any two element slice or array.
func pairOf(p any) (key, value any, ok bool) {
	switch x := p.(type) {
	case Pair:
		return x.Key, x.Value, true
	case *Pair:
		if x == nil {
			return nil, nil, false
		}
		return x.Key, x.Value, true
	case [2]any:
		return x[0], x[1], true
	case []any:
		if len(x) != 2 {
			return nil, nil, false
		}
		return x[0], x[1], true
	}

	var rv = reflect.ValueOf(p)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, nil, false
	}
	if rv.Len() != 2 {
		return nil, nil, false
	}
	return rv.Index(0).Interface(), rv.Index(1).Interface(), true
}

// FromMapping builds a KeyStore from a mapping: a Go map (in the map's
// iteration order, which Go leaves unspecified), a slice or array (index to
// element), a []Pair or iter.Seq2[any, any] (in sequence order), or a
// *KeyStore.
func FromMapping(source any, opts ...Option) (*KeyStore, error) {
	var ks = New(opts...)

	switch src := source.(type) {
	case *KeyStore:
		if src == nil {
			break
		}
		for _, p := range src.ToPairs() {
			if err := ks.Set(p.Key, p.Value); err != nil {
				return nil, err
			}
		}
		return ks, nil
	case []Pair:
		for _, p := range src {
			if err := ks.Set(p.Key, p.Value); err != nil {
				return nil, err
			}
		}
		return ks, nil
	case iter.Seq2[any, any]:
		for k, v := range src {
			if err := ks.Set(k, v); err != nil {
				return nil, err
			}
		}
		return ks, nil
	}

	var rv = reflect.ValueOf(source)
	switch rv.Kind() {
	case reflect.Map:
		mi := rv.MapRange()
		for mi.Next() {
			if err := ks.Set(mi.Key().Interface(), mi.Value().Interface()); err != nil {
				return nil, err
			}
		}
		return ks, nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := ks.Set(i, rv.Index(i).Interface()); err != nil {
				return nil, err
			}
		}
		return ks, nil
	}

	return nil, errors.Wrapf(ErrInvalidArgument,
		"source must be a map, slice, array, iter.Seq2[any, any] or *KeyStore, got %T", source)
}
