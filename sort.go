package keystore

import (
	"cmp"
	"reflect"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// OrderFunc derives the order key of an entry for SortBy.
type OrderFunc func(value, key any) any

// Selector names one of the built in order keys.
type Selector string

const (
	ByValues Selector = "values"
	ByKeys   Selector = "keys"
)

// Direction is the direction of a SortBy.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	}
	return "Direction(invalid)"
}

func byValue(value, _ any) any { return value }
func byKey(_, key any) any     { return key }

func parseSelector(selector any) (OrderFunc, error) {
	var name string
	switch s := selector.(type) {
	case nil:
		return byValue, nil
	case OrderFunc:
		if s != nil {
			return s, nil
		}
	case func(value, key any) any:
		if s != nil {
			return s, nil
		}
	case Selector:
		name = string(s)
	case string:
		name = s
	}

	switch strings.ToLower(name) {
	case string(ByValues):
		return byValue, nil
	case string(ByKeys):
		return byKey, nil
	}
	return nil, errors.Wrapf(ErrInvalidArgument,
		"sort selector must be %q, %q or a func(value, key any) any, got %#v",
		ByKeys, ByValues, selector)
}

// ParseDirection accepts a Direction or the strings "asc" and "desc" in any
// case.
func ParseDirection(direction any) (Direction, error) {
	switch d := direction.(type) {
	case Direction:
		if d == Ascending || d == Descending {
			return d, nil
		}
	case string:
		switch strings.ToLower(d) {
		case "asc":
			return Ascending, nil
		case "desc":
			return Descending, nil
		}
	}
	return Ascending, errors.Wrapf(ErrInvalidArgument,
		"sort direction must be \"asc\" or \"desc\", got %#v", direction)
}

// SortBy reorders the receiver by the order key that selector derives from
// each entry and returns the receiver.
//
// selector is nil or ByValues to sort by value, ByKeys to sort by key, the
// strings "values" or "keys", or an OrderFunc. The order key of every entry
// is computed once. The sort is stable: entries with equal order keys keep
// their relative order, in both directions.
func (ks *KeyStore) SortBy(selector, direction any) (*KeyStore, error) {
	ks.init()

	orderOf, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	dir, err := ParseDirection(direction)
	if err != nil {
		return nil, err
	}

	type sortItem struct {
		sig Signature
		ord any
	}
	var items = make([]sortItem, len(ks.order))
	for i, sig := range ks.order {
		e := ks.entryAt(i)
		items[i] = sortItem{sig: sig, ord: orderOf(e.val, e.key)}
	}

	slices.SortStableFunc(items, func(a, b sortItem) int {
		c := compareOrderKeys(a.ord, b.ord)
		if dir == Descending {
			return -c
		}
		return c
	})

	for i := range items {
		ks.order[i] = items[i].sig
	}

	ks.lgr.Debug("sorted",
		zap.Int("entries", len(items)),
		zap.Stringer("direction", dir))

	return ks, nil
}

// Order key ranks; keys of a lower rank sort first.
const (
	rankNull = iota
	rankBool
	rankNumber
	rankText
	rankOther
)

// comparer is implemented by values that know how to order themselves.
type comparer interface {
	Compare(other any) int
}

func rankOf(v any) int {
	if v == nil {
		return rankNull
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool:
		return rankBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return rankNumber
	case reflect.String:
		return rankText
	}
	return rankOther
}

func compareOrderKeys(a, b any) int {
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch ra {
	case rankNull:
		return 0
	case rankBool:
		ba, bb := reflect.ValueOf(a).Bool(), reflect.ValueOf(b).Bool()
		switch {
		case ba == bb:
			return 0
		case bb:
			return -1
		}
		return 1
	case rankNumber:
		return compareNumbers(reflect.ValueOf(a), reflect.ValueOf(b))
	case rankText:
		return strings.Compare(reflect.ValueOf(a).String(), reflect.ValueOf(b).String())
	}

	if c, ok := a.(comparer); ok {
		return c.Compare(b)
	}
	sa, erra := ComputeSignature(a)
	sb, errb := ComputeSignature(b)
	if erra != nil || errb != nil {
		return 0
	}
	return strings.Compare(sa.String(), sb.String())
}

func isFloat(v reflect.Value) bool {
	return v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64
}

func isUnsigned(v reflect.Value) bool {
	return v.CanUint()
}

func compareNumbers(a, b reflect.Value) int {
	if isFloat(a) || isFloat(b) {
		return cmp.Compare(asFloat(a), asFloat(b))
	}

	au, bu := isUnsigned(a), isUnsigned(b)
	switch {
	case au && bu:
		return cmp.Compare(a.Uint(), b.Uint())
	case !au && !bu:
		return cmp.Compare(a.Int(), b.Int())
	case au:
		if b.Int() < 0 {
			return 1
		}
		return cmp.Compare(a.Uint(), uint64(b.Int()))
	}
	if a.Int() < 0 {
		return -1
	}
	return cmp.Compare(uint64(a.Int()), b.Uint())
}

func asFloat(v reflect.Value) float64 {
	switch {
	case isFloat(v):
		return v.Float()
	case isUnsigned(v):
		return float64(v.Uint())
	}
	return float64(v.Int())
}
