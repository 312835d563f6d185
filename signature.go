package keystore

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/lleo/go-keystore/hamt64"
	"github.com/pkg/errors"
)

// Kind discriminates the key kinds a KeyStore accepts.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindReal
	KindText
	KindObject
)

var kindNames = [...]string{
	KindNull:    "null",
	KindBoolean: "bool",
	KindInteger: "int",
	KindReal:    "float",
	KindText:    "string",
	KindObject:  "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Signature is the canonical form of a key: two keys are the same key iff
// their Signatures are equal. It implements hamt64.Key.
type Signature struct {
	Kind    Kind
	Payload string
	hash60  uint64
}

func newSignature(kind Kind, payload string) Signature {
	var s = Signature{Kind: kind, Payload: payload}
	s.hash60 = hamt64.Hash60([]byte(s.String()))
	return s
}

// String returns "<kind>:<payload>", e.g. "int:1" or "string:1".
func (s Signature) String() string {
	return s.Kind.String() + ":" + s.Payload
}

func (s Signature) Hash60() uint64 {
	return s.hash60
}

func (s Signature) Equals(other hamt64.Key) bool {
	o, ok := other.(Signature)
	return ok && o.Kind == s.Kind && o.Payload == s.Payload
}

var nullSignature = newSignature(KindNull, "null")

// ComputeSignature maps a key onto its Signature.
//
// Pointers are keyed by identity: the payload is the pointee's type and
// address, never its contents. Pointers to zero-size values may share an
// address in Go and so are not guaranteed distinct keys. Integers of every
// width and signedness share KindInteger, so int(1) and uint8(1) are the same
// key, while 1, 1.0, "1" and true are four different keys.
func ComputeSignature(key any) (Signature, error) {
	switch k := key.(type) {
	case nil:
		return nullSignature, nil
	case string:
		return newSignature(KindText, k), nil
	case int:
		return newSignature(KindInteger, strconv.Itoa(k)), nil
	case bool:
		return boolSignature(k), nil
	case float64:
		return realSignature(k), nil
	}

	var rv = reflect.ValueOf(key)
	switch rv.Kind() {
	case reflect.String:
		return newSignature(KindText, rv.String()), nil
	case reflect.Bool:
		return boolSignature(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return newSignature(KindInteger, strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return newSignature(KindInteger, strconv.FormatUint(rv.Uint(), 10)), nil
	case reflect.Float32, reflect.Float64:
		return realSignature(rv.Float()), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nullSignature, nil
		}
		return newSignature(KindObject, fmt.Sprintf("%s@%x", rv.Type(), rv.Pointer())), nil
	}

	return Signature{}, errors.Wrapf(ErrInvalidKeyKind, "%T cannot be a key", key)
}

func boolSignature(b bool) Signature {
	if b {
		return newSignature(KindBoolean, "1")
	}
	return newSignature(KindBoolean, "0")
}

func realSignature(f float64) Signature {
	return newSignature(KindReal, strconv.FormatFloat(f, 'g', -1, 64))
}
