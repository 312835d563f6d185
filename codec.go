package keystore

import (
	"bytes"
	"encoding/binary"
	"math"
	"reflect"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// FormatVersion is the envelope version written by Codec.Marshal.
const FormatVersion = 1

// CBOR tags used by the wire format.
const (
	tagSelfDescribe uint64 = 55799
	tagShareable    uint64 = 28
	tagSharedRef    uint64 = 29
)

// maximum accepted array length when decoding
const maxElements = math.MaxInt32

// maxNesting bounds how deep slices and maps may nest inside a value.
const maxNesting = 32

// A serialized KeyStore is
//
//	55799([FormatVersion, count, [[key, value], ...]])
//
// Scalars are native CBOR items. Slices and arrays are CBOR arrays and maps
// are CBOR maps, written by value; they decode as []any and map[any]any. The
// first occurrence of a pointer is 28([typeName, pointee]); every later
// occurrence of the same pointer is 29(n), n being the zero based position of
// its 28 among all 28 tags in the stream. Sharing is tracked across keys,
// values and the elements of slices and maps, but not inside a pointee.
type envelope struct {
	_       struct{} `cbor:",toarray"`
	Version uint64
	Count   uint64
	Pairs   []cbor.RawMessage
}

type sharedObject struct {
	_    struct{} `cbor:",toarray"`
	Type string
	Body cbor.RawMessage
}

// Codec converts KeyStore entries to and from CBOR.
type Codec struct {
	types   *Registry
	encMode cbor.EncMode
	decMode cbor.DecMode
}

type codecOptions struct {
	types   *Registry
	encOpts cbor.EncOptions
	decOpts cbor.DecOptions
}

// CodecOption configures NewCodec.
type CodecOption func(*codecOptions)

// WithRegistry sets the type registry. The default is the package registry
// filled by Register and RegisterName.
func WithRegistry(r *Registry) CodecOption {
	return func(o *codecOptions) {
		if r != nil {
			o.types = r
		}
	}
}

// WithEncOptions replaces the CBOR encoding options.
func WithEncOptions(opts cbor.EncOptions) CodecOption {
	return func(o *codecOptions) { o.encOpts = opts }
}

// WithDecOptions replaces the CBOR decoding options.
func WithDecOptions(opts cbor.DecOptions) CodecOption {
	return func(o *codecOptions) { o.decOpts = opts }
}

func newDefaultCodecOptions() codecOptions {
	return codecOptions{
		types: defaultRegistry,
		encOpts: cbor.EncOptions{
			Sort:        cbor.SortCoreDeterministic,
			IndefLength: cbor.IndefLengthForbidden,
		},
		decOpts: cbor.DecOptions{
			DupMapKey:        cbor.DupMapKeyEnforcedAPF,
			IndefLength:      cbor.IndefLengthForbidden,
			MaxArrayElements: maxElements,
			MaxMapPairs:      maxElements,
			MaxNestedLevels:  2 * maxNesting,
		},
	}
}

// NewCodec builds a Codec; invalid CBOR options are reported here.
func NewCodec(withOpts ...CodecOption) (*Codec, error) {
	var opts = newDefaultCodecOptions()
	for _, o := range withOpts {
		o(&opts)
	}

	var err error
	var c = &Codec{types: opts.types}

	c.encMode, err = opts.encOpts.EncMode()
	if err != nil {
		return nil, errors.Wrap(err, "cbor encoding options")
	}

	c.decMode, err = opts.decOpts.DecMode()
	if err != nil {
		return nil, errors.Wrap(err, "cbor decoding options")
	}

	return c, nil
}

var defaultCodec = mustCodec(NewCodec())

func mustCodec(c *Codec, err error) *Codec {
	if err != nil {
		panic(err)
	}
	return c
}

// Marshal encodes pairs, in order, into a self-describing CBOR envelope.
func (c *Codec) Marshal(pairs []Pair) ([]byte, error) {
	var enc = encoder{codec: c, seen: make(map[any]uint64)}

	var env = envelope{
		Version: FormatVersion,
		Count:   uint64(len(pairs)),
		Pairs:   make([]cbor.RawMessage, len(pairs)),
	}
	for i, p := range pairs {
		k, err := enc.item(p.Key)
		if err != nil {
			return nil, errors.Wrapf(err, "key of pair %d", i)
		}
		v, err := enc.item(p.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "value of pair %d", i)
		}
		env.Pairs[i], err = c.encMode.Marshal([]cbor.RawMessage{k, v})
		if err != nil {
			return nil, errors.Wrapf(ErrUnserializable, "pair %d: %v", i, err)
		}
	}

	data, err := c.encMode.Marshal(cbor.Tag{Number: tagSelfDescribe, Content: env})
	if err != nil {
		return nil, errors.Wrapf(ErrUnserializable, "envelope: %v", err)
	}
	return data, nil
}

type encoder struct {
	codec *Codec
	seen  map[any]uint64
	next  uint64
}

func (enc *encoder) item(v any) (cbor.RawMessage, error) {
	return enc.value(v, 0)
}

func (enc *encoder) value(v any, depth int) (cbor.RawMessage, error) {
	var rv = reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Invalid:
		return enc.scalar(nil)
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return enc.scalar(v)
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return enc.scalar(rv.Bytes())
		}
		return enc.array(rv, depth)
	case reflect.Array:
		return enc.array(rv, depth)
	case reflect.Map:
		return enc.mapping(rv, depth)
	case reflect.Pointer:
		if rv.IsNil() {
			return enc.scalar(nil)
		}
		return enc.shared(v, rv)
	}

	return nil, errors.Wrapf(ErrUnserializable, "%T has no wire form", v)
}

// array writes a slice or array by value; its elements go through value so
// pointers inside keep their sharing.
func (enc *encoder) array(rv reflect.Value, depth int) (cbor.RawMessage, error) {
	if depth >= maxNesting {
		return nil, errors.Wrapf(ErrUnserializable, "%s nested deeper than %d", rv.Type(), maxNesting)
	}

	var elems = make([]cbor.RawMessage, rv.Len())
	for i := range elems {
		e, err := enc.value(rv.Index(i).Interface(), depth+1)
		if err != nil {
			return nil, err
		}
		elems[i] = e
	}
	return enc.scalar(elems)
}

type mapEntry struct {
	key, val any
}

// mapping writes a map by value, entries ordered by key the way SortBy orders
// keys. Each key is followed by its value in the stream, which is the order
// the decoder numbers shared pointers in.
func (enc *encoder) mapping(rv reflect.Value, depth int) (cbor.RawMessage, error) {
	if depth >= maxNesting {
		return nil, errors.Wrapf(ErrUnserializable, "%s nested deeper than %d", rv.Type(), maxNesting)
	}

	var ents = make([]mapEntry, 0, rv.Len())
	for mi := rv.MapRange(); mi.Next(); {
		ents = append(ents, mapEntry{mi.Key().Interface(), mi.Value().Interface()})
	}
	slices.SortStableFunc(ents, func(a, b mapEntry) int {
		return compareOrderKeys(a.key, b.key)
	})

	var buf = appendHead(nil, majorTypeMap, uint64(len(ents)))
	for _, ent := range ents {
		// decoded arrays are slices, which cannot be map keys
		if reflect.ValueOf(ent.key).Kind() == reflect.Array {
			return nil, errors.Wrapf(ErrUnserializable, "map key %T has no wire form", ent.key)
		}
		k, err := enc.value(ent.key, depth+1)
		if err != nil {
			return nil, err
		}
		v, err := enc.value(ent.val, depth+1)
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, v...)
	}
	return buf, nil
}

// appendHead appends the CBOR head of a major type with argument n.
func appendHead(dst []byte, major byte, n uint64) []byte {
	var ib = major << 5
	switch {
	case n < 24:
		return append(dst, ib|byte(n))
	case n <= math.MaxUint8:
		return append(dst, ib|24, byte(n))
	case n <= math.MaxUint16:
		return binary.BigEndian.AppendUint16(append(dst, ib|25), uint16(n))
	case n <= math.MaxUint32:
		return binary.BigEndian.AppendUint32(append(dst, ib|26), uint32(n))
	}
	return binary.BigEndian.AppendUint64(append(dst, ib|27), n)
}

// readHead returns the argument of the head at the start of raw and the
// bytes after it. Indefinite lengths are rejected.
func readHead(raw []byte) (uint64, []byte, error) {
	var ai = raw[0] & 0x1f
	var rest = raw[1:]

	switch {
	case ai < 24:
		return uint64(ai), rest, nil
	case ai == 24 && len(rest) >= 1:
		return uint64(rest[0]), rest[1:], nil
	case ai == 25 && len(rest) >= 2:
		return uint64(binary.BigEndian.Uint16(rest)), rest[2:], nil
	case ai == 26 && len(rest) >= 4:
		return uint64(binary.BigEndian.Uint32(rest)), rest[4:], nil
	case ai == 27 && len(rest) >= 8:
		return binary.BigEndian.Uint64(rest), rest[8:], nil
	}
	return 0, nil, errors.Wrapf(ErrDeserialization, "bad item head 0x%02x", raw[0])
}

func (enc *encoder) scalar(v any) (cbor.RawMessage, error) {
	data, err := enc.codec.encMode.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(ErrUnserializable, "%T: %v", v, err)
	}
	return data, nil
}

func (enc *encoder) shared(v any, rv reflect.Value) (cbor.RawMessage, error) {
	if idx, ok := enc.seen[v]; ok {
		return enc.scalar(cbor.Tag{Number: tagSharedRef, Content: idx})
	}

	name, ok := enc.codec.types.nameOf(rv.Type())
	if !ok {
		return nil, errors.Wrapf(ErrUnserializable, "%s is not registered", rv.Type())
	}
	body, err := enc.codec.encMode.Marshal(rv.Elem().Interface())
	if err != nil {
		return nil, errors.Wrapf(ErrUnserializable, "%s: %v", name, err)
	}

	enc.seen[v] = enc.next
	enc.next++

	return enc.scalar(cbor.Tag{
		Number:  tagShareable,
		Content: sharedObject{Type: name, Body: body},
	})
}

// Unmarshal decodes an envelope written by Marshal. Every failure wraps
// ErrDeserialization.
func (c *Codec) Unmarshal(data []byte) ([]Pair, error) {
	var outer cbor.RawTag
	if err := c.decMode.Unmarshal(data, &outer); err != nil {
		return nil, errors.Wrapf(ErrDeserialization, "%v", err)
	}
	if outer.Number != tagSelfDescribe {
		return nil, errors.Wrapf(ErrDeserialization, "unexpected outer tag %d", outer.Number)
	}

	var env envelope
	if err := c.decMode.Unmarshal(outer.Content, &env); err != nil {
		return nil, errors.Wrapf(ErrDeserialization, "envelope: %v", err)
	}
	if env.Version != FormatVersion {
		return nil, errors.Wrapf(ErrDeserialization, "unsupported version %d", env.Version)
	}
	if env.Count != uint64(len(env.Pairs)) {
		return nil, errors.Wrapf(ErrDeserialization,
			"envelope declares %d pairs, holds %d", env.Count, len(env.Pairs))
	}

	var dec = decoder{codec: c}
	var pairs = make([]Pair, len(env.Pairs))
	for i, raw := range env.Pairs {
		var kv []cbor.RawMessage
		if err := c.decMode.Unmarshal(raw, &kv); err != nil {
			return nil, errors.Wrapf(ErrDeserialization, "pair %d: %v", i, err)
		}
		if len(kv) != 2 {
			return nil, errors.Wrapf(ErrDeserialization, "pair %d has %d elements", i, len(kv))
		}
		k, err := dec.item(kv[0])
		if err != nil {
			return nil, errors.Wrapf(err, "key of pair %d", i)
		}
		v, err := dec.item(kv[1])
		if err != nil {
			return nil, errors.Wrapf(err, "value of pair %d", i)
		}
		pairs[i] = Pair{Key: k, Value: v}
	}
	return pairs, nil
}

type decoder struct {
	codec  *Codec
	shared []any
}

// CBOR major types, found in the top three bits of an item's first byte.
const (
	majorTypeArray = 4
	majorTypeMap   = 5
	majorTypeTag   = 6
)

func (dec *decoder) item(raw cbor.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, errors.Wrap(ErrDeserialization, "truncated item")
	}
	switch raw[0] >> 5 {
	case majorTypeTag:
		return dec.tagged(raw)
	case majorTypeArray:
		return dec.array(raw)
	case majorTypeMap:
		return dec.mapping(raw)
	}

	var v any
	if err := dec.codec.decMode.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrapf(ErrDeserialization, "%v", err)
	}
	switch x := v.(type) {
	case nil, bool, string, float64, []byte:
		return x, nil
	case uint64:
		if x <= math.MaxInt {
			return int(x), nil
		}
		return x, nil
	case int64:
		if x >= math.MinInt && x <= math.MaxInt {
			return int(x), nil
		}
		return x, nil
	}
	return nil, errors.Wrapf(ErrDeserialization, "unsupported item %T", v)
}

func (dec *decoder) array(raw cbor.RawMessage) (any, error) {
	var elems []cbor.RawMessage
	if err := dec.codec.decMode.Unmarshal(raw, &elems); err != nil {
		return nil, errors.Wrapf(ErrDeserialization, "array: %v", err)
	}

	var out = make([]any, len(elems))
	for i, e := range elems {
		v, err := dec.item(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (dec *decoder) mapping(raw cbor.RawMessage) (any, error) {
	n, rest, err := readHead(raw)
	if err != nil {
		return nil, err
	}
	if n > uint64(len(rest))/2 {
		return nil, errors.Wrapf(ErrDeserialization, "map of %d entries in %d bytes", n, len(rest))
	}

	var out = make(map[any]any, n)
	var sd = dec.codec.decMode.NewDecoder(bytes.NewReader(rest))
	for i := uint64(0); i < n; i++ {
		var rk, rv cbor.RawMessage
		if err := sd.Decode(&rk); err != nil {
			return nil, errors.Wrapf(ErrDeserialization, "map key %d: %v", i, err)
		}
		if err := sd.Decode(&rv); err != nil {
			return nil, errors.Wrapf(ErrDeserialization, "map value %d: %v", i, err)
		}

		k, err := dec.item(rk)
		if err != nil {
			return nil, err
		}
		if k != nil && !reflect.TypeOf(k).Comparable() {
			return nil, errors.Wrapf(ErrDeserialization, "map key %T is not comparable", k)
		}
		if _, dup := out[k]; dup {
			return nil, errors.Wrapf(ErrDeserialization, "duplicate map key %v", k)
		}

		v, err := dec.item(rv)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (dec *decoder) tagged(raw cbor.RawMessage) (any, error) {
	var tag cbor.RawTag
	if err := dec.codec.decMode.Unmarshal(raw, &tag); err != nil {
		return nil, errors.Wrapf(ErrDeserialization, "%v", err)
	}

	switch tag.Number {
	case tagShareable:
		var obj sharedObject
		if err := dec.codec.decMode.Unmarshal(tag.Content, &obj); err != nil {
			return nil, errors.Wrapf(ErrDeserialization, "shared object: %v", err)
		}
		t, ok := dec.codec.types.typeOf(obj.Type)
		if !ok {
			return nil, errors.Wrapf(ErrDeserialization, "unknown type %q", obj.Type)
		}
		ptr := reflect.New(t.Elem())
		if err := dec.codec.decMode.Unmarshal(obj.Body, ptr.Interface()); err != nil {
			return nil, errors.Wrapf(ErrDeserialization, "%s: %v", obj.Type, err)
		}
		v := ptr.Interface()
		dec.shared = append(dec.shared, v)
		return v, nil

	case tagSharedRef:
		var idx uint64
		if err := dec.codec.decMode.Unmarshal(tag.Content, &idx); err != nil {
			return nil, errors.Wrapf(ErrDeserialization, "back-reference: %v", err)
		}
		if idx >= uint64(len(dec.shared)) {
			return nil, errors.Wrapf(ErrDeserialization,
				"back-reference %d outside the %d objects decoded so far", idx, len(dec.shared))
		}
		return dec.shared[idx], nil
	}

	return nil, errors.Wrapf(ErrDeserialization, "unsupported tag %d", tag.Number)
}
