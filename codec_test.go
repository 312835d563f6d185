package keystore_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/lleo/go-keystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func roundTrip(t *testing.T, ks *keystore.KeyStore) *keystore.KeyStore {
	t.Helper()
	data, err := ks.Serialize()
	require.NoError(t, err)
	out, err := keystore.Deserialize(data)
	require.NoError(t, err)
	return out
}

func TestSerializePreservesSharing(t *testing.T) {
	shared := &point{5, 6}
	ks := mustFromPairs(t, [][2]any{{"first", shared}, {"second", shared}, {"other", &point{5, 6}}})

	out := roundTrip(t, ks)
	require.Equal(t, ks.Count(), out.Count())

	first, err := out.Get("first")
	require.NoError(t, err)
	second, err := out.Get("second")
	require.NoError(t, err)
	other, err := out.Get("other")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, &point{5, 6}, first)
	assert.Equal(t, first, other)
}

func TestSerializeKeyAndValueShared(t *testing.T) {
	obj := &point{1, 2}
	ks := mustFromPairs(t, [][2]any{{obj, obj}, {"again", obj}})

	out := roundTrip(t, ks)
	pairs := out.ToPairs()
	require.Len(t, pairs, 2)
	assert.Same(t, pairs[0].Key, pairs[0].Value)
	assert.Same(t, pairs[0].Key, pairs[1].Value)
	assert.NotSame(t, obj, pairs[0].Key)

	v, err := out.Get(pairs[0].Key)
	require.NoError(t, err)
	assert.Same(t, pairs[0].Key, v)
}

func TestSerializeUsesSharingTags(t *testing.T) {
	obj := &point{1, 2}
	data, err := mustFromPairs(t, [][2]any{{"a", obj}, {"b", obj}}).Serialize()
	require.NoError(t, err)

	var outer cbor.RawTag
	require.NoError(t, cbor.Unmarshal(data, &outer))
	assert.EqualValues(t, 55799, outer.Number)

	assert.Equal(t, 1, bytes.Count(data, []byte{0xd8, 0x1c}), "one shareable tag")
	assert.True(t, bytes.Contains(data, []byte{0xd8, 0x1d, 0x00}), "back-reference to object 0")
}

func TestSerializeScalars(t *testing.T) {
	ks := mustFromPairs(t, [][2]any{
		{"int", int8(-3)},
		{"uint", uint32(7)},
		{"big", uint64(math.MaxUint64)},
		{"float", float32(0.5)},
		{"bool", true},
		{"null", nil},
		{"bytes", []byte{1, 2, 3}},
		{"text", "hello"},
		{1, "int key"},
		{2.5, "float key"},
		{false, "bool key"},
		{nil, "null key"},
	})

	out := roundTrip(t, ks)
	assert.Equal(t, []any{
		"int", "uint", "big", "float", "bool", "null", "bytes", "text", 1, 2.5, false, nil,
	}, out.Keys())
	assert.Equal(t, []any{
		-3, 7, uint64(math.MaxUint64), 0.5, true, nil, []byte{1, 2, 3}, "hello",
		"int key", "float key", "bool key", "null key",
	}, out.Values())
}

func TestSerializeEmpty(t *testing.T) {
	out := roundTrip(t, keystore.New())
	assert.Equal(t, 0, out.Count())
}

type unregistered struct {
	A int
}

func TestSerializeUnserializable(t *testing.T) {
	for name, v := range map[string]any{
		"unregistered": &unregistered{1},
		"func":         func() {},
		"struct value": point{},
		"in slice":     []any{1, &unregistered{1}},
		"in map":       map[string]any{"f": func() {}},
		"array key":    map[[2]int]int{{1, 2}: 3},
		"too deep":     nestedSlices(40),
	} {
		t.Run(name, func(t *testing.T) {
			ks := mustFromPairs(t, [][2]any{{"k", v}})
			_, err := ks.Serialize()
			assert.ErrorIs(t, err, keystore.ErrUnserializable)
		})
	}
}

func nestedSlices(depth int) any {
	var v any = 1
	for i := 0; i < depth; i++ {
		v = []any{v}
	}
	return v
}

func TestSerializeCollections(t *testing.T) {
	shared := &point{1, 2}
	ks := mustFromPairs(t, [][2]any{
		{"list", []int{1, 2}},
		{"array", [2]string{"x", "y"}},
		{"map", map[string]int{"a": 1, "b": 2}},
		{"nested", map[int][]any{7: {shared, nil, 1.5}}},
		{"ptr", shared},
		{"empty", []string(nil)},
		{"deep", nestedSlices(20)},
	})

	out := roundTrip(t, ks)
	require.Equal(t, ks.Keys(), out.Keys())
	vals := out.Values()

	assert.Equal(t, []any{1, 2}, vals[0])
	assert.Equal(t, []any{"x", "y"}, vals[1])
	assert.Equal(t, map[any]any{"a": 1, "b": 2}, vals[2])

	nested, ok := vals[3].(map[any]any)[7].([]any)
	require.True(t, ok, "%#v", vals[3])
	assert.Equal(t, []any{&point{1, 2}, nil, 1.5}, nested)
	assert.Same(t, nested[0], vals[4], "pointer inside a map shares with the top level")

	assert.Equal(t, []any{}, vals[5])
	assert.Equal(t, nestedSlices(20), vals[6])
}

func TestSerializeMapPointerKeys(t *testing.T) {
	obj := &point{3, 3}
	ks := mustFromPairs(t, [][2]any{
		{"index", map[*point]string{obj: "p"}},
		{obj, "top level key"},
	})

	out := roundTrip(t, ks)
	index := out.Values()[0].(map[any]any)
	require.Len(t, index, 1)
	for k, v := range index {
		assert.Same(t, out.Keys()[1], k)
		assert.Equal(t, "p", v)
	}
}

func TestSerializeMapIsDeterministic(t *testing.T) {
	ks := mustFromPairs(t, [][2]any{
		{"m", map[any]int{"b": 1, 2: 2, nil: 3, true: 4, "a": 5, 1.5: 6}},
	})
	first, err := ks.Serialize()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ks.Serialize()
		require.NoError(t, err)
		require.True(t, bytes.Equal(first, again))
	}

	out, err := keystore.Deserialize(first)
	require.NoError(t, err)
	assert.Equal(t, map[any]any{"b": 1, 2: 2, nil: 3, true: 4, "a": 5, 1.5: 6}, out.Values()[0])
}

func encodeEnvelope(t *testing.T, version, count int, pairs ...any) []byte {
	t.Helper()
	if pairs == nil {
		pairs = []any{}
	}
	data, err := cbor.Marshal(cbor.Tag{Number: 55799, Content: []any{version, count, pairs}})
	require.NoError(t, err)
	return data
}

func TestDeserializeMalformed(t *testing.T) {
	valid, err := mustFromPairs(t, [][2]any{{"a", &point{1, 2}}, {"b", "c"}}).Serialize()
	require.NoError(t, err)

	noTag, err := cbor.Marshal([]any{1, 0, []any{}})
	require.NoError(t, err)

	tests := map[string][]byte{
		"empty":          nil,
		"garbage":        []byte{0xff, 0x00, 0x13},
		"truncated":      valid[:len(valid)-1],
		"trailing data":  append(append([]byte{}, valid...), 0x00),
		"no outer tag":   noTag,
		"wrong version":  encodeEnvelope(t, 2, 0),
		"count mismatch": encodeEnvelope(t, 1, 2, []any{"a", 1}),
		"short pair":     encodeEnvelope(t, 1, 1, []any{"a"}),
		"unknown tag":    encodeEnvelope(t, 1, 1, []any{"a", cbor.Tag{Number: 1234, Content: 1}}),
		"unknown type":   encodeEnvelope(t, 1, 1, []any{"a", cbor.Tag{Number: 28, Content: []any{"nope", 1}}}),
		"ref out of range": encodeEnvelope(t, 1, 1,
			[]any{"a", cbor.Tag{Number: 29, Content: 0}}),
		"ref past decoded": encodeEnvelope(t, 1, 2,
			[]any{"a", cbor.Tag{Number: 28, Content: []any{"point", map[string]int{"X": 1}}}},
			[]any{"b", cbor.Tag{Number: 29, Content: 1}}),
		"bad array element": encodeEnvelope(t, 1, 1,
			[]any{"a", []any{1, cbor.Tag{Number: 1234, Content: 1}}}),
		"bytes map key": encodeEnvelope(t, 1, 1,
			[]any{"a", cbor.RawMessage{0xa1, 0x41, 'k', 0x01}}),
		"duplicate map key": encodeEnvelope(t, 1, 1,
			[]any{"a", cbor.RawMessage{0xa2, 0x61, 'k', 0x01, 0x61, 'k', 0x02}}),
		"indefinite map": encodeEnvelope(t, 1, 1,
			[]any{"a", cbor.RawMessage{0xbf, 0x61, 'k', 0x01, 0xff}}),
		"invalid key":  encodeEnvelope(t, 1, 1, []any{[]byte("k"), 1}),
		"corrupt body": encodeEnvelope(t, 1, 1, []any{"a", cbor.Tag{Number: 28, Content: []any{"point", "text"}}}),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			ks, err := keystore.Deserialize(data)
			assert.ErrorIs(t, err, keystore.ErrDeserialization)
			assert.Nil(t, ks)
		})
	}
}

func TestDeserializeDuplicateKeysCollapse(t *testing.T) {
	data := encodeEnvelope(t, 1, 3, []any{"a", 1}, []any{"b", 2}, []any{"a", 3})
	ks, err := keystore.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, ks.Keys())
	assert.Equal(t, []any{3, 2}, ks.Values())
}

func TestDeserializeBackReference(t *testing.T) {
	data := encodeEnvelope(t, 1, 2,
		[]any{"a", cbor.Tag{Number: 28, Content: []any{"point", map[string]int{"X": 9, "Y": 8}}}},
		[]any{"b", cbor.Tag{Number: 29, Content: 0}})
	ks, err := keystore.Deserialize(data)
	require.NoError(t, err)

	vals := ks.Values()
	assert.Equal(t, &point{9, 8}, vals[0])
	assert.Same(t, vals[0], vals[1])
}

func TestCodecRegistry(t *testing.T) {
	reg := keystore.NewRegistry()
	require.NoError(t, reg.RegisterName("u", &unregistered{}))
	require.NoError(t, reg.RegisterName("u", unregistered{}), "same type, same name")
	assert.ErrorIs(t, reg.RegisterName("u", &point{}), keystore.ErrInvalidArgument)
	assert.ErrorIs(t, reg.RegisterName("v", &unregistered{}), keystore.ErrInvalidArgument)
	assert.ErrorIs(t, reg.Register(nil), keystore.ErrInvalidArgument)

	codec, err := keystore.NewCodec(keystore.WithRegistry(reg))
	require.NoError(t, err)

	obj := &unregistered{A: 3}
	ks := keystore.New(keystore.WithCodec(codec))
	require.NoError(t, ks.Set("x", obj))
	require.NoError(t, ks.Set("y", obj))

	data, err := ks.Serialize()
	require.NoError(t, err)

	_, err = keystore.Deserialize(data)
	assert.ErrorIs(t, err, keystore.ErrDeserialization, "default registry has no \"u\"")

	out, err := keystore.Deserialize(data, keystore.WithCodec(codec))
	require.NoError(t, err)
	x, _ := out.Get("x")
	y, _ := out.Get("y")
	assert.Equal(t, obj, x)
	assert.Same(t, x, y)
}

func TestRegisterPanicsOnConflict(t *testing.T) {
	assert.Panics(t, func() { keystore.RegisterName("point", &unregistered{}) })
	assert.NotPanics(t, func() { keystore.RegisterName("point", &point{}) })
}

func TestNewCodecBadOptions(t *testing.T) {
	_, err := keystore.NewCodec(keystore.WithDecOptions(cbor.DecOptions{MaxArrayElements: 1}))
	assert.Error(t, err)

	_, err = keystore.NewCodec(keystore.WithEncOptions(cbor.EncOptions{Sort: cbor.SortMode(99)}))
	assert.Error(t, err)
}

func TestBinaryMarshaler(t *testing.T) {
	obj := &point{7, 7}
	ks := mustFromPairs(t, [][2]any{{"a", obj}, {"b", obj}, {3, "three"}})
	data, err := ks.MarshalBinary()
	require.NoError(t, err)

	var out keystore.KeyStore
	require.NoError(t, out.UnmarshalBinary(data))
	assert.Equal(t, []any{"a", "b", 3}, out.Keys())
	a, _ := out.Get("a")
	b, _ := out.Get("b")
	assert.Same(t, a, b)

	before := out.ToPairs()
	assert.Error(t, out.UnmarshalBinary([]byte{0x01}))
	assert.Equal(t, before, out.ToPairs(), "failed unmarshal leaves receiver untouched")
}

func TestSerializeLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ks := keystore.New(keystore.WithLogger(zap.New(core)))
	require.NoError(t, ks.Set("a", 1))

	data, err := ks.Serialize()
	require.NoError(t, err)
	_, err = ks.SortBy(nil, "asc")
	require.NoError(t, err)
	_, err = keystore.Deserialize(data, keystore.WithLogger(zap.New(core)))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("serialized").Len())
	assert.Equal(t, 1, logs.FilterMessage("sorted").Len())
	assert.Equal(t, 1, logs.FilterMessage("deserialized").Len())
}
