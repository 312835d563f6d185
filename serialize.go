package keystore

import (
	"github.com/lleo/go-keystore/hamt64"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Serialize encodes the entries, in iteration order, with the store's Codec.
// A pointer that appears several times as key or value is written once and
// referred back to afterwards.
func (ks *KeyStore) Serialize() ([]byte, error) {
	ks.init()
	var pairs = ks.ToPairs()
	data, err := ks.codec.Marshal(pairs)
	if err != nil {
		return nil, err
	}
	ks.lgr.Debug("serialized",
		zap.Int("entries", len(pairs)),
		zap.Int("bytes", len(data)))
	return data, nil
}

// Deserialize rebuilds a KeyStore from the output of Serialize. Pointers
// written once and referred back to decode to the same pointer.
func Deserialize(data []byte, opts ...Option) (*KeyStore, error) {
	var ks = New(opts...)
	if err := ks.load(data); err != nil {
		return nil, err
	}
	return ks, nil
}

func (ks *KeyStore) load(data []byte) error {
	pairs, err := ks.codec.Unmarshal(data)
	if err != nil {
		return err
	}
	for i, p := range pairs {
		if err := ks.Set(p.Key, p.Value); err != nil {
			return errors.Wrapf(ErrDeserialization, "pair %d: %v", i, err)
		}
	}
	ks.lgr.Debug("deserialized",
		zap.Int("entries", ks.Count()),
		zap.Int("bytes", len(data)))
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (ks *KeyStore) MarshalBinary() ([]byte, error) {
	return ks.Serialize()
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. It replaces the
// receiver's entries and keeps its options; a zero KeyStore gets the
// defaults. On error the receiver is left unchanged.
func (ks *KeyStore) UnmarshalBinary(data []byte) error {
	ks.init()
	var fresh = &KeyStore{
		tableOption: ks.tableOption,
		lgr:         ks.lgr,
		codec:       ks.codec,
	}
	fresh.table = *hamt64.New(fresh.tableOption)
	if err := fresh.load(data); err != nil {
		return err
	}
	*ks = *fresh
	return nil
}
