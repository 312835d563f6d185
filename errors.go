package keystore

import "github.com/pkg/errors"

// Every error returned by this package wraps one of these; test with
// errors.Is() or errors.Cause().
var (
	// ErrInvalidKeyKind is returned when a key is a func, channel, map,
	// slice, array, struct value, complex number or anything else without
	// key semantics.
	ErrInvalidKeyKind = errors.New("keystore: invalid key kind")

	// ErrKeyNotFound is returned by Get() and Update() on a missing key.
	ErrKeyNotFound = errors.New("keystore: key not found")

	// ErrInvalidArgument is returned for malformed constructor input and
	// malformed sort selectors or directions.
	ErrInvalidArgument = errors.New("keystore: invalid argument")

	// ErrDeserialization is returned for corrupt or truncated serialized
	// input, including back-references outside the decoded range.
	ErrDeserialization = errors.New("keystore: malformed serialized form")

	// ErrUnserializable is returned when a key or value has no wire form,
	// e.g. a pointer to an unregistered type.
	ErrUnserializable = errors.New("keystore: value cannot be serialized")
)
