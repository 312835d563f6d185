package keystore

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// Registry maps the names written to the wire onto the pointer types a
// Codec may serialize. Only registered pointer types can be serialized.
// Create one with NewRegistry.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
}

func pointerType(value any) (reflect.Type, error) {
	var t = reflect.TypeOf(value)
	if t == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "cannot register nil")
	}
	if t.Kind() != reflect.Pointer {
		t = reflect.PointerTo(t)
	}
	return t, nil
}

// RegisterName records the type of value under name. Both *T and T register
// *T. Registering the same type under the same name twice is harmless;
// reusing a name or type for something else is an error.
func (r *Registry) RegisterName(name string, value any) error {
	if name == "" {
		return errors.Wrap(ErrInvalidArgument, "empty type name")
	}
	t, err := pointerType(value)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byName[name]; ok && prev != t {
		return errors.Wrapf(ErrInvalidArgument, "name %q already registered for %s", name, prev)
	}
	if prev, ok := r.byType[t]; ok && prev != name {
		return errors.Wrapf(ErrInvalidArgument, "type %s already registered as %q", t, prev)
	}
	r.byName[name] = t
	r.byType[t] = name
	return nil
}

// Register records the type of value under its Go type name, e.g.
// "*main.Point".
func (r *Registry) Register(value any) error {
	t, err := pointerType(value)
	if err != nil {
		return err
	}
	return r.RegisterName(t.String(), value)
}

func (r *Registry) nameOf(t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byType[t]
	return name, ok
}

func (r *Registry) typeOf(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

var defaultRegistry = NewRegistry()

// Register records the type of value in the registry used by the default
// Codec. Like gob.Register it is meant for init() and panics on conflict.
func Register(value any) {
	if err := defaultRegistry.Register(value); err != nil {
		panic(err)
	}
}

// RegisterName is Register with an explicit wire name.
func RegisterName(name string, value any) {
	if err := defaultRegistry.RegisterName(name, value); err != nil {
		panic(err)
	}
}
