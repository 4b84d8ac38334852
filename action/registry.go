// Package action holds the process-wide catalog of action types. The catalog
// is an explicit registration table validated when the process starts:
// integrity violations are build-time defects and abort immediately rather
// than surfacing as runtime errors.
package action

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"

	"pkg.world.dev/lockstep/codec"
	"pkg.world.dev/lockstep/types"
)

var (
	actionInterfaceType = reflect.TypeOf((*types.Action)(nil)).Elem()

	// Names must only contain alphanumerics, dashes, underscores and dots,
	// and must start/end with an alphanumeric.
	validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-_.]*[a-zA-Z0-9]$`)
)

// Spec describes one registered action type.
type Spec struct {
	// Code is the positive, globally unique wire type-code.
	Code int32
	// Name is the stable fully qualified name, e.g. "guild.member-edit-role".
	Name string
	// Type is the pointer-to-struct type of the action.
	Type reflect.Type
	// Flags declares where this action may be enqueued and applied.
	Flags types.ExecuteFlags
	// Attributes carries optional custom metadata declared at registration.
	Attributes map[string]string
}

// New returns a fresh zero instance of the action type.
func (s *Spec) New() types.Action {
	return reflect.New(s.Type.Elem()).Interface().(types.Action)
}

// Decode instantiates the action type and unmarshals payload into it.
func (s *Spec) Decode(payload []byte) (types.Action, error) {
	a := s.New()
	if err := codec.DecodeInto(payload, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Registry maps type-codes, Go types and names to action specs. Register all
// actions during process startup, call Initialize exactly once, and treat the
// registry as read-only from then on.
type Registry struct {
	byCode      map[int32]*Spec
	byType      map[reflect.Type]*Spec
	byName      map[string]*Spec
	initialized bool
}

func NewRegistry() *Registry {
	return &Registry{
		byCode: map[int32]*Spec{},
		byType: map[reflect.Type]*Spec{},
		byName: map[string]*Spec{},
	}
}

type Option func(*Spec)

// WithAttribute attaches a custom metadata attribute to the spec.
func WithAttribute(key, value string) Option {
	return func(s *Spec) {
		if s.Attributes == nil {
			s.Attributes = map[string]string{}
		}
		s.Attributes[key] = value
	}
}

// Register adds the action type T to the registry. It panics on any integrity
// violation: duplicate code, duplicate name, duplicate type, non-positive
// code, invalid name, missing execute flags, or registration after
// Initialize. These are programming errors, never runtime conditions.
func Register[T any](r *Registry, code int32, name string, flags types.ExecuteFlags, opts ...Option) {
	ptrType := reflect.TypeOf((*T)(nil))
	if r.initialized {
		panic(fmt.Sprintf("action registry is initialized; cannot register %q", name))
	}
	if ptrType.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("action %q must be a struct type, got %s", name, ptrType.Elem().Kind()))
	}
	if !ptrType.Implements(actionInterfaceType) {
		panic(fmt.Sprintf("action %q (%s) does not implement types.Action; embed types.ActionBase", name, ptrType))
	}
	if code <= 0 {
		panic(fmt.Sprintf("action %q must declare a positive type-code, got %d", name, code))
	}
	if !validName.MatchString(name) {
		panic(fmt.Sprintf("invalid action name %q: must only contain alphanumerics, dashes (-), underscores (_) "+
			"and/or dots (.), and must start/end with an alphanumeric", name))
	}
	if flags == 0 {
		panic(fmt.Sprintf("action %q declares no execute flags", name))
	}
	if existing, ok := r.byCode[code]; ok {
		panic(fmt.Sprintf("duplicate action type-code %d: %q and %q", code, existing.Name, name))
	}
	if _, ok := r.byName[name]; ok {
		panic(fmt.Sprintf("duplicate action name %q", name))
	}
	if existing, ok := r.byType[ptrType]; ok {
		panic(fmt.Sprintf("action type %s is already registered as %q", ptrType, existing.Name))
	}

	spec := &Spec{
		Code:  code,
		Name:  name,
		Type:  ptrType,
		Flags: flags,
	}
	for _, opt := range opts {
		opt(spec)
	}
	r.byCode[code] = spec
	r.byName[name] = spec
	r.byType[ptrType] = spec
}

// Initialize seals the registry. Calling it twice is a fatal programming
// error, as is sealing an empty registry.
func (r *Registry) Initialize() {
	if r.initialized {
		panic("action registry is already initialized")
	}
	if len(r.byCode) == 0 {
		panic("action registry has no registered actions")
	}
	r.initialized = true
}

func (r *Registry) IsInitialized() bool { return r.initialized }

// Count returns the number of registered action types.
func (r *Registry) Count() int { return len(r.byCode) }

// ByCode returns the spec for code, panicking if it is unknown. An unknown
// code here is a build defect; network-facing callers use LookupCode.
func (r *Registry) ByCode(code int32) *Spec {
	spec, ok := r.byCode[code]
	if !ok {
		panic(fmt.Sprintf("no action registered with type-code %d", code))
	}
	return spec
}

// LookupCode is the graceful form of ByCode for untrusted inputs.
func (r *Registry) LookupCode(code int32) (*Spec, bool) {
	spec, ok := r.byCode[code]
	return spec, ok
}

// ByName returns the spec registered under name, panicking if unknown.
func (r *Registry) ByName(name string) *Spec {
	spec, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("no action registered with name %q", name))
	}
	return spec
}

func (r *Registry) LookupName(name string) (*Spec, bool) {
	spec, ok := r.byName[name]
	return spec, ok
}

// SpecOf returns the spec for a concrete action instance, panicking if its
// type was never registered.
func (r *Registry) SpecOf(a types.Action) *Spec {
	spec, ok := r.byType[reflect.TypeOf(a)]
	if !ok {
		panic(fmt.Sprintf("action type %T is not registered", a))
	}
	return spec
}

func (r *Registry) LookupType(a types.Action) (*Spec, bool) {
	spec, ok := r.byType[reflect.TypeOf(a)]
	return spec, ok
}

// Specs returns all registered specs in ascending type-code order.
func (r *Registry) Specs() []*Spec {
	out := make([]*Spec, 0, len(r.byCode))
	for _, spec := range r.byCode {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
