// Package codec owns every byte that crosses a serialization boundary: wire
// payloads, model snapshots, and the deterministic encoding the checksum
// pipeline hashes.
package codec

import (
	"reflect"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

func Decode[T any](bz []byte) (T, error) {
	v := new(T)
	err := json.Unmarshal(bz, v)
	if err != nil {
		return *v, eris.Wrap(err, "")
	}
	return *v, nil
}

func Encode(v any) ([]byte, error) {
	bz, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	return bz, nil
}

// DecodeInto unmarshals bz into the value pointed to by target.
func DecodeInto(bz []byte, target any) error {
	return eris.Wrap(json.Unmarshal(bz, target), "")
}

// Clone deep-copies v through a serialize/deserialize round trip. For pointer
// types the result is a freshly allocated instance; v is never aliased.
func Clone[T any](v T) (T, error) {
	var zero T
	bz, err := Encode(v)
	if err != nil {
		return zero, err
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return zero, eris.New("cannot clone nil pointer")
		}
		out := reflect.New(rv.Type().Elem())
		if err := json.Unmarshal(bz, out.Interface()); err != nil {
			return zero, eris.Wrap(err, "")
		}
		return out.Interface().(T), nil
	}
	return Decode[T](bz)
}

// NewInstance returns a freshly allocated zero value of v's concrete type.
// The concrete type must be a pointer to struct.
func NewInstance(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, eris.Errorf("cannot instantiate %T: need a non-nil pointer", v)
	}
	return reflect.New(rv.Type().Elem()).Interface(), nil
}

// CloneValue is the non-generic form of Clone for values held behind an
// interface. The concrete type must be a pointer to struct.
func CloneValue(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, eris.Errorf("cannot clone %T: need a non-nil pointer", v)
	}
	bz, err := Encode(v)
	if err != nil {
		return nil, err
	}
	out := reflect.New(rv.Type().Elem())
	if err := json.Unmarshal(bz, out.Interface()); err != nil {
		return nil, eris.Wrap(err, "")
	}
	return out.Interface(), nil
}
