package codec

import (
	"encoding/base64"
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
	"github.com/gowebpki/jcs"
	"github.com/rotisserie/eris"
)

// Fields tagged `lockstep:"nochecksum"` are excluded from the deterministic
// encoding. They may hold transient, replica-local state (UI flags, resolver
// handles) that is allowed to differ between leader and follower.
const (
	structTag      = "lockstep"
	noChecksumFlag = "nochecksum"
)

var jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// Canonical serializes v into its RFC 8785 canonical JSON form, restricted to
// checksummed fields. Same state in, same bytes out, regardless of process,
// platform, or map iteration order.
func Canonical(v any) ([]byte, error) {
	tree, err := filterValue(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	bz, err := json.Marshal(tree)
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	canonical, err := jcs.Transform(bz)
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	return canonical, nil
}

// filterValue converts rv into a plain value tree with nochecksum fields
// removed, mirroring what encoding to JSON would otherwise produce.
func filterValue(rv reflect.Value) (any, error) {
	if !rv.IsValid() {
		return nil, nil
	}
	if rv.Kind() != reflect.Pointer && rv.CanAddr() && rv.Addr().Type().Implements(jsonMarshalerType) {
		rv = rv.Addr()
	}
	if rv.Type().Implements(jsonMarshalerType) {
		return marshalerTree(rv)
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return filterValue(rv.Elem())
	case reflect.Struct:
		return filterStruct(rv)
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			val, err := filterValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out[mapKeyString(iter.Key())] = val
		}
		return out, nil
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		fallthrough
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			bz := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(bz), rv)
			return base64.StdEncoding.EncodeToString(bz), nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			val, err := filterValue(rv.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return nil, eris.Errorf("cannot checksum value of kind %s", rv.Kind())
	default:
		return rv.Interface(), nil
	}
}

func filterStruct(rv reflect.Value) (map[string]any, error) {
	out := make(map[string]any)
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Tag.Get(structTag) == noChecksumFlag {
			continue
		}
		name, omit := jsonFieldName(field)
		if omit {
			continue
		}
		val, err := filterValue(rv.Field(i))
		if err != nil {
			return nil, err
		}
		// Anonymous embedded structs without an explicit json name are
		// inlined, matching encoding behavior.
		if field.Anonymous && field.Tag.Get("json") == "" {
			if inner, ok := val.(map[string]any); ok {
				for k, v := range inner {
					out[k] = v
				}
				continue
			}
		}
		out[name] = val
	}
	return out, nil
}

func jsonFieldName(field reflect.StructField) (name string, omit bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name = field.Name
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			tag = tag[:i]
			break
		}
	}
	if tag != "" {
		name = tag
	}
	return name, false
}

func marshalerTree(rv reflect.Value) (any, error) {
	bz, err := rv.Interface().(json.Marshaler).MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	var out any
	if err := json.Unmarshal(bz, &out); err != nil {
		return nil, eris.Wrap(err, "")
	}
	return out, nil
}

func mapKeyString(key reflect.Value) string {
	if key.Kind() == reflect.String {
		return key.String()
	}
	return fmt.Sprint(key.Interface())
}
