package model

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// The mapper converts between model structs and the store's document
// representation. Field names follow the `firedantic` struct tag:
//
//	type Product struct {
//	    ID        string    `firedantic:"id"`
//	    Name      string    `firedantic:"product_name"`
//	    Stock     int64     `firedantic:"stock"`
//	    Discount  *float64  `firedantic:"discount,omitempty"`
//	    internal  string    // unexported, never serialized
//	}
//
// Untagged exported fields use their Go name. A tag of "-" excludes the
// field. Anonymous embedded structs are flattened.

type fieldSpec struct {
	name      string
	index     []int
	omitEmpty bool
}

type structSpec struct {
	fields []fieldSpec
	byName map[string]int
}

var specCache sync.Map // reflect.Type -> *structSpec

func specForType(t reflect.Type) (*structSpec, error) {
	if cached, ok := specCache.Load(t); ok {
		return cached.(*structSpec), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrInvalidModel, t)
	}

	spec := &structSpec{byName: make(map[string]int)}
	if err := collectFields(t, nil, spec); err != nil {
		return nil, err
	}

	cached, _ := specCache.LoadOrStore(t, spec)
	return cached.(*structSpec), nil
}

func collectFields(t reflect.Type, parentIndex []int, spec *structSpec) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), parentIndex...), i)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.Tag.Get("firedantic") == "" {
			if err := collectFields(sf.Type, index, spec); err != nil {
				return err
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}

		name := sf.Name
		var omitEmpty bool
		if tag, ok := sf.Tag.Lookup("firedantic"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, p := range parts[1:] {
				if p == "omitempty" {
					omitEmpty = true
				}
			}
		}

		if _, dup := spec.byName[name]; dup {
			return fmt.Errorf("%w: duplicate field name %q on %s", ErrInvalidModel, name, t)
		}
		spec.byName[name] = len(spec.fields)
		spec.fields = append(spec.fields, fieldSpec{name: name, index: index, omitEmpty: omitEmpty})
	}
	return nil
}

// mapper converts one model type to and from documents. idName is the
// serialized name of the document ID field, which is carried in the path
// rather than the payload.
type mapper struct {
	spec    *structSpec
	idName  string
	idIndex []int
}

func newMapper(t reflect.Type, idName string) (*mapper, error) {
	spec, err := specForType(t)
	if err != nil {
		return nil, err
	}

	i, ok := spec.byName[idName]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %q field", ErrInvalidModel, t, idName)
	}
	idField := spec.fields[i]
	if fieldType(t, idField.index).Kind() != reflect.String {
		return nil, fmt.Errorf("%w: %s field %q must be a string", ErrInvalidModel, t, idName)
	}

	return &mapper{spec: spec, idName: idName, idIndex: idField.index}, nil
}

func fieldType(t reflect.Type, index []int) reflect.Type {
	for _, i := range index {
		t = t.Field(i).Type
	}
	return t
}

// documentID returns the current ID value of a model.
func (m *mapper) documentID(v reflect.Value) string {
	return v.FieldByIndex(m.idIndex).String()
}

// setDocumentID writes the ID onto the model.
func (m *mapper) setDocumentID(v reflect.Value, id string) {
	v.FieldByIndex(m.idIndex).SetString(id)
}

// toDocument serializes a model into document fields. The ID field is
// excluded since the path carries it. With omitZero, every zero-valued
// field is left out; otherwise only `,omitempty` fields are.
func (m *mapper) toDocument(v reflect.Value, omitZero bool) map[string]any {
	out := make(map[string]any, len(m.spec.fields))
	for _, f := range m.spec.fields {
		if f.name == m.idName {
			continue
		}
		fv := v.FieldByIndex(f.index)
		if (omitZero || f.omitEmpty) && fv.IsZero() {
			continue
		}
		out[f.name] = encodeValue(fv)
	}
	return out
}

// fromDocument deserializes document fields into a model and injects the
// ID decoded from the document path. Keys missing from the document leave
// the struct's existing (default) values untouched; unknown keys are
// ignored.
func (m *mapper) fromDocument(fields map[string]any, docID string, v reflect.Value) error {
	for name, raw := range fields {
		i, ok := m.spec.byName[name]
		if !ok || name == m.idName {
			continue
		}
		f := m.spec.fields[i]
		if err := decodeValue(raw, v.FieldByIndex(f.index)); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	m.setDocumentID(v, docID)
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

func encodeValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return encodeValue(v.Elem())
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface()
		}
		return encodeNestedStruct(v)
	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprintf("%v", iter.Key().Interface())] = encodeValue(iter.Value())
		}
		return out
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes()
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = encodeValue(v.Index(i))
		}
		return out
	default:
		return v.Interface()
	}
}

func encodeNestedStruct(v reflect.Value) map[string]any {
	spec, err := specForType(v.Type())
	if err != nil {
		// Unreachable for values that passed manager construction.
		return nil
	}
	out := make(map[string]any, len(spec.fields))
	for _, f := range spec.fields {
		fv := v.FieldByIndex(f.index)
		if f.omitEmpty && fv.IsZero() {
			continue
		}
		out[f.name] = encodeValue(fv)
	}
	return out
}

func decodeValue(raw any, target reflect.Value) error {
	if raw == nil {
		target.SetZero()
		return nil
	}

	switch target.Kind() {
	case reflect.Pointer:
		if target.IsNil() {
			target.Set(reflect.New(target.Type().Elem()))
		}
		return decodeValue(raw, target.Elem())
	case reflect.Interface:
		target.Set(reflect.ValueOf(raw))
		return nil
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return decodeMismatch(raw, target)
		}
		target.SetString(s)
		return nil
	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return decodeMismatch(raw, target)
		}
		target.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := rawInt(raw)
		if !ok {
			return decodeMismatch(raw, target)
		}
		target.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := rawInt(raw)
		if !ok || n < 0 {
			return decodeMismatch(raw, target)
		}
		target.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		switch n := raw.(type) {
		case float64:
			target.SetFloat(n)
		case int64:
			target.SetFloat(float64(n))
		default:
			return decodeMismatch(raw, target)
		}
		return nil
	case reflect.Struct:
		if target.Type() == timeType {
			t, ok := raw.(time.Time)
			if !ok {
				return decodeMismatch(raw, target)
			}
			target.Set(reflect.ValueOf(t))
			return nil
		}
		return decodeStruct(raw, target)
	case reflect.Map:
		return decodeMap(raw, target)
	case reflect.Slice:
		return decodeSlice(raw, target)
	default:
		return decodeMismatch(raw, target)
	}
}

func decodeStruct(raw any, target reflect.Value) error {
	fields, ok := raw.(map[string]any)
	if !ok {
		return decodeMismatch(raw, target)
	}
	spec, err := specForType(target.Type())
	if err != nil {
		return err
	}
	for name, value := range fields {
		i, ok := spec.byName[name]
		if !ok {
			continue
		}
		if err := decodeValue(value, target.FieldByIndex(spec.fields[i].index)); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}

func decodeMap(raw any, target reflect.Value) error {
	fields, ok := raw.(map[string]any)
	if !ok {
		return decodeMismatch(raw, target)
	}
	if target.Type().Key().Kind() != reflect.String {
		return decodeMismatch(raw, target)
	}
	out := reflect.MakeMapWithSize(target.Type(), len(fields))
	elemType := target.Type().Elem()
	for k, v := range fields {
		elem := reflect.New(elemType).Elem()
		if err := decodeValue(v, elem); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		out.SetMapIndex(reflect.ValueOf(k).Convert(target.Type().Key()), elem)
	}
	target.Set(out)
	return nil
}

func decodeSlice(raw any, target reflect.Value) error {
	if target.Type().Elem().Kind() == reflect.Uint8 {
		b, ok := raw.([]byte)
		if !ok {
			return decodeMismatch(raw, target)
		}
		target.SetBytes(append([]byte(nil), b...))
		return nil
	}

	elems, ok := raw.([]any)
	if !ok {
		return decodeMismatch(raw, target)
	}
	out := reflect.MakeSlice(target.Type(), len(elems), len(elems))
	for i, e := range elems {
		if err := decodeValue(e, out.Index(i)); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}
	target.Set(out)
	return nil
}

func rawInt(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		// Stores with a unified number type may hand integers back as
		// floats.
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func decodeMismatch(raw any, target reflect.Value) error {
	return fmt.Errorf("cannot decode %T into %s", raw, target.Type())
}
