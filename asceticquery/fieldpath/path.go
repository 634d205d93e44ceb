// Package fieldpath addresses values inside structured models by an ordered
// list of field names.
package fieldpath

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/errs"
)

// Context is a model that resolves its own fields.
type Context interface {
	Get(string) (any, error)
}

// Path is immutable; the zero Path is the identity path.
type Path struct {
	keys []string
}

func New(keys ...string) Path {
	return Path{keys: slices.Clone(keys)}
}

// Parse splits a dotted path: "partner.name" addresses model.partner.name.
// An empty string is the identity path.
func Parse(dotted string) Path {
	if dotted == "" {
		return Identity()
	}
	return Path{keys: strings.Split(dotted, ".")}
}

func Identity() Path {
	return Path{}
}

func (p Path) Keys() []string {
	return slices.Clone(p.keys)
}

func (p Path) IsIdentity() bool {
	return len(p.keys) == 0
}

func (p Path) Equal(other Path) bool {
	return slices.Equal(p.keys, other.keys)
}

func (p Path) String() string {
	if p.IsIdentity() {
		return "@"
	}
	return strings.Join(p.keys, ".")
}

// Get resolves the path against model. An absent intermediate is a
// *errs.FieldAccessError, never a placeholder value.
func (p Path) Get(model any) (any, error) {
	current := model
	for i := range p.keys {
		next, err := p.step(current, i)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func (p Path) step(current any, i int) (any, error) {
	key := p.keys[i]
	if ctx, ok := current.(Context); ok {
		value, err := ctx.Get(key)
		if err != nil {
			return nil, p.absent(i, err)
		}
		return value, nil
	}

	v := reflect.ValueOf(current)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, p.absent(i, fmt.Errorf("nil %s", v.Kind()))
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, p.absent(i, fmt.Errorf("map key type %s is not a string", v.Type().Key()))
		}
		value := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
		if !value.IsValid() {
			return nil, p.absent(i, nil)
		}
		return value.Interface(), nil
	case reflect.Struct:
		field, ok := structField(v, key)
		if !ok {
			return nil, p.absent(i, nil)
		}
		return field.Interface(), nil
	case reflect.Invalid:
		return nil, p.absent(i, fmt.Errorf("nil value"))
	}
	return nil, p.absent(i, fmt.Errorf("%s has no fields", v.Type()))
}

func (p Path) absent(i int, cause error) error {
	return &errs.FieldAccessError{Path: p.Keys(), Segment: p.keys[i], Index: i, Cause: cause}
}

// structField finds an exported field by Go name or by json tag name.
func structField(v reflect.Value, key string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Name == key {
			return v.Field(i), true
		}
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag == key {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}
