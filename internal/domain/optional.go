package domain

import (
	"bytes"
	"encoding/json"

	appErrors "github.com/1282saa/paperone/pkg/errors"
)

// Optional is one field of a partial update. The zero value means the field
// was absent; Set with a nil Value means the client sent an explicit null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns a field set to v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a field explicitly set to null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// IsNull reports an explicit null.
func (o Optional[T]) IsNull() bool {
	return o.Set && o.Value == nil
}

// Get returns the value when the field carries one.
func (o Optional[T]) Get() (T, bool) {
	if o.Value == nil {
		var zero T
		return zero, false
	}
	return *o.Value, true
}

// UnmarshalJSON marks the field as set. encoding/json only calls it when the
// key is present, null included.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// required rejects an explicit null for a field that cannot be cleared.
func required[T any](o Optional[T], field string) error {
	if o.IsNull() {
		return appErrors.NewValidation(field + " cannot be null").
			WithDetails(map[string]interface{}{"field": field})
	}
	return nil
}

// applyNullable writes a set field onto dst; null clears it.
func applyNullable[T any](o Optional[T], dst **T) {
	if !o.Set {
		return
	}
	if o.Value == nil {
		*dst = nil
		return
	}
	v := *o.Value
	*dst = &v
}
