package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
)

// Record is a string-keyed row that remembers the order in which keys were
// first set.
type Record struct {
	keys []string
	vals map[string]any
}

// NewRecord builds a record from alternating keys and values:
//
//	model.NewRecord("name", "Ann", "age", 41)
//
// It panics if a key is not a string or a value is missing.
func NewRecord(kv ...any) *Record {
	if len(kv)%2 != 0 {
		panic("model.NewRecord: odd number of arguments")
	}
	r := &Record{}
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("model.NewRecord: key %v is not a string", kv[i]))
		}
		r.Set(k, kv[i+1])
	}
	return r
}

// Set assigns v to key k, appending k if it is new.
func (r *Record) Set(k string, v any) {
	if r.vals == nil {
		r.vals = make(map[string]any)
	}
	if _, ok := r.vals[k]; !ok {
		r.keys = append(r.keys, k)
	}
	r.vals[k] = v
}

// Get returns the value stored under k.
func (r *Record) Get(k string) (any, bool) {
	v, ok := r.vals[k]
	return v, ok
}

// Has reports whether k is present.
func (r *Record) Has(k string) bool {
	_, ok := r.vals[k]
	return ok
}

// Delete removes k.
func (r *Record) Delete(k string) {
	if _, ok := r.vals[k]; !ok {
		return
	}
	delete(r.vals, k)
	r.keys = slices.DeleteFunc(r.keys, func(s string) bool { return s == k })
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	return slices.Clone(r.keys)
}

// Len returns the number of keys.
func (r *Record) Len() int {
	return len(r.keys)
}

// All yields key/value pairs in insertion order.
func (r *Record) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range r.keys {
			if !yield(k, r.vals[k]) {
				return
			}
		}
	}
}

// Map returns the record as a plain map.
func (r *Record) Map() map[string]any {
	m := make(map[string]any, len(r.keys))
	for k, v := range r.All() {
		m[k] = v
	}
	return m
}

// MarshalJSON encodes the record as a JSON object with keys in insertion
// order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.vals[k])
		if err != nil {
			return nil, fmt.Errorf("marshaling %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
