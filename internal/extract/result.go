package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrFieldMissing is returned by Result.Get for fields that were never extracted.
var ErrFieldMissing = errors.New("field missing")

// Result maps field identifiers to extracted text. Keys keep the order in
// which they were first set; a later Set on the same key overwrites the value.
type Result struct {
	values map[string]string
	order  []string
}

// NewResult returns an empty Result.
func NewResult() *Result {
	return &Result{values: make(map[string]string)}
}

// Set stores value under key.
func (r *Result) Set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.order = append(r.order, key)
	}
	r.values[key] = value
}

// Get returns the value of key, or ErrFieldMissing.
func (r *Result) Get(key string) (string, error) {
	v, ok := r.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrFieldMissing, key)
	}
	return v, nil
}

// Value returns the value of key, or "" when it is missing.
func (r *Result) Value(key string) string {
	return r.values[key]
}

// Has reports whether key was set.
func (r *Result) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (r *Result) Keys() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of fields.
func (r *Result) Len() int { return len(r.order) }

// Map returns a copy of the fields.
func (r *Result) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Merge copies every field of other into r, overwriting existing keys.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		r.Set(k, other.values[k])
	}
}

// MarshalJSON writes the fields as one object in insertion order.
func (r *Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat object of string values, keeping key order.
func (r *Result) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("extraction result: expected object, got %v", tok)
	}
	*r = Result{values: make(map[string]string)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("extraction result field %q: %w", key, err)
		}
		r.Set(key, value)
	}
	_, err = dec.Token()
	return err
}
