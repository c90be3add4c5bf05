package request

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request is the dataset description submitted to the service: an ordered
// mapping of field name to a scalar or list of scalars. The engine never
// interprets the fields beyond target and dataset; everything is forwarded
// verbatim, in the order the caller set it.
type Request struct {
	fields []Field
}

type Field struct {
	Name  string
	Value any
}

// Builder produces a Request. Dataset-specific convenience wrappers
// implement it so the façade never needs to know which variant shaped the
// request.
type Builder interface {
	BuildRequest() (Request, error)
}

// New builds a Request from fields, preserving their order.
func New(fields ...Field) Request {
	r := Request{}
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// Set adds a field or replaces an existing one in place.
func (r *Request) Set(name string, value any) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = value
			return
		}
	}
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

// Get returns a field's value as a string, or "" when absent.
func (r Request) Get(name string) string {
	for _, f := range r.fields {
		if f.Name == name {
			return fmt.Sprint(f.Value)
		}
	}
	return ""
}

// Delete removes a field if present.
func (r *Request) Delete(name string) {
	for i, f := range r.fields {
		if f.Name == name {
			r.fields = append(r.fields[:i], r.fields[i+1:]...)
			return
		}
	}
}

func (r Request) Len() int { return len(r.fields) }

// Fields returns a copy of the field list in order.
func (r Request) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// BuildRequest makes a Request its own Builder.
func (r Request) BuildRequest() (Request, error) { return r, nil }

// MarshalJSON emits the fields as a JSON object in insertion order.
func (r Request) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
