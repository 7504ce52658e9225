// Package record holds the schema-less data model shared by every pipeline
// stage: ordered records of tagged scalar values.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// AggregationThreshold is the sequence length above which data is
	// grouped before display.
	AggregationThreshold = 20
	// DisplayCap bounds the number of groups an aggregation keeps.
	DisplayCap = 20
)

// ErrNotArray is returned when JSON input is valid but not an array.
var ErrNotArray = errors.New("json input is not an array")

// Record is an ordered mapping from field name to Value.
type Record struct {
	keys []string
	vals map[string]Value
}

// Of builds a record from alternating field names and values. Values may be
// Value, string, float64, int, int64 or nil.
func Of(kv ...any) Record {
	var r Record
	for i := 0; i+1 < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("record.Of: field name at %d is %T", i, kv[i]))
		}
		r.Set(name, valueOf(kv[i+1]))
	}
	return r
}

func valueOf(x any) Value {
	switch t := x.(type) {
	case Value:
		return t
	case string:
		return Str(t)
	case float64:
		return Num(t)
	case int:
		return Num(float64(t))
	case int64:
		return Num(float64(t))
	case nil:
		return Null()
	default:
		panic(fmt.Sprintf("record.Of: unsupported value type %T", x))
	}
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.keys) }

// Keys returns field names in insertion order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Has reports whether the field is present (even if Null).
func (r Record) Has(name string) bool {
	_, ok := r.vals[name]
	return ok
}

// Get returns the field value; missing fields read as Null.
func (r Record) Get(name string) (Value, bool) {
	v, ok := r.vals[name]
	return v, ok
}

// Set overwrites an existing field in place or appends a new one.
func (r *Record) Set(name string, v Value) {
	if r.vals == nil {
		r.vals = make(map[string]Value)
	}
	if _, ok := r.vals[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.vals[name] = v
}

// Clone returns an independent copy.
func (r Record) Clone() Record {
	out := Record{keys: make([]string, len(r.keys)), vals: make(map[string]Value, len(r.vals))}
	copy(out.keys, r.keys)
	for k, v := range r.vals {
		out.vals[k] = v
	}
	return out
}

// Equal compares field order and values.
func (r Record) Equal(o Record) bool {
	if len(r.keys) != len(o.keys) {
		return false
	}
	for i, k := range r.keys {
		if o.keys[i] != k || !r.vals[k].Equal(o.vals[k]) {
			return false
		}
	}
	return true
}

// MarshalJSON writes the record as an object with keys in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalString(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := r.vals[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, preserving key order.
func (r *Record) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected object, got %v", tok)
	}
	*r = Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: expected key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record: field %q: %w", key, err)
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("record: field %q: %w", key, err)
		}
		r.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// Sequence is an ordered dataset snapshot.
type Sequence []Record

// Fields returns the union of field names in first-seen order.
func (s Sequence) Fields() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range s {
		for _, k := range r.keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// Clone deep-copies every record.
func (s Sequence) Clone() Sequence {
	out := make(Sequence, len(s))
	for i, r := range s {
		out[i] = r.Clone()
	}
	return out
}

// Equal compares two sequences record by record.
func (s Sequence) Equal(o Sequence) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !s[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// DecodeSequence parses JSON text that must hold an array. Array elements that
// are not objects are skipped.
func DecodeSequence(data []byte) (Sequence, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		if err := drain(dec); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return nil, ErrNotArray
	}
	out := Sequence{}
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		var r Record
		if err := r.UnmarshalJSON(raw); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode json: trailing data after array")
	}
	return out, nil
}

// drain consumes the rest of a top-level value so that syntax errors are
// reported ahead of the shape mismatch.
func drain(dec *json.Decoder) error {
	for {
		if _, err := dec.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// Encode writes the sequence as JSON without HTML escaping, indented with two
// spaces when pretty is set.
func Encode(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// MarshalPretty returns the indented JSON form of v without a trailing newline.
func MarshalPretty(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, v, true); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
