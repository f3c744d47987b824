package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record maps prompt text to response text and remembers insertion order.
// Setting an existing prompt replaces its response but keeps its position.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord returns an empty Record.
func NewRecord() *Record {
	return &Record{values: make(map[string]string)}
}

// Set stores response under prompt. It reports whether an existing response
// was overwritten.
func (r *Record) Set(prompt, response string) bool {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	_, exists := r.values[prompt]
	if !exists {
		r.keys = append(r.keys, prompt)
	}
	r.values[prompt] = response
	return exists
}

// Get returns the response for prompt.
func (r *Record) Get(prompt string) (string, bool) {
	v, ok := r.values[prompt]
	return v, ok
}

// Len returns the number of prompts.
func (r *Record) Len() int {
	return len(r.keys)
}

// Keys returns the prompts in insertion order. The slice is a copy.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Map returns the record as a plain map.
func (r *Record) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// RecordFromMap builds a Record whose order follows keyOrder. Every key must
// be present in m and m must not hold keys outside keyOrder.
func RecordFromMap(keyOrder []string, m map[string]string) (*Record, error) {
	if len(keyOrder) != len(m) {
		return nil, fmt.Errorf("key order has %d entries, data has %d", len(keyOrder), len(m))
	}
	r := NewRecord()
	for _, k := range keyOrder {
		v, ok := m[k]
		if !ok {
			return nil, fmt.Errorf("key %q missing from data", k)
		}
		if r.Set(k, v) {
			return nil, fmt.Errorf("duplicate key %q in key order", k)
		}
	}
	return r, nil
}

// MarshalJSON encodes the record as a JSON object in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
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

// UnmarshalJSON decodes a JSON object keeping member order. A repeated
// member behaves like Set: last value wins, first position kept.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = Record{values: make(map[string]string)}
	return decodeObject(data, func(key string, dec *json.Decoder) error {
		var v string
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("value for %q: %w", key, err)
		}
		r.Set(key, v)
		return nil
	})
}

// decodeObject streams the members of a JSON object in document order.
func decodeObject(data []byte, member func(key string, dec *json.Decoder) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := member(key, dec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
