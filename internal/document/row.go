// Package document holds the nested-document values produced by an archive
// run: an ordered Row that keeps the source column order through JSON and
// YAML encoding, and the BackRef marker embedded where a reference cycle
// was cut.
package document

import (
	"bytes"
	"encoding/json"

	"go.yaml.in/yaml/v3"
)

// Row is an ordered mapping from column name to value. Values are scalars,
// decoded treatment values, or embedded documents ([]*Row, BackRef).
// A Row is owned by one goroutine and is not safe for concurrent use.
type Row struct {
	keys   []string
	values map[string]any
}

// NewRow returns an empty row sized for n columns.
func NewRow(n int) *Row {
	return &Row{
		keys:   make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// Set stores v under key. A new key is appended; an existing key keeps its position.
func (r *Row) Set(key string, v any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key.
func (r *Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key exists, including keys holding nil.
func (r *Row) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Replace removes old and stores v under key at old's position. If old is
// not present, key is set as by Set.
func (r *Row) Replace(old, key string, v any) {
	if old == key {
		r.Set(key, v)
		return
	}
	idx := -1
	for i, k := range r.keys {
		if k == old {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.Set(key, v)
		return
	}
	delete(r.values, old)
	if _, exists := r.values[key]; exists {
		r.keys = append(r.keys[:idx], r.keys[idx+1:]...)
	} else {
		r.keys[idx] = key
	}
	r.values[key] = v
}

// Keys returns the column names in order. The slice is a copy.
func (r *Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of columns.
func (r *Row) Len() int {
	return len(r.keys)
}

// MarshalJSON encodes the row as a JSON object in column order.
func (r *Row) MarshalJSON() ([]byte, error) {
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
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes the row as a YAML mapping in column order.
func (r *Row) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range r.keys {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		val := &yaml.Node{}
		if err := val.Encode(r.values[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

// BackRef stands in for a referenced row that is already being expanded
// higher up the same branch.
type BackRef struct {
	Table  string `json:"$ref" yaml:"$ref"`
	Column string `json:"column" yaml:"column"`
	Value  any    `json:"value" yaml:"value"`
}
