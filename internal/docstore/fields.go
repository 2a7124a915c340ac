package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Fields holds the top-level fields of a document. Values stay raw so nested
// objects keep the key order they were written in.
type Fields map[string]json.RawMessage

// EncodeFields converts a JSON-serialisable value into fields
func EncodeFields(v any) (Fields, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return DecodeFields(data)
}

// DecodeFields parses a JSON object into fields
func DecodeFields(data []byte) (Fields, error) {
	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}

// Set stores one field
func (f Fields) Set(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode field %s: %w", name, err)
	}
	f[name] = raw
	return nil
}

// Bytes serialises the fields as a JSON object
func (f Fields) Bytes() []byte {
	if f == nil {
		return []byte("{}")
	}
	data, err := json.Marshal(f)
	if err != nil {
		// raw values were validated on the way in
		return []byte("{}")
	}
	return data
}

// Decode unmarshals the fields into v
func (f Fields) Decode(v any) error {
	return json.Unmarshal(f.Bytes(), v)
}

// Clone copies the map and the raw values
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Merge returns a copy of f overlaid with other
func (f Fields) Merge(other Fields) Fields {
	out := f.Clone()
	for k, v := range other {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Equal compares fields by their JSON encoding
func (f Fields) Equal(other Fields) bool {
	return bytes.Equal(f.Bytes(), other.Bytes())
}
