package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Weight is one named numeric entry of a marking scheme or a marks sheet.
type Weight struct {
	Name  string
	Value float64
}

// Weights is an ordered mapping from assessment name to a number.
// JSON object key order is kept, so a marking scheme renders in the order
// the admin typed it.
type Weights []Weight

// DefaultMarkingScheme is offered to admins editing a student without a scheme.
var DefaultMarkingScheme = Weights{
	{Name: "iceTasks", Value: 0.1},
	{Name: "assignment1", Value: 0.25},
	{Name: "assignment2", Value: 0.3},
	{Name: "exam", Value: 0.35},
}

// Get returns the value stored under name
func (w Weights) Get(name string) (float64, bool) {
	for _, e := range w {
		if e.Name == name {
			return e.Value, true
		}
	}
	return 0, false
}

// Value returns the value under name, 0 when absent
func (w Weights) Value(name string) float64 {
	v, _ := w.Get(name)
	return v
}

func (w *Weights) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*w = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	out := Weights{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}

		value := numericValue(raw)
		if i := out.index(key); i >= 0 {
			// duplicate keys: last value wins, first position stays
			out[i].Value = value
			continue
		}
		out = append(out, Weight{Name: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*w = out
	return nil
}

func (w Weights) MarshalJSON() ([]byte, error) {
	if w == nil {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range w {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(finite(e.Value), 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (w Weights) index(name string) int {
	for i, e := range w {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// numericValue treats numbers and numeric strings as values, anything else as 0.
// "NaN" and "Infinity" strings parse but count as 0 too.
func numericValue(raw json.RawMessage) float64 {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}

	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return finite(f)
	default:
		return 0
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ParseWeights parses admin-entered JSON text. Blank input is an empty object.
// field names the input in the returned MalformedDataError.
func ParseWeights(field, text string) (Weights, error) {
	if strings.TrimSpace(text) == "" {
		return Weights{}, nil
	}

	var w Weights
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil, &MalformedDataError{Field: field, Err: err}
	}
	if w == nil {
		return nil, &MalformedDataError{Field: field, Err: fmt.Errorf("null is not an object")}
	}
	return w, nil
}
