// Package cellval models the duck-typed cell values that flow through
// every CLI/HTTP input accepting a free-form row or message: a mapping
// from column name to a tagged value of one of four variants.
package cellval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"rltbl.sh/rltbl/errkind"
)

// Kind is the tag of a Value.
type Kind string

const (
	Text    Kind = "text"
	Integer Kind = "integer"
	Numeric Kind = "numeric"
	Null    Kind = "null"
)

// Value is a single duck-typed cell value.
type Value struct {
	Kind    Kind
	Text    string
	Integer int64
	Numeric float64
}

// NullValue is the Null-kind Value.
func NullValue() Value { return Value{Kind: Null} }

// TextValue wraps a string as a Text-kind Value.
func TextValue(s string) Value { return Value{Kind: Text, Text: s} }

// Raw renders v as it would appear as TSV/CLI text: the empty string
// for Null, otherwise its literal representation.
func (v Value) Raw() string {
	switch v.Kind {
	case Null:
		return ""
	case Integer:
		return strconv.FormatInt(v.Integer, 10)
	case Numeric:
		return strconv.FormatFloat(v.Numeric, 'g', -1, 64)
	default:
		return v.Text
	}
}

// SQLArg returns the value to bind as a database/sql argument: nil for
// Null, otherwise the Go-native scalar.
func (v Value) SQLArg() any {
	switch v.Kind {
	case Null:
		return nil
	case Integer:
		return v.Integer
	case Numeric:
		return v.Numeric
	default:
		return v.Text
	}
}

// FromJSON converts a single JSON scalar into a Value: JSON null ⇒
// Null, a JSON string ⇒ Text, a JSON number with no fractional part ⇒
// Integer, any other JSON number ⇒ Numeric.
func FromJSON(raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return NullValue(), nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Value{}, errkind.Wrap(errkind.ProtocolError, "decode string cell value", err)
		}
		return Value{Kind: Text, Text: s}, nil
	}
	// number
	if i, err := strconv.ParseInt(string(trimmed), 10, 64); err == nil {
		return Value{Kind: Integer, Integer: i}, nil
	}
	f, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return Value{}, errkind.New(errkind.ProtocolError, fmt.Sprintf("cell value %q is not a text/integer/numeric/null", trimmed))
	}
	return Value{Kind: Numeric, Numeric: f}, nil
}

// ParseRow decodes a JSON object mapping column name to cell value, as
// used by `add row --input` and `POST /table/{T}`'s change payloads.
func ParseRow(raw []byte) (map[string]Value, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errkind.Wrap(errkind.ProtocolError, "decode row JSON", err)
	}
	out := make(map[string]Value, len(fields))
	for col, v := range fields {
		val, err := FromJSON(v)
		if err != nil {
			return nil, err
		}
		out[col] = val
	}
	return out, nil
}
