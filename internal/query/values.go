package query

import (
	"encoding/json"
	"fmt"
	"time"
)

// typedValue keeps a predicate value's Go type across a JSON round trip, so
// persisted turns rebind exactly the parameters they were built with.
type typedValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type predicateJSON struct {
	Column     string       `json:"column"`
	Comparator Comparator   `json:"comparator"`
	Values     []typedValue `json:"values"`
}

// MarshalJSON encodes values with an explicit type tag
func (p Predicate) MarshalJSON() ([]byte, error) {
	out := predicateJSON{
		Column:     p.Column,
		Comparator: p.Comparator,
		Values:     make([]typedValue, 0, len(p.Values)),
	}

	for _, v := range p.Values {
		tv, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("predicate on %s: %w", p.Column, err)
		}

		out.Values = append(out.Values, tv)
	}

	return json.Marshal(out)
}

// UnmarshalJSON restores typed values written by MarshalJSON
func (p *Predicate) UnmarshalJSON(data []byte) error {
	var in predicateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	values := make([]any, 0, len(in.Values))

	for _, tv := range in.Values {
		v, err := decodeValue(tv)
		if err != nil {
			return fmt.Errorf("predicate on %s: %w", in.Column, err)
		}

		values = append(values, v)
	}

	*p = Predicate{Column: in.Column, Comparator: in.Comparator, Values: values}

	return nil
}

func encodeValue(v any) (typedValue, error) {
	var (
		kind string
		raw  any
	)

	switch x := v.(type) {
	case string:
		kind, raw = "text", x
	case int64:
		kind, raw = "integer", x
	case int:
		kind, raw = "integer", int64(x)
	case float64:
		kind, raw = "decimal", x
	case bool:
		kind, raw = "boolean", x
	case time.Time:
		kind, raw = "timestamp", x.Format(time.RFC3339Nano)
	default:
		return typedValue{}, fmt.Errorf("unsupported value type %T", v)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return typedValue{}, err
	}

	return typedValue{Type: kind, Value: data}, nil
}

func decodeValue(tv typedValue) (any, error) {
	switch tv.Type {
	case "text":
		var s string
		err := json.Unmarshal(tv.Value, &s)

		return s, err
	case "integer":
		var n int64
		err := json.Unmarshal(tv.Value, &n)

		return n, err
	case "decimal":
		var f float64
		err := json.Unmarshal(tv.Value, &f)

		return f, err
	case "boolean":
		var b bool
		err := json.Unmarshal(tv.Value, &b)

		return b, err
	case "timestamp":
		var s string
		if err := json.Unmarshal(tv.Value, &s); err != nil {
			return nil, err
		}

		return time.Parse(time.RFC3339Nano, s)
	default:
		return nil, fmt.Errorf("unknown value type %q", tv.Type)
	}
}
