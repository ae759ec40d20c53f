package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidPayload = fmt.Errorf("invalid payload")

// Payload is a flat JSON object. Values are strings or numbers.
type Payload map[string]any

// Marshal renders p with sorted keys, ": " and ", " separators, and floats
// that always carry a fractional part, e.g. {"Analog": 37.0}.
func (p Payload) Marshal() ([]byte, error) {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrInvalidPayload, k, err)
		}
		b.Write(kb)
		b.WriteString(": ")

		vb, err := marshalValue(p[k])
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrInvalidPayload, k, err)
		}
		b.Write(vb)
	}
	b.WriteByte('}')

	return b.Bytes(), nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	return p.Marshal()
}

func marshalValue(v any) ([]byte, error) {
	switch v := v.(type) {
	case string:
		return json.Marshal(v)
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case int:
		return []byte(strconv.Itoa(v)), nil
	case int64:
		return []byte(strconv.FormatInt(v, 10)), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func formatFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v", f)
	}

	format := byte('f')
	if a := math.Abs(f); a != 0 && (a < 1e-4 || a >= 1e16) {
		format = 'g'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return []byte(s), nil
}
