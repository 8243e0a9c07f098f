package value

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// JSONOptions tune the wire rendering of a Value.
type JSONOptions struct {
	// IntegersAsStrings renders Integer values as decimal strings so that
	// consumers limited to float64 numbers can parse them losslessly.
	IntegersAsStrings bool
}

type blobJSON struct {
	Blob string `json:"blob"`
}

// MarshalJSON renders Null as null, Integer and Float as numbers, Text as a
// string and Blob as {"blob":"<base64>"}.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.AppendJSON(nil, JSONOptions{})
}

// AppendJSON appends the JSON form of v to dst.
func (v Value) AppendJSON(dst []byte, o JSONOptions) ([]byte, error) {
	switch v.kind {
	case KindNull:
		return append(dst, "null"...), nil
	case KindInteger:
		if o.IntegersAsStrings {
			dst = append(dst, '"')
			dst = strconv.AppendInt(dst, v.i, 10)
			return append(dst, '"'), nil
		}
		return strconv.AppendInt(dst, v.i, 10), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return append(dst, "null"...), nil
		}
		n := len(dst)
		dst = strconv.AppendFloat(dst, v.f, 'g', -1, 64)
		if !bytes.ContainsAny(dst[n:], ".e") {
			dst = append(dst, ".0"...)
		}
		return dst, nil
	case KindText:
		b, err := json.Marshal(v.s)
		if err != nil {
			return nil, err
		}
		return append(dst, b...), nil
	case KindBlob:
		b, err := json.Marshal(blobJSON{Blob: base64.StdEncoding.EncodeToString(v.b)})
		if err != nil {
			return nil, err
		}
		return append(dst, b...), nil
	}
	return nil, fmt.Errorf("value: unknown kind %v", v.kind)
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON. JSON numbers
// that parse as int64 become Integer, other numbers Float; booleans become
// Integer 0/1. Arrays and objects other than the blob form fail with
// *UnsupportedTypeError.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := fromJSON(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func fromJSON(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return From(x)
	case string:
		return Text(x), nil
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return Integer(i), nil
		}
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid number %q: %w", x, err)
		}
		return Float(f), nil
	case map[string]any:
		if len(x) == 1 {
			if enc, ok := x["blob"].(string); ok {
				b, err := base64.StdEncoding.DecodeString(enc)
				if err != nil {
					return Value{}, fmt.Errorf("value: invalid blob encoding: %w", err)
				}
				return Blob(b), nil
			}
		}
	}
	return Value{}, &UnsupportedTypeError{Value: raw}
}
