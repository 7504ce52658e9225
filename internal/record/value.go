package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

var errInvalidFragment = errors.New("invalid json fragment")

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	// KindOther carries booleans, nested objects and arrays verbatim.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindOther:
		return "other"
	default:
		return "null"
	}
}

// Value is a single scalar cell of a Record.
type Value struct {
	kind Kind
	num  float64
	str  string
	raw  json.RawMessage
}

// Null returns the absent value.
func Null() Value { return Value{} }

// Num returns a numeric value. Non-finite input is stored as Null since it
// cannot be represented in JSON.
func Num(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Str returns a string value.
func Str(s string) Value { return Value{kind: KindString, str: s} }

// Raw wraps an arbitrary JSON fragment (boolean, object, array).
func Raw(b json.RawMessage) Value {
	cp := make(json.RawMessage, len(b))
	copy(cp, b)
	return Value{kind: KindOther, raw: cp}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsString() bool { return v.kind == KindString }

// Number returns the numeric payload and whether the value is a Number.
func (v Value) Number() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Text returns the string payload and whether the value is a String.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Float coerces the value to a number the way loose tabular data expects:
// numbers pass through, numeric strings parse, booleans map to 1/0 and
// everything else (including absent values) is 0.
func (v Value) Float() float64 {
	var (
		f   float64
		err error
	)
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return 0
		}
		f, err = cast.ToFloat64E(s)
	case KindOther:
		var decoded any
		if json.Unmarshal(v.raw, &decoded) != nil {
			return 0
		}
		f, err = cast.ToFloat64E(decoded)
	default:
		return 0
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// String renders the value as a grouping key / display label.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindString:
		return v.str
	case KindOther:
		return string(v.raw)
	default:
		return "null"
	}
}

// FormatNumber prints a float without trailing zeros, switching to exponent
// notation only for very large or very small magnitudes.
func FormatNumber(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Equal reports whether two values hold the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindOther:
		return bytes.Equal(v.raw, o.raw)
	default:
		return true
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return marshalString(v.str)
	case KindOther:
		return v.raw, nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		*v = Null()
		return nil
	}
	switch c := b[0]; {
	case c == 'n':
		*v = Null()
	case c == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Str(s)
	case c == '-' || (c >= '0' && c <= '9'):
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return err
		}
		*v = Num(f)
	default:
		if !json.Valid(b) {
			return errInvalidFragment
		}
		*v = Raw(b)
	}
	return nil
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
