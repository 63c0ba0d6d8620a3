package dataset

import (
	"math"
	"strconv"
)

// Kind tags the variant held by a Value
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindText
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "missing"
	}
}

// Value is a single cell: missing, a number or a piece of text.
// The zero Value is missing.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Missing returns the missing value
func Missing() Value {
	return Value{}
}

// Number wraps f. NaN is normalised to missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Int wraps an integer as a number
func Int(i int64) Value {
	return Value{kind: KindNumber, num: float64(i)}
}

// Text wraps s as text
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Kind reports which variant v holds
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether v is missing
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Float returns the numeric payload. ok is false unless v is a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Text returns the text payload. ok is false unless v is text.
func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// String renders v the way it is written to CSV: missing is empty, integral
// numbers have no fraction and other numbers use the shortest representation.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return formatNumber(v.num)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// Equal reports whether v and o hold the same variant and payload.
// Two missing values are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	default:
		return true
	}
}

// Key returns an encoding of v that is unique per variant and payload
func (v Value) Key() string {
	switch v.kind {
	case KindNumber:
		// -0 == 0, so both must share a key
		if v.num == 0 {
			return "n0"
		}
		return "n" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindText:
		return "t" + v.text
	default:
		return "m"
	}
}

func formatNumber(f float64) string {
	if math.IsInf(f, 0) {
		if f > 0 {
			return "inf"
		}
		return "-inf"
	}
	if math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
