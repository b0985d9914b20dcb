package value

import (
	"bytes"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Numeric returns the exact decimal form of v when v is numeric: Int, Float,
// Bool (0/1) or a String holding a well-formed number.
func Numeric(v Value) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case Int:
		return decimal.NewFromInt(int64(val)), true
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(f), true
	case Bool:
		if val {
			return decimal.NewFromInt(1), true
		}
		return decimal.Zero, true
	case String:
		s := string(val)
		if s == "" || strings.TrimSpace(s) != s {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}

// Compare orders a and b: numerically when both are numeric, otherwise by
// the byte order of their text forms. ok is false when either side is Null,
// in which case the comparison is unknown.
func Compare(a, b Value) (cmp int, ok bool) {
	if IsNull(a) || IsNull(b) {
		return 0, false
	}
	if da, aok := Numeric(a); aok {
		if db, bok := Numeric(b); bok {
			return da.Cmp(db), true
		}
	}
	return strings.Compare(Text(a), Text(b)), true
}

// Equal reports whether a and b are equal. Lists and objects are equal when
// their canonical encodings match. ok is false when either side is Null.
func Equal(a, b Value) (eq bool, ok bool) {
	if IsNull(a) || IsNull(b) {
		return false, false
	}
	if isComposite(a) || isComposite(b) {
		ca, errA := Canonical(a)
		cb, errB := Canonical(b)
		return errA == nil && errB == nil && bytes.Equal(ca, cb), true
	}
	cmp, _ := Compare(a, b)
	return cmp == 0, true
}

func isComposite(v Value) bool {
	switch v.(type) {
	case List, Object:
		return true
	}
	return false
}

// Truthy reports the boolean interpretation of v. Zero numbers, the empty
// string, "0" and empty collections are false. ok is false for Null.
func Truthy(v Value) (truth bool, ok bool) {
	switch val := v.(type) {
	case nil, Null:
		return false, false
	case Bool:
		return bool(val), true
	case Int:
		return val != 0, true
	case Float:
		return val != 0, true
	case String:
		return val != "" && val != "0", true
	case List:
		return len(val) > 0, true
	case Object:
		return len(val) > 0, true
	}
	return false, true
}

// SortCompare is Compare extended to a total order for sorting: Null sorts
// before every other value.
func SortCompare(a, b Value) int {
	an, bn := IsNull(a), IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	cmp, _ := Compare(a, b)
	return cmp
}
