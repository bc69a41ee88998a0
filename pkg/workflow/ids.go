package workflow

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeID maps a user or record identifier to its canonical string
// form. Strings are trimmed; integral numbers are rendered in base 10, so
// 42, 42.0, json.Number("42") and "42" all compare equal. ok is false for
// empty strings, fractional numbers and other types.
func NormalizeID(v interface{}) (id string, ok bool) {
	switch x := v.(type) {
	case string:
		id = strings.TrimSpace(x)
		return id, id != ""
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		d, err := decimal.NewFromString(x.String())
		if err != nil || !d.IsInteger() {
			return "", false
		}
		return d.String(), true
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', 0, 64), true
	case decimal.Decimal:
		if !x.IsInteger() {
			return "", false
		}
		return x.String(), true
	default:
		return "", false
	}
}

// sameID reports whether two identifiers are canonically equal.
func sameID(a, b interface{}) bool {
	x, ok := NormalizeID(a)
	if !ok {
		return false
	}
	y, ok := NormalizeID(b)
	return ok && x == y
}
