package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// nullSentinels are the string spellings sources use for "no value"
var nullSentinels = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"null": true,
}

// Decimal converts a raw coordinate value into a float, returning nil when the
// value is missing or cannot be parsed. It only interprets numeric syntax.
func Decimal(raw interface{}) *float64 {
	if v, ok := ParseDecimal(raw); ok {
		return &v
	}
	return nil
}

// ParseDecimal is the (value, ok) form of Decimal.
func ParseDecimal(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		return parseDecimalString(v.String())
	case *float64:
		if v == nil {
			return 0, false
		}
		return finite(*v)
	case string:
		return parseDecimalString(v)
	}
	return 0, false
}

// IsBlank reports whether raw means "no value": nil, a null sentinel string or
// a NaN. A non-blank value that Decimal cannot parse is malformed, not missing.
func IsBlank(raw interface{}) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case *float64:
		return v == nil || math.IsNaN(*v)
	case float64:
		return math.IsNaN(v)
	case float32:
		return math.IsNaN(float64(v))
	case string:
		return nullSentinels[strings.ToLower(stripSpace(v))]
	case json.Number:
		return nullSentinels[strings.ToLower(stripSpace(v.String()))]
	}
	return false
}

func parseDecimalString(s string) (float64, bool) {
	s = stripSpace(s)
	if nullSentinels[strings.ToLower(s)] {
		return 0, false
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return finite(f)
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")

	switch {
	case comma >= 0 && dot < 0:
		s = strings.ReplaceAll(s, ",", ".")
	case comma >= 0 && dot >= 0:
		if comma > dot {
			// 1.234,56 -> 1234.56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// 1,234.56 -> 1234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	default:
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

// stripSpace removes every whitespace rune, including non-breaking spaces
// copied out of spreadsheets.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
