// Package coerce classifies raw SQL column types and validates, converts and
// formats column values according to that classification.
//
// Every function is pure: the result depends only on the arguments.
package coerce

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	layoutDate          = "2006-01-02"
	layoutDateTime      = "2006-01-02 15:04:05"
	layoutLocalDateTime = "2006-01-02T15:04"
	layoutLocalSeconds  = "2006-01-02T15:04:05.999999"
	layoutTime          = "15:04:05"
	layoutTimeFraction  = "15:04:05.999999"
	layoutLocalTime     = "15:04"
)

var (
	numericRegex       = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
	integerRegex       = regexp.MustCompile(`^[+-]?\d+$`)
	dateRegex          = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	localDateTimeRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}$`)
	localSecondsRegex  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{1,6})?$`)
	localTimeRegex     = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

var boolTokens = map[string]bool{
	"0": false, "1": true,
	"true": true, "false": false,
	"yes": true, "no": false,
	"on": true, "off": false,
}

// Validate reports whether v is acceptable for a column of rawType. Unset and
// Null are always valid here; whether a column may be left empty is decided
// by IsEmptyValue together with the column's nullability.
func Validate(v Value, rawType string) bool {
	if v.kind == KindUnset || v.kind == KindNull {
		return true
	}
	switch Classify(rawType) {
	case TypeInteger:
		return isInteger(v)
	case TypeDecimal:
		return isNumeric(v)
	case TypeString, TypeText:
		max, ok := declaredLength(rawType)
		if !ok {
			return true
		}
		return utf8.RuneCountInString(v.String()) <= max
	case TypeDate:
		return isDate(v.String())
	case TypeDateTime:
		s := v.String()
		return isCanonicalDateTime(s) || isLocalDateTime(s) || isLocalSecondsDateTime(s)
	case TypeTime:
		s := v.String()
		return isCanonicalTime(s) || isLocalTime(s)
	case TypeBoolean:
		switch v.kind {
		case KindBool:
			return true
		case KindInt:
			return v.i == 0 || v.i == 1
		case KindFloat:
			return v.f == 0 || v.f == 1
		}
		_, ok := boolTokens[strings.ToLower(strings.TrimSpace(v.s))]
		return ok
	case TypeJSON:
		if v.kind != KindText {
			return true
		}
		return json.Valid([]byte(v.s))
	default:
		return true
	}
}

// CoerceForStorage converts v into the form stored for rawType. Local
// datetimes lose the "T" separator, seconds-less datetimes and times gain
// ":00" and booleans collapse to Int(1)/Int(0). Everything else passes
// through.
func CoerceForStorage(v Value, rawType string) Value {
	if v.kind == KindUnset || v.kind == KindNull {
		return v
	}
	switch Classify(rawType) {
	case TypeDateTime:
		switch s := v.String(); {
		case isLocalDateTime(s):
			return Text(strings.Replace(s, "T", " ", 1) + ":00")
		case isLocalSecondsDateTime(s):
			return Text(strings.Replace(s, "T", " ", 1))
		}
	case TypeTime:
		if s := v.String(); isLocalTime(s) {
			return Text(s + ":00")
		}
	case TypeBoolean:
		if truthy(v) {
			return Int(1)
		}
		return Int(0)
	}
	return v
}

// FormatForDisplay renders a stored value in the editable form expected for
// st. It is the inverse of CoerceForStorage for temporal types.
func FormatForDisplay(v Value, st SemanticType) Value {
	if v.kind == KindUnset || v.kind == KindNull {
		return Text("")
	}
	s := v.String()
	switch st {
	case TypeDateTime:
		t, err := time.Parse(layoutDateTime, s)
		if err != nil {
			return Text(s)
		}
		if t.Second() == 0 && t.Nanosecond() == 0 {
			return Text(t.Format(layoutLocalDateTime))
		}
		return Text(t.Format(layoutLocalSeconds))
	case TypeTime:
		t, err := time.Parse(layoutTime, s)
		if err != nil {
			return Text(s)
		}
		if t.Second() == 0 && t.Nanosecond() == 0 {
			return Text(t.Format(layoutLocalTime))
		}
		return Text(t.Format(layoutTimeFraction))
	case TypeDate:
		if len(s) >= 10 && isDate(s[:10]) {
			return Text(s[:10])
		}
		return Text(s)
	case TypeBoolean:
		if truthy(v) {
			return Text("1")
		}
		return Text("0")
	default:
		return Text(s)
	}
}

// IsEmptyValue reports whether v counts as "not supplied" for rawType.
// Boolean columns treat only Unset as empty, so an explicit false or 0 can
// be stored in a required boolean column.
func IsEmptyValue(v Value, rawType string) bool {
	if Classify(rawType) == TypeBoolean {
		return v.kind == KindUnset
	}
	switch v.kind {
	case KindUnset, KindNull:
		return true
	case KindText:
		return v.s == ""
	default:
		return false
	}
}

func truthy(v Value) bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i == 1
	case KindFloat:
		return v.f == 1
	case KindText:
		return boolTokens[strings.ToLower(strings.TrimSpace(v.s))]
	default:
		return false
	}
}

func isInteger(v Value) bool {
	switch v.kind {
	case KindInt:
		return true
	case KindFloat:
		return !math.IsNaN(v.f) && !math.IsInf(v.f, 0) && v.f == math.Trunc(v.f)
	case KindText:
		s := strings.TrimSpace(v.s)
		if !integerRegex.MatchString(s) {
			return false
		}
		_, err := strconv.ParseInt(s, 10, 64)
		return err == nil
	default:
		return false
	}
}

func isNumeric(v Value) bool {
	switch v.kind {
	case KindInt:
		return true
	case KindFloat:
		return !math.IsNaN(v.f) && !math.IsInf(v.f, 0)
	case KindText:
		return numericRegex.MatchString(strings.TrimSpace(v.s))
	default:
		return false
	}
}

func isDate(s string) bool {
	if !dateRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(layoutDate, s)
	return err == nil
}

// isCanonicalDateTime accepts "YYYY-MM-DD HH:MM:SS" with optional fractional
// seconds (time.Parse allows them after the seconds field).
func isCanonicalDateTime(s string) bool {
	if len(s) < len(layoutDateTime) {
		return false
	}
	_, err := time.Parse(layoutDateTime, s)
	return err == nil
}

func isLocalDateTime(s string) bool {
	if !localDateTimeRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(layoutLocalDateTime, s)
	return err == nil
}

// isLocalSecondsDateTime accepts the local form with seconds and up to six
// fractional digits, as FormatForDisplay produces it.
func isLocalSecondsDateTime(s string) bool {
	if !localSecondsRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(layoutLocalSeconds, s)
	return err == nil
}

func isCanonicalTime(s string) bool {
	if len(s) < len(layoutTime) {
		return false
	}
	_, err := time.Parse(layoutTime, s)
	return err == nil
}

func isLocalTime(s string) bool {
	if !localTimeRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(layoutLocalTime, s)
	return err == nil
}
