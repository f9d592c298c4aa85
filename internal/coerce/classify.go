package coerce

import (
	"regexp"
	"strconv"
	"strings"
)

// SemanticType is the category a raw SQL column type falls into.
type SemanticType string

const (
	TypeInteger  SemanticType = "INTEGER"
	TypeDecimal  SemanticType = "DECIMAL"
	TypeString   SemanticType = "STRING"
	TypeText     SemanticType = "TEXT"
	TypeDate     SemanticType = "DATE"
	TypeDateTime SemanticType = "DATETIME"
	TypeTime     SemanticType = "TIME"
	TypeBoolean  SemanticType = "BOOLEAN"
	TypeJSON     SemanticType = "JSON"
	TypeOther    SemanticType = "OTHER"
)

var typeNames = map[string]SemanticType{
	"INT":         TypeInteger,
	"INTEGER":     TypeInteger,
	"SMALLINT":    TypeInteger,
	"MEDIUMINT":   TypeInteger,
	"BIGINT":      TypeInteger,
	"INT2":        TypeInteger,
	"INT4":        TypeInteger,
	"INT8":        TypeInteger,
	"SERIAL":      TypeInteger,
	"SMALLSERIAL": TypeInteger,
	"BIGSERIAL":   TypeInteger,

	"DECIMAL":          TypeDecimal,
	"NUMERIC":          TypeDecimal,
	"FLOAT":            TypeDecimal,
	"FLOAT4":           TypeDecimal,
	"FLOAT8":           TypeDecimal,
	"DOUBLE":           TypeDecimal,
	"DOUBLE PRECISION": TypeDecimal,
	"REAL":             TypeDecimal,

	"VARCHAR":           TypeString,
	"CHAR":              TypeString,
	"CHARACTER":         TypeString,
	"CHARACTER VARYING": TypeString,
	"BPCHAR":            TypeString,
	"NVARCHAR":          TypeString,
	"CITEXT":            TypeString,

	"TEXT":       TypeText,
	"TINYTEXT":   TypeText,
	"MEDIUMTEXT": TypeText,
	"LONGTEXT":   TypeText,

	"DATE": TypeDate,

	"DATETIME":                    TypeDateTime,
	"TIMESTAMP":                   TypeDateTime,
	"TIMESTAMP WITHOUT TIME ZONE": TypeDateTime,
	"TIMESTAMP WITH TIME ZONE":    TypeDateTime,
	"TIMESTAMPTZ":                 TypeDateTime,

	"TIME":                   TypeTime,
	"TIME WITHOUT TIME ZONE": TypeTime,

	"BOOLEAN": TypeBoolean,
	"BOOL":    TypeBoolean,
	"TINYINT": TypeBoolean,

	"JSON":  TypeJSON,
	"JSONB": TypeJSON,
}

var (
	parenSuffix = regexp.MustCompile(`\([^)]*\)`)
	spaces      = regexp.MustCompile(`\s+`)
	lengthArg   = regexp.MustCompile(`\(\s*(\d+)`)
)

// normalize strips every parenthesized modifier and case-folds, so
// "character varying(255)" and "timestamp(3) without time zone" reduce to
// their base names.
func normalize(rawType string) string {
	s := parenSuffix.ReplaceAllString(rawType, " ")
	s = spaces.ReplaceAllString(strings.TrimSpace(s), " ")
	return strings.ToUpper(s)
}

// Classify maps a raw SQL type string to its SemanticType. Unknown types,
// including arrays, classify as TypeOther.
func Classify(rawType string) SemanticType {
	if st, ok := typeNames[normalize(rawType)]; ok {
		return st
	}
	return TypeOther
}

// declaredLength returns the first numeric modifier of rawType, e.g. 255 for
// VARCHAR(255). ok is false when the type carries no length.
func declaredLength(rawType string) (int, bool) {
	m := lengthArg.FindStringSubmatch(rawType)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
