package coerce

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	cases := map[string]SemanticType{
		"INT":                            TypeInteger,
		"int(11)":                        TypeInteger,
		"bigint":                         TypeInteger,
		"DECIMAL(10,2)":                  TypeDecimal,
		"numeric(12, 4)":                 TypeDecimal,
		"double precision":               TypeDecimal,
		"VARCHAR(255)":                   TypeString,
		"character varying(5)":           TypeString,
		"character(2)":                   TypeString,
		"text":                           TypeText,
		"LONGTEXT":                       TypeText,
		"date":                           TypeDate,
		"DATETIME":                       TypeDateTime,
		"timestamp without time zone":    TypeDateTime,
		"timestamp(3) with time zone":    TypeDateTime,
		"time without time zone":         TypeTime,
		"TIME":                           TypeTime,
		"boolean":                        TypeBoolean,
		"TINYINT(1)":                     TypeBoolean,
		"jsonb":                          TypeJSON,
		"uuid":                           TypeOther,
		"integer[]":                      TypeOther,
		"time with time zone":            TypeOther,
		"  varchar ( 20 )  ":             TypeString,
		"geometry(Point,4326)":           TypeOther,
		"timestamp(6) without time zone": TypeDateTime,
	}
	for raw, want := range cases {
		if got := Classify(raw); got != want {
			t.Errorf("Classify(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestValidate_StringLength(t *testing.T) {
	t.Parallel()
	if Validate(Text("abcdef"), "VARCHAR(5)") {
		t.Fatal("expected 6 characters to exceed VARCHAR(5)")
	}
	if !Validate(Text("abcde"), "VARCHAR(5)") {
		t.Fatal("expected 5 characters to fit VARCHAR(5)")
	}
	if !Validate(Text("héllo"), "character varying(5)") {
		t.Fatal("expected length to be counted in characters, not bytes")
	}
	if !Validate(Text("any length at all"), "text") {
		t.Fatal("expected unbounded text to accept any string")
	}
}

func TestValidate_Numeric(t *testing.T) {
	t.Parallel()
	tests := []struct {
		value   Value
		rawType string
		want    bool
	}{
		{Text("42"), "INT", true},
		{Text("-7"), "integer", true},
		{Text("4.5"), "INT", false},
		{Text("abc"), "INT", false},
		{Text("1e3"), "INT", false},
		{Int(3), "bigint", true},
		{Float(3), "bigint", true},
		{Float(3.25), "bigint", false},
		{Bool(true), "integer", false},
		{Text("4.5"), "DECIMAL(10,2)", true},
		{Text(".5"), "numeric", true},
		{Text("1e-3"), "real", true},
		{Text("0x1p-2"), "numeric", false},
		{Text("NaN"), "numeric", false},
		{Float(2.5), "numeric", true},
	}
	for _, tt := range tests {
		if got := Validate(tt.value, tt.rawType); got != tt.want {
			t.Errorf("Validate(%#v, %q) = %v, want %v", tt.value, tt.rawType, got, tt.want)
		}
	}
}

func TestValidate_Temporal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		value   string
		rawType string
		want    bool
	}{
		{"2024-12-24T15:30", "DATETIME", true},
		{"2024-12-24 15:30:00", "DATETIME", true},
		{"2024-12-24 15:30:00.123", "timestamp", true},
		{"2024-12-24", "DATETIME", false},
		{"2024-13-24T15:30", "DATETIME", false},
		{"24/12/2024 15:30", "DATETIME", false},
		{"15:30", "TIME", true},
		{"15:30:45", "time without time zone", true},
		{"25:30", "TIME", false},
		{"1530", "TIME", false},
		{"2024-02-29", "date", true},
		{"2023-02-29", "date", false},
		{"2024-2-9", "date", false},
	}
	for _, tt := range tests {
		if got := Validate(Text(tt.value), tt.rawType); got != tt.want {
			t.Errorf("Validate(%q, %q) = %v, want %v", tt.value, tt.rawType, got, tt.want)
		}
	}
}

func TestValidate_BooleanTokens(t *testing.T) {
	t.Parallel()
	for _, tok := range []string{"0", "1", "true", "FALSE", "Yes", "no", "ON", "off"} {
		if !Validate(Text(tok), "BOOLEAN") {
			t.Errorf("expected token %q to be a valid boolean", tok)
		}
	}
	for _, tok := range []string{"2", "maybe", "", "t"} {
		if Validate(Text(tok), "boolean") {
			t.Errorf("expected token %q to be rejected", tok)
		}
	}
	if !Validate(Bool(false), "tinyint(1)") || !Validate(Int(1), "bool") {
		t.Fatal("expected Bool and Int 0/1 to be valid booleans")
	}
	if Validate(Int(5), "bool") {
		t.Fatal("expected Int(5) to be rejected for a boolean column")
	}
}

func TestValidate_JSONAndOther(t *testing.T) {
	t.Parallel()
	if !Validate(Text(`{"a":[1,2]}`), "jsonb") {
		t.Fatal("expected valid JSON object to pass")
	}
	if Validate(Text(`{"a":`), "json") {
		t.Fatal("expected truncated JSON to fail")
	}
	if !Validate(Text("anything"), "uuid") {
		t.Fatal("expected OTHER to always be valid")
	}
	if !Validate(Null(), "VARCHAR(1)") || !Validate(Value{}, "INT") {
		t.Fatal("expected null and unset to be valid for every type")
	}
}

func TestCoerceForStorage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		value   Value
		rawType string
		want    Value
	}{
		{Text("2024-12-24T15:30"), "DATETIME", Text("2024-12-24 15:30:00")},
		{Text("2024-12-24 15:30:10"), "DATETIME", Text("2024-12-24 15:30:10")},
		{Text("15:30"), "TIME", Text("15:30:00")},
		{Text("15:30:05"), "TIME", Text("15:30:05")},
		{Text("true"), "BOOLEAN", Int(1)},
		{Text("ON"), "tinyint(1)", Int(1)},
		{Text("yes"), "bool", Int(1)},
		{Text("1"), "bool", Int(1)},
		{Text("false"), "BOOLEAN", Int(0)},
		{Text("garbage"), "BOOLEAN", Int(0)},
		{Bool(true), "BOOLEAN", Int(1)},
		{Int(0), "BOOLEAN", Int(0)},
		{Null(), "BOOLEAN", Null()},
		{Null(), "DATETIME", Null()},
		{Text("abc"), "VARCHAR(10)", Text("abc")},
		{Int(7), "INT", Int(7)},
	}
	for _, tt := range tests {
		if got := CoerceForStorage(tt.value, tt.rawType); !got.Equal(tt.want) {
			t.Errorf("CoerceForStorage(%#v, %q) = %#v, want %#v", tt.value, tt.rawType, got, tt.want)
		}
	}
}

func TestFormatForDisplay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		value Value
		st    SemanticType
		want  string
	}{
		{Text("2024-12-24 15:30:00"), TypeDateTime, "2024-12-24T15:30"},
		{Text("2024-12-24 15:30:45"), TypeDateTime, "2024-12-24T15:30:45"},
		{Text("2024-12-24 15:30:00.250"), TypeDateTime, "2024-12-24T15:30:00.25"},
		{Text("2024-12-24 15:30:45.123456"), TypeDateTime, "2024-12-24T15:30:45.123456"},
		{Text("15:30:45.5"), TypeTime, "15:30:45.5"},
		{Text("15:30:00"), TypeTime, "15:30"},
		{Text("15:30:45"), TypeTime, "15:30:45"},
		{Text("2024-12-24"), TypeDate, "2024-12-24"},
		{Text("2024-12-24 00:00:00"), TypeDate, "2024-12-24"},
		{Int(1), TypeBoolean, "1"},
		{Int(0), TypeBoolean, "0"},
		{Bool(true), TypeBoolean, "1"},
		{Null(), TypeDateTime, ""},
		{Value{}, TypeText, ""},
		{Float(2.5), TypeDecimal, "2.5"},
		{Text("not a date"), TypeDateTime, "not a date"},
	}
	for _, tt := range tests {
		got, _ := FormatForDisplay(tt.value, tt.st).Text()
		if got != tt.want {
			t.Errorf("FormatForDisplay(%#v, %s) = %q, want %q", tt.value, tt.st, got, tt.want)
		}
	}
}

func TestTemporalRoundTrip(t *testing.T) {
	t.Parallel()
	inputs := map[string][]string{
		"DATETIME":                    {"2024-12-24T15:30", "1999-01-01T00:00", "2030-06-15T23:59"},
		"timestamp without time zone": {"2024-02-29T12:00"},
		"TIME":                        {"15:30", "00:00", "23:59"},
		"DATE":                        {"2024-12-24"},
	}
	for rawType, values := range inputs {
		st := Classify(rawType)
		for _, x := range values {
			if !Validate(Text(x), rawType) {
				t.Fatalf("expected %q to be valid for %s", x, rawType)
			}
			got, _ := FormatForDisplay(CoerceForStorage(Text(x), rawType), st).Text()
			if got != x {
				t.Errorf("round trip of %q through %s produced %q", x, rawType, got)
			}
		}
	}
}

func TestDisplayedValuesValidateAndStoreUnchanged(t *testing.T) {
	t.Parallel()
	stored := map[string][]string{
		"timestamp without time zone": {
			"2024-12-24 15:30:45",
			"2024-12-24 15:30:00.25",
			"2024-12-24 15:30:45.123456",
		},
		"time without time zone": {"15:30:45", "15:30:45.5"},
	}
	for rawType, values := range stored {
		st := Classify(rawType)
		for _, s := range values {
			shown := FormatForDisplay(Text(s), st)
			if !Validate(shown, rawType) {
				t.Errorf("%s: displayed form %#v of %q does not validate", rawType, shown, s)
				continue
			}
			got, _ := CoerceForStorage(shown, rawType).Text()
			if got != s {
				t.Errorf("%s: storing displayed form of %q produced %q", rawType, s, got)
			}
		}
	}
}

func TestValidate_LocalDateTimeWithSeconds(t *testing.T) {
	t.Parallel()
	valid := []string{"2024-12-24T15:30:45", "2024-12-24T15:30:45.1", "2024-12-24T15:30:45.123456"}
	for _, s := range valid {
		if !Validate(Text(s), "DATETIME") {
			t.Errorf("expected %q to be valid", s)
		}
	}
	invalid := []string{"2024-12-24T15:30:45.", "2024-12-24T15:30:45.1234567", "2024-12-24T25:30:45", "2024-12-24T15:30:4"}
	for _, s := range invalid {
		if Validate(Text(s), "DATETIME") {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestIsEmptyValue_BooleanAsymmetry(t *testing.T) {
	t.Parallel()
	for _, rawType := range []string{"BOOLEAN", "TINYINT(1)", "bool"} {
		if IsEmptyValue(Int(0), rawType) {
			t.Errorf("%s: Int(0) must not be empty", rawType)
		}
		if IsEmptyValue(Text("false"), rawType) {
			t.Errorf("%s: \"false\" must not be empty", rawType)
		}
		if IsEmptyValue(Text("0"), rawType) {
			t.Errorf("%s: \"0\" must not be empty", rawType)
		}
		if !IsEmptyValue(Value{}, rawType) {
			t.Errorf("%s: unset must be empty", rawType)
		}
	}
}

func TestIsEmptyValue_Conventional(t *testing.T) {
	t.Parallel()
	if !IsEmptyValue(Null(), "VARCHAR(10)") || !IsEmptyValue(Text(""), "INT") || !IsEmptyValue(Value{}, "date") {
		t.Fatal("expected null, empty string and unset to be empty")
	}
	if IsEmptyValue(Text("0"), "INT") || IsEmptyValue(Int(0), "INT") || IsEmptyValue(Text(" "), "text") {
		t.Fatal("expected non-empty values to be reported as present")
	}
}

func TestInputWidgetFor(t *testing.T) {
	t.Parallel()
	cases := map[string]Widget{
		"INT":           WidgetNumber,
		"DECIMAL(10,2)": WidgetNumber,
		"VARCHAR(50)":   WidgetText,
		"TEXT":          WidgetTextarea,
		"DATE":          WidgetDate,
		"DATETIME":      WidgetDateTimeLocal,
		"TIME":          WidgetTime,
		"TINYINT(1)":    WidgetCheckbox,
		"jsonb":         WidgetJSON,
		"uuid":          WidgetText,
	}
	for raw, want := range cases {
		if got := InputWidgetFor(raw); got != want {
			t.Errorf("InputWidgetFor(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestFormatForInput(t *testing.T) {
	t.Parallel()
	if got := FormatForInput(Text("2024-12-24 15:30:00"), WidgetDateTimeLocal); got != "2024-12-24T15:30" {
		t.Fatalf("expected datetime-local value, got %q", got)
	}
	if got := FormatForInput(Int(1), WidgetCheckbox); got != "1" {
		t.Fatalf("expected checkbox value 1, got %q", got)
	}
	if got := FormatForInput(Null(), WidgetText); got != "" {
		t.Fatalf("expected empty string for null, got %q", got)
	}
	if got := FormatForInput(Int(42), WidgetNumber); got != "42" {
		t.Fatalf("expected 42, got %q", got)
	}
}

func TestFromAny(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   any
		want Value
	}{
		{nil, Null()},
		{true, Bool(true)},
		{"x", Text("x")},
		{float64(3), Int(3)},
		{float64(3.5), Float(3.5)},
		{json.Number("12"), Int(12)},
		{json.Number("1.25"), Float(1.25)},
		{int32(9), Int(9)},
	}
	for _, tt := range tests {
		if got := FromAny(tt.in); !got.Equal(tt.want) {
			t.Errorf("FromAny(%v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestFromDB(t *testing.T) {
	t.Parallel()
	ts := time.Date(2024, 12, 24, 15, 30, 0, 0, time.UTC)
	if got := FromDB(ts, pgtype.TimestampOID); !got.Equal(Text("2024-12-24 15:30:00")) {
		t.Fatalf("unexpected timestamp rendering %#v", got)
	}
	if got := FromDB(ts, pgtype.DateOID); !got.Equal(Text("2024-12-24")) {
		t.Fatalf("unexpected date rendering %#v", got)
	}
	tm := pgtype.Time{Microseconds: (15*3600 + 30*60) * 1_000_000, Valid: true}
	if got := FromDB(tm, pgtype.TimeOID); !got.Equal(Text("15:30:00")) {
		t.Fatalf("unexpected time rendering %#v", got)
	}
	if got := FromDB(map[string]any{"a": float64(1)}, pgtype.JSONBOID); !got.Equal(Text(`{"a":1}`)) {
		t.Fatalf("unexpected jsonb rendering %#v", got)
	}
	if got := FromDB("plain", pgtype.JSONBOID); !got.Equal(Text(`"plain"`)) {
		t.Fatalf("expected JSON string to keep its quotes, got %#v", got)
	}
	if got := FromDB(int32(5), pgtype.Int4OID); !got.Equal(Int(5)) {
		t.Fatalf("unexpected int4 conversion %#v", got)
	}
	if got := FromDB(nil, pgtype.TextOID); !got.IsNull() {
		t.Fatalf("expected null, got %#v", got)
	}
}

func TestFromDB_Numeric(t *testing.T) {
	t.Parallel()
	parse := func(s string) pgtype.Numeric {
		var n pgtype.Numeric
		if err := n.Scan(s); err != nil {
			t.Fatalf("scan %q: %v", s, err)
		}
		return n
	}
	cases := []struct {
		in   string
		want Value
	}{
		{"12.50", Float(12.5)},
		{"100", Float(100)},
		{"0.00", Float(0)},
		{"-3.25", Float(-3.25)},
		{"12345678901234567890.123456789", Text("12345678901234567890.123456789")},
		{"0.10000000000000000001", Text("0.10000000000000000001")},
		{"NaN", Text("NaN")},
	}
	for _, tc := range cases {
		if got := FromDB(parse(tc.in), pgtype.NumericOID); !got.Equal(tc.want) {
			t.Errorf("FromDB(numeric %s) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
	if got := FromDB(pgtype.Numeric{}, pgtype.NumericOID); !got.IsNull() {
		t.Fatalf("expected invalid numeric to be null, got %#v", got)
	}
}

func TestValueJSON(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal([]Value{Null(), Int(1), Float(2.5), Text("a"), Bool(false), {}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != `[null,1,2.5,"a",false,null]` {
		t.Fatalf("unexpected JSON %s", b)
	}
}

func TestValueSQLArg(t *testing.T) {
	t.Parallel()
	if Null().SQLArg() != nil || (Value{}).SQLArg() != nil {
		t.Fatal("expected nil argument for null and unset")
	}
	if Int(1).SQLArg() != "1" || Float(0.5).SQLArg() != "0.5" || Text("x").SQLArg() != "x" {
		t.Fatal("expected text arguments for scalar values")
	}
}
