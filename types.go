package pgadmin

import (
	"bytes"
	"encoding/json"

	"github.com/rickchristie/postgres-admin/internal/coerce"
)

// Value is a single column value: null, integer, decimal, text or boolean,
// or unset when the caller supplied nothing.
type Value = coerce.Value

// SemanticType is the category a raw SQL column type falls into.
type SemanticType = coerce.SemanticType

// Widget names the HTML input control suited to a column type.
type Widget = coerce.Widget

// Value constructors.
var (
	Null  = coerce.Null
	Int   = coerce.Int
	Float = coerce.Float
	Text  = coerce.Text
	Bool  = coerce.Bool
)

// AllRows is the id that makes DeleteRow empty the whole table.
const AllRows = "all"

// TableMetadata describes a table as it exists at the moment of the call.
type TableMetadata struct {
	Schema      string                   `json:"schema"`
	Name        string                   `json:"name"`
	Columns     []ColumnMetadata         `json:"columns"`
	ForeignKeys []ForeignKeyRelationship `json:"foreign_keys"`
}

// Column returns the column named name.
func (t *TableMetadata) Column(name string) (ColumnMetadata, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnMetadata{}, false
}

// ColumnNames returns the column names in ordinal order.
func (t *TableMetadata) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the first primary key column, or "id" when the table
// has no primary key.
func (t *TableMetadata) PrimaryKey() string {
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			return c.Name
		}
	}
	return "id"
}

// ColumnMetadata describes one column.
type ColumnMetadata struct {
	Name         string     `json:"name"`
	RawType      string     `json:"raw_type"`
	CastType     string     `json:"-"`
	Nullable     bool       `json:"nullable"`
	Default      string     `json:"default,omitempty"`
	IsIdentity   bool       `json:"is_identity"`
	IsPrimaryKey bool       `json:"is_primary_key"`
	IsForeignKey bool       `json:"is_foreign_key"`
	References   *ColumnRef `json:"references,omitempty"`
}

// SemanticType classifies the column's raw type.
func (c ColumnMetadata) SemanticType() SemanticType {
	return coerce.Classify(c.RawType)
}

// Required reports whether an insert must supply a non-empty value.
func (c ColumnMetadata) Required() bool {
	return !c.Nullable && c.Default == "" && !c.IsIdentity
}

// ColumnRef points at a column of another table.
type ColumnRef struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Column string `json:"column"`
}

// ForeignKeyRelationship is one column of a foreign key. Composite keys
// produce one relationship per column.
type ForeignKeyRelationship struct {
	Constraint       string `json:"constraint"`
	Column           string `json:"column"`
	ReferencedSchema string `json:"referenced_schema"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// ReferencingKey is a column elsewhere that points at the inspected table.
type ReferencingKey struct {
	Schema           string `json:"schema"`
	Table            string `json:"table"`
	Column           string `json:"column"`
	ReferencedColumn string `json:"referenced_column"`
}

// Field is one column of a Row.
type Field struct {
	Column string
	Value  Value
}

// Row is an ordered mapping from column name to value. The empty Row
// means "no row".
type Row []Field

// Get returns the value of column.
func (r Row) Get(column string) (Value, bool) {
	for _, f := range r {
		if f.Column == column {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	cols := make([]string, len(r))
	for i, f := range r {
		cols[i] = f.Column
	}
	return cols
}

// MarshalJSON encodes the row as a JSON object, keeping column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Column)
		if err != nil {
			return nil, err
		}
		v, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PageOptions adjusts FetchPage.
type PageOptions struct {
	// Raw disables redaction.
	Raw bool
	// SortColumn orders the page; empty keeps natural table order.
	SortColumn string
	Descending bool
}

// Page is one page of rows plus the totals a pager needs.
type Page struct {
	Rows       []Row `json:"rows"`
	TotalCount int64 `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	PageCount  int   `json:"page_count"`
}
