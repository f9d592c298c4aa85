package pgadmin

import (
	"context"
	"fmt"
	"time"

	"github.com/rickchristie/postgres-admin/internal/audit"
	"github.com/rickchristie/postgres-admin/internal/coerce"
	"github.com/rickchristie/postgres-admin/internal/guard"
	"github.com/rickchristie/postgres-admin/internal/hooks"
)

// InsertRow inserts one row. columns and values pair up by index; columns
// not listed take their defaults. Nothing is written unless every value
// validates, every required column is filled and every foreign key value
// exists.
func (m *DatabaseManager) InsertRow(ctx context.Context, table string, columns []string, values []Value) error {
	startTime := time.Now()
	release, ctx, err := m.begin(ctx, "InsertRow", table)
	if err != nil {
		return err
	}
	defer release()

	md, err := m.introspector.GetColumnsWithTypes(ctx, table)
	if err != nil {
		return m.fail("InsertRow", table, err)
	}
	cols, err := validateInsert(md, columns, values)
	if err != nil {
		return m.fail("InsertRow", table, err)
	}
	if err := m.fk.validateInsert(ctx, md, columns, values); err != nil {
		return m.fail("InsertRow", table, err)
	}
	if err := m.veto(ctx, hooks.Mutation{Operation: "insert_row", Table: table, Values: valueMap(columns, values)}); err != nil {
		return m.fail("InsertRow", table, err)
	}

	insertCols := make([]ColumnMetadata, 0, len(cols))
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		v := values[i]
		if v.IsUnset() {
			continue
		}
		insertCols = append(insertCols, c)
		args = append(args, storageValue(v, c).SQLArg())
	}
	if _, err := execGuarded(ctx, m.pool, guard.PhaseWrite, insertSQL(md.Schema, table, insertCols), args...); err != nil {
		return m.fail("InsertRow", table, queryErr("insert", err))
	}

	m.audit.Log(ctx, audit.EventRowInserted, fmt.Sprintf("inserted row into %s", table))
	m.logger.Info().
		Str("table", table).
		Int("column_count", len(insertCols)).
		Dur("duration", time.Since(startTime)).
		Msg("InsertRow executed")
	return nil
}

// validateInsert resolves columns against md and checks every value and
// every required column. The returned slice is parallel to columns.
func validateInsert(md *TableMetadata, columns []string, values []Value) ([]ColumnMetadata, error) {
	if len(columns) != len(values) {
		return nil, &ValidationError{Message: fmt.Sprintf("%d columns but %d values", len(columns), len(values))}
	}
	cols := make([]ColumnMetadata, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, name := range columns {
		c, ok := md.Column(name)
		if !ok {
			return nil, &SchemaError{Schema: md.Schema, Table: md.Name, Column: name}
		}
		if seen[name] {
			return nil, &ValidationError{Column: name, Value: values[i], Message: "column given more than once"}
		}
		seen[name] = true
		if err := validateValue(c, values[i]); err != nil {
			return nil, err
		}
		cols[i] = c
	}
	for _, c := range md.Columns {
		if !c.Required() {
			continue
		}
		v := Value{}
		for i, name := range columns {
			if name == c.Name {
				v = values[i]
			}
		}
		if v.IsNull() || coerce.IsEmptyValue(v, c.RawType) {
			return nil, &ValidationError{Column: c.Name, Value: v, Message: "value is required"}
		}
	}
	return cols, nil
}

// validateValue type-checks v for c. An empty string headed for a nullable
// column that stores it as NULL is accepted without a type check.
func validateValue(c ColumnMetadata, v Value) error {
	if c.Nullable && clearsColumn(v, c) {
		return nil
	}
	if !coerce.Validate(v, c.RawType) {
		return &ValidationError{Column: c.Name, Value: v, Message: fmt.Sprintf("expected a %s value for type %s", c.SemanticType(), c.RawType)}
	}
	return nil
}

// clearsColumn reports whether v is an empty string meant as "no value":
// true for every column that is not STRING or TEXT.
func clearsColumn(v Value, c ColumnMetadata) bool {
	if s, ok := v.Text(); !ok || s != "" {
		return false
	}
	switch c.SemanticType() {
	case coerce.TypeString, coerce.TypeText:
		return false
	}
	return true
}

// storageValue coerces v for c. A clearing empty string becomes NULL.
func storageValue(v Value, c ColumnMetadata) Value {
	if clearsColumn(v, c) {
		return coerce.Null()
	}
	return coerce.CoerceForStorage(v, c.RawType)
}

func valueMap(columns []string, values []Value) map[string]string {
	out := make(map[string]string, len(columns))
	for i, c := range columns {
		if i < len(values) {
			out[c] = values[i].String()
		}
	}
	return out
}

// UpdateCell sets one column of the row whose primary key equals id. A
// missing row is a *SchemaError.
func (m *DatabaseManager) UpdateCell(ctx context.Context, table, column string, value Value, id string) error {
	startTime := time.Now()
	release, ctx, err := m.begin(ctx, "UpdateCell", table)
	if err != nil {
		return err
	}
	defer release()

	md, err := m.introspector.GetColumnsWithTypes(ctx, table)
	if err != nil {
		return m.fail("UpdateCell", table, err)
	}
	col, ok := md.Column(column)
	if !ok {
		return m.fail("UpdateCell", table, &SchemaError{Schema: md.Schema, Table: table, Column: column})
	}
	pk, ok := md.Column(md.PrimaryKey())
	if !ok {
		return m.fail("UpdateCell", table, &SchemaError{Schema: md.Schema, Table: table, Column: md.PrimaryKey(), Message: "no primary key"})
	}
	if !value.IsPresent() {
		value = coerce.Null()
	}
	if !col.Nullable && (value.IsNull() || coerce.IsEmptyValue(value, col.RawType) || clearsColumn(value, col)) {
		return m.fail("UpdateCell", table, &ValidationError{Column: column, Value: value, Message: "value is required"})
	}
	if err := validateValue(col, value); err != nil {
		return m.fail("UpdateCell", table, err)
	}
	if !coerce.Validate(coerce.Text(id), pk.RawType) {
		return m.fail("UpdateCell", table, &ValidationError{Column: pk.Name, Value: coerce.Text(id), Message: fmt.Sprintf("not a valid %s key", pk.SemanticType())})
	}
	if err := m.fk.validateSingleColumnUpdate(ctx, md, column, value); err != nil {
		return m.fail("UpdateCell", table, err)
	}
	if err := m.veto(ctx, hooks.Mutation{Operation: "update_cell", Table: table, ID: id, Column: column, Values: map[string]string{column: value.String()}}); err != nil {
		return m.fail("UpdateCell", table, err)
	}

	tag, err := execGuarded(ctx, m.pool, guard.PhaseWrite, updateCellSQL(md.Schema, table, col, pk), storageValue(value, col).SQLArg(), id)
	if err != nil {
		return m.fail("UpdateCell", table, queryErr("update", err))
	}
	if tag.RowsAffected() == 0 {
		return m.fail("UpdateCell", table, &SchemaError{Schema: md.Schema, Table: table, Message: fmt.Sprintf("row %s not found", id)})
	}

	m.audit.Log(ctx, audit.EventCellUpdated, fmt.Sprintf("updated %s.%s of row %s", table, column, id))
	m.logger.Info().
		Str("table", table).
		Str("column", column).
		Dur("duration", time.Since(startTime)).
		Msg("UpdateCell executed")
	return nil
}

// DeleteRow deletes one row, or every row when id is AllRows, soft
// cascading through the registry.
func (m *DatabaseManager) DeleteRow(ctx context.Context, table, id string) error {
	release, ctx, err := m.begin(ctx, "DeleteRow", table)
	if err != nil {
		return err
	}
	defer release()

	if err := m.veto(ctx, hooks.Mutation{Operation: "delete_row", Table: table, ID: id}); err != nil {
		return m.fail("DeleteRow", table, err)
	}
	if err := m.cascade.Delete(ctx, table, id); err != nil {
		return m.fail("DeleteRow", table, err)
	}
	return nil
}

// TruncateTable empties table in schema db and restarts its identity
// sequences. An empty db uses the configured schema. No soft cascade
// happens: TRUNCATE fails if other tables reference table.
func (m *DatabaseManager) TruncateTable(ctx context.Context, db, table string) error {
	startTime := time.Now()
	release, ctx, err := m.begin(ctx, "TruncateTable", table)
	if err != nil {
		return err
	}
	defer release()

	if db == "" {
		db = m.config.Schema
	}
	if err := NewIntrospector(m.pool, db).requireTable(ctx, table); err != nil {
		return m.fail("TruncateTable", table, err)
	}
	if err := m.veto(ctx, hooks.Mutation{Operation: "truncate_table", Table: table}); err != nil {
		return m.fail("TruncateTable", table, err)
	}
	if _, err := execGuarded(ctx, m.pool, guard.PhaseTruncate, truncateSQL(db, table)); err != nil {
		return m.fail("TruncateTable", table, queryErr("truncate", err))
	}

	m.audit.Log(ctx, audit.EventTableTruncated, fmt.Sprintf("truncated %s.%s", db, table))
	m.logger.Info().
		Str("schema", db).
		Str("table", table).
		Dur("duration", time.Since(startTime)).
		Msg("TruncateTable executed")
	return nil
}
