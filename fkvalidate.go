package pgadmin

import (
	"context"
	"fmt"
)

// FKValidator checks foreign key values against the referenced tables
// before a mutation runs.
//
// Validation and the mutation that follows are not atomic: a referenced
// row deleted in between is not detected here and surfaces as a database
// error from the mutation itself.
type FKValidator struct {
	db           DBTX
	introspector SchemaIntrospector
}

// NewFKValidator returns an FKValidator that reads metadata through
// introspector and runs existence checks on db.
func NewFKValidator(db DBTX, introspector SchemaIntrospector) *FKValidator {
	return &FKValidator{db: db, introspector: introspector}
}

// ValidateInsert checks every foreign key column present in columns. Values
// that are null, empty, "false" or "0" are placeholders and are skipped.
func (v *FKValidator) ValidateInsert(ctx context.Context, table string, columns []string, values []Value) error {
	md, err := v.introspector.GetColumnsWithTypes(ctx, table)
	if err != nil {
		return err
	}
	return v.validateInsert(ctx, md, columns, values)
}

func (v *FKValidator) validateInsert(ctx context.Context, md *TableMetadata, columns []string, values []Value) error {
	if len(columns) != len(values) {
		return &ValidationError{Message: fmt.Sprintf("%d columns but %d values", len(columns), len(values))}
	}
	for _, fk := range md.ForeignKeys {
		for i, name := range columns {
			if name != fk.Column || isFKPlaceholder(values[i]) {
				continue
			}
			if err := v.checkExists(ctx, md, fk, values[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateSingleColumnUpdate checks one column. Null and empty values are
// not checked so a nullable foreign key can always be cleared.
func (v *FKValidator) ValidateSingleColumnUpdate(ctx context.Context, table, column string, value Value) error {
	md, err := v.introspector.GetColumnsWithTypes(ctx, table)
	if err != nil {
		return err
	}
	return v.validateSingleColumnUpdate(ctx, md, column, value)
}

func (v *FKValidator) validateSingleColumnUpdate(ctx context.Context, md *TableMetadata, column string, value Value) error {
	if !value.IsPresent() || value.IsNull() || value.String() == "" {
		return nil
	}
	for _, fk := range md.ForeignKeys {
		if fk.Column != column {
			continue
		}
		if err := v.checkExists(ctx, md, fk, value); err != nil {
			return err
		}
	}
	return nil
}

// checkExists counts rows of the referenced table holding value. The
// parameter is cast to the referencing column's type.
func (v *FKValidator) checkExists(ctx context.Context, md *TableMetadata, fk ForeignKeyRelationship, value Value) error {
	col, ok := md.Column(fk.Column)
	if !ok {
		return &SchemaError{Schema: md.Schema, Table: md.Name, Column: fk.Column}
	}
	sql := existsCountSQL(fk.ReferencedSchema, fk.ReferencedTable, fk.ReferencedColumn, col.CastType)
	n, err := countGuarded(ctx, v.db, sql, value.SQLArg())
	if err != nil {
		return queryErr(fmt.Sprintf("check %s.%s", fk.ReferencedTable, fk.ReferencedColumn), err)
	}
	if n == 0 {
		return &ConstraintViolation{
			Column:           fk.Column,
			Value:            value,
			ReferencedTable:  fk.ReferencedTable,
			ReferencedColumn: fk.ReferencedColumn,
		}
	}
	return nil
}

func isFKPlaceholder(v Value) bool {
	if !v.IsPresent() || v.IsNull() {
		return true
	}
	switch v.String() {
	case "", "false", "0":
		return true
	}
	return false
}
