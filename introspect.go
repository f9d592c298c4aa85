package pgadmin

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// SchemaIntrospector reads table metadata from the live database. Nothing
// is cached: every call reflects the schema at that moment.
type SchemaIntrospector interface {
	ListTables(ctx context.Context) ([]string, error)
	GetColumns(ctx context.Context, table string) ([]string, error)
	GetColumnsWithTypes(ctx context.Context, table string) (*TableMetadata, error)
	DiscoverForeignKeys(ctx context.Context, table string) ([]ForeignKeyRelationship, error)
}

const listTablesSQL = `
SELECT c.relname
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relkind IN ('r', 'p')
  AND NOT c.relispartition
  AND has_table_privilege(c.oid, 'SELECT')
ORDER BY c.relname;
`

const tableExistsSQL = `
SELECT EXISTS (
    SELECT 1
    FROM pg_catalog.pg_class c
    JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
    WHERE n.nspname = $1
      AND c.relname = $2
      AND c.relkind IN ('r', 'p', 'v', 'm', 'f')
);
`

const columnsSQL = `
SELECT
    a.attname AS name,
    pg_catalog.format_type(a.atttypid, a.atttypmod) AS raw_type,
    pg_catalog.format_type(a.atttypid, NULL) AS cast_type,
    NOT a.attnotnull AS nullable,
    COALESCE(pg_catalog.pg_get_expr(d.adbin, d.adrelid), '') AS default_val,
    (a.attidentity <> '' OR a.attgenerated <> '') AS is_identity,
    EXISTS (
        SELECT 1 FROM pg_catalog.pg_index i
        WHERE i.indrelid = a.attrelid
          AND i.indisprimary
          AND a.attnum = ANY(i.indkey)
    ) AS is_primary_key
FROM pg_catalog.pg_attribute a
LEFT JOIN pg_catalog.pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
WHERE a.attrelid = $1::regclass
  AND a.attnum > 0
  AND NOT a.attisdropped
ORDER BY a.attnum;
`

// One row per column of every foreign key; composite keys are unnested
// pairwise so column i maps to referenced column i.
const foreignKeysSQL = `
SELECT
    con.conname,
    a.attname,
    fn.nspname,
    fc.relname,
    fa.attname
FROM pg_catalog.pg_constraint con
CROSS JOIN LATERAL unnest(con.conkey, con.confkey) AS k(attnum, fattnum)
JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
JOIN pg_catalog.pg_class fc ON fc.oid = con.confrelid
JOIN pg_catalog.pg_namespace fn ON fn.oid = fc.relnamespace
JOIN pg_catalog.pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.fattnum
WHERE con.contype = 'f'
  AND con.conrelid = $1::regclass
ORDER BY con.conname, a.attnum;
`

const referencingKeysSQL = `
SELECT
    n.nspname,
    c.relname,
    a.attname,
    fa.attname
FROM pg_catalog.pg_constraint con
CROSS JOIN LATERAL unnest(con.conkey, con.confkey) AS k(attnum, fattnum)
JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
JOIN pg_catalog.pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.fattnum
WHERE con.contype = 'f'
  AND con.confrelid = $1::regclass
ORDER BY n.nspname, c.relname, a.attname;
`

// Introspector implements SchemaIntrospector over the PostgreSQL catalogs
// for a single schema.
type Introspector struct {
	db     DBTX
	schema string
}

// NewIntrospector returns an Introspector reading schema through db.
func NewIntrospector(db DBTX, schema string) *Introspector {
	if schema == "" {
		schema = "public"
	}
	return &Introspector{db: db, schema: schema}
}

// Schema returns the schema the introspector reads.
func (in *Introspector) Schema() string {
	return in.schema
}

// ListTables returns the base and partitioned tables the role can read.
func (in *Introspector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := in.db.Query(ctx, listTablesSQL, in.schema)
	if err != nil {
		return nil, queryErr("list tables", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, queryErr("list tables", err)
	}
	if tables == nil {
		tables = []string{}
	}
	return tables, nil
}

// GetColumns returns the column names of table in ordinal order.
func (in *Introspector) GetColumns(ctx context.Context, table string) ([]string, error) {
	md, err := in.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	return md.ColumnNames(), nil
}

// GetColumnsWithTypes returns the columns of table merged with its foreign
// keys. A missing table is a *SchemaError.
func (in *Introspector) GetColumnsWithTypes(ctx context.Context, table string) (*TableMetadata, error) {
	md, err := in.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	fks, err := in.foreignKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	md.ForeignKeys = fks
	for _, fk := range fks {
		for i := range md.Columns {
			c := &md.Columns[i]
			if c.Name != fk.Column || c.IsForeignKey {
				continue
			}
			c.IsForeignKey = true
			c.References = &ColumnRef{Schema: fk.ReferencedSchema, Table: fk.ReferencedTable, Column: fk.ReferencedColumn}
		}
	}
	return md, nil
}

// DiscoverForeignKeys returns one relationship per foreign key column.
func (in *Introspector) DiscoverForeignKeys(ctx context.Context, table string) ([]ForeignKeyRelationship, error) {
	if err := in.requireTable(ctx, table); err != nil {
		return nil, err
	}
	return in.foreignKeys(ctx, table)
}

// ReferencingKeys returns the columns of other tables that reference table.
func (in *Introspector) ReferencingKeys(ctx context.Context, table string) ([]ReferencingKey, error) {
	if err := in.requireTable(ctx, table); err != nil {
		return nil, err
	}
	rows, err := in.db.Query(ctx, referencingKeysSQL, qualified(in.schema, table))
	if err != nil {
		return nil, queryErr("referencing keys", err)
	}
	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ReferencingKey, error) {
		var k ReferencingKey
		err := row.Scan(&k.Schema, &k.Table, &k.Column, &k.ReferencedColumn)
		return k, err
	})
	if err != nil {
		return nil, queryErr("referencing keys", err)
	}
	return keys, nil
}

func (in *Introspector) requireTable(ctx context.Context, table string) error {
	var exists bool
	if err := in.db.QueryRow(ctx, tableExistsSQL, in.schema, table).Scan(&exists); err != nil {
		return queryErr("table lookup", err)
	}
	if !exists {
		return &SchemaError{Schema: in.schema, Table: table}
	}
	return nil
}

func (in *Introspector) columns(ctx context.Context, table string) (*TableMetadata, error) {
	if err := in.requireTable(ctx, table); err != nil {
		return nil, err
	}
	rows, err := in.db.Query(ctx, columnsSQL, qualified(in.schema, table))
	if err != nil {
		return nil, queryErr("fetch columns", err)
	}
	cols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ColumnMetadata, error) {
		var c ColumnMetadata
		err := row.Scan(&c.Name, &c.RawType, &c.CastType, &c.Nullable, &c.Default, &c.IsIdentity, &c.IsPrimaryKey)
		return c, err
	})
	if err != nil {
		return nil, queryErr("fetch columns", err)
	}
	if cols == nil {
		cols = []ColumnMetadata{}
	}
	return &TableMetadata{Schema: in.schema, Name: table, Columns: cols}, nil
}

func (in *Introspector) foreignKeys(ctx context.Context, table string) ([]ForeignKeyRelationship, error) {
	rows, err := in.db.Query(ctx, foreignKeysSQL, qualified(in.schema, table))
	if err != nil {
		return nil, queryErr("fetch foreign keys", err)
	}
	fks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ForeignKeyRelationship, error) {
		var fk ForeignKeyRelationship
		err := row.Scan(&fk.Constraint, &fk.Column, &fk.ReferencedSchema, &fk.ReferencedTable, &fk.ReferencedColumn)
		return fk, err
	})
	if err != nil {
		return nil, queryErr("fetch foreign keys", err)
	}
	if fks == nil {
		fks = []ForeignKeyRelationship{}
	}
	return fks, nil
}

// isSchemaError reports whether err is a *SchemaError.
func isSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
