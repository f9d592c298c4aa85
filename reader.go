package pgadmin

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/rickchristie/postgres-admin/internal/coerce"
	"github.com/rickchristie/postgres-admin/internal/guard"
	"github.com/rickchristie/postgres-admin/internal/redact"
)

// PaginatedReader reads rows page by page and applies the redaction policy
// to non-raw reads.
type PaginatedReader struct {
	db           DBTX
	introspector *Introspector
	redactor     *redact.Redactor
}

// NewPaginatedReader returns a reader over introspector's schema.
func NewPaginatedReader(db DBTX, introspector *Introspector, redactor *redact.Redactor) *PaginatedReader {
	return &PaginatedReader{db: db, introspector: introspector, redactor: redactor}
}

func offsetFor(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

// CountAll returns the number of rows in table.
func (r *PaginatedReader) CountAll(ctx context.Context, table string) (int64, error) {
	if err := r.introspector.requireTable(ctx, table); err != nil {
		return 0, err
	}
	n, err := countGuarded(ctx, r.db, countAllSQL(r.introspector.schema, table))
	if err != nil {
		return 0, queryErr("count rows", err)
	}
	return n, nil
}

// CountPage returns the number of rows on the given page.
func (r *PaginatedReader) CountPage(ctx context.Context, table string, page, pageSize int) (int, error) {
	if err := r.introspector.requireTable(ctx, table); err != nil {
		return 0, err
	}
	n, err := countGuarded(ctx, r.db, countPageSQL(r.introspector.schema, table),
		strconv.Itoa(pageSize), strconv.Itoa(offsetFor(page, pageSize)))
	if err != nil {
		return 0, queryErr("count page", err)
	}
	return int(n), nil
}

// FetchPage returns rows (page-1)*pageSize through page*pageSize. Pages
// below 1 read the first page.
func (r *PaginatedReader) FetchPage(ctx context.Context, table string, page, pageSize int, opts PageOptions) ([]Row, error) {
	md, err := r.introspector.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if opts.SortColumn != "" {
		if _, ok := md.Column(opts.SortColumn); !ok {
			return nil, &SchemaError{Schema: md.Schema, Table: table, Column: opts.SortColumn}
		}
	}
	sql := selectPageSQL(md.Schema, table, opts.SortColumn, opts.Descending)
	rows, err := queryGuarded(ctx, r.db, guard.PhaseRead, sql, strconv.Itoa(pageSize), strconv.Itoa(offsetFor(page, pageSize)))
	if err != nil {
		return nil, queryErr("fetch page", err)
	}
	out, err := r.collectRows(table, rows, opts.Raw)
	if err != nil {
		return nil, queryErr("fetch page", err)
	}
	return out, nil
}

// FetchRow returns the row whose primary key equals id, or an empty Row
// when there is none. Tables without a primary key are looked up by "id".
func (r *PaginatedReader) FetchRow(ctx context.Context, table, id string, raw bool) (Row, error) {
	md, err := r.introspector.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	pk, ok := md.Column(md.PrimaryKey())
	if !ok {
		return nil, &SchemaError{Schema: md.Schema, Table: table, Column: md.PrimaryKey(), Message: "no primary key"}
	}
	if !coerce.Validate(coerce.Text(id), pk.RawType) {
		return Row{}, nil
	}
	rows, err := queryGuarded(ctx, r.db, guard.PhaseRead, selectRowSQL(md.Schema, table, pk.Name, pk.CastType), id)
	if err != nil {
		return nil, queryErr("fetch row", err)
	}
	out, err := r.collectRows(table, rows, raw)
	if err != nil {
		return nil, queryErr("fetch row", err)
	}
	if len(out) == 0 {
		return Row{}, nil
	}
	return out[0], nil
}

// collectRows converts pgx rows into Rows, redacting unless raw.
func (r *PaginatedReader) collectRows(table string, rows pgx.Rows, raw bool) ([]Row, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	out := make([]Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(fieldDescs))
		for i, fd := range fieldDescs {
			v := coerce.FromDB(values[i], fd.DataTypeOID)
			if !raw {
				v = r.redactor.Apply(table, fd.Name, v)
			}
			row[i] = Field{Column: fd.Name, Value: v}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
