package pgadmin

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickchristie/postgres-admin/internal/guard"
)

// DBTX is satisfied by *pgxpool.Pool, *pgxpool.Conn, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Every parameter is sent as text and cast in SQL to the column type, so
// the server parses values exactly as it would a literal.

// qualified returns the quoted schema.table name.
func qualified(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func param(n int, castType string) string {
	return fmt.Sprintf("$%d::%s", n, castType)
}

func existsCountSQL(schema, table, column, castType string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s",
		qualified(schema, table), ident(column), param(1, castType))
}

func countAllSQL(schema, table string) string {
	return "SELECT COUNT(*) FROM " + qualified(schema, table)
}

func countPageSQL(schema, table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 FROM %s LIMIT $1::bigint OFFSET $2::bigint) AS page",
		qualified(schema, table))
}

func selectPageSQL(schema, table, sortColumn string, descending bool) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(qualified(schema, table))
	if sortColumn != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(ident(sortColumn))
		if descending {
			b.WriteString(" DESC")
		}
	}
	b.WriteString(" LIMIT $1::bigint OFFSET $2::bigint")
	return b.String()
}

func selectRowSQL(schema, table, pk, castType string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = %s LIMIT 1",
		qualified(schema, table), ident(pk), param(1, castType))
}

// insertSQL builds a single-row INSERT for cols. With no columns every
// value comes from the column defaults.
func insertSQL(schema, table string, cols []ColumnMetadata) string {
	if len(cols) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", qualified(schema, table))
	}
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = ident(c.Name)
		params[i] = param(i+1, c.CastType)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualified(schema, table), strings.Join(names, ", "), strings.Join(params, ", "))
}

func updateCellSQL(schema, table string, col, pk ColumnMetadata) string {
	return fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		qualified(schema, table), ident(col.Name), param(1, col.CastType), ident(pk.Name), param(2, pk.CastType))
}

func dropNotNullSQL(schema, table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", qualified(schema, table), ident(column))
}

const (
	disableFKChecksSQL = "SET LOCAL session_replication_role = replica"
	restoreFKChecksSQL = "SET session_replication_role = DEFAULT"
	resetSequenceSQL   = "SELECT setval(pg_get_serial_sequence($1, $2), 1, false)"
)

// nullifySQL clears column wherever it is set (all) or equals $1.
func nullifySQL(schema string, ref CascadeRef, castType string, all bool) string {
	col := ident(ref.Column)
	if all {
		return fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s IS NOT NULL", qualified(schema, ref.Table), col, col)
	}
	return fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = %s", qualified(schema, ref.Table), col, col, param(1, castType))
}

func deleteSQL(schema, table string, pk ColumnMetadata, all bool) string {
	if all {
		return "DELETE FROM " + qualified(schema, table)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", qualified(schema, table), ident(pk.Name), param(1, pk.CastType))
}

func truncateSQL(schema, table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY", qualified(schema, table))
}

// execGuarded runs sql after checking it belongs to phase.
func execGuarded(ctx context.Context, db DBTX, phase guard.Phase, sql string, args ...any) (pgconn.CommandTag, error) {
	if err := guard.Check(phase, sql); err != nil {
		return pgconn.CommandTag{}, &QueryError{Op: "statement guard", Err: err}
	}
	return db.Exec(ctx, sql, args...)
}

func queryGuarded(ctx context.Context, db DBTX, phase guard.Phase, sql string, args ...any) (pgx.Rows, error) {
	if err := guard.Check(phase, sql); err != nil {
		return nil, &QueryError{Op: "statement guard", Err: err}
	}
	return db.Query(ctx, sql, args...)
}

// countGuarded runs a single-value COUNT query.
func countGuarded(ctx context.Context, db DBTX, sql string, args ...any) (int64, error) {
	if err := guard.Check(guard.PhaseRead, sql); err != nil {
		return 0, &QueryError{Op: "statement guard", Err: err}
	}
	var n int64
	if err := db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
