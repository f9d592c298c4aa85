// Package pgadmin is a table-agnostic administration engine for PostgreSQL:
// browse, insert, edit and delete rows of any table discovered at runtime,
// with no per-table code.
//
// Column types are read from the catalogs on every call and classified into
// semantic types (INTEGER, DATETIME, BOOLEAN, ...) that drive validation,
// storage coercion and display formatting. Foreign key values are checked
// against the referenced tables before anything is written.
//
// Deletes use a soft cascade: columns listed in the [CascadeRegistry] for
// the deleted table are set to NULL instead of blocking the delete. The
// protocol widens those columns before the transaction begins, disables
// foreign key enforcement only inside it, restores enforcement whether it
// committed or not, and restarts the key sequence after committing a
// delete of all rows. See [CascadeCoordinator].
//
// Every generated statement is parsed with PostgreSQL's own parser (pg_query)
// and checked against the protocol phase it runs in. Values are always sent
// as parameters.
//
// # Library Usage
//
//	m, err := pgadmin.New(ctx, connString, pgadmin.Config{
//		Pool: pgadmin.PoolConfig{MaxConns: 10},
//		Query: pgadmin.QueryConfig{
//			DefaultTimeoutSeconds:  30,
//			MetadataTimeoutSeconds: 10,
//		},
//		Cascade: pgadmin.CascadeRegistry{
//			"visitors": {
//				{Table: "users", Column: "visitor_id"},
//				{Table: "logs", Column: "visitor_id"},
//			},
//		},
//		Redaction: pgadmin.RedactionConfig{Tables: []string{"users"}},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer m.Close(ctx)
//
//	page, err := m.FetchPage(ctx, "users", 1, pgadmin.PageOptions{})
//	err = m.InsertRow(ctx, "users", []string{"name", "visitor_id"},
//		[]pgadmin.Value{pgadmin.Text("Ann"), pgadmin.Int(1)})
//	err = m.DeleteRow(ctx, "visitors", pgadmin.AllRows)
//
//	// Or register as MCP tools
//	pgadmin.RegisterMCPTools(mcpServer, m)
//
// # Errors
//
// Failures are typed: [ValidationError], [ConstraintViolation],
// [SchemaError], [QueryError], [TransactionFailure] and [RejectedError].
// Each matches a sentinel with errors.Is, and [HTTPStatus] maps them to a
// response status.
//
// # Soft cascade permissions
//
// Disabling foreign key enforcement sets session_replication_role, which
// requires superuser or, on PostgreSQL 15+,
// GRANT SET ON PARAMETER session_replication_role TO <role>.
package pgadmin
