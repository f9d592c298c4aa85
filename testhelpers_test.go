//go:build integration

package pgadmin_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rickchristie/govner/pgflock/client"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	pgadmin "github.com/rickchristie/postgres-admin"
	"github.com/rickchristie/postgres-admin/internal/audit"
)

const (
	pgflockLockerPort = 9776
	pgflockPassword   = "pgflock"
)

// acquireTestDB returns a connection string to an empty database. By default
// the database is leased from a local pgflock locker; with
// GOPGADMIN_TEST_CONTAINERS=1 a throwaway container is started instead.
func acquireTestDB(t *testing.T) string {
	t.Helper()
	if os.Getenv("GOPGADMIN_TEST_CONTAINERS") == "1" {
		return startContainerDB(t)
	}
	connStr, err := client.Lock(pgflockLockerPort, t.Name(), pgflockPassword)
	if err != nil {
		t.Fatalf("Failed to acquire test database: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Unlock(pgflockLockerPort, pgflockPassword, connStr)
	})
	return connStr
}

func startContainerDB(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("gopgadmin"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get container connection string: %v", err)
	}
	return connStr
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func defaultConfig() pgadmin.Config {
	return pgadmin.Config{
		Pool: pgadmin.PoolConfig{MaxConns: 5},
		Query: pgadmin.QueryConfig{
			DefaultTimeoutSeconds:  30,
			MetadataTimeoutSeconds: 10,
		},
		Pagination: pgadmin.PaginationConfig{ItemsPerPage: 10},
	}
}

// testInstance is a DatabaseManager plus direct access to its database.
type testInstance struct {
	m       *pgadmin.DatabaseManager
	connStr string
	audit   *audit.Recorder
}

func newTestInstance(t *testing.T, config pgadmin.Config, opts ...pgadmin.Option) *testInstance {
	t.Helper()
	connStr := acquireTestDB(t)
	ctx := context.Background()
	rec := &audit.Recorder{}
	opts = append([]pgadmin.Option{pgadmin.WithAuditSink(rec)}, opts...)
	m, err := pgadmin.New(ctx, connStr, config, testLogger(), opts...)
	if err != nil {
		t.Fatalf("Failed to create DatabaseManager: %v", err)
	}
	t.Cleanup(func() { m.Close(ctx) })
	return &testInstance{m: m, connStr: connStr, audit: rec}
}

// exec runs setup or inspection SQL on a separate connection.
func (ti *testInstance) exec(t *testing.T, sqls ...string) {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, ti.connStr)
	if err != nil {
		t.Fatalf("setup connect failed: %v", err)
	}
	defer conn.Close(ctx)
	for _, sql := range sqls {
		if _, err := conn.Exec(ctx, sql); err != nil {
			t.Fatalf("setup failed: %s: %v", sql, err)
		}
	}
}

// queryInt runs a single-value integer query on a separate connection.
func (ti *testInstance) queryInt(t *testing.T, sql string) int64 {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, ti.connStr)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer conn.Close(ctx)
	var n int64
	if err := conn.QueryRow(ctx, sql).Scan(&n); err != nil {
		t.Fatalf("query failed: %s: %v", sql, err)
	}
	return n
}

// visitorSchema mirrors the reference layout: users, inbox_messages and
// logs each point at visitors.
var visitorSchema = []string{
	`CREATE TABLE visitors (id serial PRIMARY KEY, ip text NOT NULL)`,
	`CREATE TABLE users (
		id serial PRIMARY KEY,
		name varchar(50) NOT NULL,
		email varchar(100),
		password text,
		token text,
		is_admin boolean NOT NULL,
		banned boolean NOT NULL DEFAULT false,
		created_at timestamp,
		visitor_id integer NOT NULL REFERENCES visitors(id)
	)`,
	`CREATE TABLE inbox_messages (
		id serial PRIMARY KEY,
		message text,
		visitor_id integer REFERENCES visitors(id)
	)`,
	`CREATE TABLE logs (
		id serial PRIMARY KEY,
		action text NOT NULL,
		visitor_id integer NOT NULL REFERENCES visitors(id)
	)`,
	`INSERT INTO visitors (ip) VALUES ('10.0.0.1'), ('10.0.0.2'), ('10.0.0.3')`,
	`INSERT INTO users (name, email, password, token, is_admin, visitor_id) VALUES
		('alice', 'alice@example.com', 'hunter2', 'tok-a', true, 1),
		('bob', 'bob@example.com', 'swordfish', 'tok-b', false, 2)`,
	`INSERT INTO inbox_messages (message, visitor_id) VALUES ('hello', 1), ('hi', 2), ('anon', NULL)`,
	`INSERT INTO logs (action, visitor_id) VALUES ('login', 1), ('logout', 1), ('login', 3)`,
}

func visitorCascade() pgadmin.CascadeRegistry {
	return pgadmin.CascadeRegistry{
		"visitors": {
			{Table: "users", Column: "visitor_id"},
			{Table: "inbox_messages", Column: "visitor_id"},
			{Table: "logs", Column: "visitor_id"},
		},
	}
}

func newVisitorInstance(t *testing.T, opts ...pgadmin.Option) *testInstance {
	t.Helper()
	config := defaultConfig()
	config.Cascade = visitorCascade()
	config.Redaction = pgadmin.RedactionConfig{Tables: []string{"users", "inbox_messages"}}
	ti := newTestInstance(t, config, opts...)
	ti.exec(t, visitorSchema...)
	return ti
}
