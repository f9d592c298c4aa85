package pgadmin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/rickchristie/postgres-admin/internal/audit"
	"github.com/rickchristie/postgres-admin/internal/coerce"
	"github.com/rickchristie/postgres-admin/internal/errhint"
	"github.com/rickchristie/postgres-admin/internal/hooks"
	"github.com/rickchristie/postgres-admin/internal/redact"
	"github.com/rickchristie/postgres-admin/internal/timeout"
)

// DefaultItemsPerPage is used when Pagination.ItemsPerPage is zero.
const DefaultItemsPerPage = 25

// DatabaseManager is the CRUD surface over arbitrary tables.
// All exported methods are safe for concurrent use from multiple goroutines.
type DatabaseManager struct {
	config       Config
	pool         *pgxpool.Pool
	semaphore    chan struct{}
	introspector *Introspector
	fk           *FKValidator
	reader       *PaginatedReader
	cascade      *CascadeCoordinator
	cmdHooks     *hooks.Runner
	errHints     *errhint.Matcher
	timeoutMgr   *timeout.Manager
	audit        AuditLogSink
	errors       ErrorSink
	logger       zerolog.Logger
}

// Option is a functional option for New().
type Option func(*options)

type options struct {
	serverHooks *ServerHooksConfig
	auditSink   AuditLogSink
	errorSink   ErrorSink
	observer    func(CascadeState)
}

// WithServerHooks passes command-based hook configuration.
func WithServerHooks(h ServerHooksConfig) Option {
	return func(o *options) {
		o.serverHooks = &h
	}
}

// WithAuditSink replaces the default zerolog audit logger.
func WithAuditSink(s AuditLogSink) Option {
	return func(o *options) {
		o.auditSink = s
	}
}

// WithErrorSink replaces the default zerolog error sink.
func WithErrorSink(s ErrorSink) Option {
	return func(o *options) {
		o.errorSink = s
	}
}

// WithCascadeObserver registers f to be called on every cascade delete
// state transition. f runs synchronously on the deleting goroutine.
func WithCascadeObserver(f func(CascadeState)) Option {
	return func(o *options) {
		o.observer = f
	}
}

// New creates a new DatabaseManager.
// connString is the PostgreSQL connection string (must include credentials).
// Panics on invalid config. Returns error only for runtime failures (e.g., pool creation).
func New(ctx context.Context, connString string, config Config, logger zerolog.Logger, opts ...Option) (*DatabaseManager, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// --- Config validation (panics on invalid config) ---

	if connString == "" {
		panic("pgadmin: connString must be non-empty")
	}
	if config.Pool.MaxConns <= 0 {
		panic("pgadmin: pool.max_conns must be > 0")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("pgadmin: query.default_timeout_seconds must be > 0")
	}
	if config.Query.MetadataTimeoutSeconds <= 0 {
		panic("pgadmin: query.metadata_timeout_seconds must be > 0")
	}
	if config.Pagination.ItemsPerPage < 0 {
		panic("pgadmin: pagination.items_per_page must be >= 0")
	}
	for _, rule := range config.Query.TimeoutRules {
		if rule.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("pgadmin: timeout_rule with pattern %q has timeout_seconds <= 0", rule.Pattern))
		}
	}
	for table, refs := range config.Cascade {
		for i, ref := range refs {
			if ref.Table == "" || ref.Column == "" {
				panic(fmt.Sprintf("pgadmin: cascade.%s[%d] must set table and column", table, i))
			}
		}
	}
	hasCmdHooks := o.serverHooks != nil && (len(o.serverHooks.BeforeMutation) > 0 || len(o.serverHooks.Audit) > 0)
	if hasCmdHooks && config.DefaultHookTimeoutSeconds <= 0 {
		panic("pgadmin: default_hook_timeout_seconds must be > 0 when hooks are configured")
	}

	// Apply defaults for zero values
	if config.Schema == "" {
		config.Schema = "public"
	}
	if config.Pagination.ItemsPerPage == 0 {
		config.Pagination.ItemsPerPage = DefaultItemsPerPage
	}
	if len(config.Redaction.Columns) == 0 {
		config.Redaction.Columns = DefaultRedactedColumns
	}

	// --- Initialize internal components ---

	redactor, err := redact.NewRedactor(mapRedaction(config.Redaction))
	if err != nil {
		panic(fmt.Sprintf("pgadmin: invalid redaction config: %v", err))
	}
	matcher, err := errhint.NewMatcher(mapErrorHintRules(config.ErrorHints))
	if err != nil {
		panic(fmt.Sprintf("pgadmin: invalid error_hints: %v", err))
	}
	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	tmgr, err := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})
	if err != nil {
		panic(fmt.Sprintf("pgadmin: invalid query.timeout_rules: %v", err))
	}

	var cmdHooks *hooks.Runner
	if hasCmdHooks {
		hookEntries := func(entries []HookEntry) []hooks.HookEntry {
			result := make([]hooks.HookEntry, len(entries))
			for i, e := range entries {
				result[i] = hooks.HookEntry{
					Pattern: e.Pattern,
					Command: e.Command,
					Args:    e.Args,
					Timeout: time.Duration(e.TimeoutSeconds) * time.Second,
				}
			}
			return result
		}
		cmdHooks = hooks.NewRunner(hooks.Config{
			DefaultTimeout: time.Duration(config.DefaultHookTimeoutSeconds) * time.Second,
			BeforeMutation: hookEntries(o.serverHooks.BeforeMutation),
			Audit:          hookEntries(o.serverHooks.Audit),
		}, logger)
	}

	auditSink := o.auditSink
	if auditSink == nil {
		var forwarders []audit.Forwarder
		if cmdHooks != nil && cmdHooks.HasAuditHooks() {
			forwarders = append(forwarders, cmdHooks)
		}
		auditSink = audit.NewLogger(logger, forwarders...)
	}
	errorSink := o.errorSink
	if errorSink == nil {
		errorSink = NewLogErrorSink(logger)
	}

	// --- Configure pgxpool ---

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(config.Pool.MaxConns)
	poolConfig.MinConns = int32(config.Pool.MinConns)
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	if config.Pool.MaxConnLifetime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnLifetime)
		if err != nil {
			panic(fmt.Sprintf("pgadmin: invalid pool.max_conn_lifetime %q: %v", config.Pool.MaxConnLifetime, err))
		}
		poolConfig.MaxConnLifetime = d
	}
	if config.Pool.MaxConnIdleTime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnIdleTime)
		if err != nil {
			panic(fmt.Sprintf("pgadmin: invalid pool.max_conn_idle_time %q: %v", config.Pool.MaxConnIdleTime, err))
		}
		poolConfig.MaxConnIdleTime = d
	}
	if config.Pool.HealthCheckPeriod != "" {
		d, err := time.ParseDuration(config.Pool.HealthCheckPeriod)
		if err != nil {
			panic(fmt.Sprintf("pgadmin: invalid pool.health_check_period %q: %v", config.Pool.HealthCheckPeriod, err))
		}
		poolConfig.HealthCheckPeriod = d
	}

	if config.Timezone != "" {
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			escaped := strings.ReplaceAll(config.Timezone, "'", "''")
			if _, err := conn.Exec(ctx, fmt.Sprintf("SET timezone = '%s'", escaped)); err != nil {
				return fmt.Errorf("failed to SET timezone: %w", err)
			}
			return nil
		}
	}

	// --- Create pool ---

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	introspector := NewIntrospector(pool, config.Schema)
	cascade := NewCascadeCoordinator(pool, introspector, config.Cascade, auditSink, logger)
	cascade.observer = o.observer

	return &DatabaseManager{
		config:       config,
		pool:         pool,
		semaphore:    make(chan struct{}, config.Pool.MaxConns),
		introspector: introspector,
		fk:           NewFKValidator(pool, introspector),
		reader:       NewPaginatedReader(pool, introspector, redactor),
		cascade:      cascade,
		cmdHooks:     cmdHooks,
		errHints:     matcher,
		timeoutMgr:   tmgr,
		audit:        auditSink,
		errors:       errorSink,
		logger:       logger,
	}, nil
}

func mapRedaction(c RedactionConfig) redact.Policy {
	rules := make([]redact.Rule, len(c.Rules))
	for i, r := range c.Rules {
		rules[i] = redact.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return redact.Policy{
		Marker:  c.Marker,
		Tables:  c.Tables,
		Columns: c.Columns,
		Rules:   rules,
	}
}

func mapErrorHintRules(rules []ErrorHintRule) []errhint.Rule {
	result := make([]errhint.Rule, len(rules))
	for i, r := range rules {
		result[i] = errhint.Rule{
			Pattern: r.Pattern,
			Message: r.Message,
		}
	}
	return result
}

// Close closes the connection pool. ctx is unused: pgxpool.Pool.Close()
// does not support context-based shutdown.
func (m *DatabaseManager) Close(ctx context.Context) {
	m.pool.Close()
}

// Ping checks that the database is reachable.
func (m *DatabaseManager) Ping(ctx context.Context) error {
	release, ctx, err := m.begin(ctx, "Ping", "")
	if err != nil {
		return err
	}
	defer release()
	if err := m.pool.Ping(ctx); err != nil {
		return m.fail("Ping", "", queryErr("ping", err))
	}
	return nil
}

// begin acquires a semaphore slot and applies the timeout for table. An
// empty table uses the metadata timeout.
func (m *DatabaseManager) begin(ctx context.Context, op, table string) (func(), context.Context, error) {
	select {
	case m.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, m.fail(op, table, &QueryError{
			Op:  op,
			Err: fmt.Errorf("failed to acquire slot: all %d connection slots are in use, context cancelled while waiting: %w", cap(m.semaphore), ctx.Err()),
		})
	}
	d := time.Duration(m.config.Query.MetadataTimeoutSeconds) * time.Second
	if table != "" {
		d = m.timeoutMgr.GetTimeout(table)
	}
	opCtx, cancel := context.WithTimeout(ctx, d)
	return func() {
		cancel()
		<-m.semaphore
	}, opCtx, nil
}

// fail logs err and hands server-class failures to the error sink.
func (m *DatabaseManager) fail(op, table string, err error) error {
	status := HTTPStatus(err)
	patterns := m.errHints.Patterns(err.Error())
	logEvent := m.logger.Error()
	if status < 500 {
		logEvent = m.logger.Warn()
	}
	logEvent = logEvent.Err(err).Str("op", op).Int("status", status)
	if table != "" {
		logEvent = logEvent.Str("table", table)
	}
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("error_hints", patterns)
	}
	logEvent.Msg("operation failed")
	if status >= 500 {
		m.errors.LogError(fmt.Sprintf("%s: %v", op, err), status)
	}
	return err
}

// veto runs before_mutation hooks.
func (m *DatabaseManager) veto(ctx context.Context, mut hooks.Mutation) error {
	if m.cmdHooks == nil || !m.cmdHooks.HasBeforeMutationHooks() {
		return nil
	}
	if err := m.cmdHooks.RunBeforeMutation(ctx, mut); err != nil {
		return &RejectedError{Operation: mut.Operation, Table: mut.Table, Reason: err.Error()}
	}
	return nil
}

// ListTables returns the tables of the configured schema.
func (m *DatabaseManager) ListTables(ctx context.Context) ([]string, error) {
	startTime := time.Now()
	release, ctx, err := m.begin(ctx, "ListTables", "")
	if err != nil {
		return nil, err
	}
	defer release()

	tables, err := m.introspector.ListTables(ctx)
	if err != nil {
		return nil, m.fail("ListTables", "", err)
	}
	m.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(tables)).
		Msg("ListTables executed")
	return tables, nil
}

// GetColumns returns the column names of table.
func (m *DatabaseManager) GetColumns(ctx context.Context, table string) ([]string, error) {
	release, ctx, err := m.begin(ctx, "GetColumns", "")
	if err != nil {
		return nil, err
	}
	defer release()

	cols, err := m.introspector.GetColumns(ctx, table)
	if err != nil {
		return nil, m.fail("GetColumns", table, err)
	}
	return cols, nil
}

// GetColumnsWithTypes returns the live metadata of table.
func (m *DatabaseManager) GetColumnsWithTypes(ctx context.Context, table string) (*TableMetadata, error) {
	startTime := time.Now()
	release, ctx, err := m.begin(ctx, "GetColumnsWithTypes", "")
	if err != nil {
		return nil, err
	}
	defer release()

	md, err := m.introspector.GetColumnsWithTypes(ctx, table)
	if err != nil {
		return nil, m.fail("GetColumnsWithTypes", table, err)
	}
	m.logger.Info().
		Str("table", table).
		Dur("duration", time.Since(startTime)).
		Int("column_count", len(md.Columns)).
		Msg("GetColumnsWithTypes executed")
	return md, nil
}

// DiscoverForeignKeys returns the foreign key columns of table.
func (m *DatabaseManager) DiscoverForeignKeys(ctx context.Context, table string) ([]ForeignKeyRelationship, error) {
	release, ctx, err := m.begin(ctx, "DiscoverForeignKeys", "")
	if err != nil {
		return nil, err
	}
	defer release()

	fks, err := m.introspector.DiscoverForeignKeys(ctx, table)
	if err != nil {
		return nil, m.fail("DiscoverForeignKeys", table, err)
	}
	return fks, nil
}

// PageSize returns the configured items per page.
func (m *DatabaseManager) PageSize() int {
	return m.config.Pagination.ItemsPerPage
}

// FetchPage returns one page of table with its totals.
func (m *DatabaseManager) FetchPage(ctx context.Context, table string, page int, opts PageOptions) (*Page, error) {
	startTime := time.Now()
	release, ctx, err := m.begin(ctx, "FetchPage", table)
	if err != nil {
		return nil, err
	}
	defer release()

	if page < 1 {
		page = 1
	}
	size := m.config.Pagination.ItemsPerPage
	rows, err := m.reader.FetchPage(ctx, table, page, size, opts)
	if err != nil {
		return nil, m.fail("FetchPage", table, err)
	}
	total, err := m.reader.CountAll(ctx, table)
	if err != nil {
		return nil, m.fail("FetchPage", table, err)
	}
	out := &Page{
		Rows:       rows,
		TotalCount: total,
		Page:       page,
		PageSize:   size,
		PageCount:  int((total + int64(size) - 1) / int64(size)),
	}
	m.logger.Info().
		Str("table", table).
		Int("page", page).
		Int("row_count", len(rows)).
		Int64("total_count", total).
		Bool("raw", opts.Raw).
		Dur("duration", time.Since(startTime)).
		Msg("FetchPage executed")
	return out, nil
}

// CountAll returns the number of rows in table.
func (m *DatabaseManager) CountAll(ctx context.Context, table string) (int64, error) {
	release, ctx, err := m.begin(ctx, "CountAll", table)
	if err != nil {
		return 0, err
	}
	defer release()

	n, err := m.reader.CountAll(ctx, table)
	if err != nil {
		return 0, m.fail("CountAll", table, err)
	}
	return n, nil
}

// CountPage returns the number of rows on page.
func (m *DatabaseManager) CountPage(ctx context.Context, table string, page int) (int, error) {
	release, ctx, err := m.begin(ctx, "CountPage", table)
	if err != nil {
		return 0, err
	}
	defer release()

	n, err := m.reader.CountPage(ctx, table, page, m.config.Pagination.ItemsPerPage)
	if err != nil {
		return 0, m.fail("CountPage", table, err)
	}
	return n, nil
}

// FetchRow returns the row with primary key id, or an empty Row. Values are
// redacted unless raw.
func (m *DatabaseManager) FetchRow(ctx context.Context, table, id string, raw bool) (Row, error) {
	release, ctx, err := m.begin(ctx, "FetchRow", table)
	if err != nil {
		return nil, err
	}
	defer release()

	row, err := m.reader.FetchRow(ctx, table, id, raw)
	if err != nil {
		return nil, m.fail("FetchRow", table, err)
	}
	return row, nil
}

// InputWidgetFor returns the input widget for rawType.
func (m *DatabaseManager) InputWidgetFor(rawType string) Widget {
	return coerce.InputWidgetFor(rawType)
}

// FormatForInput renders v for widget w.
func (m *DatabaseManager) FormatForInput(v Value, w Widget) string {
	return coerce.FormatForInput(v, w)
}

// VerifyCascadeRegistry compares the registry with the live foreign keys.
// It warns about every entry that no foreign key backs, and about every
// foreign key into a registered table that the registry leaves out: deleting
// from that table orphans its rows.
func (m *DatabaseManager) VerifyCascadeRegistry(ctx context.Context) ([]string, error) {
	release, ctx, err := m.begin(ctx, "VerifyCascadeRegistry", "")
	if err != nil {
		return nil, err
	}
	defer release()

	registry := m.cascade.Registry()
	tables := make([]string, 0, len(registry))
	for table := range registry {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var warnings []string
	for _, table := range tables {
		keys, err := m.introspector.ReferencingKeys(ctx, table)
		if err != nil {
			if isSchemaError(err) {
				warnings = append(warnings, fmt.Sprintf("cascade table %q does not exist", table))
				continue
			}
			return nil, m.fail("VerifyCascadeRegistry", table, err)
		}
		for _, ref := range registry[table] {
			found := false
			for _, k := range keys {
				if k.Table == ref.Table && k.Column == ref.Column {
					found = true
					break
				}
			}
			if !found {
				warnings = append(warnings, fmt.Sprintf("%s.%s has no foreign key to %s", ref.Table, ref.Column, table))
			}
		}
		for _, k := range keys {
			if !registry.has(table, k.Table, k.Column) {
				warnings = append(warnings, fmt.Sprintf("%s.%s references %s but is not registered; deletes leave it dangling", k.Table, k.Column, table))
			}
		}
	}
	return warnings, nil
}
