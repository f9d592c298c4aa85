package pgadmin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/rickchristie/postgres-admin/internal/audit"
	"github.com/rickchristie/postgres-admin/internal/coerce"
	"github.com/rickchristie/postgres-admin/internal/guard"
)

// CascadeState is a step of the soft-cascade delete protocol.
type CascadeState int

const (
	StateIdle CascadeState = iota
	StatePreparingSchema
	StateInTransaction
	StateCommitted
	StateRolledBack
	StateFKChecksRestored
	StateIndexReset
	StateDone
)

func (s CascadeState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePreparingSchema:
		return "PREPARING_SCHEMA"
	case StateInTransaction:
		return "IN_TRANSACTION"
	case StateCommitted:
		return "COMMITTED"
	case StateRolledBack:
		return "ROLLED_BACK"
	case StateFKChecksRestored:
		return "FK_CHECKS_RESTORED"
	case StateIndexReset:
		return "INDEX_RESET"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("CascadeState(%d)", int(s))
	}
}

// CascadeCoordinator deletes rows with a soft cascade: the columns listed
// in the registry for the table are set to NULL instead of blocking the
// delete or deleting the referencing rows.
//
// Enforcement is off for the whole transaction, not only for registered
// columns. A foreign key missing from the registry neither blocks the
// delete nor cascades: its referencing rows are left pointing at the
// deleted key. VerifyCascadeRegistry reports such foreign keys.
//
// The protocol, in order:
//
//  1. PREPARING_SCHEMA, outside any transaction: every registered
//     referencing column is widened to nullable. Idempotent.
//  2. IN_TRANSACTION on one pooled connection: foreign key enforcement is
//     disabled, referencing columns are nulled, then the row (or every row
//     for id "all") is deleted.
//  3. COMMITTED, or ROLLED_BACK with the error returned as a
//     *TransactionFailure.
//  4. FK_CHECKS_RESTORED, unconditionally, on the same connection.
//  5. INDEX_RESET, only for "all" after commit: the primary key sequence
//     restarts at 1. Tables without a primary key skip this step.
//
// Steps 1 and 5 are not undone on failure; calling Delete again is safe.
type CascadeCoordinator struct {
	pool         *pgxpool.Pool
	introspector *Introspector
	registry     CascadeRegistry
	audit        AuditLogSink
	observer     func(CascadeState)
	logger       zerolog.Logger
}

// NewCascadeCoordinator copies registry; later changes to it have no effect.
func NewCascadeCoordinator(pool *pgxpool.Pool, introspector *Introspector, registry CascadeRegistry, sink AuditLogSink, logger zerolog.Logger) *CascadeCoordinator {
	return &CascadeCoordinator{
		pool:         pool,
		introspector: introspector,
		registry:     registry.Clone(),
		audit:        sink,
		logger:       logger,
	}
}

// Registry returns a copy of the cascade registry.
func (c *CascadeCoordinator) Registry() CascadeRegistry {
	return c.registry.Clone()
}

type cascadeTarget struct {
	ref    CascadeRef
	column ColumnMetadata
}

type nullified struct {
	ref  CascadeRef
	rows int64
}

var errRowNotFound = errors.New("row not found")

// Delete removes the row of table whose primary key equals id, or every
// row when id is AllRows.
func (c *CascadeCoordinator) Delete(ctx context.Context, table, id string) error {
	startTime := time.Now()
	all := id == AllRows
	state := StateIdle
	transition := func(s CascadeState) {
		c.logger.Debug().
			Str("table", table).
			Str("id", id).
			Str("from", state.String()).
			Str("to", s.String()).
			Msg("cascade state")
		state = s
		if c.observer != nil {
			c.observer(s)
		}
	}

	// 1. Schema preparation, before any transaction exists.
	transition(StatePreparingSchema)
	md, err := c.introspector.GetColumnsWithTypes(ctx, table)
	if err != nil {
		return err
	}
	// Only single-row deletes and the sequence reset need the key.
	pk, hasPK := md.Column(md.PrimaryKey())
	if !all {
		if !hasPK {
			return &SchemaError{Schema: md.Schema, Table: table, Column: md.PrimaryKey(), Message: "no primary key"}
		}
		if !coerce.Validate(coerce.Text(id), pk.RawType) {
			return &ValidationError{Column: pk.Name, Value: coerce.Text(id), Message: fmt.Sprintf("not a valid %s key", pk.SemanticType())}
		}
	}
	targets, err := c.prepareSchema(ctx, table)
	if err != nil {
		return err
	}

	// 2. Transaction on a dedicated connection.
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return queryErr("acquire connection", err)
	}
	transition(StateInTransaction)
	results, deleted, txErr := c.runTransaction(ctx, conn, md, pk, targets, id, all)

	// 3. Outcome.
	if txErr == nil {
		transition(StateCommitted)
	} else {
		transition(StateRolledBack)
	}

	// 4. Restore enforcement whatever happened above.
	c.restoreFKChecks(ctx, conn)
	transition(StateFKChecksRestored)

	if txErr != nil {
		transition(StateDone)
		if errors.Is(txErr, errRowNotFound) {
			return &SchemaError{Schema: md.Schema, Table: table, Message: fmt.Sprintf("row %s not found", id)}
		}
		c.logger.Error().Err(txErr).Str("table", table).Str("id", id).Msg("cascade delete rolled back")
		return &TransactionFailure{Table: table, ID: id, State: StateInTransaction, Err: txErr}
	}

	// 5. Sequence reset, after commit.
	var resetErr error
	if all && !hasPK {
		c.logger.Warn().Str("table", table).Msg("no primary key, sequence reset skipped")
	} else if all {
		if _, err := execGuarded(ctx, c.pool, guard.PhaseIndexReset, resetSequenceSQL, qualified(md.Schema, table), pk.Name); err != nil {
			resetErr = queryErr("reset sequence", err)
			c.logger.Error().Err(err).Str("table", table).Msg("sequence reset failed")
		} else {
			transition(StateIndexReset)
		}
	}

	// 6. Audit, only for committed work.
	for _, n := range results {
		c.audit.Log(ctx, audit.EventCascadeNullified,
			fmt.Sprintf("set %s.%s to NULL on %d rows referencing %s %s", n.ref.Table, n.ref.Column, n.rows, table, id))
	}
	if all {
		c.audit.Log(ctx, audit.EventTableCleared, fmt.Sprintf("deleted all %d rows from %s", deleted, table))
	} else {
		c.audit.Log(ctx, audit.EventRowDeleted, fmt.Sprintf("deleted row %s from %s", id, table))
	}

	transition(StateDone)
	c.logger.Info().
		Str("table", table).
		Str("id", id).
		Int("nullified_columns", len(results)).
		Int64("rows_deleted", deleted).
		Dur("duration", time.Since(startTime)).
		Msg("cascade delete executed")
	return resetErr
}

// prepareSchema resolves every registered reference and makes it nullable.
func (c *CascadeCoordinator) prepareSchema(ctx context.Context, table string) ([]cascadeTarget, error) {
	refs := c.registry[table]
	targets := make([]cascadeTarget, 0, len(refs))
	for _, ref := range refs {
		rmd, err := c.introspector.GetColumnsWithTypes(ctx, ref.Table)
		if err != nil {
			return nil, err
		}
		col, ok := rmd.Column(ref.Column)
		if !ok {
			return nil, &SchemaError{Schema: rmd.Schema, Table: ref.Table, Column: ref.Column}
		}
		if _, err := execGuarded(ctx, c.pool, guard.PhaseSchema, dropNotNullSQL(rmd.Schema, ref.Table, ref.Column)); err != nil {
			return nil, queryErr(fmt.Sprintf("widen %s.%s", ref.Table, ref.Column), err)
		}
		targets = append(targets, cascadeTarget{ref: ref, column: col})
	}
	return targets, nil
}

func (c *CascadeCoordinator) runTransaction(ctx context.Context, conn *pgxpool.Conn, md *TableMetadata, pk ColumnMetadata, targets []cascadeTarget, id string, all bool) ([]nullified, int64, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			// Detached so a cancelled caller still rolls back.
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if _, err := execGuarded(ctx, tx, guard.PhaseTransaction, disableFKChecksSQL); err != nil {
		return nil, 0, fmt.Errorf("disable foreign key checks: %w", err)
	}

	results := make([]nullified, 0, len(targets))
	for _, t := range targets {
		sql := nullifySQL(md.Schema, t.ref, t.column.CastType, all)
		var args []any
		if !all {
			args = []any{id}
		}
		tag, err := execGuarded(ctx, tx, guard.PhaseTransaction, sql, args...)
		if err != nil {
			return nil, 0, fmt.Errorf("nullify %s.%s: %w", t.ref.Table, t.ref.Column, err)
		}
		c.logger.Info().
			Str("table", t.ref.Table).
			Str("column", t.ref.Column).
			Int64("rows_affected", tag.RowsAffected()).
			Msg("nullified referencing column")
		results = append(results, nullified{ref: t.ref, rows: tag.RowsAffected()})
	}

	var args []any
	if !all {
		args = []any{id}
	}
	tag, err := execGuarded(ctx, tx, guard.PhaseTransaction, deleteSQL(md.Schema, md.Name, pk, all), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("delete: %w", err)
	}
	if !all && tag.RowsAffected() == 0 {
		return nil, 0, errRowNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return results, tag.RowsAffected(), nil
}

// restoreFKChecks resets session_replication_role on conn and releases
// it. A connection that cannot be reset is closed instead of returned to
// the pool.
func (c *CascadeCoordinator) restoreFKChecks(ctx context.Context, conn *pgxpool.Conn) {
	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := execGuarded(restoreCtx, conn, guard.PhaseRestore, restoreFKChecksSQL); err != nil {
		c.logger.Error().Err(err).Msg("failed to restore foreign key checks, closing connection")
		_ = conn.Conn().Close(restoreCtx)
	}
	conn.Release()
}
