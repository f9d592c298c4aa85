// Package guard checks generated SQL against the phase it is executed in.
//
// The delete protocol runs schema changes before BEGIN and the sequence
// reset after COMMIT. Statements are parsed with PostgreSQL's own parser
// (pg_query) and rejected when their kind does not belong to the phase, so
// a DDL statement can never end up inside the cascade transaction.
package guard

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Phase identifies where a statement runs.
type Phase int

const (
	// PhaseRead is a plain read: SELECT only.
	PhaseRead Phase = iota
	// PhaseWrite is a single-row mutation: INSERT, or UPDATE with WHERE.
	PhaseWrite
	// PhaseSchema runs outside any transaction: ALTER TABLE … DROP NOT NULL only.
	PhaseSchema
	// PhaseTransaction is the cascade transaction body.
	PhaseTransaction
	// PhaseRestore re-enables foreign key enforcement on the connection.
	PhaseRestore
	// PhaseIndexReset runs after commit: SELECT setval(...) only.
	PhaseIndexReset
	// PhaseTruncate: TRUNCATE only.
	PhaseTruncate
)

func (p Phase) String() string {
	switch p {
	case PhaseRead:
		return "read"
	case PhaseWrite:
		return "write"
	case PhaseSchema:
		return "schema"
	case PhaseTransaction:
		return "transaction"
	case PhaseRestore:
		return "restore"
	case PhaseIndexReset:
		return "index_reset"
	case PhaseTruncate:
		return "truncate"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// replicationRoleVar is the only setting the engine changes.
const replicationRoleVar = "session_replication_role"

// Check parses sql and returns nil if it may run in phase.
func Check(phase Phase, sql string) error {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("SQL parse error: %w", err)
	}
	if len(result.Stmts) == 0 {
		return fmt.Errorf("SQL parse error: empty query")
	}
	if len(result.Stmts) > 1 {
		return fmt.Errorf("multi-statement SQL is not allowed: found %d statements", len(result.Stmts))
	}
	node := result.Stmts[0].Stmt
	if err := checkCTEs(node); err != nil {
		return err
	}
	if err := checkNode(phase, node); err != nil {
		return fmt.Errorf("%s phase: %w", phase, err)
	}
	return nil
}

func checkNode(phase Phase, node *pg_query.Node) error {
	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		switch phase {
		case PhaseRead, PhaseTransaction, PhaseIndexReset:
			return nil
		}
		return fmt.Errorf("SELECT is not allowed")

	case *pg_query.Node_InsertStmt:
		if phase == PhaseWrite {
			return nil
		}
		return fmt.Errorf("INSERT is not allowed")

	case *pg_query.Node_UpdateStmt:
		switch phase {
		case PhaseWrite:
			if n.UpdateStmt.WhereClause == nil {
				return fmt.Errorf("UPDATE without WHERE clause is not allowed")
			}
			return nil
		case PhaseTransaction:
			return nil
		}
		return fmt.Errorf("UPDATE is not allowed")

	case *pg_query.Node_DeleteStmt:
		if phase == PhaseTransaction {
			return nil
		}
		return fmt.Errorf("DELETE is not allowed")

	case *pg_query.Node_VariableSetStmt:
		if phase != PhaseTransaction && phase != PhaseRestore {
			return fmt.Errorf("SET %s is not allowed", n.VariableSetStmt.Name)
		}
		if n.VariableSetStmt.Name != replicationRoleVar {
			return fmt.Errorf("SET %s is not allowed: only %s may be changed", n.VariableSetStmt.Name, replicationRoleVar)
		}
		if n.VariableSetStmt.Kind == pg_query.VariableSetKind_VAR_RESET_ALL {
			return fmt.Errorf("RESET ALL is not allowed")
		}
		return nil

	case *pg_query.Node_AlterTableStmt:
		if phase != PhaseSchema {
			return fmt.Errorf("ALTER TABLE is not allowed: schema changes run before the transaction begins")
		}
		return checkAlterCommands(n.AlterTableStmt)

	case *pg_query.Node_TruncateStmt:
		if phase == PhaseTruncate {
			return nil
		}
		return fmt.Errorf("TRUNCATE is not allowed")

	case *pg_query.Node_TransactionStmt:
		return fmt.Errorf("transaction control statements are not allowed: transactions are managed by the caller")

	case *pg_query.Node_DropStmt, *pg_query.Node_DropdbStmt:
		return fmt.Errorf("DROP statements are not allowed")

	case *pg_query.Node_CreateStmt, *pg_query.Node_IndexStmt, *pg_query.Node_CreateSchemaStmt,
		*pg_query.Node_ViewStmt, *pg_query.Node_CreateSeqStmt, *pg_query.Node_CreateTableAsStmt,
		*pg_query.Node_AlterSeqStmt, *pg_query.Node_RenameStmt, *pg_query.Node_CreateFunctionStmt,
		*pg_query.Node_CreateTrigStmt, *pg_query.Node_RuleStmt, *pg_query.Node_CreateExtensionStmt,
		*pg_query.Node_CommentStmt:
		return fmt.Errorf("DDL statements are not allowed")

	case *pg_query.Node_MergeStmt:
		return fmt.Errorf("MERGE is not allowed")

	case *pg_query.Node_CopyStmt:
		return fmt.Errorf("COPY is not allowed")

	case *pg_query.Node_DoStmt:
		return fmt.Errorf("DO blocks are not allowed")

	case *pg_query.Node_LockStmt:
		return fmt.Errorf("LOCK TABLE is not allowed")

	case *pg_query.Node_GrantStmt, *pg_query.Node_GrantRoleStmt, *pg_query.Node_CreateRoleStmt,
		*pg_query.Node_AlterRoleStmt, *pg_query.Node_DropRoleStmt, *pg_query.Node_AlterSystemStmt:
		return fmt.Errorf("privilege and system statements are not allowed")
	}
	return fmt.Errorf("statement type %T is not allowed", node.Node)
}

// checkAlterCommands admits ALTER TABLE only when every subcommand drops a
// NOT NULL constraint. Widening a column is idempotent; nothing else is.
func checkAlterCommands(stmt *pg_query.AlterTableStmt) error {
	if len(stmt.Cmds) == 0 {
		return fmt.Errorf("ALTER TABLE without commands is not allowed")
	}
	for _, c := range stmt.Cmds {
		cmd, ok := c.Node.(*pg_query.Node_AlterTableCmd)
		if !ok {
			return fmt.Errorf("unexpected ALTER TABLE command %T", c.Node)
		}
		if cmd.AlterTableCmd.Subtype != pg_query.AlterTableType_AT_DropNotNull {
			return fmt.Errorf("ALTER TABLE %s is not allowed: only DROP NOT NULL", cmd.AlterTableCmd.Subtype)
		}
	}
	return nil
}

// checkCTEs rejects data-modifying CTEs; generated SQL never needs them.
func checkCTEs(node *pg_query.Node) error {
	var withClause *pg_query.WithClause
	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		withClause = n.SelectStmt.WithClause
	case *pg_query.Node_InsertStmt:
		withClause = n.InsertStmt.WithClause
	case *pg_query.Node_UpdateStmt:
		withClause = n.UpdateStmt.WithClause
	case *pg_query.Node_DeleteStmt:
		withClause = n.DeleteStmt.WithClause
	}
	if withClause == nil {
		return nil
	}
	for _, cte := range withClause.Ctes {
		cteNode, ok := cte.Node.(*pg_query.Node_CommonTableExpr)
		if !ok {
			continue
		}
		if _, isSelect := cteNode.CommonTableExpr.Ctequery.Node.(*pg_query.Node_SelectStmt); !isSelect {
			return fmt.Errorf("data-modifying CTEs are not allowed")
		}
	}
	return nil
}
