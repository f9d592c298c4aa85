package pgadmin

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for errors.Is. Every typed error below matches exactly one.
var (
	ErrValidation  = errors.New("validation failed")
	ErrConstraint  = errors.New("foreign key constraint violated")
	ErrSchema      = errors.New("schema object not found")
	ErrQuery       = errors.New("query failed")
	ErrTransaction = errors.New("transaction failed")
	ErrRejected    = errors.New("mutation rejected")
)

// ValidationError reports a value that does not fit its column, or a
// required column left empty. No statement has been executed.
type ValidationError struct {
	Column  string
	Value   Value
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("invalid value for column %q: %s", e.Column, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConstraintViolation reports a foreign key value with no matching row in
// the referenced table. It is raised before any mutating statement.
type ConstraintViolation struct {
	Column           string
	Value            Value
	ReferencedTable  string
	ReferencedColumn string
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("value %s for column %q does not exist in %s.%s",
		e.Value.String(), e.Column, e.ReferencedTable, e.ReferencedColumn)
}

func (e *ConstraintViolation) Is(target error) bool { return target == ErrConstraint }

// SchemaError reports a missing table, column or row.
type SchemaError struct {
	Schema  string
	Table   string
	Column  string
	Message string
}

func (e *SchemaError) Error() string {
	name := e.Table
	if e.Schema != "" {
		name = e.Schema + "." + e.Table
	}
	switch {
	case e.Message != "" && e.Column != "":
		return fmt.Sprintf("%s: column %q of table %q", e.Message, e.Column, name)
	case e.Message != "":
		return fmt.Sprintf("%s: table %q", e.Message, name)
	case e.Column != "":
		return fmt.Sprintf("column %q does not exist in table %q", e.Column, name)
	default:
		return fmt.Sprintf("table %q does not exist", name)
	}
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// QueryError wraps a driver or connection failure outside the cascade
// transaction. Op names the step that failed.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

// TransactionFailure reports a failed cascade delete. The transaction was
// rolled back and foreign key enforcement restored before it was returned.
type TransactionFailure struct {
	Table string
	ID    string
	State CascadeState
	Err   error
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("delete from %s (id %s) rolled back in state %s: %v", e.Table, e.ID, e.State, e.Err)
}

func (e *TransactionFailure) Unwrap() error { return e.Err }

func (e *TransactionFailure) Is(target error) bool { return target == ErrTransaction }

// RejectedError reports a mutation vetoed by a before_mutation hook.
type RejectedError struct {
	Operation string
	Table     string
	Reason    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s on %s rejected: %s", e.Operation, e.Table, e.Reason)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// HTTPStatus maps an error returned by the engine to the status a web
// caller should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrConstraint):
		return http.StatusConflict
	case errors.Is(err, ErrSchema):
		return http.StatusNotFound
	case errors.Is(err, ErrRejected):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// queryErr wraps err as a QueryError unless it already is one of the
// engine's typed errors.
func queryErr(op string, err error) error {
	var (
		qe *QueryError
		se *SchemaError
	)
	if errors.As(err, &qe) || errors.As(err, &se) {
		return err
	}
	return &QueryError{Op: op, Err: err}
}
