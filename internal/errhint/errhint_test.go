package errhint

import (
	"testing"
)

func TestHintsForeignKey(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: `(?i)no matching row in`, Message: "Create the referenced row first or leave the column empty."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Hints(`constraint violation: value "999999" has no matching row in visitors.id`)
	if len(got) != 1 || got[0] != "Create the referenced row first or leave the column empty." {
		t.Fatalf("unexpected hints: %v", got)
	}
}

func TestNoMatch(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: `(?i)permission denied`, Message: "Check role privileges."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Hints("some other error"); got != nil {
		t.Fatalf("expected no hints, got %v", got)
	}
	if got := m.Annotate("some other error"); got != "some other error" {
		t.Fatalf("expected message unchanged, got %q", got)
	}
}

func TestAnnotateMultipleMatches(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: `(?i)permission denied`, Message: "Check role privileges."},
		{Pattern: `session_replication_role`, Message: "Soft-cascade deletes need superuser or GRANT SET ON PARAMETER session_replication_role."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Annotate(`permission denied to set parameter "session_replication_role"`)
	want := "permission denied to set parameter \"session_replication_role\"\n\n" +
		"Check role privileges.\n" +
		"Soft-cascade deletes need superuser or GRANT SET ON PARAMETER session_replication_role."
	if got != want {
		t.Fatalf("unexpected annotation:\n%s", got)
	}
}

func TestPatterns(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: `timeout`, Message: "a"},
		{Pattern: `deadlock`, Message: "b"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Patterns("deadlock detected")
	if len(got) != 1 || got[0] != "deadlock" {
		t.Fatalf("unexpected patterns: %v", got)
	}
}

func TestInvalidPattern(t *testing.T) {
	t.Parallel()
	if _, err := NewMatcher([]Rule{{Pattern: `[`, Message: "x"}}); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}
