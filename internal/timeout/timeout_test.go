package timeout

import (
	"strings"
	"testing"
	"time"
)

func TestMatchFirstRule(t *testing.T) {
	t.Parallel()
	m, err := NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: "^logs$", Timeout: 120 * time.Second},
			{Pattern: "^audit_", Timeout: 60 * time.Second},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.GetTimeout("logs"); got != 120*time.Second {
		t.Errorf("expected 120s, got %v", got)
	}
	if got := m.GetTimeout("audit_entries"); got != 60*time.Second {
		t.Errorf("expected 60s, got %v", got)
	}
}

func TestStopOnFirstMatch(t *testing.T) {
	t.Parallel()
	m, err := NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: "messages", Timeout: 5 * time.Second},
			{Pattern: "inbox", Timeout: 60 * time.Second},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, pattern := m.GetTimeoutWithPattern("inbox_messages")
	if got != 5*time.Second || pattern != "messages" {
		t.Errorf("expected 5s from first rule, got %v (%q)", got, pattern)
	}
}

func TestDefaultTimeout(t *testing.T) {
	t.Parallel()
	m, err := NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules:          []Rule{{Pattern: "^logs$", Timeout: time.Minute}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, pattern := m.GetTimeoutWithPattern("users")
	if got != 30*time.Second {
		t.Errorf("expected default 30s, got %v", got)
	}
	if pattern != "" {
		t.Errorf("expected empty pattern for default, got %q", pattern)
	}
}

func TestInvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := NewManager(Config{
		DefaultTimeout: time.Second,
		Rules:          []Rule{{Pattern: "(", Timeout: time.Second}},
	})
	if err == nil || !strings.Contains(err.Error(), "invalid regex pattern") {
		t.Fatalf("expected invalid regex error, got %v", err)
	}
}
