package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"time"

	"github.com/rickchristie/postgres-admin/internal/audit"
	"github.com/rs/zerolog"
)

// Config is the hook runner's own config type.
type Config struct {
	DefaultTimeout time.Duration
	BeforeMutation []HookEntry
	Audit          []HookEntry
}

// HookEntry defines a single command-based hook.
//
// For before_mutation hooks Pattern is matched against "<operation>:<table>",
// e.g. "delete_row:visitors". For audit hooks it is matched against the
// event name, e.g. "row_deleted".
type HookEntry struct {
	Pattern string
	Command string
	Args    []string
	Timeout time.Duration // 0 means use DefaultTimeout
}

// Mutation describes a pending data change. It is written to the hook's
// stdin as JSON.
type Mutation struct {
	Operation string            `json:"operation"`
	Table     string            `json:"table"`
	ID        string            `json:"id,omitempty"`
	Column    string            `json:"column,omitempty"`
	Values    map[string]string `json:"values,omitempty"`
}

// Key is the string before_mutation patterns are matched against.
func (m Mutation) Key() string {
	return m.Operation + ":" + m.Table
}

// MutationResult is the JSON response from a before_mutation hook.
type MutationResult struct {
	Accept       bool   `json:"accept"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type compiledHook struct {
	pattern *regexp.Regexp
	command string
	args    []string
	timeout time.Duration
}

// Runner executes command-based hooks.
type Runner struct {
	beforeMutation []compiledHook
	audit          []compiledHook
	defaultTimeout time.Duration
	logger         zerolog.Logger
}

// NewRunner creates a new Runner. Panics on invalid regex or invalid config.
func NewRunner(config Config, logger zerolog.Logger) *Runner {
	if config.DefaultTimeout == 0 && (len(config.BeforeMutation) > 0 || len(config.Audit) > 0) {
		panic("hooks: default_hook_timeout_seconds must be > 0 when hooks are configured")
	}

	compile := func(entries []HookEntry) []compiledHook {
		compiled := make([]compiledHook, len(entries))
		for i, e := range entries {
			re, err := regexp.Compile(e.Pattern)
			if err != nil {
				panic(fmt.Sprintf("hooks: invalid regex pattern %q: %v", e.Pattern, err))
			}
			if e.Command == "" {
				panic(fmt.Sprintf("hooks: hook for pattern %q has no command", e.Pattern))
			}
			timeout := e.Timeout
			if timeout == 0 {
				timeout = config.DefaultTimeout
			}
			compiled[i] = compiledHook{
				pattern: re,
				command: e.Command,
				args:    e.Args,
				timeout: timeout,
			}
		}
		return compiled
	}

	return &Runner{
		beforeMutation: compile(config.BeforeMutation),
		audit:          compile(config.Audit),
		defaultTimeout: config.DefaultTimeout,
		logger:         logger,
	}
}

// HasBeforeMutationHooks returns true if any BeforeMutation hooks are configured.
func (r *Runner) HasBeforeMutationHooks() bool {
	return len(r.beforeMutation) > 0
}

// HasAuditHooks returns true if any Audit hooks are configured.
func (r *Runner) HasAuditHooks() bool {
	return len(r.audit) > 0
}

// RunBeforeMutation runs every matching BeforeMutation hook in order. The
// first rejection or failure stops the chain and vetoes the mutation.
func (r *Runner) RunBeforeMutation(ctx context.Context, m Mutation) error {
	key := m.Key()
	var input []byte
	for _, hook := range r.beforeMutation {
		if !hook.pattern.MatchString(key) {
			continue
		}
		if input == nil {
			b, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("before_mutation hook: failed to encode mutation: %w", err)
			}
			input = b
		}
		output, err := r.executeHook(ctx, hook, input)
		if err != nil {
			return fmt.Errorf("before_mutation hook error: %w", err)
		}

		var result MutationResult
		if err := json.Unmarshal(output, &result); err != nil {
			return fmt.Errorf("before_mutation hook returned unparseable response (command: %s): %w", hook.command, err)
		}
		if !result.Accept {
			errMsg := "mutation rejected by hook"
			if result.ErrorMessage != "" {
				errMsg = result.ErrorMessage
			}
			return errors.New(errMsg)
		}
	}
	return nil
}

// Forward sends an audit entry to every matching Audit hook. Output is
// ignored; all hooks run even if one fails, and the failures are joined.
func (r *Runner) Forward(ctx context.Context, e audit.Entry) error {
	var input []byte
	var errs []error
	for _, hook := range r.audit {
		if !hook.pattern.MatchString(e.Event) {
			continue
		}
		if input == nil {
			b, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("audit hook: failed to encode entry: %w", err)
			}
			input = b
		}
		if _, err := r.executeHook(ctx, hook, input); err != nil {
			errs = append(errs, fmt.Errorf("audit hook error: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) executeHook(ctx context.Context, hook compiledHook, input []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, hook.timeout)
	defer cancel()

	// No shell interpretation: the binary is executed directly.
	cmd := exec.CommandContext(ctx, hook.command, hook.args...)
	cmd.Stdin = bytes.NewReader(input)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if stderr.Len() > 0 {
			r.logger.Warn().Str("command", hook.command).Str("stderr", stderr.String()).Msg("hook stderr output")
		}
		// Non-zero exit, crash and timeout all count as failure.
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("hook timed out: %s", hook.command)
		}
		return nil, fmt.Errorf("hook failed (command: %s): %w", hook.command, err)
	}
	if stderr.Len() > 0 {
		r.logger.Debug().Str("command", hook.command).Str("stderr", stderr.String()).Msg("hook stderr output")
	}
	return output, nil
}
