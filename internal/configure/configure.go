package configure

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	pgadmin "github.com/rickchristie/postgres-admin"
)

// Run runs the interactive configuration wizard.
// Reads existing config (if any), prompts for each field,
// writes updated config to the given path.
func Run(configPath string) error {
	return run(configPath, os.Stdin, os.Stderr)
}

func run(configPath string, input io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(input)
	cfg, isNew := loadExisting(configPath)
	if isNew {
		applyDefaults(cfg)
	}

	p := &prompter{
		scanner: scanner,
		output:  output,
		isNew:   isNew,
	}

	fmt.Fprintf(output, "gopgadmin configuration wizard\n")
	fmt.Fprintf(output, "Config file: %s\n\n", configPath)

	fmt.Fprintf(output, "=== Connection ===\n")
	cfg.Connection.Host = p.promptString("connection.host", cfg.Connection.Host)
	cfg.Connection.Port = p.promptPositiveInt("connection.port", cfg.Connection.Port, "must be > 0")
	cfg.Connection.DBName = p.promptRequiredStringWithHint("connection.dbname", cfg.Connection.DBName, "required")
	cfg.Connection.SSLMode = p.promptEnum("connection.sslmode", cfg.Connection.SSLMode, sslModes)

	fmt.Fprintf(output, "\n=== Server ===\n")
	cfg.Server.Port = p.promptPositiveInt("server.port", cfg.Server.Port, "must be > 0")
	cfg.Server.HealthCheckEnabled = p.promptBool("server.health_check_enabled", cfg.Server.HealthCheckEnabled)
	cfg.Server.HealthCheckPath = p.promptStringWithHint("server.health_check_path", cfg.Server.HealthCheckPath, "e.g. /health-check, required when health_check_enabled is true")

	fmt.Fprintf(output, "\n=== Logging ===\n")
	cfg.Logging.Level = p.promptEnum("logging.level", cfg.Logging.Level, logLevels)
	cfg.Logging.Format = p.promptEnum("logging.format", cfg.Logging.Format, logFormats)
	cfg.Logging.Output = p.promptStringWithHint("logging.output", cfg.Logging.Output, "stdout, stderr, or file path")

	fmt.Fprintf(output, "\n=== Pool ===\n")
	cfg.Pool.MaxConns = p.promptPositiveInt("pool.max_conns", cfg.Pool.MaxConns, "must be > 0")
	cfg.Pool.MinConns = p.promptNonNegativeInt("pool.min_conns", cfg.Pool.MinConns, "must be >= 0")
	cfg.Pool.MaxConnLifetime = p.promptDuration("pool.max_conn_lifetime", cfg.Pool.MaxConnLifetime, "Go duration: e.g. 1h, 30m, 1h30m")
	cfg.Pool.MaxConnIdleTime = p.promptDuration("pool.max_conn_idle_time", cfg.Pool.MaxConnIdleTime, "Go duration: e.g. 1h, 30m, 1h30m")
	cfg.Pool.HealthCheckPeriod = p.promptDuration("pool.health_check_period", cfg.Pool.HealthCheckPeriod, "Go duration: e.g. 1m, 30s, 1m30s")

	fmt.Fprintf(output, "\n=== Query ===\n")
	cfg.Query.DefaultTimeoutSeconds = p.promptPositiveInt("query.default_timeout_seconds", cfg.Query.DefaultTimeoutSeconds, "seconds, must be > 0")
	cfg.Query.MetadataTimeoutSeconds = p.promptPositiveInt("query.metadata_timeout_seconds", cfg.Query.MetadataTimeoutSeconds, "seconds, must be > 0")

	fmt.Fprintf(output, "\n=== Pagination ===\n")
	cfg.Pagination.ItemsPerPage = p.promptNonNegativeInt("pagination.items_per_page", cfg.Pagination.ItemsPerPage, fmt.Sprintf("0 = %d", pgadmin.DefaultItemsPerPage))

	fmt.Fprintf(output, "\n=== General ===\n")
	cfg.Schema = p.promptStringWithHint("schema", cfg.Schema, "empty = public")
	cfg.Timezone = p.promptTimezone(cfg.Timezone)
	cfg.DefaultHookTimeoutSeconds = p.promptNonNegativeInt("default_hook_timeout_seconds", cfg.DefaultHookTimeoutSeconds, "seconds, must be > 0 when hooks are configured")
	cfg.PolicyPath = p.promptStringWithHint("policy_path", cfg.PolicyPath, "YAML file overriding cascade and redaction, empty = none")

	fmt.Fprintf(output, "\n=== Redaction ===\n")
	cfg.Redaction.Marker = p.promptStringWithHint("redaction.marker", cfg.Redaction.Marker, "empty = [REDACTED]")
	cfg.Redaction.Tables = p.promptList("redaction.tables", cfg.Redaction.Tables)
	cfg.Redaction.Columns = p.promptList("redaction.columns", cfg.Redaction.Columns)

	fmt.Fprintf(output, "\n=== Timeout Rules ===\n")
	cfg.Query.TimeoutRules = p.promptTimeoutRules(cfg.Query.TimeoutRules)

	fmt.Fprintf(output, "\n=== Error Hints ===\n")
	cfg.ErrorHints = p.promptErrorHints(cfg.ErrorHints)

	fmt.Fprintf(output, "\n=== Redaction Rules ===\n")
	cfg.Redaction.Rules = p.promptRedactionRules(cfg.Redaction.Rules)

	fmt.Fprintf(output, "\n=== Cascade Registry ===\n")
	cfg.Cascade = p.promptCascade(cfg.Cascade)

	fmt.Fprintf(output, "\n=== Server Hooks: Before Mutation ===\n")
	cfg.ServerHooks.BeforeMutation = p.promptHookEntries("server_hooks.before_mutation", cfg.ServerHooks.BeforeMutation)

	fmt.Fprintf(output, "\n=== Server Hooks: Audit ===\n")
	cfg.ServerHooks.Audit = p.promptHookEntries("server_hooks.audit", cfg.ServerHooks.Audit)

	if err := writeConfig(configPath, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(output, "\nConfiguration saved to %s\n", configPath)
	return nil
}

func loadExisting(configPath string) (*pgadmin.ServerConfig, bool) {
	cfg := &pgadmin.ServerConfig{}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, true
	}
	// Ignore unmarshal errors: start with whatever was parseable.
	_ = json.Unmarshal(data, cfg)
	return cfg, false
}

// applyDefaults sets the values a new configuration starts from.
func applyDefaults(cfg *pgadmin.ServerConfig) {
	cfg.Connection.Host = "localhost"
	cfg.Connection.Port = 5432
	cfg.Connection.SSLMode = "prefer"
	cfg.Server.Port = 8080
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stderr"
	cfg.Pool.MaxConns = 5
	cfg.Pool.MaxConnLifetime = "1h"
	cfg.Pool.MaxConnIdleTime = "30m"
	cfg.Pool.HealthCheckPeriod = "1m"
	cfg.Query.DefaultTimeoutSeconds = 30
	cfg.Query.MetadataTimeoutSeconds = 10
	cfg.Pagination.ItemsPerPage = pgadmin.DefaultItemsPerPage
	cfg.Schema = "public"
	cfg.Redaction.Columns = append([]string(nil), pgadmin.DefaultRedactedColumns...)
}

var (
	sslModes   = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

func writeConfig(configPath string, cfg *pgadmin.ServerConfig) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", configPath, err)
	}
	return nil
}

// prompter handles reading user input and displaying prompts.
type prompter struct {
	scanner *bufio.Scanner
	output  io.Writer
	isNew   bool
}

func (p *prompter) readLine() string {
	if p.scanner.Scan() {
		return strings.TrimSpace(p.scanner.Text())
	}
	return ""
}

func (p *prompter) valueLabel() string {
	if p.isNew {
		return "default"
	}
	return "current"
}

func (p *prompter) promptString(field string, current string) string {
	fmt.Fprintf(p.output, "%s (%s: %q): ", field, p.valueLabel(), current)
	input := p.readLine()
	if input == "" {
		return current
	}
	return input
}

func (p *prompter) promptStringWithHint(field string, current string, hint string) string {
	fmt.Fprintf(p.output, "%s [%s] (%s: %q): ", field, hint, p.valueLabel(), current)
	input := p.readLine()
	if input == "" {
		return current
	}
	return input
}

// promptRequiredStringWithHint keeps asking until a non-empty value is
// available, either typed or already set.
func (p *prompter) promptRequiredStringWithHint(field string, current string, hint string) string {
	for {
		fmt.Fprintf(p.output, "%s [%s] (%s: %q): ", field, hint, p.valueLabel(), current)
		input := p.readLine()
		if input != "" {
			return input
		}
		if current != "" {
			return current
		}
		fmt.Fprintf(p.output, "  Value is required, try again.\n")
	}
}

// promptList edits a comma-separated list. "-" clears it.
func (p *prompter) promptList(field string, current []string) []string {
	fmt.Fprintf(p.output, "%s [comma-separated, - to clear] (%s: %q): ", field, p.valueLabel(), strings.Join(current, ","))
	input := p.readLine()
	switch input {
	case "":
		return current
	case "-":
		return nil
	}
	var out []string
	for _, item := range strings.Split(input, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (p *prompter) promptPositiveInt(field string, current int, hint string) int {
	return p.promptIntAtLeast(field, current, hint, 1)
}

func (p *prompter) promptNonNegativeInt(field string, current int, hint string) int {
	return p.promptIntAtLeast(field, current, hint, 0)
}

// promptIntAtLeast re-asks until the value is >= min. Enter keeps current
// only when current itself satisfies min.
func (p *prompter) promptIntAtLeast(field string, current int, hint string, min int) int {
	for {
		fmt.Fprintf(p.output, "%s [%s] (%s: %d): ", field, hint, p.valueLabel(), current)
		input := p.readLine()
		val := current
		if input != "" {
			n, err := strconv.Atoi(input)
			if err != nil {
				fmt.Fprintf(p.output, "  Invalid integer %q, try again.\n", input)
				continue
			}
			val = n
		}
		if val < min {
			fmt.Fprintf(p.output, "  Value must be %s, try again.\n", boundLabel(min))
			continue
		}
		return val
	}
}

func boundLabel(min int) string {
	if min == 1 {
		return "> 0"
	}
	return fmt.Sprintf(">= %d", min)
}

func (p *prompter) promptBool(field string, current bool) bool {
	for {
		fmt.Fprintf(p.output, "%s (%s: %v): ", field, p.valueLabel(), current)
		input := p.readLine()
		if input == "" {
			return current
		}
		switch strings.ToLower(input) {
		case "true", "t", "yes", "y", "1":
			return true
		case "false", "f", "no", "n", "0":
			return false
		default:
			fmt.Fprintf(p.output, "  Invalid value %q, use true/false/yes/no, try again.\n", input)
		}
	}
}

func (p *prompter) promptDuration(field string, current string, hint string) string {
	for {
		fmt.Fprintf(p.output, "%s [%s] (%s: %q): ", field, hint, p.valueLabel(), current)
		input := p.readLine()
		if input == "" {
			return current
		}
		if _, err := time.ParseDuration(input); err != nil {
			fmt.Fprintf(p.output, "  Invalid Go duration %q, try again.\n", input)
			continue
		}
		return input
	}
}

func (p *prompter) promptTimezone(current string) string {
	for {
		fmt.Fprintf(p.output, "timezone [e.g. UTC, America/New_York, empty = server default] (%s: %q): ", p.valueLabel(), current)
		input := p.readLine()
		if input == "" {
			return current
		}
		if _, err := time.LoadLocation(input); err != nil {
			fmt.Fprintf(p.output, "  Invalid timezone %q, please enter a valid IANA timezone.\n", input)
			continue
		}
		return input
	}
}

func (p *prompter) promptEnum(field string, current string, allowed []string) string {
	for {
		fmt.Fprintf(p.output, "%s (%s: %q, options: %s): ", field, p.valueLabel(), current, strings.Join(allowed, ", "))
		input := p.readLine()
		if input == "" {
			return current
		}
		for _, v := range allowed {
			if input == v {
				return input
			}
		}
		fmt.Fprintf(p.output, "  Invalid value %q, must be one of: %s\n", input, strings.Join(allowed, ", "))
	}
}

// editEntries runs the add/remove/continue loop shared by every list
// section. show renders one entry; add prompts for a new one.
func editEntries[T any](p *prompter, label string, entries []T, show func(T) string, add func() T) []T {
	for {
		if len(entries) == 0 {
			fmt.Fprintf(p.output, "  (no entries)\n")
		}
		for i, e := range entries {
			fmt.Fprintf(p.output, "  [%d] %s\n", i, show(e))
		}
		fmt.Fprintf(p.output, "[a]dd, [r]emove, [c]ontinue? ")
		switch strings.ToLower(p.readLine()) {
		case "a":
			entries = append(entries, add())
		case "r":
			entries = removeByIndex(p, label, entries)
		case "c", "":
			return entries
		default:
			fmt.Fprintf(p.output, "  Unknown choice, try again.\n")
		}
	}
}

func (p *prompter) promptTimeoutRules(current []pgadmin.TimeoutRule) []pgadmin.TimeoutRule {
	return editEntries(p, "timeout rule", current,
		func(r pgadmin.TimeoutRule) string {
			return fmt.Sprintf("pattern=%q timeout_seconds=%d", r.Pattern, r.TimeoutSeconds)
		},
		func() pgadmin.TimeoutRule {
			return pgadmin.TimeoutRule{
				Pattern:        p.promptNewRegexField("pattern"),
				TimeoutSeconds: p.promptNewIntField("timeout_seconds", 1),
			}
		})
}

func (p *prompter) promptErrorHints(current []pgadmin.ErrorHintRule) []pgadmin.ErrorHintRule {
	return editEntries(p, "error hint", current,
		func(r pgadmin.ErrorHintRule) string {
			return fmt.Sprintf("pattern=%q message=%q", r.Pattern, r.Message)
		},
		func() pgadmin.ErrorHintRule {
			return pgadmin.ErrorHintRule{
				Pattern: p.promptNewRegexField("pattern"),
				Message: p.promptNewField("message"),
			}
		})
}

func (p *prompter) promptRedactionRules(current []pgadmin.RedactionRule) []pgadmin.RedactionRule {
	return editEntries(p, "redaction rule", current,
		func(r pgadmin.RedactionRule) string {
			return fmt.Sprintf("pattern=%q replacement=%q description=%q", r.Pattern, r.Replacement, r.Description)
		},
		func() pgadmin.RedactionRule {
			return pgadmin.RedactionRule{
				Pattern:     p.promptNewRegexField("pattern"),
				Replacement: p.promptNewField("replacement"),
				Description: p.promptNewField("description"),
			}
		})
}

// cascadeEntry is one registry reference flattened for editing.
type cascadeEntry struct {
	table string
	ref   pgadmin.CascadeRef
}

// flattenCascade lists registry references ordered by deleted table, so
// indexes shown to the user are stable.
func flattenCascade(registry pgadmin.CascadeRegistry) []cascadeEntry {
	tables := make([]string, 0, len(registry))
	for table := range registry {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	var out []cascadeEntry
	for _, table := range tables {
		for _, ref := range registry[table] {
			out = append(out, cascadeEntry{table: table, ref: ref})
		}
	}
	return out
}

func buildCascade(entries []cascadeEntry) pgadmin.CascadeRegistry {
	if len(entries) == 0 {
		return nil
	}
	registry := pgadmin.CascadeRegistry{}
	for _, e := range entries {
		registry[e.table] = append(registry[e.table], e.ref)
	}
	return registry
}

func (p *prompter) promptCascade(current pgadmin.CascadeRegistry) pgadmin.CascadeRegistry {
	entries := editEntries(p, "cascade", flattenCascade(current),
		func(e cascadeEntry) string {
			return fmt.Sprintf("%s -> %s.%s", e.table, e.ref.Table, e.ref.Column)
		},
		func() cascadeEntry {
			table := p.promptNewRequiredField("deleted table")
			return cascadeEntry{
				table: table,
				ref: pgadmin.CascadeRef{
					Table:  p.promptNewRequiredField("referencing table"),
					Column: p.promptNewRequiredField("referencing column"),
				},
			}
		})
	return buildCascade(entries)
}

func (p *prompter) promptHookEntries(label string, current []pgadmin.HookEntry) []pgadmin.HookEntry {
	return editEntries(p, label, current,
		func(e pgadmin.HookEntry) string {
			return fmt.Sprintf("pattern=%q command=%q args=%v timeout_seconds=%d", e.Pattern, e.Command, e.Args, e.TimeoutSeconds)
		},
		func() pgadmin.HookEntry {
			e := pgadmin.HookEntry{
				Pattern: p.promptNewRegexField("pattern (op:table)"),
				Command: p.promptNewRequiredField("command"),
			}
			if argsStr := p.promptNewField("args (comma-separated)"); argsStr != "" {
				for _, a := range strings.Split(argsStr, ",") {
					e.Args = append(e.Args, strings.TrimSpace(a))
				}
			}
			e.TimeoutSeconds = p.promptNewIntField("timeout_seconds", 0)
			return e
		})
}

func (p *prompter) promptNewField(name string) string {
	fmt.Fprintf(p.output, "  %s: ", name)
	return p.readLine()
}

func (p *prompter) promptNewRequiredField(name string) string {
	for {
		fmt.Fprintf(p.output, "  %s: ", name)
		input := p.readLine()
		if input != "" {
			return input
		}
		fmt.Fprintf(p.output, "  Value is required, try again.\n")
	}
}

func (p *prompter) promptNewRegexField(name string) string {
	for {
		fmt.Fprintf(p.output, "  %s (regex): ", name)
		input := p.readLine()
		if input == "" {
			return ""
		}
		if _, err := regexp.Compile(input); err != nil {
			fmt.Fprintf(p.output, "  Invalid regex %q: %v, try again.\n", input, err)
			continue
		}
		return input
	}
}

// promptNewIntField reads an int >= min for a new entry. Enter yields 0,
// which is rejected when min is positive.
func (p *prompter) promptNewIntField(name string, min int) int {
	for {
		fmt.Fprintf(p.output, "  %s (must be %s): ", name, boundLabel(min))
		input := p.readLine()
		if input == "" {
			if min <= 0 {
				return 0
			}
			fmt.Fprintf(p.output, "  Value is required and must be %s, try again.\n", boundLabel(min))
			continue
		}
		val, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintf(p.output, "  Invalid integer %q, try again.\n", input)
			continue
		}
		if val < min {
			fmt.Fprintf(p.output, "  Value must be %s, try again.\n", boundLabel(min))
			continue
		}
		return val
	}
}

func removeByIndex[T any](p *prompter, label string, items []T) []T {
	if len(items) == 0 {
		fmt.Fprintf(p.output, "  No %s entries to remove.\n", label)
		return items
	}
	fmt.Fprintf(p.output, "  Index to remove: ")
	input := p.readLine()
	idx, err := strconv.Atoi(input)
	if err != nil || idx < 0 || idx >= len(items) {
		fmt.Fprintf(p.output, "  Invalid index.\n")
		return items
	}
	return append(items[:idx:idx], items[idx+1:]...)
}
