package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	pgadmin "github.com/rickchristie/postgres-admin"
)

// validServerConfig returns a minimal valid ServerConfig for testing.
func validServerConfig() pgadmin.ServerConfig {
	return pgadmin.ServerConfig{
		Config: pgadmin.Config{
			Pool: pgadmin.PoolConfig{MaxConns: 5},
			Query: pgadmin.QueryConfig{
				DefaultTimeoutSeconds:  30,
				MetadataTimeoutSeconds: 10,
			},
		},
		Server: pgadmin.ServerSettings{
			Port: 8080,
		},
		Connection: pgadmin.ConnectionConfig{
			Host:   "localhost",
			Port:   5432,
			DBName: "testdb",
		},
	}
}

func writeConfigFile(t *testing.T, dir string, config pgadmin.ServerConfig) string {
	t.Helper()
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func writePolicyFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}
	return path
}

// Tests using t.Setenv() cannot use t.Parallel().

func TestLoadConfigValid(t *testing.T) {
	cfg := validServerConfig()
	t.Setenv("GOPGADMIN_CONFIG_PATH", writeConfigFile(t, t.TempDir(), cfg))

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", loaded.Server.Port)
	}
	if loaded.Pool.MaxConns != 5 {
		t.Fatalf("expected max_conns 5, got %d", loaded.Pool.MaxConns)
	}
	if loaded.Query.MetadataTimeoutSeconds != 10 {
		t.Fatalf("expected metadata_timeout_seconds 10, got %d", loaded.Query.MetadataTimeoutSeconds)
	}
	if loaded.Connection.DBName != "testdb" {
		t.Fatalf("expected dbname 'testdb', got %q", loaded.Connection.DBName)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	t.Setenv("GOPGADMIN_CONFIG_PATH", "/nonexistent/path/config.json")

	_, err := loadServerConfig()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "/nonexistent/path/config.json") {
		t.Fatalf("expected error to contain config path, got %q", err.Error())
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{invalid json}"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	t.Setenv("GOPGADMIN_CONFIG_PATH", path)

	_, err := loadServerConfig()
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "failed to parse config file") {
		t.Fatalf("expected parse error, got %q", err.Error())
	}
}

func TestLoadConfigAppliesPolicy(t *testing.T) {
	dir := t.TempDir()
	cfg := validServerConfig()
	cfg.Cascade = pgadmin.CascadeRegistry{"users": {{Table: "sessions", Column: "user_id"}}}
	cfg.Redaction.Tables = []string{"users"}
	cfg.PolicyPath = writePolicyFile(t, dir, `
cascade:
  visitors:
    - table: logs
      column: visitor_id
`)
	t.Setenv("GOPGADMIN_CONFIG_PATH", writeConfigFile(t, dir, cfg))

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refs, ok := loaded.Cascade["visitors"]
	if !ok || len(refs) != 1 || refs[0].Table != "logs" {
		t.Fatalf("expected policy cascade, got %v", loaded.Cascade)
	}
	if _, ok := loaded.Cascade["users"]; ok {
		t.Fatal("policy cascade should replace the config cascade")
	}
	// Redaction is absent from the policy, so the config value stays.
	if len(loaded.Redaction.Tables) != 1 || loaded.Redaction.Tables[0] != "users" {
		t.Fatalf("expected redaction tables preserved, got %v", loaded.Redaction.Tables)
	}
}

func TestLoadConfigInvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	cfg := validServerConfig()
	cfg.PolicyPath = writePolicyFile(t, dir, "cascade:\n  visitors:\n    - table: logs\n")
	t.Setenv("GOPGADMIN_CONFIG_PATH", writeConfigFile(t, dir, cfg))

	_, err := loadServerConfig()
	if err == nil {
		t.Fatal("expected error for incomplete cascade reference")
	}
	if !strings.Contains(err.Error(), "failed to load policy") {
		t.Fatalf("expected policy error, got %q", err.Error())
	}
}

func TestLoadConfigHealthCheckPathEmpty(t *testing.T) {
	cfg := validServerConfig()
	cfg.Server.HealthCheckEnabled = true
	t.Setenv("GOPGADMIN_CONFIG_PATH", writeConfigFile(t, t.TempDir(), cfg))

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	// runServe panics on this combination; loading alone does not validate it.
	if !loaded.Server.HealthCheckEnabled || loaded.Server.HealthCheckPath != "" {
		t.Fatalf("unexpected server settings: %+v", loaded.Server)
	}
}

func TestBuildConnString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		conn     pgadmin.ConnectionConfig
		user     string
		password string
		want     string
	}{
		{
			name:     "all fields",
			conn:     pgadmin.ConnectionConfig{Host: "db", Port: 5433, DBName: "shop", SSLMode: "require"},
			user:     "admin",
			password: "s3cret",
			want:     "host=db port=5433 dbname=shop user=admin password=s3cret sslmode=require",
		},
		{
			name: "empty fields skipped",
			conn: pgadmin.ConnectionConfig{DBName: "shop"},
			want: "dbname=shop",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := buildConnString(tt.conn, tt.user, tt.password); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSetupLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		logger := setupLogger(pgadmin.LoggingConfig{Level: tt.level, Output: "stderr"})
		if got := logger.GetLevel(); got != tt.want {
			t.Errorf("level %q: expected %v, got %v", tt.level, tt.want, got)
		}
	}
}

func TestSetupLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gopgadmin.log")
	logger := setupLogger(pgadmin.LoggingConfig{Level: "info", Format: "json", Output: path})
	logger.Info().Str("table", "visitors").Msg("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"table":"visitors"`) || !strings.Contains(string(data), `"message":"hello"`) {
		t.Fatalf("unexpected log content: %s", data)
	}
}
