package pgadmin

// Config is the base configuration used by library mode via New().
type Config struct {
	Schema                    string           `json:"schema"`
	Pool                      PoolConfig       `json:"pool"`
	Query                     QueryConfig      `json:"query"`
	Pagination                PaginationConfig `json:"pagination"`
	Redaction                 RedactionConfig  `json:"redaction"`
	Cascade                   CascadeRegistry  `json:"cascade"`
	ErrorHints                []ErrorHintRule  `json:"error_hints"`
	Timezone                  string           `json:"timezone"`
	DefaultHookTimeoutSeconds int              `json:"default_hook_timeout_seconds"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection  ConnectionConfig  `json:"connection"`
	Server      ServerSettings    `json:"server"`
	Logging     LoggingConfig     `json:"logging"`
	PolicyPath  string            `json:"policy_path"`
	ServerHooks ServerHooksConfig `json:"server_hooks"`
}

// ConnectionConfig holds database connection parameters used by CLI mode.
type ConnectionConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	DBName  string `json:"dbname"`
	SSLMode string `json:"sslmode"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxConns          int    `json:"max_conns"`
	MinConns          int    `json:"min_conns"`
	MaxConnLifetime   string `json:"max_conn_lifetime"`
	MaxConnIdleTime   string `json:"max_conn_idle_time"`
	HealthCheckPeriod string `json:"health_check_period"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// QueryConfig holds statement execution settings.
type QueryConfig struct {
	DefaultTimeoutSeconds  int           `json:"default_timeout_seconds"`
	MetadataTimeoutSeconds int           `json:"metadata_timeout_seconds"`
	TimeoutRules           []TimeoutRule `json:"timeout_rules"`
}

// TimeoutRule maps a table name pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ErrorHintRule maps an error message pattern to a guidance message.
type ErrorHintRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// RedactionConfig selects values hidden from non-raw reads. Columns are
// masked only in the listed Tables; Rules rewrite text in every table.
type RedactionConfig struct {
	Marker  string          `json:"marker" yaml:"marker"`
	Tables  []string        `json:"tables" yaml:"tables"`
	Columns []string        `json:"columns" yaml:"columns"`
	Rules   []RedactionRule `json:"rules" yaml:"rules"`
}

// RedactionRule defines a regex-based text rewrite.
type RedactionRule struct {
	Pattern     string `json:"pattern" yaml:"pattern"`
	Replacement string `json:"replacement" yaml:"replacement"`
	Description string `json:"description" yaml:"description"`
}

// DefaultRedactedColumns are masked when RedactionConfig.Columns is empty.
var DefaultRedactedColumns = []string{"message", "profile_pic", "token", "password"}

// CascadeRef names a column that is set to NULL when the row it points at
// is deleted.
type CascadeRef struct {
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}

// CascadeRegistry maps a table to the columns soft-cascaded on delete.
// Foreign keys not listed are not enforced during the delete either: rows
// they reference are removed and the referencing values are left dangling.
type CascadeRegistry map[string][]CascadeRef

func (r CascadeRegistry) has(table, refTable, refColumn string) bool {
	for _, ref := range r[table] {
		if ref.Table == refTable && ref.Column == refColumn {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (r CascadeRegistry) Clone() CascadeRegistry {
	if r == nil {
		return CascadeRegistry{}
	}
	out := make(CascadeRegistry, len(r))
	for table, refs := range r {
		out[table] = append([]CascadeRef(nil), refs...)
	}
	return out
}

// ServerHooksConfig holds command-based hook configuration for CLI mode.
type ServerHooksConfig struct {
	BeforeMutation []HookEntry `json:"before_mutation"`
	Audit          []HookEntry `json:"audit"`
}

// HookEntry defines a single command-based hook.
type HookEntry struct {
	Pattern        string   `json:"pattern"`
	Command        string   `json:"command"`
	Args           []string `json:"args"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}
