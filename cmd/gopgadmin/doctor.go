package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"

	pgadmin "github.com/rickchristie/postgres-admin"
	"github.com/rickchristie/postgres-admin/internal/meta"
)

func runDoctor() error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	fs.Parse(os.Args[2:])

	return doctor(os.Stderr, isTTY(os.Stderr.Fd()), *configPath)
}

func doctor(w io.Writer, useColor bool, configPath string) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "gopgadmin %s\n\n", meta.Version)

	config, ok := doctorValidateConfig(w, useColor, configPath)
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'gopgadmin doctor' again.")
		return nil
	}

	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, config)
	return nil
}

// doctorValidateConfig loads the config file and prints one line per check.
// It returns the parsed config and whether every check passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) (*pgadmin.ServerConfig, bool) {
	allPassed := true
	check := func(pass bool, msg string) {
		printCheck(w, useColor, pass, msg)
		if !pass {
			allPassed = false
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		check(false, fmt.Sprintf("Config file readable (%s)", configPath))
		return nil, false
	}
	check(true, fmt.Sprintf("Config file readable (%s)", configPath))

	var config pgadmin.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		check(false, fmt.Sprintf("Config file is valid JSON: %v", err))
		return nil, false
	}
	check(true, "Config file is valid JSON")

	if config.Connection.DBName == "" {
		check(false, "connection.dbname is set")
	} else {
		check(true, fmt.Sprintf("connection.dbname is set (%s)", config.Connection.DBName))
	}

	positive := []struct {
		name  string
		value int
	}{
		{"server.port", config.Server.Port},
		{"pool.max_conns", config.Pool.MaxConns},
		{"query.default_timeout_seconds", config.Query.DefaultTimeoutSeconds},
		{"query.metadata_timeout_seconds", config.Query.MetadataTimeoutSeconds},
	}
	for _, p := range positive {
		if p.value <= 0 {
			check(false, fmt.Sprintf("%s is > 0", p.name))
		} else {
			check(true, fmt.Sprintf("%s is > 0 (%d)", p.name, p.value))
		}
	}

	if config.Server.HealthCheckEnabled {
		if config.Server.HealthCheckPath == "" {
			check(false, "health_check_path is set (required when health_check_enabled)")
		} else {
			check(true, fmt.Sprintf("health_check_path is set (%s)", config.Server.HealthCheckPath))
		}
	}

	if config.PolicyPath != "" {
		policy, err := pgadmin.LoadPolicy(config.PolicyPath)
		if err != nil {
			check(false, fmt.Sprintf("Policy file loads: %v", err))
		} else {
			check(true, fmt.Sprintf("Policy file loads (%s)", config.PolicyPath))
			policy.Apply(&config.Config)
		}
	}

	if err := (&pgadmin.Policy{Cascade: config.Cascade}).Validate(); err != nil {
		check(false, fmt.Sprintf("Cascade registry entries are complete: %v", err))
	} else {
		check(true, fmt.Sprintf("Cascade registry entries are complete (%d tables)", len(config.Cascade)))
	}

	regexOK := true
	compile := func(label string, i int, pattern string) {
		if _, err := regexp.Compile(pattern); err != nil {
			check(false, fmt.Sprintf("%s[%d] regex compiles: %v", label, i, err))
			regexOK = false
		}
	}
	for i, rule := range config.ErrorHints {
		compile("error_hints", i, rule.Pattern)
	}
	for i, rule := range config.Redaction.Rules {
		compile("redaction.rules", i, rule.Pattern)
	}
	for i, rule := range config.Query.TimeoutRules {
		compile("timeout_rules", i, rule.Pattern)
	}
	for i, hook := range config.ServerHooks.BeforeMutation {
		compile("server_hooks.before_mutation", i, hook.Pattern)
	}
	for i, hook := range config.ServerHooks.Audit {
		compile("server_hooks.audit", i, hook.Pattern)
	}
	if regexOK {
		check(true, "All regex patterns compile")
	}

	return &config, allPassed
}

func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	mark, color := "✓", "\033[32m"
	if !pass {
		mark, color = "✗", "\033[31m"
	}
	if useColor {
		fmt.Fprintf(w, "  %s%s\033[0m %s\n", color, mark, msg)
	} else {
		fmt.Fprintf(w, "  %s %s\n", mark, msg)
	}
}

// printAgentSnippets prints MCP connection snippets for common AI agents.
func printAgentSnippets(w io.Writer, useColor bool, config *pgadmin.ServerConfig) {
	url := fmt.Sprintf("http://localhost:%d/mcp", config.Server.Port)

	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;32m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}
	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}

	heading("Agent Connection Snippets")
	fmt.Fprintln(w)

	subheading("Claude Code")
	fmt.Fprintf(w, "  Run this command to add the server:\n\n")
	fmt.Fprintf(w, "    claude mcp add --transport http pgadmin %s\n\n", url)
	fmt.Fprintf(w, "  Or add to .mcp.json (project scope):\n\n")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "pgadmin": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	subheading("Gemini CLI (~/.gemini/settings.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "pgadmin": {
        "httpUrl": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	subheading("Cursor (.cursor/mcp.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "pgadmin": {
        "url": "%s"
      }
    }
  }
`, url)
}
