package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"
)

// Sub-commands
const (
	cmdServe     = "serve"
	cmdStats     = "stats"
	cmdCleanup   = "cleanup"
	cmdClearUser = "clear-user"
	cmdClearAll  = "clear-all"
	cmdValidate  = "validate"
)

var commands = []string{cmdServe, cmdStats, cmdCleanup, cmdClearUser, cmdClearAll, cmdValidate}

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool

	Command string
	UserID  string // clear-user
}

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("SCHOOLCACHE_CONFIG", ""),
		"Path to configuration file, JSON or YAML (env: SCHOOLCACHE_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("SCHOOLCACHE_CONFIG", ""),
		"Path to configuration file (env: SCHOOLCACHE_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SCHOOLCACHE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: SCHOOLCACHE_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SCHOOLCACHE_LOG_FORMAT", "json"),
		"Log format: json, text (env: SCHOOLCACHE_LOG_FORMAT)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SCHOOLCACHE_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: SCHOOLCACHE_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	fs.Usage = func() { printDetailedHelp(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		cfg.Command = cmdServe
		return cfg, nil
	}
	cfg.Command = rest[0]

	if cfg.Command == cmdClearUser {
		sub := flag.NewFlagSet(cmdClearUser, flag.ContinueOnError)
		sub.SetOutput(stderr)
		sub.StringVar(&cfg.UserID, "user", "", "User ID whose entries are removed")
		if err := sub.Parse(rest[1:]); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}

	if !slices.Contains(commands, cfg.Command) {
		return fmt.Errorf("unknown command: %s", cfg.Command)
	}
	if cfg.Command == cmdClearUser && cfg.UserID == "" {
		return fmt.Errorf("%s requires -user", cmdClearUser)
	}
	return nil
}

func printDetailedHelp(w io.Writer, fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(w, `%s - offline cache maintenance for the school admin app

Usage: %s [options] [command]

Commands:
  serve                 Run periodic cleanup with metrics and health endpoints (default)
  stats                 Print storage statistics as JSON
  cleanup               Remove expired and corrupt entries
  clear-user -user ID   Remove every entry scoped to a user
  clear-all             Remove every entry in the namespace
  validate              Check the configuration and exit

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Serve with a YAML config
  %s --config=/etc/schoolcache/config.yaml serve

  # Sign-out cleanup for a teacher
  %s clear-user -user t1

  # Point the sqlite store elsewhere
  export SCHOOLCACHE_STORE_PATH=/var/lib/schoolcache/cache.db
  %s stats

Version: %s
Build: %s
`, appName, appName, appName, Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
