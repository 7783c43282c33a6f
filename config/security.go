package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	maxConfigSize = 1 << 20 // config files are small; anything bigger is a mistake
	maxJSONDepth  = 32
	maxEnvVarLen  = 4096
	maxPathLen    = 4096
)

var allowedExtensions = []string{".json", ".yaml", ".yml"}

// validateConfigPath rejects empty, oversized, traversing or non-config paths.
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("empty config path")
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("cannot get working directory: %w", err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("cannot resolve absolute path: %w", err)
		}
		if rel, err := filepath.Rel(cwd, abs); err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("path traversal not allowed: %s resolves outside working directory", path)
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("unsupported config file type %q: %s", ext, path)
}

// safeReadFile reads a config file after path, size and type checks.
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	return data, nil
}

// validateEnvVar bounds an environment override.
func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("null byte in environment variable %s", key)
	}
	return nil
}

// validateJSONDepth rejects deeply nested or unbalanced JSON before decoding.
func validateJSONDepth(data []byte) error {
	depth := 0
	inString := false
	escaped := false

	for _, b := range data {
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("JSON nesting too deep: %d > %d", depth, maxJSONDepth)
			}
		case '}', ']':
			depth--
			if depth < 0 {
				return errors.New("malformed JSON: unbalanced brackets")
			}
		}
	}

	if depth != 0 {
		return fmt.Errorf("malformed JSON: unclosed brackets (depth=%d)", depth)
	}
	return nil
}
