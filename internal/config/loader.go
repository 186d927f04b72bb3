package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted by Discover.
const EnvConfigPath = "AOPROC_CONFIG"

// DefaultConfigFile is the file Discover looks for in the working directory.
const DefaultConfigFile = "config.yaml"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads configuration from a file. Values missing from the file keep
// their Defaults. A directory is accepted if it holds config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, DefaultConfigFile)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", absPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Defaults, interpolating ${VAR} references
// first, then validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()

	dec := yaml.NewDecoder(bytes.NewReader([]byte(interpolateEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	normalize(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Discover resolves which config to use. Priority order: explicit path,
// $AOPROC_CONFIG, ./config.yaml. When none exists it returns Defaults and
// an empty source.
func Discover(explicit string) (*Config, string, error) {
	candidates := []string{explicit, os.Getenv(EnvConfigPath)}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		cfg, err := Load(p)
		if err != nil {
			return nil, "", err
		}
		return cfg, p, nil
	}

	if _, err := os.Stat(DefaultConfigFile); err == nil {
		cfg, err := Load(DefaultConfigFile)
		if err != nil {
			return nil, "", err
		}
		return cfg, DefaultConfigFile, nil
	}

	return Defaults(), "", nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Unset variables are left in place so validate can name them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func normalize(cfg *Config) {
	cfg.Service.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Service.LogLevel))
	cfg.Service.LogFormat = strings.ToLower(strings.TrimSpace(cfg.Service.LogFormat))
	cfg.Process.Name = strings.TrimSpace(cfg.Process.Name)
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.Process.Name == "" {
		return fmt.Errorf("process.name is required")
	}

	if cfg.API.Enabled && cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is required when api is enabled")
	}

	if cfg.Journal.Enabled {
		if cfg.Journal.Path == "" {
			return fmt.Errorf("journal.path is required when journal is enabled")
		}
		if cfg.Journal.Retention < 0 {
			return fmt.Errorf("journal.retention must not be negative")
		}
	}

	if cfg.Events.Buffer <= 0 {
		return fmt.Errorf("events.buffer must be positive")
	}

	for field, v := range map[string]string{
		"api.listen":   cfg.API.Listen,
		"journal.path": cfg.Journal.Path,
		"lock.path":    cfg.Lock.Path,
	} {
		if m := envVarPattern.FindStringSubmatch(v); len(m) > 1 {
			return fmt.Errorf("%s: environment variable ${%s} is not set", field, m[1])
		}
	}

	return nil
}
