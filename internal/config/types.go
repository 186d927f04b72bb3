package config

import "time"

// Config is the complete aoproc host configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Process ProcessConfig `yaml:"process"`
	API     APIConfig     `yaml:"api"`
	Journal JournalConfig `yaml:"journal"`
	Events  EventsConfig  `yaml:"events"`
	Lock    LockConfig    `yaml:"lock"`
}

// ServiceConfig defines logging and identity for the host.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ProcessConfig controls the AO process itself.
type ProcessConfig struct {
	// Name is reported in Info replies.
	Name string `yaml:"name"`
}

// APIConfig defines HTTP host settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// JournalConfig defines the SQLite message journal.
type JournalConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

type EventsConfig struct {
	Buffer int `yaml:"buffer"`
}

type LockConfig struct {
	Path string `yaml:"path"`
}

// Defaults returns a Config usable without any file on disk.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "aoproc",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Process: ProcessConfig{
			Name: "AO Process (Go)",
		},
		API: APIConfig{
			Enabled: true,
			Listen:  "127.0.0.1:8080",
		},
		Journal: JournalConfig{
			Enabled:   true,
			Path:      "./data/journal.db",
			Retention: 7 * 24 * time.Hour,
		},
		Events: EventsConfig{
			Buffer: 256,
		},
		Lock: LockConfig{
			Path: "./data/aoproc.lock",
		},
	}
}
