package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the search server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	SSH     SSHConfig     `yaml:"ssh"`
	Session SessionConfig `yaml:"session"`
	Search  SearchConfig  `yaml:"search"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds the plain TCP listener settings.
type ServerConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	ShutdownGraceSec int    `yaml:"shutdown_grace_sec"`
	Welcome          bool   `yaml:"welcome"`
}

// SSHConfig holds the optional SSH listener settings. Port 0 disables it.
type SSHConfig struct {
	Port    int    `yaml:"port"`
	HostKey string `yaml:"host_key"`
}

// SessionConfig holds per-connection protocol settings.
type SessionConfig struct {
	DelayMS    int `yaml:"delay_ms"`
	DelayLines int `yaml:"delay_lines"`
	PageSize   int `yaml:"page_size"`
	ReadBuffer int `yaml:"read_buffer"`
}

// MaxResultsLimit bounds search.max_results.
const MaxResultsLimit = 10000

// SearchConfig holds corpus and worker pool settings.
type SearchConfig struct {
	Root        string   `yaml:"root"`
	MaxResults  int      `yaml:"max_results"`
	Workers     int      `yaml:"workers"`
	QueueSize   int      `yaml:"queue_size"`
	VideosFile  string   `yaml:"videos_file"`
	SkipDirs    []string `yaml:"skip_dirs"`
	PDFFallback bool     `yaml:"pdf_fallback"`
	PDFPageCap  int      `yaml:"pdf_page_cap"` // pages searched per PDF
}

// LoggingConfig holds operational and activity log settings.
type LoggingConfig struct {
	Level        string `yaml:"level"`  // debug, info, warn, error
	Format       string `yaml:"format"` // console, json
	ActivityFile string `yaml:"activity_file"`
	MaxSizeMB    int    `yaml:"max_size_mb"`
	MaxBackups   int    `yaml:"max_backups"`
	MaxAgeDays   int    `yaml:"max_age_days"`
	Compress     bool   `yaml:"compress"`
}

// MetricsConfig holds the prometheus endpoint address. Empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads configuration from a YAML file on top of Default().
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		// Substitute env variables of the form ${VAR}
		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() Config {
	cfg := Config{
		Server:  ServerConfig{Welcome: true},
		Session: SessionConfig{DelayMS: 50, DelayLines: 25},
		Search:  SearchConfig{PDFFallback: true},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty fields whose zero value is meaningless.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8023
	}
	if c.Server.ShutdownGraceSec <= 0 {
		c.Server.ShutdownGraceSec = 5
	}
	if c.Session.PageSize <= 0 {
		c.Session.PageSize = 25
	}
	if c.Session.ReadBuffer <= 0 {
		c.Session.ReadBuffer = 1024
	}
	if c.Search.Root == "" {
		c.Search.Root = "FILES/"
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 30
	}
	if c.Search.Workers == 0 {
		c.Search.Workers = 8
	}
	if c.Search.QueueSize <= 0 {
		c.Search.QueueSize = 64
	}
	if c.Search.PDFPageCap <= 0 {
		c.Search.PDFPageCap = 500
	}
	if c.Search.VideosFile == "" {
		c.Search.VideosFile = "videos.txt"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.ActivityFile == "" {
		c.Logging.ActivityFile = "server.log"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.SSH.Port < 0 || c.SSH.Port > 65535 {
		errs = append(errs, fmt.Errorf("ssh.port must be between 0 and 65535, got %d", c.SSH.Port))
	}
	if c.SSH.Port != 0 && c.SSH.Port == c.Server.Port {
		errs = append(errs, fmt.Errorf("ssh.port must differ from server.port (%d)", c.Server.Port))
	}
	if c.Session.DelayMS < 0 {
		errs = append(errs, fmt.Errorf("session.delay_ms must not be negative, got %d", c.Session.DelayMS))
	}
	if c.Session.DelayLines < 0 {
		errs = append(errs, fmt.Errorf("session.delay_lines must not be negative, got %d", c.Session.DelayLines))
	}
	if strings.TrimSpace(c.Search.Root) == "" {
		errs = append(errs, errors.New("search.root is required"))
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > MaxResultsLimit {
		errs = append(errs, fmt.Errorf("search.max_results must be between 1 and %d, got %d", MaxResultsLimit, c.Search.MaxResults))
	}
	if c.Search.Workers < 1 {
		errs = append(errs, fmt.Errorf("search.workers must be at least 1, got %d", c.Search.Workers))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Addr returns the TCP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SSHAddr returns the SSH listen address, or "" when SSH is disabled.
func (c *Config) SSHAddr() string {
	if c.SSH.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.SSH.Port)
}

// Delay returns the per-line pacing delay.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.Session.DelayMS) * time.Millisecond
}

// ShutdownGrace returns how long sessions may run after shutdown begins.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Server.ShutdownGraceSec) * time.Second
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
