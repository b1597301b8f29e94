package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Clawue884/sidra-monitoring/pkg/alerting"
	"github.com/Clawue884/sidra-monitoring/pkg/errors"
	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
)

// Config is the full application configuration. Values resolve in
// order: built-in defaults, then the YAML file, then SIDRA_* environment
// variables (a .env file is loaded first when present).
type Config struct {
	LogLevel string `yaml:"log_level"`

	Discovery DiscoveryConfig `yaml:"discovery"`
	Edge      EdgeConfig      `yaml:"edge"`
	Server    ServerConfig    `yaml:"server"`
	Alerting  AlertingConfig  `yaml:"alerting"`
	Store     StoreConfig     `yaml:"store"`
	TSDB      TSDBConfig      `yaml:"tsdb"`
}

// DiscoveryConfig drives fleet discovery runs.
type DiscoveryConfig struct {
	// Targets are CIDR networks or explicit hosts.
	Targets []string `yaml:"targets"`

	// Roles maps host addresses to declared roles.
	Roles map[string]inventory.Role `yaml:"roles"`

	Ports       []int `yaml:"ports"`
	Concurrency int64 `yaml:"concurrency"`

	SSHUser     string `yaml:"ssh_user"`
	SSHPassword string `yaml:"ssh_password"`
	SSHKeyPath  string `yaml:"ssh_key_path"`
	SSHPort     int    `yaml:"ssh_port"`

	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// EdgeConfig drives the per-host agent.
type EdgeConfig struct {
	Host        string         `yaml:"host"`
	Role        inventory.Role `yaml:"role"`
	CentralURL  string         `yaml:"central_url"`
	Interval    time.Duration  `yaml:"interval"`
	PushTimeout time.Duration  `yaml:"push_timeout"`
}

// ServerConfig drives the central collector.
type ServerConfig struct {
	Address        string        `yaml:"address"`
	Port           int           `yaml:"port"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
	MaxHistory     int           `yaml:"max_history"`
	Freshness      time.Duration `yaml:"freshness"`
	FutureSkew     time.Duration `yaml:"future_skew"`
}

// AlertingConfig selects threshold rules: a rules file, inline rules,
// or the built-in defaults when both are empty.
type AlertingConfig struct {
	RulesFile string                   `yaml:"rules_file"`
	Rules     []alerting.ThresholdRule `yaml:"rules"`
}

// StoreConfig locates the audit database. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// TSDBConfig locates the time-series store. An empty URL disables
// forwarding.
type TSDBConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Discovery: DiscoveryConfig{
			SSHUser:        "root",
			SSHPort:        22,
			ProbeTimeout:   30 * time.Second,
			ConnectTimeout: 5 * time.Second,
		},
		Edge: EdgeConfig{
			CentralURL:  "http://localhost:8200",
			Interval:    60 * time.Second,
			PushTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Port:           8200,
			RateLimit:      100,
			RateLimitBurst: 200,
			MaxHistory:     10,
			Freshness:      10 * time.Minute,
			FutureSkew:     2 * time.Minute,
		},
		Store: StoreConfig{
			Path: "./data/sidra.db",
		},
		TSDB: TSDBConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Load resolves the configuration. An empty path skips the YAML layer;
// a named file that does not exist is a configuration error.
func Load(path string) (*Config, error) {
	// Best effort; absence of a .env file is the common case.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig, "reading config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig, "parsing config file", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Rules resolves the threshold rules per the alerting configuration.
func (c *Config) Rules() ([]alerting.ThresholdRule, error) {
	if c.Alerting.RulesFile != "" {
		return alerting.LoadRules(c.Alerting.RulesFile)
	}
	if len(c.Alerting.Rules) > 0 {
		for _, r := range c.Alerting.Rules {
			if err := r.Validate(); err != nil {
				return nil, err
			}
		}
		return c.Alerting.Rules, nil
	}
	return alerting.DefaultRules(), nil
}

func (c *Config) applyEnv() {
	envString("SIDRA_LOG_LEVEL", &c.LogLevel)

	envString("SIDRA_SSH_USER", &c.Discovery.SSHUser)
	envString("SIDRA_SSH_PASSWORD", &c.Discovery.SSHPassword)
	envString("SIDRA_SSH_KEY_PATH", &c.Discovery.SSHKeyPath)
	envInt("SIDRA_SSH_PORT", &c.Discovery.SSHPort)

	envString("SIDRA_CENTRAL_URL", &c.Edge.CentralURL)
	envString("SIDRA_AGENT_HOST", &c.Edge.Host)
	envDuration("SIDRA_AGENT_INTERVAL", &c.Edge.Interval)

	envInt("SIDRA_SERVER_PORT", &c.Server.Port)

	envString("SIDRA_RULES_FILE", &c.Alerting.RulesFile)
	envString("SIDRA_DB_PATH", &c.Store.Path)
	envString("SIDRA_TSDB_URL", &c.TSDB.URL)
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf(errors.ErrCodeConfig, "invalid server port %d", c.Server.Port)
	}
	if c.Edge.Interval <= 0 {
		return errors.Newf(errors.ErrCodeConfig, "invalid agent interval %s", c.Edge.Interval)
	}
	if c.Server.MaxHistory < 1 {
		return errors.Newf(errors.ErrCodeConfig, "invalid sample history size %d", c.Server.MaxHistory)
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
