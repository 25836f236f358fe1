package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds broker and agent settings
type Config struct {
	Log    LogConfig
	Broker BrokerConfig
	Agent  AgentConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// BrokerConfig holds the broker's HTTP and routing settings
type BrokerConfig struct {
	Addr           string
	MaxUploadBytes int64
	ActivityWindow time.Duration
	DatabaseURL    string // empty disables the command journal
}

// AgentConfig holds the polling agent's settings
type AgentConfig struct {
	DeviceID       string
	ServerURL      string
	PollInterval   time.Duration
	RetryInterval  time.Duration
	RequestTimeout time.Duration
	WorkDir        string
	Printer        string // CUPS destination; empty uses the default printer
	LPPath         string
}

// New returns a viper instance with defaults and PRINT_RELAY_ env overrides.
// Callers may bind flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("broker.addr", ":5000")
	v.SetDefault("broker.max_upload_bytes", 16<<20)
	v.SetDefault("broker.activity_window", time.Minute)
	v.SetDefault("broker.database_url", "")

	v.SetDefault("agent.device_id", "pi_printer_001")
	v.SetDefault("agent.server_url", "http://localhost:5000")
	v.SetDefault("agent.poll_interval", 10*time.Second)
	v.SetDefault("agent.retry_interval", 10*time.Second)
	v.SetDefault("agent.request_timeout", 10*time.Second)
	v.SetDefault("agent.work_dir", "./downloads")
	v.SetDefault("agent.printer", "")
	v.SetDefault("agent.lp_path", "lp")

	v.SetEnvPrefix("PRINT_RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the optional config file and builds the Config.
// With an empty path, config.yaml is looked up in . and /etc/print-relay.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/print-relay")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Broker: BrokerConfig{
			Addr:           v.GetString("broker.addr"),
			MaxUploadBytes: v.GetInt64("broker.max_upload_bytes"),
			ActivityWindow: v.GetDuration("broker.activity_window"),
			DatabaseURL:    v.GetString("broker.database_url"),
		},
		Agent: AgentConfig{
			DeviceID:       v.GetString("agent.device_id"),
			ServerURL:      strings.TrimRight(v.GetString("agent.server_url"), "/"),
			PollInterval:   v.GetDuration("agent.poll_interval"),
			RetryInterval:  v.GetDuration("agent.retry_interval"),
			RequestTimeout: v.GetDuration("agent.request_timeout"),
			WorkDir:        v.GetString("agent.work_dir"),
			Printer:        v.GetString("agent.printer"),
			LPPath:         v.GetString("agent.lp_path"),
		},
	}
	return cfg, nil
}

// ValidateBroker checks the settings the broker depends on
func (c *Config) ValidateBroker() error {
	if c.Broker.Addr == "" {
		return errors.New("broker.addr is required")
	}
	if c.Broker.MaxUploadBytes <= 0 {
		return errors.New("broker.max_upload_bytes must be positive")
	}
	if c.Broker.ActivityWindow <= 0 {
		return errors.New("broker.activity_window must be positive")
	}
	return nil
}

// ValidateAgent checks the settings the agent depends on
func (c *Config) ValidateAgent() error {
	switch {
	case c.Agent.DeviceID == "":
		return errors.New("agent.device_id is required")
	case c.Agent.ServerURL == "":
		return errors.New("agent.server_url is required")
	case c.Agent.PollInterval <= 0:
		return errors.New("agent.poll_interval must be positive")
	case c.Agent.RetryInterval <= 0:
		return errors.New("agent.retry_interval must be positive")
	case c.Agent.RequestTimeout <= 0:
		return errors.New("agent.request_timeout must be positive")
	case c.Agent.WorkDir == "":
		return errors.New("agent.work_dir is required")
	}
	return nil
}
