package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// MailConfig holds the mailbox session settings.
type MailConfig struct {
	Host     string `mapstructure:"host" yaml:"host" env:"IMAP_SERVER"`
	Port     string `mapstructure:"port" yaml:"port" env:"IMAP_PORT"`
	TLS      bool   `mapstructure:"tls" yaml:"tls" env:"IMAP_TLS"`
	Account  string `mapstructure:"account" yaml:"account" env:"EMAIL_ACCOUNT"`
	Password string `mapstructure:"password" yaml:"password" env:"EMAIL_PASSWORD"`

	// Mailbox is the folder searched for unread messages.
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox" env:"IMAP_MAILBOX"`

	// MboxPath, when set, replaces the IMAP session with a local mbox
	// file in which every message counts as unread.
	MboxPath string `mapstructure:"mbox_path" yaml:"mbox_path" env:"MAILTASK_MBOX"`
}

// TrackerConfig holds the task service settings.
type TrackerConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url" env:"VIKUNJA_API_URL"`
	Token   string        `mapstructure:"token" yaml:"token" env:"VIKUNJA_TOKEN"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" env:"HTTP_TIMEOUT"`
}

// PipelineConfig holds settings for a single pass over the mailbox.
type PipelineConfig struct {
	// AttachmentDir is the staging directory for extracted attachments.
	AttachmentDir string `mapstructure:"attachment_dir" yaml:"attachment_dir" env:"ATTACHMENT_DIR"`

	// Schedule is the cron expression used by watch mode.
	Schedule string `mapstructure:"schedule" yaml:"schedule" env:"MAILTASK_SCHEDULE"`

	// MappingJSON is the serialized keyword to project id object. When
	// set it replaces the projects list of the config file.
	MappingJSON string `mapstructure:"project_mapping" yaml:"project_mapping" env:"PROJECT_MAPPING"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" env:"MAILTASK_LOG_LEVEL"`
	Format string `mapstructure:"format" yaml:"format" env:"MAILTASK_LOG_FORMAT"`
}

// Config is the top-level application configuration. It is loaded once per
// process and treated as read-only afterwards.
type Config struct {
	Mail     MailConfig     `mapstructure:"mail" yaml:"mail"`
	Tracker  TrackerConfig  `mapstructure:"tracker" yaml:"tracker"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`

	// Projects is the ordered routing table from the config file.
	Projects ProjectMapping `mapstructure:"projects" yaml:"projects"`
}

// Default values for optional settings.
const (
	DefaultIMAPPort      = "993"
	DefaultMailbox       = "INBOX"
	DefaultAttachmentDir = "attachments"
	DefaultSchedule      = "*/5 * * * *"
	DefaultHTTPTimeout   = 30 * time.Second
)

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailtask/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailtask", "config.yaml")
}

func defaultConfig() *Config {
	return &Config{
		Mail: MailConfig{
			Port:    DefaultIMAPPort,
			TLS:     true,
			Mailbox: DefaultMailbox,
		},
		Tracker: TrackerConfig{
			Timeout: DefaultHTTPTimeout,
		},
		Pipeline: PipelineConfig{
			AttachmentDir: DefaultAttachmentDir,
			Schedule:      DefaultSchedule,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads the optional YAML file at path with Viper, then applies
// environment overrides. A missing file is not an error: the environment
// alone is a complete configuration source.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	for _, section := range []interface{}{
		&cfg.Mail, &cfg.Tracker, &cfg.Pipeline, &cfg.Log,
	} {
		if err := env.Parse(section); err != nil {
			return nil, fmt.Errorf("parsing environment: %w", err)
		}
	}

	if strings.TrimSpace(cfg.Pipeline.MappingJSON) != "" {
		mapping, err := ParseProjectMapping(cfg.Pipeline.MappingJSON)
		if err != nil {
			return nil, fmt.Errorf("parsing PROJECT_MAPPING: %w", err)
		}
		cfg.Projects = mapping
	}

	if cfg.Mail.Mailbox == "" {
		cfg.Mail.Mailbox = DefaultMailbox
	}
	if cfg.Mail.Port == "" {
		cfg.Mail.Port = DefaultIMAPPort
	}
	if cfg.Pipeline.AttachmentDir == "" {
		cfg.Pipeline.AttachmentDir = DefaultAttachmentDir
	}
	if cfg.Tracker.Timeout <= 0 {
		cfg.Tracker.Timeout = DefaultHTTPTimeout
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("mail.port", DefaultIMAPPort)
	v.SetDefault("mail.tls", true)
	v.SetDefault("mail.mailbox", DefaultMailbox)
	v.SetDefault("tracker.timeout", DefaultHTTPTimeout)
	v.SetDefault("pipeline.attachment_dir", DefaultAttachmentDir)
	v.SetDefault("pipeline.schedule", DefaultSchedule)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	return nil
}

// Validate reports settings that are required for a run.
func (c *Config) Validate() error {
	var problems []string

	if c.Mail.MboxPath == "" {
		if c.Mail.Host == "" {
			problems = append(problems, "mail host (IMAP_SERVER) is required")
		}
		if c.Mail.Account == "" {
			problems = append(problems, "mail account (EMAIL_ACCOUNT) is required")
		}
	}
	if c.Tracker.BaseURL == "" {
		problems = append(problems, "task service URL (VIKUNJA_API_URL) is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
