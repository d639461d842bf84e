// Package config loads askdb settings from an optional YAML file, a .env
// file and the process environment, in that order of increasing priority.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/koustreak/askdb/internal/agent"
	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/filestore"
	"github.com/koustreak/askdb/internal/llm"
	"github.com/koustreak/askdb/internal/logger"
	"github.com/koustreak/askdb/internal/schema"
	"github.com/koustreak/askdb/internal/session"
	"go.yaml.in/yaml/v3"
)

// Config is the full askdb configuration.
type Config struct {
	LLM     llm.Config        `yaml:"llm"`
	Log     LogConfig         `yaml:"log"`
	Server  ServerConfig      `yaml:"server"`
	Agent   AgentConfig       `yaml:"agent"`
	Archive *filestore.Config `yaml:"archive"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AgentConfig bounds each question.
type AgentConfig struct {
	MaxSteps       int           `yaml:"max_steps"`
	RowLimit       int           `yaml:"row_limit"`
	SampleRows     int           `yaml:"sample_rows"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
	Schema         schema.Limits `yaml:"schema"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LLM: llm.DefaultConfig(),
		Log: LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			Listen:          ":8080",
			SessionTTL:      session.DefaultTTL,
			ShutdownTimeout: 30 * time.Second,
		},
		Agent: AgentConfig{
			MaxSteps:       agent.DefaultMaxSteps,
			RowLimit:       agent.DefaultRowLimit,
			SampleRows:     schema.DefaultSampleRows,
			ConnectTimeout: 10 * time.Second,
			QueryTimeout:   30 * time.Second,
			Schema:         schema.DefaultLimits(),
		},
	}
}

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. With no arguments a missing ./.env is
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errs.Wrap(errs.ErrKindInvalidInput, "failed to read .env", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to read env file", err)
	}
	return nil
}

// Load reads the YAML file at path (skipped when empty) and overlays the
// environment. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse config file", err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if a := cfg.Archive; a != nil {
		if a.Provider == "" {
			a.Provider = filestore.ProviderMinIO
		}
		if a.Bucket == "" {
			a.Bucket = "askdb"
		}
	}
	return cfg, nil
}

// Validate reports the first unusable setting. Every failure is
// ErrKindInvalidInput.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		return errs.New(errs.ErrKindInvalidInput, "server listen address is required")
	}
	if c.Server.SessionTTL < 0 || c.Server.ShutdownTimeout < 0 {
		return errs.New(errs.ErrKindInvalidInput, "server timeouts must not be negative")
	}
	a := c.Agent
	if a.MaxSteps <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "agent max_steps must be greater than 0")
	}
	if a.RowLimit <= 0 || a.SampleRows < 0 {
		return errs.New(errs.ErrKindInvalidInput, "agent row_limit must be greater than 0 and sample_rows not negative")
	}
	if a.ConnectTimeout < 0 || a.QueryTimeout < 0 {
		return errs.New(errs.ErrKindInvalidInput, "agent timeouts must not be negative")
	}
	if a.Schema.MaxTables < 0 || a.Schema.MaxColumns < 0 {
		return errs.New(errs.ErrKindInvalidInput, "schema limits must not be negative")
	}
	if c.Archive.Enabled() {
		if err := c.Archive.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Logger returns the logger settings.
func (c *Config) Logger() *logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	return lc
}

// Database builds a connection config for one session. An empty dialect
// is inferred from the DSN.
func (c *Config) Database(dialect, dsn string) (*database.Config, error) {
	d := database.DetectDialect(dsn)
	if strings.TrimSpace(dialect) != "" {
		var err error
		if d, err = database.ParseDialect(dialect); err != nil {
			return nil, err
		}
	}
	if d == database.DialectUnknown {
		return nil, errs.New(errs.ErrKindInvalidInput, "please select a database type: postgres, mysql or sqlite")
	}

	db := database.DefaultConfig(d, dsn)
	if c.Agent.ConnectTimeout > 0 {
		db.ConnectTimeout = c.Agent.ConnectTimeout
	}
	if c.Agent.QueryTimeout > 0 {
		db.QueryTimeout = c.Agent.QueryTimeout
	}
	return db, nil
}

// Session builds the per-session config around db.
func (c *Config) Session(db *database.Config) session.Config {
	return session.Config{
		Database:   db,
		Limits:     c.Agent.Schema,
		MaxSteps:   c.Agent.MaxSteps,
		RowLimit:   c.Agent.RowLimit,
		SampleRows: c.Agent.SampleRows,
	}
}

// applyEnv overlays environment variables. ASKDB_* wins over the
// OpenAI-style names.
func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	var provider string
	str(&provider, "ASKDB_PROVIDER")
	if provider != "" {
		c.LLM.Provider = llm.Provider(strings.ToLower(provider))
	}
	if c.LLM.Provider == llm.ProviderAnthropic {
		str(&c.LLM.APIKey, "ASKDB_API_KEY", "ANTHROPIC_API_KEY")
		str(&c.LLM.BaseURL, "ASKDB_API_BASE", "ANTHROPIC_BASE_URL")
		str(&c.LLM.Model, "ASKDB_MODEL", "ANTHROPIC_MODEL")
	} else {
		str(&c.LLM.APIKey, "ASKDB_API_KEY", "OPENAI_API_KEY")
		str(&c.LLM.BaseURL, "ASKDB_API_BASE", "OPENAI_API_BASE")
		str(&c.LLM.Model, "ASKDB_MODEL", "OPENAI_MODEL")
	}

	str(&c.Log.Level, "ASKDB_LOG_LEVEL")
	str(&c.Log.Format, "ASKDB_LOG_FORMAT")
	str(&c.Server.Listen, "ASKDB_LISTEN")

	ints := []struct {
		key string
		dst *int
	}{
		{"ASKDB_MAX_STEPS", &c.Agent.MaxSteps},
		{"ASKDB_ROW_LIMIT", &c.Agent.RowLimit},
		{"ASKDB_SAMPLE_ROWS", &c.Agent.SampleRows},
		{"ASKDB_MODEL_RETRIES", &c.LLM.Retries},
		{"ASKDB_SCHEMA_MAX_TABLES", &c.Agent.Schema.MaxTables},
		{"ASKDB_SCHEMA_MAX_COLUMNS", &c.Agent.Schema.MaxColumns},
	}
	for _, e := range ints {
		if v, ok := lookup(e.key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errs.Newf(errs.ErrKindInvalidInput, "%s must be an integer, got %q", e.key, v)
			}
			*e.dst = n
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"ASKDB_MODEL_TIMEOUT", &c.LLM.Timeout},
		{"ASKDB_CONNECT_TIMEOUT", &c.Agent.ConnectTimeout},
		{"ASKDB_QUERY_TIMEOUT", &c.Agent.QueryTimeout},
		{"ASKDB_SESSION_TTL", &c.Server.SessionTTL},
	}
	for _, e := range durations {
		if v, ok := lookup(e.key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return errs.Newf(errs.ErrKindInvalidInput, "%s must be a duration like 30s, got %q", e.key, v)
			}
			*e.dst = d
		}
	}

	if endpoint, ok := lookup("ASKDB_ARCHIVE_ENDPOINT"); ok && endpoint != "" {
		if c.Archive == nil {
			c.Archive = filestore.DefaultConfig(endpoint, "", "")
		}
		c.Archive.Endpoint = endpoint
	}
	if c.Archive != nil {
		str(&c.Archive.AccessKey, "ASKDB_ARCHIVE_ACCESS_KEY")
		str(&c.Archive.SecretKey, "ASKDB_ARCHIVE_SECRET_KEY")
		str(&c.Archive.Bucket, "ASKDB_ARCHIVE_BUCKET")
		str(&c.Archive.Region, "ASKDB_ARCHIVE_REGION")
		if v, ok := lookup("ASKDB_ARCHIVE_USE_SSL"); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errs.Newf(errs.ErrKindInvalidInput, "ASKDB_ARCHIVE_USE_SSL must be true or false, got %q", v)
			}
			c.Archive.UseSSL = b
		}
	}
	return nil
}
