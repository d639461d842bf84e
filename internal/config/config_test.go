package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/filestore"
	"github.com/koustreak/askdb/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, llm.DefaultBaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, llm.DefaultModel, cfg.LLM.Model)
	assert.Equal(t, 12, cfg.Agent.MaxSteps)
	assert.Equal(t, 50, cfg.Agent.RowLimit)
	assert.Equal(t, 30*time.Second, cfg.Agent.QueryTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.Nil(t, cfg.Archive)

	// Everything but the key is usable out of the box.
	err := cfg.Validate()
	assert.True(t, errs.IsInvalidInput(err))
	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_OpenAIStyle(t *testing.T) {
	cfg := Default()
	err := applyEnv(cfg, env(map[string]string{
		"OPENAI_API_KEY":      "sk-openai",
		"OPENAI_API_BASE":     "https://api.openai.com/v1",
		"OPENAI_MODEL":        "gpt-4o-mini",
		"ASKDB_LOG_LEVEL":     "debug",
		"ASKDB_LISTEN":        "127.0.0.1:9090",
		"ASKDB_MAX_STEPS":     "6",
		"ASKDB_QUERY_TIMEOUT": "5s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sk-openai", cfg.LLM.APIKey)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Listen)
	assert.Equal(t, 6, cfg.Agent.MaxSteps)
	assert.Equal(t, 5*time.Second, cfg.Agent.QueryTimeout)
}

func TestApplyEnv_AskDBWins(t *testing.T) {
	cfg := Default()
	require.NoError(t, applyEnv(cfg, env(map[string]string{
		"OPENAI_API_KEY": "from-openai",
		"ASKDB_API_KEY":  "from-askdb",
	})))
	assert.Equal(t, "from-askdb", cfg.LLM.APIKey)
}

func TestApplyEnv_Anthropic(t *testing.T) {
	cfg := Default()
	require.NoError(t, applyEnv(cfg, env(map[string]string{
		"ASKDB_PROVIDER":    "Anthropic",
		"ANTHROPIC_API_KEY": "sk-ant",
		"OPENAI_API_KEY":    "ignored",
		"ASKDB_MODEL":       "claude-sonnet-4-5",
	})))
	assert.Equal(t, llm.ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.Model)
}

func TestApplyEnv_BadValues(t *testing.T) {
	for key, val := range map[string]string{
		"ASKDB_MAX_STEPS":       "many",
		"ASKDB_MODEL_TIMEOUT":   "soon",
		"ASKDB_ARCHIVE_USE_SSL": "maybe",
	} {
		t.Run(key, func(t *testing.T) {
			vars := map[string]string{key: val, "ASKDB_ARCHIVE_ENDPOINT": "localhost:9000"}
			err := applyEnv(Default(), env(vars))
			assert.True(t, errs.IsInvalidInput(err), "got %v", err)
		})
	}
}

func TestApplyEnv_Archive(t *testing.T) {
	cfg := Default()
	require.NoError(t, applyEnv(cfg, env(map[string]string{
		"ASKDB_ARCHIVE_ENDPOINT":   "localhost:9000",
		"ASKDB_ARCHIVE_ACCESS_KEY": "minioadmin",
		"ASKDB_ARCHIVE_SECRET_KEY": "minioadmin",
		"ASKDB_ARCHIVE_USE_SSL":    "true",
	})))
	require.NotNil(t, cfg.Archive)
	assert.Equal(t, "localhost:9000", cfg.Archive.Endpoint)
	assert.Equal(t, "askdb", cfg.Archive.Bucket)
	assert.True(t, cfg.Archive.UseSSL)
	assert.NoError(t, cfg.Archive.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "askdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
  api_key: from-file
  model: gpt-4o-mini
  timeout: 20s
server:
  listen: ":9999"
agent:
  max_steps: 8
  schema:
    max_tables: 10
archive:
  endpoint: minio:9000
  access_key: a
  secret_key: b
`), 0o600))
	t.Setenv("ASKDB_MODEL", "gpt-4.1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.Equal(t, llm.DefaultBaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, ":9999", cfg.Server.Listen)
	assert.Equal(t, 8, cfg.Agent.MaxSteps)
	assert.Equal(t, 50, cfg.Agent.RowLimit)
	assert.Equal(t, 10, cfg.Agent.Schema.MaxTables)
	require.NotNil(t, cfg.Archive)
	assert.Equal(t, "askdb", cfg.Archive.Bucket)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errs.IsInvalidInput(err))
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0o600))
	_, err := Load(path)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestLoadDotEnv(t *testing.T) {
	const key = "ASKDB_TEST_DOTENV_VALUE"
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=hello\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv(key) })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "hello", os.Getenv(key))

	err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.True(t, errs.IsInvalidInput(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no listen", func(c *Config) { c.Server.Listen = "" }},
		{"zero steps", func(c *Config) { c.Agent.MaxSteps = 0 }},
		{"zero rows", func(c *Config) { c.Agent.RowLimit = 0 }},
		{"negative timeout", func(c *Config) { c.Agent.QueryTimeout = -time.Second }},
		{"no model", func(c *Config) { c.LLM.Model = "" }},
		{"no base url", func(c *Config) { c.LLM.BaseURL = "" }},
		{"bad archive", func(c *Config) { c.Archive = &filestore.Config{Endpoint: "localhost:9000"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.LLM.APIKey = "k"
			tt.mutate(cfg)
			assert.True(t, errs.IsInvalidInput(cfg.Validate()))
		})
	}
}

func TestDatabase(t *testing.T) {
	cfg := Default()
	cfg.Agent.QueryTimeout = 7 * time.Second

	db, err := cfg.Database("", "postgres://u:p@localhost/app")
	require.NoError(t, err)
	assert.Equal(t, database.DialectPostgres, db.Dialect)
	assert.Equal(t, 7*time.Second, db.QueryTimeout)
	assert.True(t, db.ReadOnly)

	db, err = cfg.Database("mysql", "u:p@tcp(localhost)/app")
	require.NoError(t, err)
	assert.Equal(t, database.DialectMySQL, db.Dialect)

	_, err = cfg.Database("", "u:p@tcp(localhost)/app")
	assert.True(t, errs.IsInvalidInput(err))
	_, err = cfg.Database("oracle", "x")
	assert.True(t, errs.IsInvalidInput(err))

	sc := cfg.Session(db)
	assert.Same(t, db, sc.Database)
	assert.Equal(t, 12, sc.MaxSteps)
}
