package filestore

import (
	"testing"

	"github.com/koustreak/askdb/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown provider", func(c *Config) { c.Provider = "gcs" }, true},
		{"no endpoint", func(c *Config) { c.Endpoint = "" }, true},
		{"scheme in endpoint", func(c *Config) { c.Endpoint = "https://s3.example.com" }, true},
		{"no secret", func(c *Config) { c.SecretKey = "" }, true},
		{"no bucket", func(c *Config) { c.Bucket = " " }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.True(t, errs.IsInvalidInput(err), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Key(t *testing.T) {
	cfg := &Config{Prefix: "transcripts/"}
	assert.Equal(t, "transcripts/s1/a.json", cfg.Key("s1/a.json"))
	assert.Equal(t, "transcripts/s1/a.json", cfg.Key("/s1/a.json"))
}

func TestConfig_Enabled(t *testing.T) {
	var nilCfg *Config
	assert.False(t, nilCfg.Enabled())
	assert.False(t, (&Config{}).Enabled())
	assert.True(t, DefaultConfig("localhost:9000", "a", "b").Enabled())
}
