package filestore

import (
	"strings"

	"github.com/koustreak/askdb/internal/errs"
)

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds all settings needed to connect to a file storage backend.
type Config struct {
	// Provider is the storage backend (e.g. ProviderMinIO).
	Provider Provider `yaml:"provider"`

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string `yaml:"endpoint"`

	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string `yaml:"region"`

	// Bucket receives every object written through the Store. It is
	// created on connect when missing.
	Bucket string `yaml:"bucket"`

	// Prefix is prepended to every key, e.g. "askdb/transcripts/".
	Prefix string `yaml:"prefix"`
}

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    "askdb",
		Prefix:    "transcripts/",
	}
}

// Enabled reports whether archiving was configured at all.
func (c *Config) Enabled() bool {
	return c != nil && c.Endpoint != ""
}

// Validate checks the settings without contacting the server.
func (c *Config) Validate() error {
	if c.Provider != ProviderMinIO {
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported file store provider %q", c.Provider)
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		return errs.New(errs.ErrKindInvalidInput, "file store endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return errs.New(errs.ErrKindInvalidInput, "file store endpoint must be host:port without a scheme")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errs.New(errs.ErrKindInvalidInput, "file store access key and secret key are required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errs.New(errs.ErrKindInvalidInput, "file store bucket is required")
	}
	return nil
}

// Key joins the configured prefix and name.
func (c *Config) Key(name string) string {
	return c.Prefix + strings.TrimPrefix(name, "/")
}
