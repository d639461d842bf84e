package database

import (
	"testing"

	"github.com/koustreak/askdb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{in: "postgres", want: DialectPostgres},
		{in: "PostgreSQL", want: DialectPostgres},
		{in: " pg ", want: DialectPostgres},
		{in: "mysql", want: DialectMySQL},
		{in: "mariadb", want: DialectMySQL},
		{in: "sqlite3", want: DialectSQLite},
		{in: "oracle", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDialect(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		dsn  string
		want Dialect
	}{
		{"postgres://u:p@localhost/db", DialectPostgres},
		{"postgresql://localhost/db", DialectPostgres},
		{"mysql://root@localhost/shop", DialectMySQL},
		{"sqlite:///tmp/x.db", DialectSQLite},
		{"file:chinook.sqlite?mode=ro", DialectSQLite},
		{"./data/chinook.DB", DialectSQLite},
		{"host=localhost dbname=x", DialectUnknown},
		{"", DialectUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDialect(tt.dsn))
		})
	}
}

func TestDialect_TextRoundTrip(t *testing.T) {
	var cfg struct {
		Dialect Dialect `yaml:"dialect"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("dialect: postgresql\n"), &cfg))
	assert.Equal(t, DialectPostgres, cfg.Dialect)

	err := yaml.Unmarshal([]byte("dialect: db2\n"), &cfg)
	require.Error(t, err)

	_, err = DialectUnknown.MarshalText()
	assert.Error(t, err)
}

func TestDialect_ExampleDSN(t *testing.T) {
	for _, d := range Dialects {
		assert.NotEmpty(t, d.ExampleDSN(), d.String())
		assert.True(t, d.Valid())
	}
	assert.False(t, DialectUnknown.Valid())
}
