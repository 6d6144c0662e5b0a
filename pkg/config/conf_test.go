package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "conf", "config.yaml")

	c1, err := Load(p)
	require.NoError(t, err)
	require.NotNil(t, c1)
	assert.Equal(t, Default(), c1)

	c1.Backend = BackendSQLite
	c1.DSN = "registry.db"
	c1.MinAvgScore = 42.5
	c1.GitHub.Repo = "mchmarny/pwgate"

	require.NoError(t, Save(p, c1))

	c2, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestLoad_Partial(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("bucket: my-bucket\nmin_avg_score: 30\n"), 0600))

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", c.Bucket)
	assert.Equal(t, 30.0, c.MinAvgScore)
	assert.Equal(t, "model_version.txt", c.CounterKey)
	assert.Equal(t, BackendGCS, c.Backend)
}

func TestLoad_Invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("bucket: [unclosed"), 0600))
	_, err := Load(p)
	assert.Error(t, err)
}

func TestLoad_EmptyPath(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestSave_Invalid(t *testing.T) {
	assert.Error(t, Save("", Default()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"gcs without bucket", func(c *Config) {}, false},
		{"gcs with bucket", func(c *Config) { c.Bucket = "b" }, true},
		{"sqlite without dsn", func(c *Config) { c.Backend = BackendSQLite }, false},
		{"sqlite with dsn", func(c *Config) { c.Backend = BackendSQLite; c.DSN = "x.db" }, true},
		{"postgres without dsn", func(c *Config) { c.Backend = BackendPostgres }, false},
		{"memory", func(c *Config) { c.Backend = BackendMemory }, true},
		{"unknown backend", func(c *Config) { c.Backend = "s3"; c.Bucket = "b" }, false},
		{"missing counter key", func(c *Config) { c.Bucket = "b"; c.CounterKey = "" }, false},
		{"threshold too high", func(c *Config) { c.Bucket = "b"; c.MinAvgScore = 101 }, false},
		{"bad log level", func(c *Config) { c.Bucket = "b"; c.LogLevel = "loud" }, false},
		{"bad repo", func(c *Config) { c.Bucket = "b"; c.GitHub.Repo = "noslash" }, false},
		{"bad sha", func(c *Config) { c.Bucket = "b"; c.GitHub.SHA = "zzzzzzz" }, false},
		{"github ok", func(c *Config) {
			c.Bucket = "b"
			c.GitHub.Repo = "o/r"
			c.GitHub.SHA = "0123abcd"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	var c *Config
	assert.Error(t, c.Validate())
}

func TestLocation(t *testing.T) {
	c := Default()
	c.Bucket = "bkt"
	assert.Equal(t, "bkt", c.Location())

	c.Backend = BackendSQLite
	c.DSN = "x.db"
	assert.Equal(t, "x.db", c.Location())
}

func TestGitHubEnabled(t *testing.T) {
	assert.False(t, GitHub{}.Enabled())
	assert.False(t, GitHub{Repo: "o/r"}.Enabled())
	assert.True(t, GitHub{Repo: "o/r", SHA: "abc1234"}.Enabled())
}
