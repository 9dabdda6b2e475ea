package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20, cfg.Dialogue.MaxStep)
	assert.Equal(t, 10, cfg.Dialogue.ElicitFrom)
	assert.Equal(t, 11, cfg.Extraction.MinAccountDigits)
	assert.Equal(t, "strict", cfg.Extraction.LinkPolicy)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, time.Hour, cfg.Session.Retention)
	assert.Equal(t, "x-api-key", cfg.Auth.Header)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
dialogue:
  require_email: true
  max_step: 15
extraction:
  link_policy: permissive
  min_account_digits: 9
session:
  retention: 30m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Dialogue.RequireEmail)
	assert.Equal(t, 15, cfg.Dialogue.MaxStep)
	assert.Equal(t, "permissive", cfg.Extraction.LinkPolicy)
	assert.Equal(t, 9, cfg.Extraction.MinAccountDigits)
	assert.Equal(t, 30*time.Minute, cfg.Session.Retention)
	// untouched sections keep their defaults
	assert.Equal(t, 4, cfg.Dialogue.VerifyFrom)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"overlapping bands", func(c *Config) { c.Dialogue.CooperateFrom = c.Dialogue.VerifyFrom }},
		{"cap below elicit", func(c *Config) { c.Dialogue.MaxStep = c.Dialogue.ElicitFrom - 1 }},
		{"account window too narrow", func(c *Config) { c.Extraction.MinAccountDigits = 8 }},
		{"account window inverted", func(c *Config) {
			c.Extraction.MinAccountDigits = 15
			c.Extraction.MaxAccountDigits = 12
		}},
		{"unknown link policy", func(c *Config) { c.Extraction.LinkPolicy = "paranoid" }},
		{"unknown backend", func(c *Config) { c.Session.Backend = "etcd" }},
		{"callback without url", func(c *Config) { c.Callback.Enabled = true }},
		{"chance out of range", func(c *Config) { c.Dialogue.EmotionChance = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}
