package config_test

import (
	"feedrelay/config"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigAppliesDefaults(t *testing.T) {
	cfg, err := config.ParseConfig([]byte(`feeds = ["https://example.com/rss"]`))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/rss"}, cfg.Feeds)
	assert.Equal(t, config.DefaultShards, cfg.Polling.Shards)
	assert.Equal(t, config.DefaultPollInterval, cfg.Polling.Interval.Duration)
	assert.Equal(t, config.DefaultPreviewTimeout, cfg.Preview.Timeout.Duration)
	assert.Equal(t, config.DefaultFooter, cfg.Dispatch.Footer)
}

func TestParseConfigDurations(t *testing.T) {
	cfg, err := config.ParseConfig([]byte(`
feeds = ["https://example.com/rss"]

[polling]
shards = 2
interval = "2m"

[preview]
timeout = "1500ms"
`))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Polling.Shards)
	assert.Equal(t, 2*time.Minute, cfg.Polling.Interval.Duration)
	assert.Equal(t, 1500*time.Millisecond, cfg.Preview.Timeout.Duration)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "no feeds", doc: `default_keywords = ["zelda"]`},
		{name: "bad duration", doc: "feeds = [\"a\"]\n[polling]\ninterval = \"soon\""},
		{name: "negative shards", doc: "feeds = [\"a\"]\n[polling]\nshards = -1"},
		{name: "interval too short", doc: "feeds = [\"a\"]\n[polling]\ninterval = \"10ms\""},
		{name: "not toml", doc: "feeds = ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseConfig([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := config.LoadConfig("feedrelay.toml")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Feeds)
	assert.Contains(t, cfg.DefaultKeywords, "tears of the kingdom")
	assert.Equal(t, 15*time.Minute, cfg.Polling.Interval.Duration)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
