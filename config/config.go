package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultShards             = 4
	DefaultPollInterval       = 15 * time.Minute
	DefaultBuffer             = 256
	DefaultPreviewTimeout     = 5 * time.Second
	DefaultDispatchWorkers    = 4
	DefaultFooter             = "Zelda News Bot"
	DefaultHostRequestSpacing = time.Second
)

// Duration lets TOML values like "15m" decode into a time.Duration
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// TomlPolling controls the feed workers
type TomlPolling struct {
	Shards      int      `toml:"shards"`
	Interval    Duration `toml:"interval"`
	Buffer      int      `toml:"buffer"`
	HostSpacing Duration `toml:"host_spacing"`
}

// TomlPreview controls the article preview image lookup
type TomlPreview struct {
	Timeout   Duration `toml:"timeout"`
	UserAgent string   `toml:"user_agent"`
}

// TomlDispatch controls delivery to destinations
type TomlDispatch struct {
	Concurrency int    `toml:"concurrency"`
	Footer      string `toml:"footer"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Feeds           []string     `toml:"feeds"`
	DefaultKeywords []string     `toml:"default_keywords"`
	Polling         TomlPolling  `toml:"polling"`
	Preview         TomlPreview  `toml:"preview"`
	Dispatch        TomlDispatch `toml:"dispatch"`
}

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes a TOML document and fills in defaults for anything left unset
func ParseConfig(data []byte) (*TomlConfig, error) {
	var config TomlConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *TomlConfig) applyDefaults() {
	if c.Polling.Shards == 0 {
		c.Polling.Shards = DefaultShards
	}
	if c.Polling.Interval.Duration == 0 {
		c.Polling.Interval.Duration = DefaultPollInterval
	}
	if c.Polling.Buffer == 0 {
		c.Polling.Buffer = DefaultBuffer
	}
	if c.Polling.HostSpacing.Duration == 0 {
		c.Polling.HostSpacing.Duration = DefaultHostRequestSpacing
	}
	if c.Preview.Timeout.Duration == 0 {
		c.Preview.Timeout.Duration = DefaultPreviewTimeout
	}
	if c.Dispatch.Concurrency == 0 {
		c.Dispatch.Concurrency = DefaultDispatchWorkers
	}
	if c.Dispatch.Footer == "" {
		c.Dispatch.Footer = DefaultFooter
	}
}

// Validate rejects configurations the pipeline cannot run with
func (c *TomlConfig) Validate() error {
	if len(c.Feeds) == 0 {
		return fmt.Errorf("no feeds configured")
	}
	if c.Polling.Shards < 1 {
		return fmt.Errorf("polling.shards must be at least 1, got %d", c.Polling.Shards)
	}
	if c.Polling.Interval.Duration < time.Second {
		return fmt.Errorf("polling.interval must be at least 1s, got %s", c.Polling.Interval.Duration)
	}
	if c.Polling.Buffer < 1 {
		return fmt.Errorf("polling.buffer must be at least 1, got %d", c.Polling.Buffer)
	}
	if c.Dispatch.Concurrency < 1 {
		return fmt.Errorf("dispatch.concurrency must be at least 1, got %d", c.Dispatch.Concurrency)
	}
	return nil
}
