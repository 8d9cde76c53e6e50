// Package config loads and validates the run configuration for
// imageroller.
//
// The configuration is a YAML file naming the provider, the global
// concurrency limit, the readiness-poll settings, and one entry per
// managed server with its retention rule. All validation happens
// here, before any provider call is made; the rolling engine assumes
// a well-formed configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"imageroller/internal/retention"
	"imageroller/internal/util"
)

// Defaults applied to fields left unset in the file.
const (
	DefaultProvider       = "hetzner"
	DefaultConcurrency    = 4
	DefaultPollInterval   = 15 * time.Second
	DefaultPollDeadline   = 30 * time.Minute
	DefaultRequestTimeout = 30 * time.Second
)

// Duration wraps time.Duration with YAML unmarshalling. It accepts
// Go duration syntax plus a "d" day suffix ("7d" == 168h).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ParseDuration parses a duration string, accepting a whole-day
// suffix ("30d") in addition to time.ParseDuration syntax.
func ParseDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if before, ok := strings.CutSuffix(input, "d"); ok {
		days, err := strconv.Atoi(before)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", input)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be positive, got %q", input)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	parsed, err := time.ParseDuration(input)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", input)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", input)
	}
	return parsed, nil
}

// ServerSpec identifies one managed server and its retention rule.
// Exactly one of KeepCount or MaxAge must be set.
type ServerSpec struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name,omitempty"`
	KeepCount int      `yaml:"keep_count,omitempty"`
	MaxAge    Duration `yaml:"max_age,omitempty"`
}

// Retention returns the server's retention policy.
func (s ServerSpec) Retention() retention.Policy {
	return retention.Policy{KeepCount: s.KeepCount, MaxAge: s.MaxAge.Std()}
}

// DisplayName returns the configured name, falling back to the ID.
func (s ServerSpec) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Config is the full, validated run configuration.
type Config struct {
	Provider       string       `yaml:"provider,omitempty"`
	Concurrency    int          `yaml:"concurrency,omitempty"`
	PollInterval   Duration     `yaml:"poll_interval,omitempty"`
	PollDeadline   Duration     `yaml:"poll_deadline,omitempty"`
	RequestTimeout Duration     `yaml:"request_timeout,omitempty"`
	Servers        []ServerSpec `yaml:"servers"`
}

// Load reads, parses, defaults, and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates raw YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
	if c.PollDeadline == 0 {
		c.PollDeadline = Duration(DefaultPollDeadline)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(DefaultRequestTimeout)
	}
}

// Validate checks the whole configuration, so malformed input is
// rejected before any server pass begins.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive")
	}
	if c.PollDeadline <= c.PollInterval {
		return fmt.Errorf("config: poll_deadline (%s) must exceed poll_interval (%s)",
			c.PollDeadline.Std(), c.PollInterval.Std())
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: request_timeout must be positive")
	}
	if len(c.Servers) == 0 {
		return fmt.Errorf("config: at least one server is required")
	}

	seen := make(map[string]struct{}, len(c.Servers))
	for i, srv := range c.Servers {
		if strings.TrimSpace(srv.ID) == "" {
			return fmt.Errorf("config: servers[%d]: id is required", i)
		}
		if _, dup := seen[srv.ID]; dup {
			return fmt.Errorf("config: duplicate server id %q", srv.ID)
		}
		seen[srv.ID] = struct{}{}

		if err := srv.Retention().Validate(); err != nil {
			return fmt.Errorf("config: server %s: %w", srv.DisplayName(), err)
		}
	}
	return nil
}

// SelectServer narrows the config to the single server matching the
// given name or ID, mirroring the -s/--server command-line flag.
func (c *Config) SelectServer(nameOrID string) error {
	key := util.NormalizeKey(nameOrID)
	for _, srv := range c.Servers {
		if util.NormalizeKey(srv.ID) == key || util.NormalizeKey(srv.Name) == key {
			c.Servers = []ServerSpec{srv}
			return nil
		}
	}
	return fmt.Errorf("config: the specified server is not configured: %s", nameOrID)
}
