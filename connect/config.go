package connect

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openfinreg/ffiec-data-connect/protocol/legacy"
	"github.com/openfinreg/ffiec-data-connect/protocol/rest"
	"github.com/openfinreg/ffiec-data-connect/ratelimit"
)

// Config holds the endpoint and pacing settings of both backends. Zero values
// fall back to the package defaults.
type Config struct {
	REST   RESTConfig   `yaml:"rest"`
	Legacy LegacyConfig `yaml:"legacy"`
}

type RESTConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	CallsPerSecond float64       `yaml:"calls_per_second"`
	CallsPerHour   int           `yaml:"calls_per_hour"`
}

type LegacyConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		REST: RESTConfig{
			BaseURL:        rest.DefaultBaseURL,
			Timeout:        rest.DefaultTimeout,
			CallsPerSecond: ratelimit.DefaultCallsPerSecond,
			CallsPerHour:   ratelimit.DefaultCallsPerHour,
		},
		Legacy: LegacyConfig{
			URL:     legacy.DefaultSOAPURL,
			Timeout: legacy.DefaultSOAPTimeout,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig, so keys left out of the
// file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("load config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.REST.BaseURL != "" {
		if err := validURL(c.REST.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("rest.base_url: %w", err))
		}
	}
	if c.REST.Timeout < 0 {
		errs = append(errs, fmt.Errorf("rest.timeout must not be negative, got %s", c.REST.Timeout))
	}
	if c.REST.CallsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rest.calls_per_second must not be negative, got %v", c.REST.CallsPerSecond))
	}
	if c.REST.CallsPerHour < 0 {
		errs = append(errs, fmt.Errorf("rest.calls_per_hour must not be negative, got %d", c.REST.CallsPerHour))
	}
	if c.Legacy.URL != "" {
		if err := validURL(c.Legacy.URL); err != nil {
			errs = append(errs, fmt.Errorf("legacy.url: %w", err))
		}
	}
	if c.Legacy.Timeout < 0 {
		errs = append(errs, fmt.Errorf("legacy.timeout must not be negative, got %s", c.Legacy.Timeout))
	}

	return errors.Join(errs...)
}

func validURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
