package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/propwatch/observability"
	"github.com/tailored-agentic-units/propwatch/property"
)

// Config holds watcher initialization parameters.
type Config struct {
	Observing bool   `json:"observing" yaml:"observing"`
	Observer  string `json:"observer,omitempty" yaml:"observer,omitempty"` // observability registry name
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`

	// Nil leaves the default (report) in place.
	ReportOld *bool `json:"report_old,omitempty" yaml:"report_old,omitempty"`
	ReportNew *bool `json:"report_new,omitempty" yaml:"report_new,omitempty"`
}

// DefaultConfig returns a configuration that starts observing immediately,
// logs through the "slog" observer and reports both old and new values.
func DefaultConfig() Config {
	return Config{
		Observing: true,
		Observer:  "slog",
		Source:    defaultSource,
	}
}

// Merge applies non-zero values from source into c. Observing is always
// taken from source.
func (c *Config) Merge(source *Config) {
	c.Observing = source.Observing

	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.Source != "" {
		c.Source = source.Source
	}
	if source.ReportOld != nil {
		c.ReportOld = source.ReportOld
	}
	if source.ReportNew != nil {
		c.ReportNew = source.ReportNew
	}
}

// Options returns the delivery options described by c.
func (c *Config) Options() property.Options {
	opts := property.DefaultOptions()
	if c.ReportOld != nil {
		opts.ReportOld = *c.ReportOld
	}
	if c.ReportNew != nil {
		opts.ReportNew = *c.ReportNew
	}
	return opts
}

// LoadConfig reads a JSON or YAML config file, chosen by extension, and
// merges it over DefaultConfig.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	loaded := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		err = json.Unmarshal(data, &loaded)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

// NewFromConfig creates a Watcher from cfg. The observer is resolved by name
// from the observability registry; opts are applied afterwards and override
// config-derived settings.
func NewFromConfig(target property.Target, events Events, cfg *Config, opts ...Option) (*Watcher, error) {
	if target == nil {
		return nil, ErrNilTarget
	}

	base := []Option{
		WithOptions(cfg.Options()),
		WithSource(cfg.Source),
	}
	if cfg.Observer != "" {
		obs, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		base = append(base, WithObserver(obs))
	}

	return New(target, events, cfg.Observing, append(base, opts...)...), nil
}
