// Package config loads the tracking daemon settings from a YAML file and
// keeps them current while the file changes.
package config

import (
	"io/ioutil"
	"time"

	"aistrack/ais/filter"
	"aistrack/ais/filter/parser"
	"aistrack/ais/tracker"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type Config struct {
	HistoryMaxAge    time.Duration `mapstructure:"history_max_age"`
	PruneCheckPeriod time.Duration `mapstructure:"prune_check_period"`
	StalePeriod      time.Duration `mapstructure:"stale_period"`
	StaleCheckPeriod time.Duration `mapstructure:"stale_check_period"`
	DoubletWindow    time.Duration `mapstructure:"doublet_window"`
	DoubletCapacity  int           `mapstructure:"doublet_capacity"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	// Filter expression applied to incoming messages, empty accepts all
	Filter string `mapstructure:"filter"`
	// HTTP and websocket address, empty disables the server
	Listen string `mapstructure:"listen"`
}

func Default() Config {
	return Config{
		HistoryMaxAge:    tracker.DefaultMaxHistoryAge,
		PruneCheckPeriod: tracker.DefaultPruneCheckPeriod,
		StalePeriod:      tracker.DefaultStalePeriod,
		StaleCheckPeriod: tracker.DefaultStaleCheckPeriod,
		DoubletWindow:    filter.DefaultDoubletWindow,
		DoubletCapacity:  filter.DefaultDoubletCapacity,
		ShutdownTimeout:  tracker.DefaultShutdownTimeout,
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	c, err := Parse(data, Default())
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return c, nil
}

// Parse overlays the YAML document data onto base. Durations are written
// the way time.ParseDuration reads them ("90s", "6h"). Unknown keys are
// errors.
func Parse(data []byte, base Config) (Config, error) {
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, errors.Wrap(err, "yaml")
	}

	c := base
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &c,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem found, not only the first.
func (c Config) Validate() error {
	var result *multierror.Error
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"history_max_age", c.HistoryMaxAge},
		{"prune_check_period", c.PruneCheckPeriod},
		{"stale_period", c.StalePeriod},
		{"stale_check_period", c.StaleCheckPeriod},
		{"doublet_window", c.DoubletWindow},
		{"shutdown_timeout", c.ShutdownTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			result = multierror.Append(result, errors.Errorf("%s must be positive, got %v", p.name, p.d))
		}
	}
	if c.DoubletCapacity <= 0 {
		result = multierror.Append(result, errors.Errorf("doublet_capacity must be positive, got %d", c.DoubletCapacity))
	}
	if c.Filter != "" {
		root, err := parser.Parse(c.Filter)
		if err == nil {
			_, err = filter.Compile(root, nil)
		}
		if err != nil {
			result = multierror.Append(result, errors.Wrap(err, "filter"))
		}
	}
	return result.ErrorOrNil()
}

func (c Config) TrackerOptions() tracker.Options {
	return tracker.Options{
		MaxHistoryAge:    c.HistoryMaxAge,
		PruneCheckPeriod: c.PruneCheckPeriod,
		StalePeriod:      c.StalePeriod,
		StaleCheckPeriod: c.StaleCheckPeriod,
		ShutdownTimeout:  c.ShutdownTimeout,
	}
}
