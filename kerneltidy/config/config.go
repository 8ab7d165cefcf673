package config

import (
	"errors"
	"fmt"
	"os"

	multierror "github.com/hashicorp/go-multierror"
	"gopkg.in/ini.v1"
)

const (
	DefaultPath          = "/etc/kerneltidy.ini"
	DefaultExclude       = "lustre"
	DefaultHeaderMinSize = 1000000
)

// Config holds the settings read from the INI file.
type Config struct {
	Planner Planner `ini:"planner"`
	Host    Host    `ini:"host"`
}

type Planner struct {
	Exclude           string `ini:"exclude"`
	HeaderMinSize     int64  `ini:"header_min_size"`
	StrictHeaderMatch bool   `ini:"strict_header_match"`
}

type Host struct {
	Hostname string `ini:"hostname"`
	User     string `ini:"user"`
	Sudo     bool   `ini:"sudo"`
}

func Default() Config {
	return Config{
		Planner: Planner{
			Exclude:       DefaultExclude,
			HeaderMinSize: DefaultHeaderMinSize,
		},
		Host: Host{
			Hostname: "localhost",
		},
	}
}

// Load reads path on top of the defaults. A missing file is only an error
// when required is set.
func Load(path string, required bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return Default(), nil
		}
		return Default(), fmt.Errorf("config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads INI data on top of the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	file, err := ini.Load(data)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := file.MapTo(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to map config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var result *multierror.Error
	if c.Planner.HeaderMinSize < 0 {
		result = multierror.Append(result, fmt.Errorf("planner.header_min_size must not be negative, got %d", c.Planner.HeaderMinSize))
	}
	if c.Host.Hostname == "" {
		result = multierror.Append(result, errors.New("host.hostname must not be empty"))
	}
	return result.ErrorOrNil()
}
