package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/micro-nova/defect-tally/internal/models"
)

// DefaultInterval is the periodic save interval used when none is configured.
const DefaultInterval = 30 * time.Second

// Settings is the optional YAML settings file. Command-line flags override
// any value set here.
type Settings struct {
	Names    []string      `yaml:"names"`
	Policy   models.Policy `yaml:"policy"`
	Interval time.Duration `yaml:"interval"`
	Addr     string        `yaml:"addr"`
	MDNS     bool          `yaml:"mdns"`
	LogFile  string        `yaml:"log_file"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	return Settings{
		Names:    models.DefaultNames(),
		Policy:   models.PolicyPeriodic,
		Interval: DefaultInterval,
		Addr:     ":8080",
	}
}

// LoadSettings reads a YAML settings file over the defaults. An empty path or
// a missing file yields the defaults. Unknown keys are rejected.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("config: open settings: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(s.Names) == 0 {
		s.Names = models.DefaultNames()
	}
	return s, s.Validate()
}

// Validate checks the policy and interval. Counter names are validated when
// the counter store is built.
func (s Settings) Validate() error {
	p, err := models.ParsePolicy(string(s.Policy))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if p == models.PolicyPeriodic && s.Interval <= 0 {
		return fmt.Errorf("config: periodic policy needs a positive interval, got %s", s.Interval)
	}
	return nil
}
