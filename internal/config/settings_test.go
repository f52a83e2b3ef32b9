package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/micro-nova/defect-tally/internal/config"
	"github.com/micro-nova/defect-tally/internal/models"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(newTempDir(t), "defect-tally.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSettings_NoPathOrMissingFile(t *testing.T) {
	for _, path := range []string{"", filepath.Join(newTempDir(t), "absent.yaml")} {
		s, err := config.LoadSettings(path)
		if err != nil {
			t.Fatalf("LoadSettings(%q): %v", path, err)
		}
		def := config.DefaultSettings()
		if s.Policy != def.Policy || s.Interval != def.Interval || s.Addr != def.Addr {
			t.Errorf("LoadSettings(%q) = %+v, want defaults", path, s)
		}
		if !slices.Equal(s.Names, models.DefaultNames()) {
			t.Errorf("names = %v, want default names", s.Names)
		}
	}
}

func TestLoadSettings_EmptyFileIsDefaults(t *testing.T) {
	s, err := config.LoadSettings(writeSettings(t, ""))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Policy != models.PolicyPeriodic || s.Interval != config.DefaultInterval {
		t.Errorf("settings = %+v, want defaults", s)
	}
}

func TestLoadSettings_OverridesDefaults(t *testing.T) {
	path := writeSettings(t, `
names: [Solder, Missing, Wrong]
policy: immediate
interval: 5s
addr: ":9000"
mdns: true
log_file: /var/log/defect-tally.log
`)
	s, err := config.LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if !slices.Equal(s.Names, []string{"Solder", "Missing", "Wrong"}) {
		t.Errorf("Names = %v", s.Names)
	}
	if s.Policy != models.PolicyImmediate {
		t.Errorf("Policy = %q", s.Policy)
	}
	if s.Interval != 5*time.Second {
		t.Errorf("Interval = %s", s.Interval)
	}
	if s.Addr != ":9000" || !s.MDNS || s.LogFile != "/var/log/defect-tally.log" {
		t.Errorf("settings = %+v", s)
	}
}

func TestLoadSettings_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":       "colour: red\n",
		"unknown policy":    "policy: hourly\n",
		"zero interval":     "policy: periodic\ninterval: 0s\n",
		"malformed yaml":    "names: [a, b\n",
		"negative interval": "interval: -1s\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := config.LoadSettings(writeSettings(t, body)); err == nil {
				t.Errorf("LoadSettings(%q) succeeded, want error", body)
			}
		})
	}
}
