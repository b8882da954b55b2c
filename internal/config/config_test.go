package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/scanning"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}

	if cfg.Engine.PingTimeout != time.Second {
		t.Errorf("PingTimeout = %v, want 1s", cfg.Engine.PingTimeout)
	}
	if cfg.Engine.SweepConcurrency != 50 {
		t.Errorf("SweepConcurrency = %d, want 50", cfg.Engine.SweepConcurrency)
	}
	if cfg.Engine.HostTimeout != 180*time.Second {
		t.Errorf("HostTimeout = %v, want 180s", cfg.Engine.HostTimeout)
	}
	if cfg.DefaultPortRange() != scanning.DefaultPortRange {
		t.Errorf("DefaultPortRange() = %v", cfg.DefaultPortRange())
	}
	if cfg.Storage.Backend != StorageFile {
		t.Errorf("Storage.Backend = %q, want file", cfg.Storage.Backend)
	}
	if got := cfg.GetAPIAddress(); got != "127.0.0.1:8080" {
		t.Errorf("GetAPIAddress() = %q", got)
	}
	if cfg.AuthEnabled() {
		t.Error("AuthEnabled() = true with no keys")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		check   func(t *testing.T, c *Config)
		wantErr bool
	}{
		{
			name: "valid yaml config",
			file: "netsweep.yaml",
			content: `
engine:
  ping_timeout: 2s
  sweep_concurrency: 10
  default_ports: 20-443
storage:
  backend: postgres
  database:
    host: localhost
    port: 5432
    database: netsweep
    username: netsweep
api:
  port: 9090
  api_keys:
    - "$2a$10$abcdefghijklmnopqrstuv"
schedule:
  sweeps:
    - segment_id: lan
      cron: "*/15 * * * *"
`,
			check: func(t *testing.T, c *Config) {
				if c.Engine.PingTimeout != 2*time.Second {
					t.Errorf("PingTimeout = %v", c.Engine.PingTimeout)
				}
				if c.Engine.SweepConcurrency != 10 {
					t.Errorf("SweepConcurrency = %d", c.Engine.SweepConcurrency)
				}
				if c.DefaultPortRange() != (scanning.PortRange{Start: 20, End: 443}) {
					t.Errorf("DefaultPortRange() = %v", c.DefaultPortRange())
				}
				if c.Storage.Database.Database != "netsweep" {
					t.Errorf("Database = %q", c.Storage.Database.Database)
				}
				if c.Engine.HostTimeout != 180*time.Second {
					t.Errorf("unset fields should keep defaults, HostTimeout = %v", c.Engine.HostTimeout)
				}
				if !c.AuthEnabled() {
					t.Error("AuthEnabled() = false")
				}
				if len(c.Schedule.Sweeps) != 1 || c.Schedule.Sweeps[0].SegmentID != "lan" {
					t.Errorf("Schedule = %+v", c.Schedule)
				}
			},
		},
		{
			name:    "valid json config",
			file:    "netsweep.json",
			content: `{"engine": {"max_parallel_jobs": 2}, "api": {"port": 8081}}`,
			check: func(t *testing.T, c *Config) {
				if c.Engine.MaxParallelJobs != 2 {
					t.Errorf("MaxParallelJobs = %d", c.Engine.MaxParallelJobs)
				}
				if c.API.Port != 8081 {
					t.Errorf("Port = %d", c.API.Port)
				}
			},
		},
		{
			name:    "invalid yaml syntax",
			file:    "netsweep.yaml",
			content: "engine:\n  sweep_concurrency: many\n",
			wantErr: true,
		},
		{
			name:    "postgres without database name",
			file:    "netsweep.yaml",
			content: "storage:\n  backend: postgres\n",
			wantErr: true,
		},
		{
			name:    "unknown backend",
			file:    "netsweep.yaml",
			content: "storage:\n  backend: redis\n",
			wantErr: true,
		},
		{
			name:    "bad cron expression",
			file:    "netsweep.yaml",
			content: "schedule:\n  sweeps:\n    - segment_id: lan\n      cron: every hour\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)

			cfg, err := Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.MaxParallelJobs != Default().Engine.MaxParallelJobs {
		t.Errorf("expected defaults, got %+v", cfg.Engine)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero ping timeout", func(c *Config) { c.Engine.PingTimeout = 0 }, "engine.ping_timeout"},
		{"unknown liveness method", func(c *Config) { c.Engine.LivenessMethod = "icmp" }, "engine.liveness_method"},
		{"zero concurrency", func(c *Config) { c.Engine.SweepConcurrency = 0 }, "engine.sweep_concurrency"},
		{"bad default ports", func(c *Config) { c.Engine.DefaultPorts = "80-20" }, "engine.default_ports"},
		{"zero parallel jobs", func(c *Config) { c.Engine.MaxParallelJobs = 0 }, "engine.max_parallel_jobs"},
		{"empty data dir", func(c *Config) { c.Storage.DataDir = "" }, "storage.data_dir"},
		{"port out of range", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"schedule without segment", func(c *Config) {
			c.Schedule.Sweeps = []ScheduledSweep{{Cron: "@hourly"}}
		}, "schedule.sweeps[0].segment_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			cfgErr, ok := err.(*errors.ConfigError)
			if !ok {
				t.Fatalf("Validate() error type = %T", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
			if !errors.IsCode(err, errors.CodeValidation) {
				t.Errorf("code = %s", errors.GetCode(err))
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "netsweep.yaml")

	cfg := Default()
	cfg.Engine.SweepConcurrency = 7
	cfg.Schedule.Sweeps = []ScheduledSweep{{SegmentID: "lan", Cron: "@daily"}}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Engine.SweepConcurrency != 7 {
		t.Errorf("SweepConcurrency = %d", loaded.Engine.SweepConcurrency)
	}
	if len(loaded.Schedule.Sweeps) != 1 {
		t.Errorf("Schedule = %+v", loaded.Schedule)
	}
}
