// Package config loads and validates the netsweep configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/scanning"
)

const (
	configDirPerm  = 0750
	configFilePerm = 0600
	maxPort        = 65535
)

// Storage backends.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Liveness methods.
const (
	LivenessPing = "ping"
	LivenessARP  = "arp"
)

// Config represents the complete netsweep configuration
type Config struct {
	Engine     EngineConfig     `yaml:"engine" json:"engine"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	API        APIConfig        `yaml:"api" json:"api"`
	Logging    logging.Config   `yaml:"logging" json:"logging"`
	Schedule   ScheduleConfig   `yaml:"schedule" json:"schedule"`
	Enrichment EnrichmentConfig `yaml:"enrichment" json:"enrichment"`
}

// EngineConfig holds sweep and probe settings
type EngineConfig struct {
	// Per-address liveness timeout
	PingTimeout time.Duration `yaml:"ping_timeout" json:"ping_timeout"`

	// Liveness method: ping or arp
	LivenessMethod string `yaml:"liveness_method" json:"liveness_method"`

	// Concurrent liveness probes per sweep
	SweepConcurrency int `yaml:"sweep_concurrency" json:"sweep_concurrency"`

	// Largest network a single sweep may enumerate
	MaxSweepAddresses int `yaml:"max_sweep_addresses" json:"max_sweep_addresses"`

	// nmap host timeout
	HostTimeout time.Duration `yaml:"host_timeout" json:"host_timeout"`

	// nmap binary, empty means look up on PATH
	NmapBinary string `yaml:"nmap_binary" json:"nmap_binary"`

	// Port range used when a probe request names none
	DefaultPorts string `yaml:"default_ports" json:"default_ports"`

	// Background jobs running at once
	MaxParallelJobs int `yaml:"max_parallel_jobs" json:"max_parallel_jobs"`

	// How long finished jobs stay queryable
	JobRetention time.Duration `yaml:"job_retention" json:"job_retention"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Backend  string    `yaml:"backend" json:"backend"`
	DataDir  string    `yaml:"data_dir" json:"data_dir"`
	Database db.Config `yaml:"database" json:"database"`
}

// APIConfig holds API server settings
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	Port       int    `yaml:"port" json:"port"`

	// bcrypt hashes of accepted API keys; empty disables authentication
	APIKeys []string `yaml:"api_keys" json:"api_keys"`

	CORS CORSConfig `yaml:"cors" json:"cors"`

	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxRequestSize  int64         `yaml:"max_request_size" json:"max_request_size"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// ScheduleConfig lists recurring sweeps
type ScheduleConfig struct {
	Sweeps []ScheduledSweep `yaml:"sweeps" json:"sweeps"`
}

// ScheduledSweep runs a sweep of a stored segment on a cron expression.
type ScheduledSweep struct {
	SegmentID string `yaml:"segment_id" json:"segment_id"`
	Cron      string `yaml:"cron" json:"cron"`
}

// EnrichmentConfig enables the optional host record enrichers
type EnrichmentConfig struct {
	ReverseDNS    bool          `yaml:"reverse_dns" json:"reverse_dns"`
	DNSServer     string        `yaml:"dns_server" json:"dns_server"`
	SNMPCommunity string        `yaml:"snmp_community" json:"snmp_community"`
	OUIDatabase   string        `yaml:"oui_database" json:"oui_database"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			PingTimeout:       scanning.DefaultPingTimeout,
			LivenessMethod:    LivenessPing,
			SweepConcurrency:  scanning.DefaultSweepConcurrency,
			MaxSweepAddresses: 65536,
			HostTimeout:       scanning.DefaultHostTimeout,
			DefaultPorts:      scanning.DefaultPortRange.String(),
			MaxParallelJobs:   8,
			JobRetention:      24 * time.Hour,
		},
		Storage: StorageConfig{
			Backend:  StorageFile,
			DataDir:  "./data",
			Database: db.DefaultConfig(),
		},
		API: APIConfig{
			ListenAddr: "127.0.0.1",
			Port:       8080,
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
			},
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxRequestSize:  1024 * 1024, // 1MB
		},
		Logging: logging.DefaultConfig(),
		Enrichment: EnrichmentConfig{
			Timeout: 2 * time.Second,
		},
	}
}

// Load loads configuration from a YAML or JSON file. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// yaml.v3 accepts JSON documents as well
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.API.Port <= 0 || c.API.Port > maxPort {
		return errors.ErrConfigInvalid("api.port", c.API.Port)
	}
	if c.API.ListenAddr == "" {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"API listen address is required", "api.listen_addr", c.API.ListenAddr)
	}

	validLogLevels := map[logging.LogLevel]bool{
		logging.LevelDebug: true,
		logging.LevelInfo:  true,
		logging.LevelWarn:  true,
		logging.LevelError: true,
	}
	if !validLogLevels[c.Logging.Level] {
		return errors.ErrConfigInvalid("logging.level", c.Logging.Level)
	}
	if c.Logging.Format != logging.FormatText && c.Logging.Format != logging.FormatJSON {
		return errors.ErrConfigInvalid("logging.format", c.Logging.Format)
	}

	for i, s := range c.Schedule.Sweeps {
		field := fmt.Sprintf("schedule.sweeps[%d]", i)
		if s.SegmentID == "" {
			return errors.ErrConfigInvalid(field+".segment_id", s.SegmentID)
		}
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			cfgErr := errors.ErrConfigInvalid(field+".cron", s.Cron)
			cfgErr.Cause = err
			return cfgErr
		}
	}

	return nil
}

func (c *Config) validateEngine() error {
	e := c.Engine
	if e.PingTimeout <= 0 {
		return errors.ErrConfigInvalid("engine.ping_timeout", e.PingTimeout)
	}
	if e.LivenessMethod != LivenessPing && e.LivenessMethod != LivenessARP {
		return errors.ErrConfigInvalid("engine.liveness_method", e.LivenessMethod)
	}
	if e.SweepConcurrency <= 0 {
		return errors.ErrConfigInvalid("engine.sweep_concurrency", e.SweepConcurrency)
	}
	if e.MaxSweepAddresses <= 0 {
		return errors.ErrConfigInvalid("engine.max_sweep_addresses", e.MaxSweepAddresses)
	}
	if e.HostTimeout <= 0 {
		return errors.ErrConfigInvalid("engine.host_timeout", e.HostTimeout)
	}
	if _, err := scanning.ParsePortRange(e.DefaultPorts); err != nil {
		cfgErr := errors.ErrConfigInvalid("engine.default_ports", e.DefaultPorts)
		cfgErr.Cause = err
		return cfgErr
	}
	if e.MaxParallelJobs <= 0 {
		return errors.ErrConfigInvalid("engine.max_parallel_jobs", e.MaxParallelJobs)
	}
	if e.JobRetention <= 0 {
		return errors.ErrConfigInvalid("engine.job_retention", e.JobRetention)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageFile:
		if c.Storage.DataDir == "" {
			return errors.ErrConfigInvalid("storage.data_dir", c.Storage.DataDir)
		}
	case StoragePostgres:
		d := c.Storage.Database
		if d.Host == "" {
			return errors.ErrConfigInvalid("storage.database.host", d.Host)
		}
		if d.Database == "" {
			return errors.ErrConfigInvalid("storage.database.database", d.Database)
		}
		if d.Username == "" {
			return errors.ErrConfigInvalid("storage.database.username", d.Username)
		}
	default:
		return errors.ErrConfigInvalid("storage.backend", c.Storage.Backend)
	}
	return nil
}

// DefaultPortRange returns the parsed engine.default_ports.
func (c *Config) DefaultPortRange() scanning.PortRange {
	pr, err := scanning.ParsePortRange(c.Engine.DefaultPorts)
	if err != nil {
		return scanning.DefaultPortRange
	}
	return pr
}

// GetAPIAddress returns the full API address
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}

// AuthEnabled reports whether API keys are configured.
func (c *Config) AuthEnabled() bool {
	return len(c.API.APIKeys) > 0
}
