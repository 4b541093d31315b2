// Package config loads the YAML configuration for both link roles.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/user/uartlink-blue/uart"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Central    CentralConfig    `yaml:"central"`
	Peripheral PeripheralConfig `yaml:"peripheral"`
}

// CentralConfig holds the scanner/initiator settings.
type CentralConfig struct {
	TargetName       string   `yaml:"target_name"`
	NamePrefixLen    int      `yaml:"name_prefix_len"`
	KnownPeripherals []string `yaml:"known_peripherals"` // hex addresses
	ScanDurationMs   int      `yaml:"scan_duration_ms"`
	ScanIntervalUs   int      `yaml:"scan_interval_us"`
	ScanWindowUs     int      `yaml:"scan_window_us"`
	ConnectTimeoutMs int      `yaml:"connect_timeout_ms"`
}

// PeripheralConfig holds the advertiser/server settings.
type PeripheralConfig struct {
	Name           string `yaml:"name"`
	AdvIntervalUs  int    `yaml:"adv_interval_us"`
	CharBufferSize int    `yaml:"char_buffer_size"`
	ReportPeriodMs int    `yaml:"report_period_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Central: CentralConfig{
			TargetName:    "ID000001",
			NamePrefixLen: 8,
			KnownPeripherals: []string{
				"02058206359e",
				"0204881632ee",
			},
			ScanDurationMs:   30000,
			ScanIntervalUs:   30000,
			ScanWindowUs:     30000,
			ConnectTimeoutMs: 15000,
		},
		Peripheral: PeripheralConfig{
			Name:           "ID000001",
			AdvIntervalUs:  500000,
			CharBufferSize: uart.MaxPayload,
			ReportPeriodMs: 5000,
		},
	}
}

// Load reads and parses a YAML config file over the defaults, so missing
// fields keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values that would otherwise fail deep inside a role.
func (c *Config) Validate() error {
	if c.Central.TargetName == "" {
		return fmt.Errorf("config: central.target_name must not be empty")
	}
	if c.Central.NamePrefixLen <= 0 {
		return fmt.Errorf("config: central.name_prefix_len must be positive")
	}
	if c.Peripheral.Name == "" {
		return fmt.Errorf("config: peripheral.name must not be empty")
	}
	if c.Peripheral.CharBufferSize <= 0 {
		return fmt.Errorf("config: peripheral.char_buffer_size must be positive")
	}
	if _, err := c.KnownAddrs(); err != nil {
		return err
	}
	return nil
}

// KnownAddrs parses the known peripheral address list.
func (c *Config) KnownAddrs() ([]uart.Addr, error) {
	out := make([]uart.Addr, 0, len(c.Central.KnownPeripherals))
	for _, s := range c.Central.KnownPeripherals {
		addr, err := uart.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("config: known_peripherals: %w", err)
		}
		out = append(out, addr)
	}
	return out, nil
}
