// Package config loads the device configuration file for the facegear CLI.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the device configuration. Zero values fall back to defaults,
// so a missing or partial file is fine.
type Config struct {
	// Product is the device product name, used for the setup AP SSID.
	Product string `yaml:"product"`

	// DataDir is where the credential and identity store lives.
	// Empty means an in-memory store (nothing survives restarts).
	DataDir string `yaml:"data_dir"`

	CommandAddr string `yaml:"command_addr"` // face protocol WebSocket
	PortalAddr  string `yaml:"portal_addr"`  // captive portal HTTP
	DNSAddr     string `yaml:"dns_addr"`     // captive DNS responder

	// Gateway is the IPv4 address every captive DNS answer points at.
	Gateway string `yaml:"gateway"`

	// WatchdogInterval is how often connectivity is re-checked while
	// provisioned but not connected.
	WatchdogInterval time.Duration `yaml:"watchdog_interval"`

	// Networks maps SSID to passphrase for the simulated Wi-Fi backend.
	Networks map[string]string `yaml:"networks"`

	// StationIP is the address the simulated backend reports on connect.
	StationIP string `yaml:"station_ip"`

	Audio Audio `yaml:"audio"`
}

// Audio configures where synthesized PCM goes.
type Audio struct {
	// Output is "none", "stdout", or a file path.
	Output string `yaml:"output"`

	SampleRate int `yaml:"sample_rate"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Product:          "facegear",
		CommandAddr:      ":8080",
		PortalAddr:       ":80",
		DNSAddr:          ":53",
		Gateway:          "192.168.4.1",
		WatchdogInterval: 12 * time.Second,
		Audio:            Audio{Output: "none", SampleRate: 16000},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	gw, err := c.GatewayAddr()
	if err != nil {
		return err
	}
	if !gw.Is4() {
		return fmt.Errorf("gateway %s is not IPv4", gw)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample_rate %d must be positive", c.Audio.SampleRate)
	}
	return nil
}

// GatewayAddr parses the configured gateway address.
func (c *Config) GatewayAddr() (netip.Addr, error) {
	addr, err := netip.ParseAddr(c.Gateway)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("gateway: %w", err)
	}
	return addr, nil
}

// StationAddr parses the configured station IP, or returns the zero Addr
// when unset (the backend picks its own default).
func (c *Config) StationAddr() (netip.Addr, error) {
	if c.StationIP == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(c.StationIP)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("station_ip: %w", err)
	}
	return addr, nil
}
