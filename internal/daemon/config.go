// Package daemon manages the crumb daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/crumbnet/crumb/internal/p2p"
)

// Config holds all daemon configuration.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	API       APIConfig       `toml:"api"`
	Network   NetworkConfig   `toml:"network"`
	Storage   StorageConfig   `toml:"storage"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// NodeConfig identifies this node to the people reading its posts.
type NodeConfig struct {
	Pseudonym string `toml:"pseudonym"`
}

// APIConfig controls the local HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// NetworkConfig controls the peer-to-peer layer. Intervals are duration
// strings ("30s", "2m").
type NetworkConfig struct {
	ListenPort        int    `toml:"listen_port"`
	TorSocksPort      int    `toml:"tor_socks_port"`
	AutoDiscovery     bool   `toml:"auto_discovery"`
	EnableTor         bool   `toml:"enable_tor"`
	MaxPeers          int    `toml:"max_peers"`
	DiscoveryInterval string `toml:"discovery_interval"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
	SyncInterval      string `toml:"sync_interval"`
	ConnectionTimeout string `toml:"connection_timeout"`
}

// StorageConfig controls the post archive location.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// TelemetryConfig controls observability surfaces.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	homeDir := crumbHome()
	network := p2p.DefaultConfig()
	return Config{
		Node: NodeConfig{
			Pseudonym: "anon",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Network: NetworkConfig{
			ListenPort:        network.ListenPort,
			TorSocksPort:      network.TorSocksPort,
			AutoDiscovery:     network.AutoDiscovery,
			EnableTor:         network.EnableTor,
			MaxPeers:          network.MaxPeers,
			DiscoveryInterval: network.DiscoveryInterval.String(),
			HeartbeatInterval: network.HeartbeatInterval.String(),
			SyncInterval:      network.SyncInterval.String(),
			ConnectionTimeout: network.ConnectionTimeout.String(),
		},
		Storage: StorageConfig{
			Dir: filepath.Join(homeDir, "data"),
		},
		Telemetry: TelemetryConfig{
			Prometheus: false,
		},
	}
}

// LoadConfig reads config from ~/.crumb/config.toml, falling back to
// defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(crumbHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.crumb/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(crumbHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// NetworkSettings converts the TOML network section into the
// coordinator's config, falling back to defaults for anything unset.
func (c Config) NetworkSettings() p2p.Config {
	return p2p.Config{
		ListenPort:        c.Network.ListenPort,
		TorSocksPort:      c.Network.TorSocksPort,
		AutoDiscovery:     c.Network.AutoDiscovery,
		EnableTor:         c.Network.EnableTor,
		MaxPeers:          c.Network.MaxPeers,
		DiscoveryInterval: parseDuration(c.Network.DiscoveryInterval, 30*time.Second),
		HeartbeatInterval: parseDuration(c.Network.HeartbeatInterval, 60*time.Second),
		SyncInterval:      parseDuration(c.Network.SyncInterval, 30*time.Second),
		ConnectionTimeout: parseDuration(c.Network.ConnectionTimeout, 10*time.Second),
	}
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// crumbHome returns the crumb data directory.
func crumbHome() string {
	if env := os.Getenv("CRUMB_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".crumb")
}

// CrumbHome is exported for use by other packages.
func CrumbHome() string {
	return crumbHome()
}
