package p2p

import "time"

// Config controls the network coordinator. It is an immutable snapshot
// for the coordinator's lifetime; the only way to change it is another
// Initialize after a Disconnect.
type Config struct {
	ListenPort        int
	TorSocksPort      int
	AutoDiscovery     bool
	EnableTor         bool
	MaxPeers          int
	DiscoveryInterval time.Duration
	HeartbeatInterval time.Duration
	SyncInterval      time.Duration
	ConnectionTimeout time.Duration
}

// DefaultConfig returns the stock crumb network settings.
func DefaultConfig() Config {
	return Config{
		ListenPort:        8888,
		TorSocksPort:      9050,
		AutoDiscovery:     true,
		EnableTor:         false,
		MaxPeers:          50,
		DiscoveryInterval: 30 * time.Second,
		HeartbeatInterval: 60 * time.Second,
		SyncInterval:      30 * time.Second,
		ConnectionTimeout: 10 * time.Second,
	}
}

// withDefaults fills unset fields from DefaultConfig. Boolean fields are
// taken as given; false is a meaningful setting, not an omission.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ListenPort == 0 {
		c.ListenPort = def.ListenPort
	}
	if c.TorSocksPort == 0 {
		c.TorSocksPort = def.TorSocksPort
	}
	if c.MaxPeers == 0 {
		c.MaxPeers = def.MaxPeers
	}
	if c.DiscoveryInterval == 0 {
		c.DiscoveryInterval = def.DiscoveryInterval
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.SyncInterval == 0 {
		c.SyncInterval = def.SyncInterval
	}
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = def.ConnectionTimeout
	}
	return c
}
