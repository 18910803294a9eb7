// Package config loads per-node configuration (spec.md §6's table) via
// viper, from a YAML file, environment variables, or both.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved per-node configuration.
type Config struct {
	NodeID   string `mapstructure:"node_id"`
	NodeHost string `mapstructure:"node_host"`
	NodePort int    `mapstructure:"node_port"`

	// Peers is the comma-separated host:port list from spec.md §6,
	// including self; Membership seeds its table from this list.
	Peers []string `mapstructure:"peers"`

	ReplicationFactor int `mapstructure:"replication_factor"`
	MaxEntries        int `mapstructure:"max_entries"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`

	PublicAddr   string `mapstructure:"public_addr"`
	InternalAddr string `mapstructure:"internal_addr"`
	AdminAddr    string `mapstructure:"admin_addr"`

	WorkerPoolSize int `mapstructure:"worker_pool_size"`

	LogLevel string `mapstructure:"log_level"`
}

// Defaults mirror spec.md: R>=1 default 1, max_entries default 1000 when
// unset (an explicit value <=0 is not corrected here; LocalStore applies
// that fallback, §4.1), V=100 is a ringhash constant, not configurable.
func defaults() Config {
	return Config{
		ReplicationFactor: 1,
		MaxEntries:        1000,
		ConnectTimeout:    5 * time.Second,
		ReadTimeout:       5 * time.Second,
		HeartbeatTimeout:  3 * time.Second,
		PublicAddr:        ":8080",
		InternalAddr:      ":9080",
		AdminAddr:         ":7080",
		WorkerPoolSize:    32,
		LogLevel:          "info",
	}
}

// Load reads configuration from the given file path (if non-empty),
// overlaying environment variables prefixed DISTCACHE_, overlaying the
// defaults above. Flags are expected to be bound by the caller (cobra) on
// top of the returned viper instance's values before Unmarshal.
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	d := defaults()
	v.SetDefault("replication_factor", d.ReplicationFactor)
	v.SetDefault("max_entries", d.MaxEntries)
	v.SetDefault("connect_timeout", d.ConnectTimeout)
	v.SetDefault("read_timeout", d.ReadTimeout)
	v.SetDefault("heartbeat_timeout", d.HeartbeatTimeout)
	v.SetDefault("public_addr", d.PublicAddr)
	v.SetDefault("internal_addr", d.InternalAddr)
	v.SetDefault("admin_addr", d.AdminAddr)
	v.SetDefault("worker_pool_size", d.WorkerPoolSize)
	v.SetDefault("log_level", d.LogLevel)

	v.SetEnvPrefix("distcache")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}
	return v, nil
}

// Unmarshal decodes the viper instance into a Config, splitting the peers
// value (comma-separated string or a YAML list) and validating the
// replication factor.
func Unmarshal(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if peersStr := v.GetString("peers"); peersStr != "" && len(c.Peers) == 0 {
		for _, p := range strings.Split(peersStr, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				c.Peers = append(c.Peers, p)
			}
		}
	}
	if c.ReplicationFactor < 1 {
		c.ReplicationFactor = 1
	}
	return &c, nil
}
