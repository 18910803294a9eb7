// Command distcache-node runs one node of a distcache cluster: public,
// internal, and admin HTTP listeners, plus the membership and TTL
// background tasks.
//
// Generalized from the teacher's cmd/cache-node/main.go (flag parsing,
// signal-driven shutdown) onto spf13/cobra + spf13/viper for layered
// file/env/flag configuration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/akshatgopal/distributed-cache-project/internal/config"
	"github.com/akshatgopal/distributed-cache-project/internal/logging"
	"github.com/akshatgopal/distributed-cache-project/internal/node"
)

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "distcache-node",
		Short: "Run one node of a distributed in-memory cache cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configFile)
		},
	}
	root.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")
	bindServeFlags(root)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func bindServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("node-id", "", "this node's identifier")
	cmd.Flags().String("node-host", "localhost", "this node's advertised host")
	cmd.Flags().Int("node-port", 8080, "this node's advertised port (used as the ring identity, not a listen address)")
	cmd.Flags().StringSlice("peers", nil, "comma-separated initial peer host:port list (self may be listed; it is skipped)")
	cmd.Flags().Int("replication-factor", 1, "number of replicas per key, including the primary")
	cmd.Flags().Int("max-entries", 1000, "maximum LocalStore entries before LRU eviction")
	cmd.Flags().String("public-addr", ":8080", "public API listen address")
	cmd.Flags().String("internal-addr", ":9080", "internal peer API listen address")
	cmd.Flags().String("admin-addr", ":7080", "admin/metrics API listen address")
	cmd.Flags().Int("worker-pool-size", 32, "replication fan-out worker pool size")
	cmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")
}

func runServe(cmd *cobra.Command, configFile string) error {
	v, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	bindFlagAliases(v)

	cfg, err := config.Unmarshal(v)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	n := node.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return n.Run(ctx)
}

// bindFlagAliases maps the cobra flags' kebab-case names onto the
// snake_case mapstructure keys config.Config expects.
func bindFlagAliases(v *viper.Viper) {
	aliases := map[string]string{
		"node-id":            "node_id",
		"node-host":          "node_host",
		"node-port":          "node_port",
		"replication-factor": "replication_factor",
		"max-entries":        "max_entries",
		"public-addr":        "public_addr",
		"internal-addr":      "internal_addr",
		"admin-addr":         "admin_addr",
		"worker-pool-size":   "worker_pool_size",
		"log-level":          "log_level",
	}
	for flagName, key := range aliases {
		v.RegisterAlias(key, flagName)
	}
}
