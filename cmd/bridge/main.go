package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/bridge"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/bus"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/bus/memtransport"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/bus/mqtt"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/command"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/config"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/conn"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/discovery"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/logger"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/pod"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/registry"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/watch"
)

func main() {
	root := &cobra.Command{
		Use:   "bridge",
		Short: "AMM TCP bridge between the simulation bus and long-lived client sessions",
		RunE:  run,
	}

	root.Flags().String("config-dir", "", "directory holding bridge.yaml")
	root.Flags().Int("server_port", 0, "TCP port clients connect to (overrides config)")
	root.Flags().Bool("discovery", false, "enable UDP discovery responder (overrides config)")
	root.Flags().Int("discovery_port", 0, "UDP discovery port (overrides config)")
	root.Flags().Bool("pod_mode", false, "serve more than one manikin from this process")
	root.Flags().String("manikin_id", "", "manikin id when not in pod mode (overrides config)")
	root.Flags().StringSlice("manikins", nil, "manikin ids to provision in pod mode (overrides config)")
	root.Flags().String("core_id", "", "bus topic namespace (overrides config)")
	root.Flags().String("log-level", "", "debug|info|warn|error (overrides config)")
	root.Flags().String("log-file", "", "additional log file path (overrides config)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	configDir, _ := flags.GetString("config-dir")

	cfgPath := ""
	if configDir != "" {
		cfgPath = configDir + "/bridge.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(flags, &cfg)

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := pod.New()
	reg := registry.New()
	hub := bridge.New(p, reg, command.SupervisorCtl{})

	ids := []string{pod.DefaultManikinID}
	if cfg.PodMode && len(cfg.Manikins) > 0 {
		for _, id := range cfg.Manikins {
			if id != pod.DefaultManikinID {
				ids = append(ids, id)
			}
		}
	} else if cfg.ManikinID != "" {
		ids = []string{cfg.ManikinID}
	}

	for _, id := range ids {
		transport := newTransport(cfg)
		if _, err := pod.Provision(ctx, p, id, transport, hub, cfg.PodMode); err != nil {
			return fmt.Errorf("provision manikin %s: %w", id, err)
		}
	}

	var cw *watch.ConfigWatcher
	if configDir != "" {
		var watchErr error
		cw, watchErr = watch.NewConfigWatcher(configDir, cfgPath, configDir+"/disabled", func(reloaded config.Config) {
			logger.Info("config hot-reloaded", "log_level", reloaded.LogLevel)
		})
		if watchErr != nil {
			logger.Warn("config watcher unavailable", "error", watchErr)
			cw = nil
		}
	}

	srv := &conn.Server{
		Addr:     fmt.Sprintf(":%d", cfg.ServerPort),
		Registry: reg,
		Handler:  hub,
	}
	if cw != nil {
		srv.Paused = cw.Disabled
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("bridge starting", "server_port", cfg.ServerPort, "pod_mode", cfg.PodMode, "manikins", ids)
		return srv.ListenAndServe(groupCtx)
	})
	if cfg.Discovery {
		group.Go(func() error {
			return discovery.Serve(groupCtx, cfg.DiscoveryPort, cfg.ServerPort)
		})
	}
	if cw != nil {
		group.Go(func() error {
			cw.Run(groupCtx)
			return nil
		})
	}

	return group.Wait()
}

func newTransport(cfg config.Config) bus.Transport {
	if cfg.MQTT.BrokerURL == "" {
		return memtransport.New()
	}
	return mqtt.New(mqtt.Config{
		BrokerURL: cfg.MQTT.BrokerURL,
		CoreID:    cfg.CoreID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
	}, nil)
}

// applyFlagOverrides layers any explicitly-set CLI flag on top of the
// loaded config, leaving unset flags to the config file's (or
// config.Default's) value.
func applyFlagOverrides(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("server_port") {
		cfg.ServerPort, _ = flags.GetInt("server_port")
	}
	if flags.Changed("discovery") {
		cfg.Discovery, _ = flags.GetBool("discovery")
	}
	if flags.Changed("discovery_port") {
		cfg.DiscoveryPort, _ = flags.GetInt("discovery_port")
	}
	if flags.Changed("pod_mode") {
		cfg.PodMode, _ = flags.GetBool("pod_mode")
	}
	if flags.Changed("manikin_id") {
		cfg.ManikinID, _ = flags.GetString("manikin_id")
	}
	if flags.Changed("manikins") {
		cfg.Manikins, _ = flags.GetStringSlice("manikins")
	}
	if flags.Changed("core_id") {
		cfg.CoreID, _ = flags.GetString("core_id")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-file") {
		cfg.LogFile, _ = flags.GetString("log-file")
	}
}
