package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Clawue884/sidra-monitoring/pkg/config"
	"github.com/Clawue884/sidra-monitoring/pkg/discovery"
	"github.com/Clawue884/sidra-monitoring/pkg/probe"
	"github.com/Clawue884/sidra-monitoring/pkg/remote"
	"github.com/Clawue884/sidra-monitoring/pkg/serializers"
	"github.com/Clawue884/sidra-monitoring/pkg/store"
)

func discoverCmd() *cli.Command {
	return &cli.Command{
		Name:                  "discover",
		EnableShellCompletion: true,
		Usage:                 "Scan networks or hosts and build an inventory snapshot",
		Description: `Run a fleet discovery pass: expand the target networks or host list,
probe every host (reachability, open ports, SSH facts, containers,
databases, storage) under a bounded concurrency limit, and emit one
inventory snapshot.

Targets come from the configuration file or the --targets flag; a target
is either a CIDR network (192.168.71.0/24) or a single host.

The snapshot can be output in JSON or YAML format.`,
		Flags: []cli.Flag{
			configFlag,
			&cli.StringSliceFlag{
				Name:    "targets",
				Aliases: []string{"t"},
				Usage:   "CIDR networks or hosts to scan (overrides the config file)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Maximum hosts probed in parallel (0 = auto)",
			},
			outputFlag,
			formatFlag,
		},
		Action: runDiscover,
	}
}

func runDiscover(ctx context.Context, cmd *cli.Command) error {
	outFormat := serializers.Format(cmd.String("format"))
	if outFormat.IsUnknown() {
		return fmt.Errorf("unknown output format: %q", outFormat)
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	targets := cmd.StringSlice("targets")
	if len(targets) == 0 {
		targets = cfg.Discovery.Targets
	}
	if len(targets) == 0 {
		return fmt.Errorf("no discovery targets configured")
	}

	hosts, err := discovery.ExpandTargets(targets, cfg.Discovery.Roles)
	if err != nil {
		return err
	}

	runner := remote.NewSSHRunner(remote.Credentials{
		User:     cfg.Discovery.SSHUser,
		Password: cfg.Discovery.SSHPassword,
		KeyPath:  cfg.Discovery.SSHKeyPath,
		Port:     cfg.Discovery.SSHPort,
	}, cfg.Discovery.ConnectTimeout)

	probeCfg := probe.DefaultConfig()
	if cfg.Discovery.ProbeTimeout > 0 {
		probeCfg.Timeout = cfg.Discovery.ProbeTimeout
	}
	if cfg.Discovery.ConnectTimeout > 0 {
		probeCfg.ConnectTimeout = cfg.Discovery.ConnectTimeout
	}
	if len(cfg.Discovery.Ports) > 0 {
		probeCfg.Ports = cfg.Discovery.Ports
	}

	coordinator := discovery.NewCoordinator(probe.Registry(probe.NewDefaultFactory(runner)), probeCfg)

	concurrency := int64(cmd.Int("concurrency"))
	if concurrency == 0 {
		concurrency = cfg.Discovery.Concurrency
	}
	orchestrator := discovery.NewOrchestrator(coordinator, concurrency)

	start := time.Now()
	snap := orchestrator.DiscoverFleet(ctx, hosts)
	slog.Info("discovery finished",
		"hosts", snap.HostCount(),
		"reachable", snap.ReachableCount(),
		"failed", len(snap.Failed),
		"duration", time.Since(start).String(),
	)

	if cfg.Store.Path != "" {
		if db, err := store.Open(cfg.Store.Path); err != nil {
			slog.Warn("opening audit store", "path", cfg.Store.Path, "error", err)
		} else {
			defer db.Close()
			if err := db.SaveSnapshot(ctx, snap); err != nil {
				slog.Warn("persisting snapshot", "error", err)
			}
		}
	}

	return serializers.NewFileWriterOrStdout(outFormat, cmd.String("output")).Serialize(snap)
}
