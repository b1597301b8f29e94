package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Clawue884/sidra-monitoring/pkg/alerting"
	"github.com/Clawue884/sidra-monitoring/pkg/config"
	"github.com/Clawue884/sidra-monitoring/pkg/ingest"
	"github.com/Clawue884/sidra-monitoring/pkg/store"
	"github.com/Clawue884/sidra-monitoring/pkg/tsdb"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:                  "serve",
		EnableShellCompletion: true,
		Usage:                 "Run the central collector",
		Description: `Run the central collector service: ingest metrics pushes from edge
agents, evaluate threshold rules, track alert state, and serve the
alert and inventory query endpoints.

Alert transitions are persisted to the audit store and accepted samples
forwarded to the time-series store when configured. SIGHUP reloads the
threshold rules without a restart.`,
		Flags: []cli.Flag{
			configFlag,
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides the config file)",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Server.Port = port
	}

	rules, err := cfg.Rules()
	if err != nil {
		return err
	}
	engine := alerting.NewEngine(rules)

	srvCfg := ingest.NewConfig()
	srvCfg.Version = version
	srvCfg.Address = cfg.Server.Address
	srvCfg.Port = cfg.Server.Port
	srvCfg.RateLimit = rate.Limit(cfg.Server.RateLimit)
	srvCfg.RateLimitBurst = cfg.Server.RateLimitBurst
	srvCfg.MaxHistory = cfg.Server.MaxHistory
	srvCfg.Freshness = cfg.Server.Freshness
	srvCfg.FutureSkew = cfg.Server.FutureSkew

	var opts []ingest.ServerOption

	if cfg.TSDB.URL != "" {
		opts = append(opts, ingest.WithSink(&tsdb.VictoriaWriter{
			URL:     cfg.TSDB.URL,
			Timeout: cfg.TSDB.Timeout,
		}))
	}

	var audit *store.Store
	if cfg.Store.Path != "" {
		audit, err = store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer audit.Close()
		opts = append(opts, ingest.WithAuditLog(audit))
	}

	server := ingest.NewServer(srvCfg, engine, opts...)

	// Seed the inventory endpoint with the last persisted snapshot.
	if audit != nil {
		if snap, found, err := audit.LatestSnapshot(ctx); err != nil {
			slog.Warn("loading last snapshot", "error", err)
		} else if found {
			server.SetSnapshot(snap)
			slog.Info("loaded inventory snapshot", "id", snap.ID, "hosts", snap.HostCount())
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})

	// SIGHUP reloads the threshold rules without restarting.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(reload)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-reload:
				rules, err := cfg.Rules()
				if err != nil {
					slog.Warn("reloading rules", "error", err)
					continue
				}
				engine.SetRules(rules)
				slog.Info("rules reloaded", "rules", len(rules))
			}
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("collector stopped gracefully")
	return nil
}
