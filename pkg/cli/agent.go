package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/Clawue884/sidra-monitoring/pkg/config"
	"github.com/Clawue884/sidra-monitoring/pkg/edge"
)

func agentCmd() *cli.Command {
	return &cli.Command{
		Name:                  "agent",
		EnableShellCompletion: true,
		Usage:                 "Run the per-host metrics agent",
		Description: `Run the edge agent: sample local system, GPU, and service metrics on
an interval and push each sample to the central collector. A missing
GPU, systemd, or docker simply omits those fields.

Push failures are logged and the sample dropped; there is no local
queue.`,
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{
				Name:  "central",
				Usage: "Central collector base URL (overrides the config file)",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Sampling interval (overrides the config file)",
			},
		},
		Action: runAgent,
	}
}

func runAgent(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	if url := cmd.String("central"); url != "" {
		cfg.Edge.CentralURL = url
	}
	if interval := cmd.Duration("interval"); interval > 0 {
		cfg.Edge.Interval = interval
	}

	host := cfg.Edge.Host
	if host == "" {
		if host, err = os.Hostname(); err != nil {
			return err
		}
	}

	agent := edge.NewAgent(
		&edge.Sampler{Host: host, Role: cfg.Edge.Role},
		&edge.Sender{URL: cfg.Edge.CentralURL, Timeout: cfg.Edge.PushTimeout},
		cfg.Edge.Interval,
	)

	if err := agent.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	agent.Stop()
	return nil
}
