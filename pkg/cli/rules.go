package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Clawue884/sidra-monitoring/pkg/alerting"
	"github.com/Clawue884/sidra-monitoring/pkg/serializers"
)

func rulesCmd() *cli.Command {
	return &cli.Command{
		Name:                  "rules",
		EnableShellCompletion: true,
		Usage:                 "Work with threshold rule files",
		Commands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Load a rules file and report whether every rule is valid",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "rules",
						Aliases:  []string{"r"},
						Usage:    "Path to the YAML rules file",
						Required: true,
					},
					outputFlag,
					formatFlag,
				},
				Action: runRulesValidate,
			},
			{
				Name:  "defaults",
				Usage: "Print the built-in threshold rules",
				Flags: []cli.Flag{outputFlag, formatFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return writeRules(cmd, alerting.DefaultRules())
				},
			},
		},
	}
}

func runRulesValidate(ctx context.Context, cmd *cli.Command) error {
	rules, err := alerting.LoadRules(cmd.String("rules"))
	if err != nil {
		return err
	}

	fmt.Printf("%d rules valid\n", len(rules))
	return writeRules(cmd, rules)
}

func writeRules(cmd *cli.Command, rules []alerting.ThresholdRule) error {
	outFormat := serializers.Format(cmd.String("format"))
	if outFormat.IsUnknown() {
		return fmt.Errorf("unknown output format: %q", outFormat)
	}
	return serializers.NewFileWriterOrStdout(outFormat, cmd.String("output")).Serialize(rules)
}
