package cmd

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "ecmwf-api",
		Version: version,
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level, err := zerolog.ParseLevel(cmd.String("log-level"))
			if err != nil {
				return ctx, err
			}
			zerolog.SetGlobalLevel(level)
			return ctx, nil
		},
		Usage: "Retrieve data from the ECMWF Web API: submit a request, wait for the job, download the result.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("ECMWF_LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Suppress service messages and news",
			},
		},
		Commands: []*cli.Command{
			retrieveCmd(),
			executeCmd(),
			whoamiCmd(),
		},
	}
}
