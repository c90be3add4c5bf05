package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/ecmwf/ecmwf-api-client/ecmwfapi"
)

func executeCmd() *cli.Command {
	return &cli.Command{
		Name:      "execute",
		Usage:     "Execute a request against a member-state service (e.g. mars)",
		ArgsUsage: "<request-file> <target>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "service",
				Aliases: []string{"s"},
				Usage:   "Service name",
				Value:   "mars",
				Sources: cli.EnvVars("ECMWF_SERVICE"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("expected a request file and a target path")
			}

			req, err := ecmwfapi.LoadRequest(cmd.Args().Get(0))
			if err != nil {
				return err
			}

			svc, err := ecmwfapi.NewService(cmd.String("service"), ecmwfapi.Credentials{}, engineOptions(cmd)...)
			if err != nil {
				return err
			}

			path, err := svc.Execute(ctx, req, cmd.Args().Get(1))
			if err != nil {
				return err
			}
			log.Info().Str("service", cmd.String("service")).Str("target", path).Msg("execution finished")
			return nil
		},
	}
}
