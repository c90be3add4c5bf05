package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/ecmwf/ecmwf-api-client/ecmwfapi"
)

func retrieveCmd() *cli.Command {
	return &cli.Command{
		Name:      "retrieve",
		Usage:     "Retrieve a public dataset described by a request file (JSON, TOML or YAML)",
		ArgsUsage: "<request-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Local destination path (overrides the request's target field)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one request file argument")
			}

			req, err := ecmwfapi.LoadRequest(cmd.Args().First())
			if err != nil {
				return err
			}
			if v := cmd.String("target"); v != "" {
				req.Set("target", v)
			}

			server, err := ecmwfapi.NewDataServer(ecmwfapi.Credentials{}, engineOptions(cmd)...)
			if err != nil {
				return err
			}

			path, err := server.Retrieve(ctx, req)
			if err != nil {
				return err
			}
			log.Info().Str("target", path).Msg("retrieval finished")
			return nil
		},
	}
}

func engineOptions(cmd *cli.Command) []ecmwfapi.Option {
	var opts []ecmwfapi.Option
	if cmd.Bool("quiet") {
		opts = append(opts, ecmwfapi.WithQuiet())
	}
	return opts
}
