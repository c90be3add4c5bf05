package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ecmwf/ecmwf-api-client/ecmwfapi"
)

func whoamiCmd() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the identity the resolved credentials map to",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := ecmwfapi.WhoAmI(ctx, ecmwfapi.Credentials{})
			if err != nil {
				return err
			}
			name := id.FullName
			if name == "" {
				name = fmt.Sprintf("user %q", id.UID)
			}
			fmt.Printf("%s <%s>\n", name, id.Email)
			return nil
		},
	}
}
