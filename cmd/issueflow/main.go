// Package main provides issueflow, the administration CLI for workflow definitions.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "issueflow",
		Usage:                 "Manage workflow definitions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "definition",
				Aliases: []string{"def"},
				Usage:   "Validate, import and export workflow definition documents",
				Commands: []*cli.Command{
					NewValidateCommand(),
					NewImportCommand(),
					NewExportCommand(),
				},
			},
			NewLintCommand(),
		},
	}
}

func databaseURLFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "database-url",
		Usage:    "Database connection URL for persistence (file://<dir> or postgres://...)",
		Required: true,
		Sources:  cli.EnvVars("DATABASE_URL"),
	}
}
