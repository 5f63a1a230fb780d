// cmd/server/main.go
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	_ "biosignal-service/docs"
)

// version is set via ldflags at build time
var version = "dev"

// @title Biosignal Service API
// @version 1.0.0
// @description Headless acquisition service for an ADS1292R ECG/respiration board: live samples, respiration rate and timed averaging sessions.

// @host localhost:8085
// @BasePath /api/v1
func main() {
	app := &cli.App{
		Name:           "biosignal-service",
		Usage:          "ECG and respiration acquisition service",
		Version:        version,
		ExitErrHandler: exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"BIOSIGNAL_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			portsCommand(),
			migrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
