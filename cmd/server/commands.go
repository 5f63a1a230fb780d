// cmd/server/commands.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"biosignal-service/internal/config"
	"biosignal-service/internal/database"
	"biosignal-service/internal/service"
	"biosignal-service/internal/utils"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the acquisition loop and the HTTP/WebSocket API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "source",
				Usage: "Override source.type: serial or simulator",
			},
			&cli.StringFlag{
				Name:  "port",
				Usage: "Override serial.port and connect on start",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load configuration: %v", err), 2)
	}
	if source := c.String("source"); source != "" {
		cfg.Source.Type = source
	}
	if port := c.String("port"); port != "" {
		cfg.Serial.Port = port
		cfg.Serial.AutoConnect = true
	}

	app, err := NewApplication(cfg, version)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to initialize application: %v", err), 1)
	}
	return app.Start()
}

func portsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ports",
		Usage: "List serial ports and known USB-serial bridges",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Usage: "Scan type: all, serial, usb",
				Value: service.ScanTypeAll,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print JSON instead of a table",
			},
		},
		Action: portsAction,
	}
}

func portsAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load configuration: %v", err), 2)
	}
	// The table goes to stdout, so keep logs quiet and off it
	cfg.Logging.Level = "error"
	cfg.Logging.Output = "stderr"

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to initialize logger: %v", err), 1)
	}
	defer utils.CloseLogger(logger)

	ctx, cancel := context.WithTimeout(c.Context, cfg.Discovery.ScanTimeout+5*time.Second)
	defer cancel()

	result, err := service.NewDiscoveryService(cfg, logger).ScanPorts(ctx, &service.ScanRequest{ScanType: c.String("type")})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVID:PID\tBRIDGE\tMANUFACTURER\tCONFIDENCE")
	for _, port := range result.Ports {
		name := port.Name
		if name == "" {
			name = port.Location
		}
		ids := "-"
		if port.VendorID != "" {
			ids = port.VendorID + ":" + port.ProductID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\n", name, ids, dash(port.Bridge), dash(port.Manufacturer), port.Confidence)
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the session store schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: withMigrator(func(c *cli.Context, m *database.Migrator) error {
					return m.Up()
				}),
			},
			{
				Name:  "down",
				Usage: "Revert all migrations",
				Action: withMigrator(func(c *cli.Context, m *database.Migrator) error {
					return m.Down()
				}),
			},
			{
				Name:  "version",
				Usage: "Print the current schema version",
				Action: withMigrator(func(c *cli.Context, m *database.Migrator) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "version=%d dirty=%t\n", v, dirty)
					return nil
				}),
			},
			{
				Name:      "force",
				Usage:     "Set the schema version without running migrations",
				ArgsUsage: "VERSION",
				Action: withMigrator(func(c *cli.Context, m *database.Migrator) error {
					v, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return cli.Exit("force requires a numeric VERSION", 2)
					}
					return m.Force(v)
				}),
			},
		},
	}
}

func withMigrator(fn func(c *cli.Context, m *database.Migrator) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to load configuration: %v", err), 2)
		}

		logger, err := utils.NewLogger(&cfg.Logging)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to initialize logger: %v", err), 1)
		}
		defer utils.CloseLogger(logger)

		if err := fn(c, database.NewMigrator(cfg.GetDatabaseURL(), logger)); err != nil {
			logger.Error("Migration command failed", zap.String("command", c.Command.Name), zap.Error(err))
			return err
		}
		return nil
	}
}
