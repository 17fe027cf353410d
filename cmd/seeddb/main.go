// Command seeddb creates a demo database holding the catalog's table filled
// with deterministic sample rows.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/sqlassist/internal/catalog"
	"github.com/kyleking/sqlassist/internal/config"
	"github.com/kyleking/sqlassist/internal/logging"
)

func main() {
	cmd := &cli.Command{
		Name:  "seeddb",
		Usage: "Create a demo database for sqlassist",
		Description: `Creates the catalog's table in a duckdb or sqlite3 file and fills it with
reproducible sample rows. Point sqlassist at the result with
--db-driver and --db-dsn.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "driver", Value: "duckdb", Usage: "duckdb or sqlite3"},
			&cli.StringFlag{Name: "dsn", Value: "demo.duckdb", Usage: "database file to create"},
			&cli.StringFlag{Name: "catalog", Usage: "JSON catalog file (default: built-in ccod_bal)"},
			&cli.IntFlag{Name: "rows", Value: 500, Usage: "number of rows to insert"},
			&cli.IntFlag{Name: "seed", Value: 42, Usage: "random seed"},
			&cli.BoolFlag{Name: "replace", Usage: "drop the table first if it exists"},
			&cli.BoolFlag{Name: "verbose", Usage: "log each batch"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	level := "info"
	if cmd.Bool("verbose") {
		level = "debug"
	}

	logger, err := logging.NewLogger(config.LoggingConfig{Level: level, Format: "text", Output: "stderr"})
	if err != nil {
		return err
	}
	defer logger.Close()

	cat := catalog.Default()
	if path := cmd.String("catalog"); path != "" {
		if cat, err = catalog.Load(path); err != nil {
			return err
		}
	}

	opts := seedOptions{
		Driver:  cmd.String("driver"),
		DSN:     cmd.String("dsn"),
		Rows:    int(cmd.Int("rows")),
		Seed:    uint64(cmd.Int("seed")),
		Replace: cmd.Bool("replace"),
	}

	var n int

	err = logging.LoggerMiddleware(logger, "seed "+cat.TableName(), func() error {
		var seedErr error
		n, seedErr = seed(ctx, cat, opts, logger)

		return seedErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %d rows to %s in %s\n", n, cat.TableName(), opts.DSN)

	return nil
}
