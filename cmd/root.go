package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kyleking/sqlassist/internal/config"
	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagDSN      string
	flagDriver   string
	flagCatalog  string
	flagLogLevel string
	flagVerbose  bool
)

type configKey struct{}

var rootCmd = &cobra.Command{
	Use:   "sqlassist",
	Short: "Ask questions of a database table in plain English",
	Long: `sqlassist turns natural-language questions about a single database table
into validated, parameterized SELECT statements, runs them read-only and
prints the rows. Follow-up questions refine the previous one:

  sqlassist ask "show balances over 5000 for account 123456789012"
  sqlassist chat
  sqlassist serve --addr :8000`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command and reports any error on stderr
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil && !errors.Is(err, errAnswerFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		for _, s := range errors.Suggestions(err) {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", s)
		}
	}

	return err
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagDSN, "db-dsn", "", "Target database DSN (overrides SQLASSIST_DATABASE_URL)")
	flags.StringVar(&flagDriver, "db-driver", "", "Target database driver: pgx, duckdb or sqlite3")
	flags.StringVar(&flagCatalog, "catalog", "", "Path to a JSON table catalog (default: built-in ccod_bal)")
	flags.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "Shorthand for --log-level debug")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig resolves file, environment and flag settings once per
// invocation and stores the result on the command context
func loadConfig(cmd *cobra.Command, _ []string) error {
	overrides := map[string]any{
		"db-dsn":    flagDSN,
		"db-driver": flagDriver,
		"catalog":   flagCatalog,
		"log-level": flagLogLevel,
		"verbose":   flagVerbose,
	}

	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		overrides["addr"] = f.Value.String()
	}

	if f := cmd.Flags().Lookup("session-backend"); f != nil && f.Changed {
		overrides["session-backend"] = f.Value.String()
	}

	cfg, err := config.LoadConfigWithOverrides(overrides)
	if err != nil {
		logging.SetupFallbackLogger()
		return err
	}

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		logging.SetupFallbackLogger()
		logging.Warnf("falling back to stderr logging: %v", err)
	}

	cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))

	return nil
}

// GetConfigFromContext returns the configuration loaded by the root command
func GetConfigFromContext(cmd *cobra.Command) (*config.Config, error) {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg, nil
	}

	return nil, errors.NewConfigError("configuration was not loaded", "")
}
