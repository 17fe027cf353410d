package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/kyleking/sqlassist/internal/config"
	"github.com/kyleking/sqlassist/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display the active configuration",
	Long: `Show the configuration after merging the config file, SQLASSIST_*
environment variables and command-line flags. Passwords in DSNs are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the active configuration to the config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigSave,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), config.ConfigPath())
		return err
	},
}

func init() {
	configCmd.AddCommand(configSaveCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := GetConfigFromContext(cmd)
	if err != nil {
		return err
	}

	return printConfig(cmd.OutOrStdout(), cfg)
}

func printConfig(w io.Writer, cfg *config.Config) error {
	masked := *cfg
	masked.Database.DSN = redactDSN(cfg.Database.DSN)
	masked.Session.DSN = redactDSN(cfg.Session.DSN)

	data, err := json.MarshalIndent(masked, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeInternal, "failed to marshal config")
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}

func runConfigSave(cmd *cobra.Command, _ []string) error {
	cfg, err := GetConfigFromContext(cmd)
	if err != nil {
		return err
	}

	if err := config.SaveConfig(cfg); err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "failed to save config")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved.")

	return nil
}

// redactDSN masks the password of URL-style DSNs. Other forms are returned
// unchanged.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}

	return u.Redacted()
}
