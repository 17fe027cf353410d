package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kyleking/sqlassist/internal/catalog"
	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/formatter"
)

var schemaFormat string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the table and the words each column answers to",
	Args:  cobra.NoArgs,
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().StringVar(&schemaFormat, "format", "table", "Output format: table or json")
}

func runSchema(cmd *cobra.Command, _ []string) error {
	format, err := formatter.ParseFormat(schemaFormat)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeValidation, "invalid --format")
	}

	cfg, err := GetConfigFromContext(cmd)
	if err != nil {
		return err
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	return printSchema(cmd.OutOrStdout(), cat, format)
}

func printSchema(w io.Writer, cat *catalog.Catalog, format formatter.OutputFormat) error {
	if format == formatter.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(struct {
			Table   string           `json:"table"`
			Columns []catalog.Column `json:"columns"`
		}{cat.TableName(), cat.Columns()})
	}

	_, err := fmt.Fprintln(w, cat.Describe())

	return err
}
