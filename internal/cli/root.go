package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the treemap command tree.
func NewRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "treemap",
		Short: "Aggregate table records into a treemap panel",
		Long: `treemap turns the records of a table into a hierarchical tree grouped by
an optional category and serves it as a treemap panel.

Records come from CSV seed files, Google Sheets or SQLite; the field
selection comes from a TOML or YAML properties file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(
		newServeCommand(&envFile),
		newImportCommand(&envFile),
		newAggregateCommand(),
	)
	return root
}
