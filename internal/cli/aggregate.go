package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"treemap/internal/properties"
	"treemap/internal/source/memory"
	"treemap/internal/theme"
)

type aggregateOptions struct {
	csvPath string
	label   string
	value   string
	group   string
	title   string
	pretty  bool
	decor   bool
}

func newAggregateCommand() *cobra.Command {
	var opts aggregateOptions

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Print the treemap tree of a CSV file as JSON",
		Long: `Reads a CSV file (header row first, optional ":number" or ":select" type
suffixes), aggregates --value by --label and optionally groups by --group.
Use "-" to read the CSV from standard input.`,
		Example: `  treemap aggregate --csv data/Budget.csv --label Name --value Amount --group Category`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAggregate(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.csvPath, "csv", "", "CSV file to aggregate (- for stdin)")
	f.StringVar(&opts.label, "label", "", "label field")
	f.StringVar(&opts.value, "value", "", "numeric value field")
	f.StringVar(&opts.group, "group", "", "optional group-by field")
	f.StringVar(&opts.title, "title", "", "root title (default \"Treemap\")")
	f.BoolVar(&opts.pretty, "pretty", true, "indent the JSON output")
	f.BoolVar(&opts.decor, "resolve-colors", false, "resolve colour tokens to hex")
	_ = cmd.MarkFlagRequired("csv")
	_ = cmd.MarkFlagRequired("label")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func runAggregate(ctx context.Context, stdin io.Reader, out io.Writer, opts aggregateOptions) error {
	table := "stdin"
	var r io.Reader = stdin
	if opts.csvPath != "-" {
		f, err := os.Open(opts.csvPath)
		if err != nil {
			return fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		r = f
		table = strings.TrimSuffix(filepath.Base(opts.csvPath), filepath.Ext(opts.csvPath))
	}

	store := memory.New()
	if err := store.LoadCSV(table, r); err != nil {
		return err
	}

	props := properties.Properties{
		Table:        table,
		LabelField:   opts.label,
		ValueField:   opts.value,
		GroupByField: opts.group,
		Title:        opts.title,
	}
	fields, err := store.ListFields(ctx, table)
	if err != nil {
		return err
	}
	sel, err := properties.Resolve(props, fields)
	if err != nil {
		return err
	}
	records, err := store.ListRecords(ctx, table)
	if err != nil {
		return err
	}

	if !sel.IsSet() {
		return errors.New("both --label and --value must name a field")
	}

	tree := sel.Aggregate(records)
	if opts.decor {
		tree = theme.Decorate(tree, theme.DefaultPalette())
	}

	enc := json.NewEncoder(out)
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(tree)
}
