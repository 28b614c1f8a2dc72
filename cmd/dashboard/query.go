package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/deerbay/olympics-dashboard/internal/engine"
	"github.com/deerbay/olympics-dashboard/internal/models"
)

func buildEngine(ctx context.Context, opts *rootOptions) (*engine.Engine, error) {
	cfg, log, err := opts.setup()
	if err != nil {
		return nil, err
	}
	ds, err := engine.Build(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	// One-shot commands never repeat a query.
	return engine.New(ds, engine.Options{}), nil
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		sel    engine.Selection
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "query VIEW",
		Short: "Evaluate a view under a selection and print the table.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(cmd.Context(), opts)
			if err != nil {
				return err
			}
			table, err := eng.Query(args[0], sel)
			if engine.IsSelectionError(err) {
				table, err = eng.Empty(args[0], sel.SortMode, err.Error())
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), table)
			}
			printTable(cmd.OutOrStdout(), table)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntSliceVar(&sel.Years, "year", nil, "restrict to years (repeatable)")
	flags.StringArrayVar(&sel.Sports, "sport", nil, "restrict to sports (repeatable)")
	flags.StringArrayVar(&sel.Seasons, "season", nil, "restrict to seasons (repeatable)")
	flags.StringArrayVar(&sel.Countries, "country", nil, "restrict to countries (repeatable)")
	flags.StringVar(&sel.Tier, "tier", "", "restrict to a medal tier (Gold, Silver, Bronze, None)")
	flags.StringVar(&sel.SortMode, "sort-mode", "", "hierarchy order for sport_breakdown (sport, country)")
	flags.BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newDimensionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dimensions [NAME]",
		Short: "List the selectable values of every dimension, or of one.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				values, err := eng.Index().ValuesOf(args[0])
				if err != nil {
					return err
				}
				for _, v := range values {
					fmt.Fprintln(out, v)
				}
				return nil
			}

			table := tablewriter.NewWriter(out)
			table.SetAutoWrapText(false)
			table.SetHeader([]string{"Dimension", "Values", "First", "Last"})
			for _, d := range models.Dimensions {
				values, err := eng.Index().Values(d)
				if err != nil {
					return err
				}
				first, last := "", ""
				if len(values) > 0 {
					first, last = values[0], values[len(values)-1]
				}
				table.Append([]string{string(d), strconv.Itoa(len(values)), first, last})
			}
			table.Render()
			return nil
		},
	}
}

func writeJSON(w io.Writer, t *models.Table) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode table: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printTable(w io.Writer, t *models.Table) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)

	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = string(c)
	}
	table.SetHeader(header)
	for _, r := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cells[i] = formatValue(r.Value(c))
		}
		table.Append(cells)
	}
	table.Render()
	if t.Warning != "" {
		fmt.Fprintln(w, "warning:", t.Warning)
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', 4, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}
