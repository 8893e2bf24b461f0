package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered factors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			analysis, cleanup, err := opts.analysis()
			if err != nil {
				return err
			}
			defer cleanup()

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Factor", "Category", "Inputs", "Frequency", "Higher is better"})
			for _, f := range analysis.Factors() {
				if f.Metadata == nil {
					t.AppendRow(table.Row{f.Name, "-", "-", "-", "-"})
					continue
				}
				m := f.Metadata
				t.AppendRow(table.Row{f.Name, m.Category, strings.Join(m.Inputs, ","), m.Frequency, m.HigherIsBetter})
			}
			t.Render()
			return nil
		},
	}
}
