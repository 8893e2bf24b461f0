package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/usecase"
	"FinFactor/pkg/util"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		ff         factorFlags
		periods    string
		method     string
		nQuantiles int
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Evaluate a factor with information coefficients and quantile returns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := ff.computeInput()
			if err != nil {
				return err
			}
			ps, err := util.ParseIntList(periods)
			if err != nil {
				return fmt.Errorf("periods: %w", err)
			}
			in := usecase.AnalyzeInput{
				ComputeInput: base,
				Periods:      ps,
				Method:       models.ICMethod(method),
				NQuantiles:   nQuantiles,
			}

			analysis, cleanup, err := opts.analysis()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			report, err := analysis.Analyze(ctx, in)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			renderReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	ff.bind(cmd)
	fl := cmd.Flags()
	fl.StringVar(&periods, "periods", "", "comma separated forward return periods in trading days (defaults from config)")
	fl.StringVar(&method, "method", "", "IC method (spearman, pearson)")
	fl.IntVar(&nQuantiles, "quantiles", 0, "number of quantile buckets")
	fl.BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}
