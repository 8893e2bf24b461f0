package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/repository"
	"FinFactor/internal/usecase"
)

type factorFlags struct {
	name      string
	params    []string
	universe  string
	start     string
	end       string
	normalize string
	axis      string
}

func (f *factorFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.name, "factor", "", "factor name")
	fl.StringSliceVar(&f.params, "param", nil, "factor parameter as key=value (repeatable)")
	fl.StringVar(&f.universe, "universe", "", "comma separated instrument identifiers")
	fl.StringVar(&f.start, "start", "-1y", "start date (YYYY-MM-DD, today, or relative like -6m)")
	fl.StringVar(&f.end, "end", "today", "end date")
	fl.StringVar(&f.normalize, "normalize", "", "normalization method (zscore, rank, winsorize)")
	fl.StringVar(&f.axis, "axis", string(models.AxisCrossSection), "normalization axis (cross_section, time_series)")
	_ = cmd.MarkFlagRequired("factor")
	_ = cmd.MarkFlagRequired("universe")
}

func newComputeCmd(opts *rootOptions) *cobra.Command {
	var (
		ff  factorFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute factor values over a universe and date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := ff.computeInput()
			if err != nil {
				return err
			}
			analysis, cleanup, err := opts.analysis()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			res, err := analysis.Compute(ctx, in)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			return writeValues(cmd, res, out)
		},
	}
	ff.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write values to a .csv or .xlsx file instead of stdout")
	return cmd
}

func (f *factorFlags) computeInput() (usecase.ComputeInput, error) {
	params, err := parseParams(f.params)
	if err != nil {
		return usecase.ComputeInput{}, err
	}
	start, end, err := parseRange(f.start, f.end)
	if err != nil {
		return usecase.ComputeInput{}, err
	}
	in := usecase.ComputeInput{
		Factor:   models.FactorSpec{Name: f.name, Params: params},
		Universe: splitUniverse(f.universe),
		Start:    start,
		End:      end,
	}
	if f.normalize != "" {
		np, err := normalizationParams(f.normalize, f.axis)
		if err != nil {
			return usecase.ComputeInput{}, err
		}
		in.Normalize = np
	}
	return in, nil
}

func writeValues(cmd *cobra.Command, res *usecase.ComputeOutput, out string) error {
	if out == "" {
		renderValues(cmd.OutOrStdout(), res)
		return nil
	}
	switch strings.ToLower(filepath.Ext(out)) {
	case ".xlsx":
		if err := writeXLSX(out, res); err != nil {
			return err
		}
	case ".csv":
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		if err := repository.WriteTableCSV(f, res.Values); err != nil {
			_ = f.Close()
			return fmt.Errorf("write %s: %w", out, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", out, err)
		}
	default:
		return fmt.Errorf("unsupported output extension %q (want .csv or .xlsx)", filepath.Ext(out))
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d dates x %d instruments to %s (coverage %.1f%%)\n",
		res.Values.NumRows(), res.Values.NumCols(), out, res.Coverage*100)
	return nil
}
