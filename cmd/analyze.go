package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/parser"
	"github.com/KaramelBytes/chartloom-cli/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	anaOutputPath string
	anaSampleRows int
	anaMaxRows    int
	anaGroupBy    []string
	anaCorr       bool
	anaOutliers   bool
	anaOutlierThr float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Profile a CSV/JSON dataset and produce a concise Markdown summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := analyzeOptions(cmd)
		if err != nil {
			return err
		}
		rep, err := analyzeFile(newPipeline(cmd), args[0], opt)
		if err != nil {
			return err
		}
		md := rep.Markdown()
		if err := writeOutput(cmd, anaOutputPath, []byte(md)); err != nil {
			return err
		}
		if anaOutputPath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis to %s\n", anaOutputPath)
		}
		return nil
	},
}

func analyzeOptions(cmd *cobra.Command) (analysis.Options, error) {
	opt := analysis.DefaultOptions()
	if anaSampleRows >= 0 {
		opt.SampleRows = anaSampleRows
	}
	if anaMaxRows >= 0 {
		opt.MaxRows = anaMaxRows
	}
	opt.GroupBy = anaGroupBy
	opt.Correlations = anaCorr
	if cmd.Flags().Changed("outliers") {
		opt.Outliers = anaOutliers
	} else {
		opt.Outliers = true
	}
	if cmd.Flags().Changed("outlier-threshold") {
		if anaOutlierThr <= 0 {
			return opt, fmt.Errorf("--outlier-threshold must be positive")
		}
		opt.OutlierThreshold = anaOutlierThr
	}
	return opt, nil
}

// analyzeFile profiles path and, when the dataset can be charted, attaches
// the chart axes and description the view would carry.
func analyzeFile(pl *pipeline.Pipeline, path string, opt analysis.Options) (*analysis.Report, error) {
	res, err := parser.ParseFile(path, cfg.MaxInputBytes)
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, &parser.FileError{Path: path, Err: fmt.Errorf("file empty or malformed: %w", pipeline.ErrNoData)}
	}
	rep := analysis.Profile(filepath.Base(path), res.Records, opt)
	if res.Skipped > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d malformed CSV rows were skipped", res.Skipped))
	}
	view, err := pl.Run(res.Records)
	switch {
	case err == nil:
		axes := view.Axes
		rep.Axes = &axes
		rep.Description = view.Description
	case errors.Is(err, pipeline.ErrNoData):
		rep.Warnings = append(rep.Warnings, "no chart view: records could not be grouped")
	default:
		return nil, err
	}
	return rep, nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "write summary to this path instead of stdout")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 5, "number of sample rows to include in the summary")
	analyzeCmd.Flags().IntVar(&anaMaxRows, "max-rows", 100000, "maximum rows to profile (0 = unlimited)")
	analyzeCmd.Flags().StringSliceVar(&anaGroupBy, "group-by", nil, "fields to group by (comma-separated or repeated)")
	analyzeCmd.Flags().BoolVar(&anaCorr, "correlations", false, "compute Pearson correlations among numeric fields")
	analyzeCmd.Flags().BoolVar(&anaOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	analyzeCmd.Flags().Float64Var(&anaOutlierThr, "outlier-threshold", 3.5, "robust z-score threshold for outliers")
}
