package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/pipeline"
	"github.com/KaramelBytes/chartloom-cli/internal/producer"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	batchOutDir   string
	batchWorkers  int
	batchSummary  bool
	batchQuiet    bool
	batchFailFast bool
)

type batchItem struct {
	path    string
	outBase string
	size    int64
	view    pipeline.View
	skipped int
	err     error
}

var batchCmd = &cobra.Command{
	Use:   "batch <files...>",
	Short: "Render many datasets concurrently into view files",
	Long: `Batch renders every matched file (glob patterns allowed) into
<out-dir>/<name>.view.json. Files sharing a basename get a __N suffix.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(batchOutDir); err != nil {
			return fmt.Errorf("create out dir: %w", err)
		}

		// Output names are fixed up front so concurrent workers never race
		// on the collision suffix.
		items := make([]*batchItem, len(files))
		used := map[string]int{}
		for i, path := range files {
			base := filepath.Base(path)
			safe := strings.TrimSuffix(base, filepath.Ext(base))
			used[safe]++
			if n := used[safe]; n > 1 {
				safe = fmt.Sprintf("%s__%d", safe, n)
			}
			items[i] = &batchItem{path: path, outBase: safe}
		}

		workers := cfg.BatchWorkers
		if batchWorkers > 0 {
			workers = batchWorkers
		}
		pl := newPipeline(cmd)
		var opt analysis.Options
		if batchSummary {
			opt, err = analyzeOptions(cmd)
			if err != nil {
				return err
			}
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(workers)
		for _, it := range items {
			g.Go(func() error {
				it.err = renderOne(ctx, pl, it, opt)
				if batchFailFast {
					return it.err
				}
				return nil
			})
		}
		firstErr := g.Wait()

		failed := 0
		total := len(items)
		out := cmd.OutOrStdout()
		for i, it := range items {
			if it.err != nil {
				failed++
				fmt.Fprintf(out, "✗ [%d/%d] %s: %v\n", i+1, total, it.path, it.err)
				continue
			}
			if batchQuiet {
				continue
			}
			fmt.Fprintf(out, "✓ [%d/%d] %s (%s, %s rows → %s shown)\n", i+1, total,
				filepath.Base(it.path), humanize.Bytes(uint64(it.size)),
				humanize.Comma(int64(it.view.SourceRows)), humanize.Comma(int64(len(it.view.Data))))
			if it.skipped > 0 {
				fmt.Fprintf(out, "⚠ Warning: %s: skipped %s malformed rows\n", filepath.Base(it.path), humanize.Comma(int64(it.skipped)))
			}
		}
		if batchFailFast && firstErr != nil {
			return firstErr
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, total)
		}
		if !batchQuiet {
			fmt.Fprintf(out, "✓ Rendered %d files into %s\n", total, batchOutDir)
		}
		return nil
	},
}

func renderOne(ctx context.Context, pl *pipeline.Pipeline, it *batchItem, opt analysis.Options) error {
	if st, err := os.Stat(it.path); err == nil {
		it.size = st.Size()
	}
	in, err := producer.FileProducer{Path: it.path, MaxBytes: cfg.MaxInputBytes}.Produce(ctx)
	if err != nil {
		return err
	}
	it.skipped = in.Skipped
	view, err := pl.RunText(in.Kind, in.Text)
	if err != nil {
		return err
	}
	it.view = view
	data, err := utils.PrettyJSON(view)
	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}
	if err := utils.SafeWriteFile(filepath.Join(batchOutDir, it.outBase+".view.json"), data); err != nil {
		return err
	}
	if !batchSummary {
		return nil
	}
	rep, err := analyzeFile(pl, it.path, opt)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(batchOutDir, it.outBase+".summary.md"), []byte(rep.Markdown()))
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "views", "directory for the rendered views")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "concurrent workers (default: batch_workers from config)")
	batchCmd.Flags().BoolVar(&batchSummary, "summary", false, "also write a Markdown profile next to each view")
	batchCmd.Flags().BoolVarP(&batchQuiet, "quiet", "q", false, "only report failures")
	batchCmd.Flags().BoolVar(&batchFailFast, "fail-fast", false, "stop scheduling files after the first failure")
}
