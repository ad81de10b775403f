package main

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taigrr/glimpse/pkg/detect"
)

// batchResult is the outcome of one model in a batch.
type batchResult struct {
	Model  string
	Out    string
	Format detect.Format
	Failed bool
	Err    error
}

func newBatchCmd(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Render every model under a directory",
		Long: "Walk dir and render every file with a model extension. Thumbnails are\n" +
			"written next to each model, or mirrored under --output.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := findModels(args[0])
			if err != nil {
				return err
			}
			if len(models) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No models found.")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Models: %d, Workers: %d\n", len(models), a.cfg.Workers)
			start := time.Now()
			results, err := a.runBatch(cmd.Context(), args[0], outDir, models)
			if err != nil {
				return err
			}
			printSummary(cmd, results, time.Since(start))
			return nil
		},
	}
	cmd.Flags().IntVar(&a.flags.Workers, "workers", 0, "Number of worker goroutines (default: NumCPU)")
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Output directory (default: next to each model)")
	return cmd
}

// findModels lists files under root with a model extension, in walk order.
func findModels(root string) ([]string, error) {
	var models []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && detect.IsModelFile(path) {
			models = append(models, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return models, nil
}

// runBatch renders models with a bounded worker pool. A model that fails
// still gets a placeholder; only write errors are reported per model.
func (a *app) runBatch(ctx context.Context, root, outDir string, models []string) ([]batchResult, error) {
	results := make([]batchResult, len(models))
	var processed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, model := range models {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := outputPath(model, a.cfg.Format)
			if outDir != "" {
				rel, err := filepath.Rel(root, out)
				if err != nil {
					rel = filepath.Base(out)
				}
				out = filepath.Join(outDir, rel)
			}

			res, err := a.renderTo(model, out, a.cfg.Size)
			results[i] = batchResult{Model: model, Out: out, Format: res.Format, Failed: err != nil || res.Failed(), Err: err}
			if err == nil {
				results[i].Err = res.Err
			}
			a.logger.Debug("rendered", "model", model, "n", processed.Add(1), "of", len(models))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printSummary(cmd *cobra.Command, results []batchResult, elapsed time.Duration) {
	w := cmd.OutOrStdout()
	perFormat := make(map[detect.Format]int)
	var failed []batchResult
	for _, r := range results {
		if r.Failed {
			failed = append(failed, r)
			continue
		}
		perFormat[r.Format]++
	}

	fmt.Fprintf(w, "Rendered %d/%d in %.1fs\n", len(results)-len(failed), len(results), elapsed.Seconds())
	for _, f := range detect.Formats {
		if n := perFormat[f]; n > 0 {
			fmt.Fprintf(w, "  %-13s %d\n", f, n)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(w, "\nPlaceholders (%d):\n", len(failed))
		for _, r := range failed[:min(len(failed), 20)] {
			fmt.Fprintf(w, "  %s: %v\n", r.Model, r.Err)
		}
	}
}
