package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/taigrr/glimpse/pkg/pipeline"
)

func newRenderCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render <model> [size]",
		Short: "Render one model to a thumbnail",
		Long: "Render one model to a square thumbnail written next to it as <model>.png\n" +
			"(or .webp). Unreadable or unsupported models produce a gray placeholder.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size := a.cfg.Size
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid size %q", args[1])
				}
				size = n
			}
			if out == "" {
				out = outputPath(args[0], a.cfg.Format)
			}

			res, err := a.renderTo(args[0], out, size)
			if err != nil {
				return err
			}
			if res.Failed() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: placeholder written to %s (%v)\n", args[0], out, res.Err)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v, %d triangles -> %s\n", args[0], res.Format, res.Triangles, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output path (default: model path with the format's extension)")
	return cmd
}

// renderTo renders model and writes the thumbnail to out.
func (a *app) renderTo(model, out string, size int) (pipeline.Result, error) {
	res, err := pipeline.RenderFile(model, size, a.renderOptions())
	if err != nil {
		return res, err
	}

	img := res.Image
	if bg, ok := a.cfg.BackgroundColor(); ok && !res.Failed() {
		img = flatten(img, bg)
	}
	if err := writeImage(out, img, a.cfg.Format); err != nil {
		return res, fmt.Errorf("write %s: %w", out, err)
	}
	return res, nil
}
