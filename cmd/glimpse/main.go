// glimpse - 3D model thumbnailer
// Renders glTF, GLB, OBJ, Blockbench, Minecraft and Vintage Story models to
// square PNG or WebP thumbnails, or previews them in the terminal.
//
// Commands:
//
//	render <model> [size]  - Write a thumbnail next to the model
//	batch <dir>            - Thumbnail every model under a directory
//	detect <file...>       - Print the detected format of each file
//	view <model>           - Interactive terminal preview
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/taigrr/glimpse/internal/config"
	"github.com/taigrr/glimpse/pkg/pipeline"
)

var version = "dev"

// app holds state shared by every subcommand.
type app struct {
	configPath string
	verbose    bool
	flags      config.Flags

	cfg    config.Config
	logger *log.Logger
}

func main() {
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "glimpse",
		Short: "Render 3D model files to thumbnails",
		Long: "glimpse detects glTF, GLB, OBJ, Blockbench, Minecraft Bedrock/Java and\n" +
			"Vintage Story models and renders them to square thumbnails in software.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to config file (default: ./"+config.FileName+" if present)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Log pipeline stages and warnings")
	pf.IntVar(&a.flags.Size, "size", 0, "Thumbnail edge in pixels (default: 256)")
	pf.IntVar(&a.flags.Supersample, "supersample", 0, "Supersampling factor 1-4 (default: 2)")
	pf.StringVar(&a.flags.Format, "format", "", "Output format: png or webp (default: png)")
	pf.StringVar(&a.flags.Background, "bg", "", "Background color R,G,B or #rrggbb (default: transparent)")

	root.AddCommand(
		newRenderCmd(a),
		newBatchCmd(a),
		newDetectCmd(a),
		newViewCmd(a),
	)
	return root
}

func (a *app) setup() error {
	level := log.WarnLevel
	if a.verbose {
		level = log.DebugLevel
	}
	a.logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:  level,
		Prefix: "glimpse",
	})

	cfg, err := config.LoadDefault(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Resolve(a.flags); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger.Debug("config", "size", cfg.Size, "supersample", cfg.Supersample, "format", cfg.Format, "workers", cfg.Workers)
	return nil
}

func (a *app) renderOptions() pipeline.Options {
	return pipeline.Options{
		Supersample:   a.cfg.Supersample,
		MaxRenderSize: a.cfg.MaxRenderSize,
		Logger:        a.logger,
	}
}
