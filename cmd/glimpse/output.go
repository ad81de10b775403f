package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"

	"github.com/taigrr/glimpse/internal/config"
)

// outputPath swaps the model's extension for the output format's.
func outputPath(model, format string) string {
	return strings.TrimSuffix(model, filepath.Ext(model)) + "." + format
}

// flatten composites img over an opaque background.
func flatten(img *image.RGBA, bg color.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Over)
	return out
}

// writeImage encodes img to path as png or webp.
func writeImage(path string, img image.Image, format string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	switch format {
	case config.FormatWebP:
		if err := nativewebp.Encode(f, img, nil); err != nil {
			return fmt.Errorf("webp encode: %w", err)
		}
	default:
		if err := png.Encode(f, img); err != nil {
			return fmt.Errorf("png encode: %w", err)
		}
	}
	return nil
}
