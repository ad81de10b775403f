// Package config loads glimpse.json and merges it with command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// FileName is the config file looked for in the working directory when no
// path is given.
const FileName = "glimpse.json"

// Output formats.
const (
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// Config holds thumbnail settings.
type Config struct {
	Size          int    `json:"size"`
	Supersample   int    `json:"supersample"`
	MaxRenderSize int    `json:"max_render_size"`
	Format        string `json:"format"`
	Workers       int    `json:"workers"`
	// Background is "R,G,B" or "#rrggbb". Empty keeps the background
	// transparent.
	Background string `json:"background"`
}

// Flags holds CLI flag values that override config file settings. Zero
// values leave the file's setting alone.
type Flags struct {
	Size        int
	Supersample int
	Format      string
	Workers     int
	Background  string
}

// Load reads a JSON config file. Fields not set in the file keep their zero
// values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads path, or FileName from the working directory when path
// is empty. A missing default file is not an error.
func LoadDefault(path string) (Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg, err := Load(FileName)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	return cfg, err
}

// Resolve applies flags over the file settings, then fills defaults and
// validates the result.
func (c *Config) Resolve(flags Flags) error {
	if flags.Size > 0 {
		c.Size = flags.Size
	}
	if flags.Supersample > 0 {
		c.Supersample = flags.Supersample
	}
	if flags.Format != "" {
		c.Format = flags.Format
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Background != "" {
		c.Background = flags.Background
	}

	if c.Size <= 0 {
		c.Size = 256
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if c.MaxRenderSize <= 0 {
		c.MaxRenderSize = 1024
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	c.Format = strings.ToLower(strings.TrimPrefix(c.Format, "."))
	switch c.Format {
	case "":
		c.Format = FormatPNG
	case FormatPNG, FormatWebP:
	default:
		return fmt.Errorf("config: unknown output format %q (want png or webp)", c.Format)
	}

	if _, _, err := ParseBackground(c.Background); err != nil {
		return err
	}
	return nil
}

// BackgroundColor returns the resolved background. ok is false when the
// background is transparent.
func (c Config) BackgroundColor() (color.RGBA, bool) {
	bg, ok, _ := ParseBackground(c.Background)
	return bg, ok
}

// ParseBackground parses "R,G,B" or "#rrggbb". An empty string or
// "transparent" yields ok false.
func ParseBackground(s string) (bg color.RGBA, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "transparent") {
		return color.RGBA{}, false, nil
	}

	var rgb [3]uint64
	if hex, found := strings.CutPrefix(s, "#"); found {
		if len(hex) != 6 {
			return color.RGBA{}, false, fmt.Errorf("config: background %q: want #rrggbb", s)
		}
		for i := range rgb {
			if rgb[i], err = strconv.ParseUint(hex[2*i:2*i+2], 16, 8); err != nil {
				return color.RGBA{}, false, fmt.Errorf("config: background %q: %w", s, err)
			}
		}
	} else {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return color.RGBA{}, false, fmt.Errorf("config: background %q: want R,G,B", s)
		}
		for i, p := range parts {
			if rgb[i], err = strconv.ParseUint(strings.TrimSpace(p), 10, 8); err != nil {
				return color.RGBA{}, false, fmt.Errorf("config: background %q: %w", s, err)
			}
		}
	}
	return color.RGBA{R: uint8(rgb[0]), G: uint8(rgb[1]), B: uint8(rgb[2]), A: 255}, true, nil
}
