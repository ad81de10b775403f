package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/taigrr/glimpse/internal/config"
)

const triangleOBJ = "v -1 -1 0\nv 1 -1 0\nv 0 1 0\nf 1 2 3\n"

func testApp(t *testing.T, flags config.Flags) *app {
	t.Helper()
	a := &app{flags: flags, logger: log.New(io.Discard)}
	if err := a.cfg.Resolve(flags); err != nil {
		t.Fatal(err)
	}
	return a
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		model, format, want string
	}{
		{"models/box.obj", "png", "models/box.png"},
		{"chair.geo.json", "webp", "chair.geo.webp"},
		{"noext", "png", "noext.png"},
	}
	for _, tc := range tests {
		if got := outputPath(tc.model, tc.format); got != tc.want {
			t.Errorf("outputPath(%q, %q) = %q, want %q", tc.model, tc.format, got, tc.want)
		}
	}
}

func TestFlatten(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(1, 0, color.RGBA{R: 255, A: 255})
	bg := color.RGBA{R: 10, G: 20, B: 30, A: 255}

	out := flatten(img, bg)
	if c := out.RGBAAt(0, 0); c != bg {
		t.Errorf("transparent pixel = %v, want background %v", c, bg)
	}
	if c := out.RGBAAt(1, 0); c != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("opaque pixel = %v, want red", c)
	}
}

func TestFindModels(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.obj"), triangleOBJ)
	writeFile(t, filepath.Join(dir, "sub", "b.bbmodel"), "{}")
	writeFile(t, filepath.Join(dir, "sub", "notes.txt"), "hi")
	writeFile(t, filepath.Join(dir, "tex.png"), "")

	models, err := findModels(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 {
		t.Errorf("findModels = %v, want a.obj and sub/b.bbmodel", models)
	}
}

func TestRenderToWritesImage(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "tri.obj")
	writeFile(t, model, triangleOBJ)

	a := testApp(t, config.Flags{Size: 32, Background: "0,0,255"})
	out := filepath.Join(dir, "out", "tri.png")
	res, err := a.renderTo(model, out, a.cfg.Size)
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed() {
		t.Fatalf("render failed: %v", res.Err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("bounds = %v, want 32x32", b)
	}
	if _, _, _, alpha := img.At(0, 0).RGBA(); alpha != 0xffff {
		t.Errorf("corner alpha = %d, want the opaque background", alpha)
	}
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good.obj"), triangleOBJ)
	writeFile(t, filepath.Join(dir, "nested", "bad.json"), `{"foo": 1}`)
	outDir := filepath.Join(t.TempDir(), "thumbs")

	a := testApp(t, config.Flags{Size: 16, Workers: 2, Format: "webp"})
	models, err := findModels(dir)
	if err != nil {
		t.Fatal(err)
	}
	results, err := a.runBatch(context.Background(), dir, outDir, models)
	if err != nil {
		t.Fatal(err)
	}

	failed := 0
	for _, r := range results {
		if r.Failed {
			failed++
		}
		if _, err := os.Stat(r.Out); err != nil {
			t.Errorf("%s: no thumbnail at %s", r.Model, r.Out)
		}
	}
	if failed != 1 {
		t.Errorf("failed = %d, want the unknown json only", failed)
	}
	if _, err := os.Stat(filepath.Join(outDir, "nested", "bad.webp")); err != nil {
		t.Errorf("batch did not mirror the tree: %v", err)
	}
}
