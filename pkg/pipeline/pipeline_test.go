package pipeline

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/taigrr/glimpse/pkg/detect"
	"github.com/taigrr/glimpse/pkg/formats"
	"github.com/taigrr/glimpse/pkg/scene"
	"github.com/taigrr/glimpse/pkg/texture"
)

const triangleOBJ = "v -1 -1 0\nv 1 -1 0\nv 0 1 0\nf 1 2 3\n"

const cycleGLTF = `{
	"asset": {"version": "2.0"},
	"scenes": [{"nodes": [0]}],
	"nodes": [{"children": [1]}, {"children": [0]}]
}`

func isFallback(img *image.RGBA, c color.RGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) != c {
				return false
			}
		}
	}
	return true
}

func TestRenderAlwaysReturnsRequestedSize(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want int
	}{
		{"default size", Request{Data: []byte(triangleOBJ), Hint: "tri.obj"}, DefaultSize},
		{"odd size", Request{Data: []byte(triangleOBJ), Hint: "tri.obj", Size: 37}, 37},
		{"empty data", Request{Size: 16}, 16},
		{"garbage glb", Request{Data: []byte("glTF\x02\x00garbage"), Hint: "x.glb", Size: 24}, 24},
		{"unknown json", Request{Data: []byte(`{"foo": 1}`), Hint: "x.json", Size: 32}, 32},
		{"gltf cycle", Request{Data: []byte(cycleGLTF), Hint: "x.gltf", Size: 48}, 48},
		{"larger than cap", Request{Data: []byte(triangleOBJ), Hint: "tri.obj", Size: 1500}, 1500},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img := Render(tc.req)
			if b := img.Bounds(); b.Dx() != tc.want || b.Dy() != tc.want {
				t.Errorf("bounds = %v, want %dx%d", b, tc.want, tc.want)
			}
		})
	}
}

func TestRenderFailures(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		kind     error
		failedAt Stage
	}{
		{"unknown json", Request{Data: []byte(`{"foo": 1}`), Hint: "x.json"}, scene.ErrUnsupportedFormat, StageDetected},
		{"no hint binary", Request{Data: []byte{0, 1, 2, 3}}, scene.ErrUnsupportedFormat, StageDetected},
		{"gltf cycle", Request{Data: []byte(cycleGLTF), Hint: "x.gltf"}, scene.ErrMalformedInput, StageDetected},
		{"broken json", Request{Data: []byte(`{"elements": [`), Hint: "x.bbmodel"}, scene.ErrMalformedInput, StageDetected},
		{"no faces", Request{Data: []byte("v 0 0 0\nv 1 0 0\n"), Hint: "x.obj"}, scene.ErrEmptyScene, StageParsed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.Size = 8
			res := RenderDetailed(tc.req, Options{})
			if !res.Failed() {
				t.Fatalf("stage = %v, want failed", res.Stage)
			}
			if !errors.Is(res.Err, tc.kind) {
				t.Errorf("err = %v, want %v", res.Err, tc.kind)
			}
			if res.FailedAt != tc.failedAt {
				t.Errorf("failed at %v, want %v", res.FailedAt, tc.failedAt)
			}
			if !isFallback(res.Image, DefaultFallback) {
				t.Error("image is not the fallback bitmap")
			}
		})
	}
}

func TestCustomFallback(t *testing.T) {
	c := color.RGBA{R: 10, G: 20, B: 30, A: 255}
	res := RenderDetailed(Request{Size: 4}, Options{Fallback: c})
	if !isFallback(res.Image, c) {
		t.Errorf("fallback pixel = %v, want %v", res.Image.RGBAAt(0, 0), c)
	}
}

func TestRenderTriangle(t *testing.T) {
	res := RenderDetailed(Request{Data: []byte(triangleOBJ), Hint: "tri.obj", Size: 64}, Options{Supersample: 2})
	if res.Err != nil || res.Stage != StageDone {
		t.Fatalf("stage %v err %v, want done", res.Stage, res.Err)
	}
	if res.Format != detect.Obj || res.Triangles != 1 {
		t.Errorf("format %v, %d triangles", res.Format, res.Triangles)
	}
	if c := res.Image.RGBAAt(32, 32); c.A == 0 {
		t.Error("center pixel is empty")
	}
	if c := res.Image.RGBAAt(0, 0); c.A != 0 {
		t.Errorf("corner pixel = %v, want transparent background", c)
	}
}

func TestSupersampleClamped(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative", Options{Supersample: -3}},
		{"too large", Options{Supersample: 99}},
		{"capped", Options{Supersample: 4, MaxRenderSize: 20}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := RenderDetailed(Request{Data: []byte(triangleOBJ), Hint: "tri.obj", Size: 40}, tc.opts)
			if b := res.Image.Bounds(); b.Dx() != 40 || b.Dy() != 40 {
				t.Errorf("bounds = %v, want 40x40", b)
			}
		})
	}
}

func TestSizeClamped(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"render", Request{Data: []byte(triangleOBJ), Hint: "tri.obj", Size: 5000}},
		{"fallback", Request{Data: []byte("garbage"), Hint: "x.glb", Size: 5000}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := RenderDetailed(tc.req, Options{MaxSize: 64})
			if b := res.Image.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
				t.Errorf("bounds = %v, want 64x64", b)
			}
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	req := Request{Data: []byte(triangleOBJ), Hint: "tri.obj", Size: 48}
	want := Render(req)

	var wg sync.WaitGroup
	results := make([]*image.RGBA, 8)
	for i := range results {
		wg.Go(func() {
			results[i] = Render(req)
		})
	}
	wg.Wait()

	for i, got := range results {
		for p := range want.Pix {
			if got.Pix[p] != want.Pix[p] {
				t.Fatalf("render %d differs at byte %d", i, p)
			}
		}
	}
}

func TestParserPanicRecovered(t *testing.T) {
	orig := parseScene
	t.Cleanup(func() { parseScene = orig })
	parseScene = func(formats.Asset, detect.Format, *texture.Resolver) (*scene.Scene, error) {
		panic("boom")
	}

	res := RenderDetailed(Request{Data: []byte(triangleOBJ), Hint: "tri.obj", Size: 8}, Options{})
	if !errors.Is(res.Err, scene.ErrMalformedInput) {
		t.Errorf("err = %v, want malformed input", res.Err)
	}
	if !isFallback(res.Image, DefaultFallback) {
		t.Error("image is not the fallback bitmap")
	}
}

func TestRenderFile(t *testing.T) {
	dir := t.TempDir()
	obj := "mtllib box.mtl\nusemtl skin\n" + triangleOBJ
	mtl := "newmtl skin\nKd 1 0 0\nmap_Kd missing.png\n"
	if err := os.WriteFile(filepath.Join(dir, "box.obj"), []byte(obj), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "box.mtl"), []byte(mtl), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := RenderFile(filepath.Join(dir, "box.obj"), 32, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stage != StageDone {
		t.Fatalf("stage = %v (%v), want done", res.Stage, res.Err)
	}
	missing := false
	for _, w := range res.Warnings {
		if errors.Is(w, scene.ErrMissingResource) {
			missing = true
		}
	}
	if !missing {
		t.Errorf("warnings = %v, want a missing texture", res.Warnings)
	}

	if _, err := RenderFile(filepath.Join(dir, "nope.obj"), 32, Options{}); !errors.Is(err, scene.ErrIO) {
		t.Errorf("missing file err = %v, want ErrIO", err)
	}
}

func TestStageString(t *testing.T) {
	tests := map[Stage]string{
		StageStart:  "start",
		StageDone:   "done",
		StageFailed: "failed",
		Stage(42):   "invalid",
	}
	for st, want := range tests {
		if got := st.String(); got != want {
			t.Errorf("Stage(%d).String() = %q, want %q", int(st), got, want)
		}
	}
}

func TestLoadScene(t *testing.T) {
	s, res := LoadScene(Request{Data: []byte(triangleOBJ), Hint: "tri.obj"}, Options{})
	if res.Failed() || res.Stage != StageParsed {
		t.Fatalf("stage = %v (%v), want parsed", res.Stage, res.Err)
	}
	if s == nil || s.TriangleCount() != 1 {
		t.Fatalf("scene = %v, want one triangle", s)
	}
	if res.Image != nil {
		t.Error("LoadScene should not render")
	}

	if s, res := LoadScene(Request{Data: []byte("{}"), Hint: "x.json"}, Options{}); s != nil || !res.Failed() {
		t.Errorf("unknown json: scene %v, stage %v", s, res.Stage)
	}
}
