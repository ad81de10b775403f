package texture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func encodePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func checker() *Texture {
	tex := New(2, 2)
	tex.SetPixel(0, 0, color.NRGBA{255, 0, 0, 255})
	tex.SetPixel(1, 0, color.NRGBA{0, 255, 0, 255})
	tex.SetPixel(0, 1, color.NRGBA{0, 0, 255, 255})
	tex.SetPixel(1, 1, color.NRGBA{255, 255, 255, 255})
	return tex
}

func TestSampleWrap(t *testing.T) {
	tests := []struct {
		name  string
		wrap  WrapMode
		u, v  float64
		wantR float64
		wantG float64
	}{
		{"inside top-left", WrapRepeat, 0.25, 0.25, 1, 0},
		{"inside top-right", WrapRepeat, 0.75, 0.25, 0, 1},
		{"repeat past one", WrapRepeat, 1.25, 0.25, 1, 0},
		{"repeat negative", WrapRepeat, -0.25, 0.25, 0, 1},
		{"clamp past one", WrapClamp, 1.5, 0.25, 0, 1},
		{"clamp negative", WrapClamp, -0.5, 0.25, 1, 0},
		{"nan samples origin", WrapRepeat, math.NaN(), 0.25, 1, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tex := checker()
			tex.WrapU, tex.WrapV = tc.wrap, tc.wrap
			got := tex.Sample(tc.u, tc.v)
			if got.X != tc.wantR || got.Y != tc.wantG {
				t.Errorf("Sample(%v, %v) = %v, want r=%v g=%v", tc.u, tc.v, got, tc.wantR, tc.wantG)
			}
		})
	}
}

func TestSampleBilinear(t *testing.T) {
	tex := checker()
	tex.Filter = FilterBilinear
	tex.WrapU, tex.WrapV = WrapClamp, WrapClamp

	// The texture center is the average of all four texels.
	got := tex.Sample(0.5, 0.5)
	want := [3]float64{0.5, 0.5, 0.5}
	if math.Abs(got.X-want[0]) > 0.01 || math.Abs(got.Y-want[1]) > 0.01 || math.Abs(got.Z-want[2]) > 0.01 {
		t.Errorf("Sample(0.5, 0.5) = %v, want about %v", got, want)
	}
}

func TestSampleEmptyTexture(t *testing.T) {
	tex := &Texture{}
	if got := tex.Sample(0.3, 0.7); got.X != 1 || got.W != 1 {
		t.Errorf("empty texture sampled %v, want opaque white", got)
	}
}

func TestDecodeFormats(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	want := color.NRGBA{R: 200, G: 40, B: 10, A: 255}
	for y := range 2 {
		for x := range 3 {
			src.SetNRGBA(x, y, want)
		}
	}
	encode := func(enc func(*bytes.Buffer) error) []byte {
		var buf bytes.Buffer
		if err := enc(&buf); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}

	tests := []struct {
		name  string
		data  []byte
		exact bool
	}{
		{"png", encode(func(b *bytes.Buffer) error { return png.Encode(b, src) }), true},
		{"bmp", encode(func(b *bytes.Buffer) error { return bmp.Encode(b, src) }), true},
		{"tiff", encode(func(b *bytes.Buffer) error { return tiff.Encode(b, src, nil) }), true},
		{"jpeg", encode(func(b *bytes.Buffer) error { return jpeg.Encode(b, src, nil) }), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tex, err := Decode(tc.data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if tex.Width != 3 || tex.Height != 2 {
				t.Fatalf("size = %dx%d, want 3x2", tex.Width, tex.Height)
			}
			if got := tex.GetPixel(1, 1); tc.exact && got != want {
				t.Errorf("pixel = %v, want %v", got, want)
			}
		})
	}

	t.Run("tga", func(t *testing.T) {
		// 1x1 uncompressed true-color, one BGR pixel.
		data := []byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 1, 0, 24, 0x20, 10, 40, 200}
		tex, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got := tex.GetPixel(0, 0); got != want {
			t.Errorf("pixel = %v, want %v", got, want)
		}
	})

	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("garbage decoded without error")
	}
}

func TestDecodeDataURI(t *testing.T) {
	payload := []byte("hello")
	enc := base64.StdEncoding.EncodeToString(payload)

	tests := []struct {
		name    string
		uri     string
		want    string
		wantErr bool
	}{
		{"base64", "data:image/png;base64," + enc, "hello", false},
		{"base64 without padding", "data:image/png;base64,aGVsbG8", "hello", false},
		{"percent encoded", "data:text/plain,hi%20there", "hi there", false},
		{"upper case scheme", "DATA:image/png;base64," + enc, "hello", false},
		{"no payload", "data:image/png;base64", "", true},
		{"not a data uri", "texture.png", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeDataURI(tc.uri)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("DecodeDataURI(%q) = %q, want error", tc.uri, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDataURI(%q): %v", tc.uri, err)
			}
			if string(got) != tc.want {
				t.Errorf("DecodeDataURI(%q) = %q, want %q", tc.uri, got, tc.want)
			}
		})
	}
}

// TestResolverUnavailable verifies every failure resolves to "no texture"
// with a recorded miss, never an error.
func TestResolverUnavailable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.png"), []byte("not an image"))

	tests := []struct {
		name string
		base string
		ref  string
		want error
	}{
		{"undecodable file", dir, "broken.png", ErrDecode},
		{"undecodable data uri", dir, "data:image/png;base64,AAAA", ErrDecode},
		{"no base path", "", "skin.png", ErrNoBasePath},
		{"missing file", dir, "missing.png", ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewResolver(tc.base)
			tex, ok := r.Resolve(tc.ref)
			if ok || tex != nil {
				t.Fatalf("Resolve(%q) = %v, %v, want unavailable", tc.ref, tex, ok)
			}
			misses := r.Misses()
			if len(misses) != 1 {
				t.Fatalf("got %d misses, want 1", len(misses))
			}
			if !errors.Is(misses[0], tc.want) {
				t.Errorf("miss = %v, want %v", misses[0], tc.want)
			}
		})
	}
}

func TestResolverStaysInsideBase(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "models")
	secret := filepath.Join(root, "outside", "secret.mtl")
	writeFile(t, secret, []byte("newmtl leak\n"))
	writeFile(t, filepath.Join(base, "ok.mtl"), []byte("newmtl ok\n"))
	writeFile(t, filepath.Join(root, "outside", "skin.png"), encodePNG(t, 1, 1, color.NRGBA{A: 255}))

	refs := []string{
		secret,
		"../outside/secret.mtl",
		"sub/../../outside/secret.mtl",
		`..\outside\secret.mtl`,
		"%2e%2e/outside/secret.mtl",
	}
	for _, ref := range refs {
		t.Run(ref, func(t *testing.T) {
			r := NewResolver(base)
			if data, ok := r.ReadFile(ref); ok {
				t.Fatalf("ReadFile(%q) = %q, want rejected", ref, data)
			}
			misses := r.Misses()
			if len(misses) != 1 || !errors.Is(misses[0], ErrOutsideBase) {
				t.Errorf("misses = %v, want one outside-base miss", misses)
			}
		})
	}

	r := NewResolver(base)
	if _, ok := r.TryFile("../outside/skin.png"); ok {
		t.Error("TryFile escaped the base path")
	}
	if _, ok := r.FromFile("../outside/skin.png"); ok {
		t.Error("FromFile escaped the base path")
	}
	if data, ok := r.ReadFile("sub/../ok.mtl"); !ok || string(data) != "newmtl ok\n" {
		t.Errorf("ReadFile inside base = %q, %v", data, ok)
	}
}

func TestFromFileCaches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "skin.png"), encodePNG(t, 4, 2, color.NRGBA{10, 20, 30, 255}))

	r := NewResolver(dir)
	a, ok := r.FromFile("skin.png")
	if !ok {
		t.Fatalf("FromFile failed: %v", r.Misses())
	}
	if a.Width != 4 || a.Height != 2 {
		t.Errorf("size = %dx%d, want 4x2", a.Width, a.Height)
	}
	b, _ := r.FromFile("./skin.png")
	if a != b {
		t.Error("second load of the same file was decoded again")
	}
	if len(r.TakeMisses()) != 0 || len(r.Misses()) != 0 {
		t.Error("successful loads recorded misses")
	}
}

func TestTryFileIsQuiet(t *testing.T) {
	r := NewResolver(t.TempDir())
	if _, ok := r.TryFile("absent.png"); ok {
		t.Fatal("TryFile found a file that does not exist")
	}
	if len(r.Misses()) != 0 {
		t.Errorf("TryFile recorded %v", r.Misses())
	}
}

func TestAssetTreePrefersDomain(t *testing.T) {
	root := t.TempDir()
	img := encodePNG(t, 1, 1, color.NRGBA{255, 255, 255, 255})
	writeFile(t, filepath.Join(root, "assets", "game", "textures", "block", "stone.png"), img)
	writeFile(t, filepath.Join(root, "assets", "mydomain", "textures", "block", "stone.png"), img)
	writeFile(t, filepath.Join(root, "assets", "other", "textures", "block", "stone.png"), img)

	tree := &AssetTree{Root: root}
	tests := []struct {
		name      string
		preferred []string
		want      string
	}{
		{"explicit domain", []string{"mydomain", "game"}, "mydomain"},
		{"game fallback", []string{"", "game"}, "game"},
		{"lexical fallback", nil, "game"},
		{"unknown preferred domain", []string{"nope"}, "game"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, ok := tree.Lookup("block/stone", tc.preferred...)
			if !ok {
				t.Fatal("Lookup found nothing")
			}
			if got := DomainOf(p); got != tc.want {
				t.Errorf("Lookup resolved to domain %q (%s), want %q", got, p, tc.want)
			}
		})
	}

	if _, ok := tree.Lookup("../escape"); ok {
		t.Error("Lookup accepted a path escaping the tree")
	}
}

func TestFindAssetRoot(t *testing.T) {
	root := t.TempDir()
	shapes := filepath.Join(root, "assets", "mymod", "shapes", "block")
	if err := os.MkdirAll(shapes, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok := FindAssetRoot(shapes)
	if !ok {
		t.Fatal("FindAssetRoot found nothing")
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Errorf("FindAssetRoot = %q, want %q", got, want)
	}
	if d := DomainOf(shapes); d != "mymod" {
		t.Errorf("DomainOf = %q, want mymod", d)
	}
}
