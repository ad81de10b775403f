// Package pipeline turns model bytes into a square thumbnail: detect the
// format, parse it into a scene, frame it and rasterize it. Every request
// produces an image; failures fall back to a neutral bitmap.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/image/draw"

	"github.com/taigrr/glimpse/pkg/detect"
	"github.com/taigrr/glimpse/pkg/formats"
	"github.com/taigrr/glimpse/pkg/render"
	"github.com/taigrr/glimpse/pkg/scene"
)

const (
	// DefaultSize is the thumbnail edge used when a request asks for none.
	DefaultSize = 256
	// DefaultMaxRenderSize caps the rasterized edge, supersampling included.
	DefaultMaxRenderSize = 1024
	// MaxSupersample is the largest supersampling factor honored.
	MaxSupersample = 4
	// DefaultMaxSize caps the thumbnail edge itself.
	DefaultMaxSize = 4096
)

// DefaultFallback is the opaque neutral gray drawn when a request fails.
var DefaultFallback = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// Request is one thumbnail request.
type Request struct {
	Data []byte
	// Hint is the file name or extension the data came from.
	Hint string
	// BasePath is the directory companion files resolve against.
	BasePath string
	// Size is the thumbnail edge in pixels; zero or less means DefaultSize.
	// Sizes above Options.MaxSize are clamped to it.
	Size int
}

// Options tune a render. The zero value is valid.
type Options struct {
	// Supersample renders at a multiple of Size and filters down. Values
	// are clamped to 1..MaxSupersample.
	Supersample int
	// MaxRenderSize caps the rasterized edge; zero means
	// DefaultMaxRenderSize. The result is rescaled to exactly Size.
	MaxRenderSize int
	// MaxSize caps the output edge, fallback included; zero means
	// DefaultMaxSize.
	MaxSize int
	// Fallback is the color of the failure bitmap; nil means DefaultFallback.
	Fallback color.Color
	// Logger receives stage transitions and warnings. Nil discards.
	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	o.Supersample = max(1, min(o.Supersample, MaxSupersample))
	if o.MaxRenderSize <= 0 {
		o.MaxRenderSize = DefaultMaxRenderSize
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.Fallback == nil {
		o.Fallback = DefaultFallback
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// Result is the outcome of one request.
type Result struct {
	// Image is always Size×Size, with Size clamped to Options.MaxSize.
	Image  *image.RGBA
	Format detect.Format
	// Stage is StageDone on success and StageFailed otherwise.
	Stage Stage
	// FailedAt is the last stage reached before failing.
	FailedAt Stage
	// Err is nil on success. It matches one of the scene error kinds.
	Err       error
	Warnings  []scene.Warning
	Triangles int
}

// Failed reports whether the fallback bitmap was produced.
func (r Result) Failed() bool {
	return r.Stage == StageFailed
}

// parseScene is replaced in tests.
var parseScene = formats.Parse

// Render produces a req.Size thumbnail for req. It never fails.
func Render(req Request) *image.RGBA {
	return RenderDetailed(req, Options{}).Image
}

// RenderDetailed is Render with options and a report of what happened.
func RenderDetailed(req Request, opts Options) Result {
	opts = opts.withDefaults()
	size := req.Size
	if size <= 0 {
		size = DefaultSize
	}
	size = min(size, opts.MaxSize)

	s, res := load(req, opts)
	if res.Failed() {
		res.Image = FallbackImage(size, opts.Fallback)
		return res
	}
	logger := opts.Logger.With("model", req.Hint)

	cam := render.FrameScene(s)
	logger.Debug("stage", "from", res.Stage, "to", StageFramed, "eye", cam.Eye, "target", cam.Target)
	res.Stage = StageFramed

	res.Image = rasterize(s, cam, size, opts)
	logger.Debug("stage", "from", res.Stage, "to", StageRendered)
	logger.Debug("stage", "from", StageRendered, "to", StageDone)
	res.Stage = StageDone
	return res
}

// LoadScene runs the detect and parse stages only. On success the returned
// Result is at StageParsed; otherwise it has failed and the scene is nil.
func LoadScene(req Request, opts Options) (*scene.Scene, Result) {
	return load(req, opts.withDefaults())
}

func load(req Request, opts Options) (*scene.Scene, Result) {
	logger := opts.Logger.With("model", req.Hint)
	res := Result{Stage: StageStart}
	advance := func(st Stage, kv ...any) {
		logger.Debug("stage", append([]any{"from", res.Stage, "to", st}, kv...)...)
		res.Stage = st
	}
	fail := func(err error) (*scene.Scene, Result) {
		logger.Warn("model rejected", "stage", res.Stage, "err", err)
		res.FailedAt = res.Stage
		res.Stage = StageFailed
		res.Err = err
		return nil, res
	}

	res.Format = detect.Detect(req.Data, req.Hint)
	advance(StageDetected, "format", res.Format)
	if res.Format == detect.Unknown {
		return fail(fmt.Errorf("%w: %q", scene.ErrUnsupportedFormat, req.Hint))
	}

	s, err := parse(formats.Asset{Data: req.Data, Hint: req.Hint, BasePath: req.BasePath}, res.Format)
	if err != nil {
		return fail(err)
	}
	res.Warnings = s.Warnings
	res.Triangles = s.TriangleCount()
	for _, w := range s.Warnings {
		logger.Info("warning", "kind", w.Kind, "detail", w.Detail)
	}
	advance(StageParsed, "triangles", res.Triangles, "warnings", len(res.Warnings))
	if res.Triangles == 0 {
		return fail(fmt.Errorf("%w: %v model has no triangles", scene.ErrEmptyScene, res.Format))
	}
	return s, res
}

// parse runs the parser, turning a panic into ErrMalformedInput.
func parse(asset formats.Asset, format detect.Format) (s *scene.Scene, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, scene.Malformed("%v parser panicked: %v", format, r)
		}
	}()
	return parseScene(asset, format, nil)
}

func rasterize(s *scene.Scene, cam render.Camera, size int, opts Options) *image.RGBA {
	edge := min(size*opts.Supersample, opts.MaxRenderSize)
	edge = max(edge, 1)

	fb := render.NewFramebuffer(edge, edge)
	render.NewRasterizer(fb, cam).DrawScene(s)
	img := fb.ToImage()

	switch {
	case edge > size:
		return render.Downsample(img, size)
	case edge < size:
		return render.Resample(img, size)
	}
	return img
}

// FallbackImage returns a size×size image filled with c.
func FallbackImage(size int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, max(size, 0), max(size, 0)))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// ErrRead is returned by RenderFile when the model itself cannot be read.
var ErrRead = errors.New("read model")

// RenderFile renders the model at path, resolving companion files against
// its directory. Only a failure to read path itself is returned as an
// error; every other failure is reported in the Result.
func RenderFile(path string, size int, opts Options) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w: %w", ErrRead, scene.ErrIO, err)
	}
	return RenderDetailed(Request{
		Data:     data,
		Hint:     filepath.Base(path),
		BasePath: filepath.Dir(path),
		Size:     size,
	}, opts), nil
}
