package main

import (
	"context"
	"fmt"
	"image/color"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/harmonica"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/spf13/cobra"

	"github.com/taigrr/glimpse/pkg/pipeline"
	"github.com/taigrr/glimpse/pkg/render"
	"github.com/taigrr/glimpse/pkg/scene"
)

const viewFPS = 30

// maxPitch keeps the orbit short of the poles, in radians.
const maxPitch = 1.4

// viewBackground is used when no background is configured.
var viewBackground = color.RGBA{R: 30, G: 30, B: 40, A: 255}

var (
	wireColor   = color.RGBA{R: 0, G: 255, B: 128, A: 255}
	boundsColor = color.RGBA{R: 255, G: 200, B: 0, A: 255}
)

func newViewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "view <model>",
		Short: "Preview a model in the terminal",
		Long: "Orbit the thumbnail camera around a model in the terminal.\n\n" +
			"Controls:\n" +
			"  Arrows/WASD - Spin\n" +
			"  Mouse drag  - Spin\n" +
			"  Space       - Random spin\n" +
			"  X           - Toggle wireframe\n" +
			"  B           - Toggle bounding box\n" +
			"  R           - Reset view\n" +
			"  Q/Esc       - Quit",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, res := pipeline.LoadScene(pipeline.Request{
				Data:     data,
				Hint:     filepath.Base(args[0]),
				BasePath: filepath.Dir(args[0]),
			}, a.renderOptions())
			if res.Failed() {
				return fmt.Errorf("%s: %w", args[0], res.Err)
			}

			bg, ok := a.cfg.BackgroundColor()
			if !ok {
				bg = viewBackground
			}
			return runView(cmd.Context(), s, bg)
		},
	}
}

// spinAxis tracks one orbit angle. Velocity decays toward zero through a
// critically damped spring.
type spinAxis struct {
	Position  float64
	Velocity  float64
	velSpring harmonica.Spring
	velAccel  float64
}

func newSpinAxis() spinAxis {
	return spinAxis{velSpring: harmonica.NewSpring(harmonica.FPS(viewFPS), 4.0, 1.0)}
}

func (a *spinAxis) update() {
	a.Position += a.Velocity
	a.Velocity, a.velAccel = a.velSpring.Update(a.Velocity, a.velAccel, 0)
}

// viewState is the interactive state of the preview.
type viewState struct {
	yaw, pitch   spinAxis
	wireframe    bool
	showBounds   bool
	mouseDown    bool
	lastX, lastY int
}

func newViewState() *viewState {
	return &viewState{yaw: newSpinAxis(), pitch: newSpinAxis()}
}

func (v *viewState) reset() {
	v.yaw, v.pitch = newSpinAxis(), newSpinAxis()
}

func (v *viewState) impulse(yaw, pitch float64) {
	v.yaw.Velocity += yaw
	v.pitch.Velocity += pitch
}

// handle applies one terminal event. It reports false when the viewer
// should exit.
func (v *viewState) handle(ev uv.Event) bool {
	const kick = 0.08
	switch ev := ev.(type) {
	case uv.KeyPressEvent:
		switch {
		case ev.MatchString("q", "escape", "ctrl+c"):
			return false
		case ev.MatchString("a", "left"):
			v.impulse(-kick, 0)
		case ev.MatchString("d", "right"):
			v.impulse(kick, 0)
		case ev.MatchString("w", "up"):
			v.impulse(0, kick)
		case ev.MatchString("s", "down"):
			v.impulse(0, -kick)
		case ev.MatchString("space"):
			v.impulse((rand.Float64()-0.5)*0.6, (rand.Float64()-0.5)*0.3)
		case ev.MatchString("r"):
			v.reset()
		case ev.MatchString("x"):
			v.wireframe = !v.wireframe
		case ev.MatchString("b"):
			v.showBounds = !v.showBounds
		}
	case uv.MouseClickEvent:
		v.mouseDown = true
		v.lastX, v.lastY = ev.X, ev.Y
	case uv.MouseReleaseEvent:
		v.mouseDown = false
	case uv.MouseMotionEvent:
		if v.mouseDown {
			v.impulse(float64(ev.X-v.lastX)*0.02, float64(ev.Y-v.lastY)*0.02)
			v.lastX, v.lastY = ev.X, ev.Y
		}
	}
	return true
}

func runView(ctx context.Context, s *scene.Scene, bg color.RGBA) error {
	term := uv.DefaultTerminal()
	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}
	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	// Any-event mouse tracking, SGR encoding
	fmt.Fprint(os.Stdout, "\x1b[?1003h\x1b[?1006h")
	defer func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	base := render.FrameScene(s)
	lo, hi, _ := s.Bounds()
	box := render.NewAABB(lo, hi)
	fb := render.NewFramebuffer(width, height*2)
	state := newViewState()

	ticker := time.NewTicker(time.Second / viewFPS)
	defer ticker.Stop()
	events := term.Events()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if resize, isResize := ev.(uv.WindowSizeEvent); isResize {
				width, height = resize.Width, resize.Height
				term.Erase()
				term.Resize(width, height)
				fb = render.NewFramebuffer(width, height*2)
				continue
			}
			if !state.handle(ev) {
				return nil
			}
		case <-ticker.C:
			state.yaw.update()
			state.pitch.update()
			state.pitch.Position = max(-maxPitch, min(state.pitch.Position, maxPitch))
			cam := base.Orbit(state.yaw.Position, state.pitch.Position)

			fb.Clear(bg)
			if state.wireframe {
				render.NewWireframe(fb, cam).DrawScene(s, wireColor)
			} else {
				render.NewRasterizer(fb, cam).DrawScene(s)
			}
			if state.showBounds {
				render.NewWireframe(fb, cam).DrawBox(box, boundsColor)
			}

			fb.Draw(term, uv.Rect(0, 0, width, height))
			if err := term.Display(); err != nil {
				return fmt.Errorf("display: %w", err)
			}
		}
	}
}
