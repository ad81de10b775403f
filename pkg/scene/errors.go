package scene

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the detector, parsers and pipeline. Match with
// errors.Is.
var (
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrMalformedInput       = errors.New("malformed input")
	ErrMissingResource      = errors.New("missing resource")
	ErrUnsupportedPrimitive = errors.New("unsupported primitive")
	ErrEmptyScene           = errors.New("empty scene")
	ErrIO                   = errors.New("i/o error")
)

// Warning records a recovered, non-fatal outcome of parsing.
type Warning struct {
	Kind   error
	Detail string
}

func (w Warning) Error() string {
	return fmt.Sprintf("%v: %s", w.Kind, w.Detail)
}

func (w Warning) Unwrap() error {
	return w.Kind
}

// Warnf attaches a warning of the given kind to the scene.
func (s *Scene) Warnf(kind error, format string, args ...any) {
	s.Warnings = append(s.Warnings, Warning{Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

// Malformed wraps a description as ErrMalformedInput.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}
