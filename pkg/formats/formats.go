// Package formats turns raw model bytes into a scene.Scene. Each supported
// detect.Format has exactly one Parser; Parse dispatches through a fixed
// table.
package formats

import (
	"errors"
	"fmt"

	"github.com/taigrr/glimpse/pkg/detect"
	"github.com/taigrr/glimpse/pkg/scene"
	"github.com/taigrr/glimpse/pkg/texture"
)

// Asset is one model file as handed to a parser. It is never modified.
type Asset struct {
	Data []byte
	// Hint is the file name or extension the data came from.
	Hint string
	// BasePath is the directory companion files resolve against. Empty
	// means embedded data only.
	BasePath string
}

// Parser converts an asset of one specific format into a scene.
//
// A parser fails only when the file's structure cannot be interpreted at
// all; recoverable problems become scene warnings.
type Parser interface {
	Parse(asset Asset, res *texture.Resolver) (*scene.Scene, error)
}

var parsers = map[detect.Format]Parser{
	detect.GltfJSON:         gltfParser{},
	detect.GltfBinary:       gltfParser{},
	detect.Obj:              objParser{},
	detect.Blockbench:       blockbenchParser{},
	detect.MinecraftBedrock: bedrockParser{},
	detect.MinecraftJava:    javaParser{},
	detect.VintageStory:     vintageStoryParser{},
}

// ParserFor returns the parser registered for format.
func ParserFor(format detect.Format) (Parser, bool) {
	p, ok := parsers[format]
	return p, ok
}

// Parse parses asset as format. A nil resolver gets one rooted at
// asset.BasePath. Every texture or companion file the resolver could not
// supply is recorded on the returned scene as a warning.
func Parse(asset Asset, format detect.Format, res *texture.Resolver) (*scene.Scene, error) {
	p, ok := ParserFor(format)
	if !ok {
		return nil, fmt.Errorf("%w: %v", scene.ErrUnsupportedFormat, format)
	}
	if res == nil {
		res = texture.NewResolver(asset.BasePath)
	}

	s, err := p.Parse(asset, res)
	if err != nil {
		if !errors.Is(err, scene.ErrMalformedInput) && !errors.Is(err, scene.ErrUnsupportedFormat) {
			err = fmt.Errorf("%w: %v", scene.ErrMalformedInput, err)
		}
		return nil, fmt.Errorf("parse %v: %w", format, err)
	}
	if s == nil {
		s = scene.New()
	}

	for _, m := range res.TakeMisses() {
		kind := scene.ErrMissingResource
		if errors.Is(m.Err, texture.ErrRead) {
			kind = scene.ErrIO
		}
		s.Warnf(kind, "%s", m.Error())
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("parse %v: %w", format, scene.Malformed("%v", err))
	}
	return s, nil
}
